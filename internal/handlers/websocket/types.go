package websocket

import (
	"encoding/json"
	"time"

	"github.com/xpanvictor/voicegate/internal/domains/preferences"
	"github.com/xpanvictor/voicegate/internal/domains/voicegate"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// client -> server
	MessageTypeInit        MessageType = "init"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeControl     MessageType = "control"
	MessageTypeSettings    MessageType = "settings"
	MessageTypeSensitivity MessageType = "sensitivity"
	MessageTypeStatus      MessageType = "status"

	// server -> client
	MessageTypeRTCMeta          MessageType = "rtc_meta"
	MessageTypeSpeakingState    MessageType = "speaking_state"
	MessageTypeSensitivityState MessageType = "sensitivity_state"
	MessageTypeMonitoringState  MessageType = "monitoring_state"
	MessageTypeError            MessageType = "error"
)

// Control actions
const (
	ActionMute     = "mute"
	ActionUnmute   = "unmute"
	ActionReady    = "ready"
	ActionNotReady = "not_ready"
)

// Wire names for gate signals, as peers expect them.
const (
	EventDistributeRTP = "DISTRIBUTE_RTP"
	EventHaltRTP       = "HALT_RTP"
)

func wireEventName(sig voicegate.Signal) string {
	switch sig {
	case voicegate.SignalStreamStart:
		return EventDistributeRTP
	case voicegate.SignalStreamHalt:
		return EventHaltRTP
	default:
		return string(sig)
	}
}

// WSMessage represents the structure of outgoing WebSocket messages
type WSMessage struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// InboundMessage is what clients send; Data is decoded per Type.
type InboundMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// InitMessage contains initialization data
type InitMessage struct {
	SampleRate  int32               `json:"sampleRate,omitempty"`
	Preferences *preferences.Change `json:"preferences,omitempty"`
}

// AudioMessage carries PCM16 when a client cannot send binary frames
type AudioMessage struct {
	SampleRate int32  `json:"sampleRate"`
	Channels   int16  `json:"channels"`
	Data       []byte `json:"data"`
}

type ControlMessage struct {
	Action string `json:"action"`
}

type SensitivityMessage struct {
	Magnitude float64 `json:"magnitude"`
}

type RTCMetaMessage struct {
	EventName string `json:"eventName"`
}

type SpeakingStateMessage struct {
	Speaking bool `json:"speaking"`
}

type SensitivityStateMessage struct {
	Magnitude float64 `json:"magnitude"`
}

type MonitoringStateMessage struct {
	Enabled bool `json:"enabled"`
}

// ErrorMessage contains error information
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
