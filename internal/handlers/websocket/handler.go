package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/voicegate/internal/config"
	"github.com/xpanvictor/voicegate/internal/domains/preferences"
	"github.com/xpanvictor/voicegate/internal/domains/voicegate"
	"github.com/xpanvictor/voicegate/pkg/Logger"
	"github.com/xpanvictor/voicegate/pkg/clock"
	"github.com/xpanvictor/voicegate/pkg/io/activity"
	audioring "github.com/xpanvictor/voicegate/pkg/io/audioRing"
)

// Handler serves one voice gate per WebSocket connection.
type Handler struct {
	logger            *Logger.Logger
	config            *config.Settings
	clock             clock.Clock
	connectionManager *ConnectionManager
	upgrader          websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. A nil clock uses wall time.
func NewHandler(cfg *config.Settings, logger *Logger.Logger, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.New()
	}
	return &Handler{
		logger:            logger,
		config:            cfg,
		clock:             clk,
		connectionManager: NewConnectionManager(logger, cfg.Server.SessionTimeout),
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(cfg.Server.AllowedOrigin),
			ReadBufferSize:  cfg.Server.ReadBufferSize,
			WriteBufferSize: cfg.Server.WriteBufferSize,
		},
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

// RegisterRoutes registers WebSocket routes
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	ws := router.Group("/ws")
	{
		ws.GET("", h.HandleVoiceWebSocket)
		ws.GET("/stats", h.HandleStats)
	}
}

// HandleVoiceWebSocket upgrades the request and runs the gate until the
// client goes away.
func (h *Handler) HandleVoiceWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	session := NewSession(conn, h.config.Detector.SampleRate, h.logger)
	h.connectionManager.RegisterConnection(session)
	defer h.connectionManager.UnregisterConnection(session.SessionID)

	if err := h.startVoiceGate(session); err != nil {
		h.logger.Errorf("Failed to start voice gate for session %s: %v", session.SessionID, err)
		session.SendError("GATE_START_FAILED", err.Error())
		return
	}

	h.handleConnection(session)
}

// HandleStats provides connection statistics
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"data":   h.connectionManager.GetStats(),
	})
}

// Close shuts every session down.
func (h *Handler) Close() error {
	return h.connectionManager.Close()
}

func (h *Handler) startVoiceGate(session *Session) error {
	logger := h.logger.With("session", session.SessionID.String())

	detector := activity.NewEnergyDetector(h.config.Activity(), logger.Named("activity"))
	store := preferences.NewStore(h.config.Preferences)

	proc, err := voicegate.NewProcessor(detector, session, store, h.config.Voicegate(), h.clock, logger.Named("voicegate"))
	if err != nil {
		detector.Close()
		return err
	}

	proc.OnSpeakingChange(func(speaking bool) {
		h.send(session, MessageTypeSpeakingState, SpeakingStateMessage{Speaking: speaking})
	})
	proc.OnThresholdChange(func(magnitude float64) {
		h.send(session, MessageTypeSensitivityState, SensitivityStateMessage{Magnitude: magnitude})
	})
	proc.OnMonitoringChange(func(enabled bool) {
		h.send(session, MessageTypeMonitoringState, MonitoringStateMessage{Enabled: enabled})
	})

	ctx, cancel := context.WithCancel(context.Background())
	session.attach(proc, detector, store, cancel)

	if err := proc.Start(); err != nil {
		return err
	}
	go detector.Run(ctx)

	h.logger.Infof("Started voice gate for session %s", session.SessionID)
	return nil
}

func (h *Handler) send(session *Session, msgType MessageType, data interface{}) {
	if err := session.SendWebSocketMessage(msgType, data); err != nil {
		h.logger.Debugf("Dropped %s for session %s: %v", msgType, session.SessionID, err)
	}
}

func (h *Handler) handleConnection(session *Session) {
	for {
		messageType, data, err := session.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Errorf("WebSocket read error: %v", err)
			} else {
				h.logger.Infof("WebSocket connection closed for session %s", session.SessionID)
			}
			return
		}

		session.UpdateLastActive()

		switch messageType {
		case websocket.TextMessage:
			h.handleTextMessage(session, data)
		case websocket.BinaryMessage:
			h.pushAudio(session, audioring.AudioInput{
				Data:       data,
				Timestamp:  time.Now(),
				SampleRate: session.SampleRate(),
				Channels:   1,
			})
		}
	}
}

func (h *Handler) pushAudio(session *Session, frame audioring.AudioInput) {
	_, detector, _ := session.components()
	if detector == nil {
		return
	}
	if err := detector.Push(frame); err != nil {
		h.logger.Warnf("Dropped audio frame for session %s: %v", session.SessionID, err)
		session.SendError("AUDIO_REJECTED", err.Error())
	}
}

func (h *Handler) handleTextMessage(session *Session, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Errorf("Failed to unmarshal WebSocket message: %v", err)
		session.SendError("INVALID_MESSAGE", "Invalid message format")
		return
	}

	proc, _, store := session.components()

	switch msg.Type {
	case MessageTypeInit:
		var initMsg InitMessage
		if !h.decode(session, msg, &initMsg) {
			return
		}
		session.SetSampleRate(initMsg.SampleRate)
		if initMsg.Preferences != nil {
			store.Patch(*initMsg.Preferences)
		}

	case MessageTypeAudio:
		var audio AudioMessage
		if !h.decode(session, msg, &audio) {
			return
		}
		if audio.SampleRate <= 0 {
			audio.SampleRate = session.SampleRate()
		}
		if audio.Channels <= 0 {
			audio.Channels = 1
		}
		h.pushAudio(session, audioring.AudioInput{
			Data:       audio.Data,
			Timestamp:  time.Now(),
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
		})

	case MessageTypeControl:
		var control ControlMessage
		if !h.decode(session, msg, &control) {
			return
		}
		h.handleControl(session, proc, control.Action)

	case MessageTypeSettings:
		// fields the client leaves out stay as they are
		var change preferences.Change
		if !h.decode(session, msg, &change) {
			return
		}
		store.Patch(change)

	case MessageTypeSensitivity:
		var sens SensitivityMessage
		if !h.decode(session, msg, &sens) {
			return
		}
		proc.SetSensitivity(sens.Magnitude)

	case MessageTypeStatus:
		h.send(session, MessageTypeStatus, proc.Snapshot())

	default:
		h.logger.Warnf("Unknown message type %q from session %s", msg.Type, session.SessionID)
		session.SendError("UNKNOWN_MESSAGE_TYPE", "Unknown message type: "+string(msg.Type))
	}
}

func (h *Handler) handleControl(session *Session, proc *voicegate.Processor, action string) {
	switch action {
	case ActionMute:
		proc.OnMute()
	case ActionUnmute:
		proc.OnUnmute()
	case ActionReady:
		session.SetReady(true)
	case ActionNotReady:
		session.SetReady(false)
	default:
		session.SendError("UNKNOWN_ACTION", "Unknown control action: "+action)
	}
}

func (h *Handler) decode(session *Session, msg InboundMessage, into interface{}) bool {
	if err := json.Unmarshal(msg.Data, into); err != nil {
		h.logger.Errorf("Failed to decode %s payload: %v", msg.Type, err)
		session.SendError("INVALID_PAYLOAD", "Invalid "+string(msg.Type)+" payload")
		return false
	}
	return true
}
