// Package voicegate decides when a microphone stream is announced live to
// peers. Raw speaking transitions are debounced into stream start/halt
// signals, and the detection threshold is tuned from how long speaking
// episodes last.
package voicegate

import (
	"errors"
	"time"

	"github.com/xpanvictor/voicegate/internal/domains/preferences"
)

// Signal is an abstract stream announcement; the transport picks the wire form.
type Signal string

const (
	SignalStreamStart Signal = "STREAM_START"
	SignalStreamHalt  Signal = "STREAM_HALT"
)

var (
	ErrCollaboratorUnavailable = errors.New("voicegate: activity source unavailable")
	ErrAlreadyStarted          = errors.New("voicegate: processor already started")
	ErrStopped                 = errors.New("voicegate: processor stopped")
)

// ActivitySource supplies speaking transitions and owns the threshold they
// are computed against.
type ActivitySource interface {
	OnActivityChange(fn func(active bool)) (unsubscribe func())
	SetThreshold(threshold float64)
	Threshold() float64
	SetPollInterval(interval time.Duration)
	Close() error
}

// SignalSink delivers stream announcements to peers. Notify is only called
// while Ready reports true.
type SignalSink interface {
	Ready() bool
	Notify(sig Signal)
}

// SettingsStream publishes preference edges.
type SettingsStream interface {
	Current() preferences.VoicePreferences
	Subscribe(fn func(preferences.Change)) (unsubscribe func())
}

// SpeakingEpisode is the currently open interval of detected speech.
type SpeakingEpisode struct {
	StartedAt time.Time
	Active    bool
}

// SessionCounters drive the two sensitivity heuristics.
type SessionCounters struct {
	ShortTriggers uint
	LongSessions  uint
}

// Snapshot is a point in time view of a processor, for status reporting.
type Snapshot struct {
	State     string          `json:"state"`
	Speaking  bool            `json:"speaking"`
	Active    bool            `json:"active"`
	Muted     bool            `json:"muted"`
	Threshold float64         `json:"threshold"`
	Automatic bool            `json:"automatic"`
	Counters  SessionCounters `json:"counters"`
}
