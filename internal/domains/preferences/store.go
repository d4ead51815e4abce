// Package preferences holds the per-session voice preferences and notifies
// subscribers with only the fields that changed between snapshots.
package preferences

import (
	"sync"

	"github.com/google/uuid"
)

// VoicePreferences is the user facing configuration of a voice session.
type VoicePreferences struct {
	MonitoringEnabled     bool     `json:"monitoringEnabled" mapstructure:"monitoring_enabled"`
	AutomaticSensitivity  bool     `json:"automaticSensitivity" mapstructure:"automatic_sensitivity"`
	Muted                 bool     `json:"muted" mapstructure:"muted"`
	MicrophoneSensitivity *float64 `json:"microphoneSensitivity,omitempty" mapstructure:"microphone_sensitivity"`
}

// Change carries the fields that differ from the previous snapshot; nil
// pointers are unchanged. Clients send it as a partial settings payload.
type Change struct {
	MonitoringEnabled     *bool    `json:"monitoringEnabled,omitempty"`
	AutomaticSensitivity  *bool    `json:"automaticSensitivity,omitempty"`
	Muted                 *bool    `json:"muted,omitempty"`
	MicrophoneSensitivity *float64 `json:"microphoneSensitivity,omitempty"`
}

func (c Change) Empty() bool {
	return c.MonitoringEnabled == nil &&
		c.AutomaticSensitivity == nil &&
		c.Muted == nil &&
		c.MicrophoneSensitivity == nil
}

// Diff returns the edge changes from prev to next. A sensitivity that goes
// from set to unset is not reported since there is nothing to apply.
func Diff(prev, next VoicePreferences) Change {
	var c Change
	if prev.MonitoringEnabled != next.MonitoringEnabled {
		c.MonitoringEnabled = boolPtr(next.MonitoringEnabled)
	}
	if prev.AutomaticSensitivity != next.AutomaticSensitivity {
		c.AutomaticSensitivity = boolPtr(next.AutomaticSensitivity)
	}
	if prev.Muted != next.Muted {
		c.Muted = boolPtr(next.Muted)
	}
	if next.MicrophoneSensitivity != nil &&
		(prev.MicrophoneSensitivity == nil || *prev.MicrophoneSensitivity != *next.MicrophoneSensitivity) {
		v := *next.MicrophoneSensitivity
		c.MicrophoneSensitivity = &v
	}
	return c
}

// Apply returns p with every field carried by c overwritten.
func (p VoicePreferences) Apply(c Change) VoicePreferences {
	if c.MonitoringEnabled != nil {
		p.MonitoringEnabled = *c.MonitoringEnabled
	}
	if c.AutomaticSensitivity != nil {
		p.AutomaticSensitivity = *c.AutomaticSensitivity
	}
	if c.Muted != nil {
		p.Muted = *c.Muted
	}
	if c.MicrophoneSensitivity != nil {
		v := *c.MicrophoneSensitivity
		p.MicrophoneSensitivity = &v
	}
	return p
}

func (p VoicePreferences) clone() VoicePreferences {
	if p.MicrophoneSensitivity != nil {
		v := *p.MicrophoneSensitivity
		p.MicrophoneSensitivity = &v
	}
	return p
}

// Store is the settings stream of one voice session.
type Store struct {
	mu      sync.Mutex
	current VoicePreferences
	order   []uuid.UUID
	subs    map[uuid.UUID]func(Change)
}

func NewStore(initial VoicePreferences) *Store {
	return &Store{
		current: initial.clone(),
		subs:    make(map[uuid.UUID]func(Change)),
	}
}

func (s *Store) Current() VoicePreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.clone()
}

// Subscribe registers fn for future changes. fn runs on the goroutine that
// updated the store, outside the store lock.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.subs[id] = fn
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; !ok {
			return
		}
		delete(s.subs, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Update replaces the snapshot and publishes the difference.
func (s *Store) Update(next VoicePreferences) Change {
	s.mu.Lock()
	change := Diff(s.current, next)
	s.current = s.current.Apply(change)
	fns := s.subscribers()
	s.mu.Unlock()

	publish(fns, change)
	return change
}

// Patch applies a partial change, publishing only fields that actually moved.
func (s *Store) Patch(c Change) Change {
	s.mu.Lock()
	change := Diff(s.current, s.current.Apply(c))
	s.current = s.current.Apply(change)
	fns := s.subscribers()
	s.mu.Unlock()

	publish(fns, change)
	return change
}

func (s *Store) subscribers() []func(Change) {
	fns := make([]func(Change), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	return fns
}

func publish(fns []func(Change), c Change) {
	if c.Empty() {
		return
	}
	for _, fn := range fns {
		fn(c)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
