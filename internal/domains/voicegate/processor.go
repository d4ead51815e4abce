package voicegate

import (
	"sync"
	"time"

	"github.com/xpanvictor/voicegate/internal/domains/preferences"
	"github.com/xpanvictor/voicegate/pkg/Logger"
	"github.com/xpanvictor/voicegate/pkg/clock"
)

// Processor runs one microphone through the gate. Activity callbacks, the
// periodic check, the halt timer, mute and settings changes are serialized
// by one mutex, and every handler is ignored once Stop has run.
type Processor struct {
	mu     sync.Mutex
	cfg    Config
	logger *Logger.Logger

	source   ActivitySource
	settings SettingsStream
	clock    clock.Clock

	sensitivity *SensitivityController
	stats       *SessionStatsTracker
	gate        *StreamGateController

	active     bool // raw activity
	muted      bool
	monitoring bool

	monitorObservers []func(enabled bool)

	unsubscribeActivity func()
	unsubscribeSettings func()
	tick                clock.Timer
	started             bool
	stopped             bool
}

// NewProcessor wires the gate to its collaborators. The activity source is
// required and must be usable: a nil interface, or a typed nil whose
// Threshold panics, yields ErrCollaboratorUnavailable. A nil sink never
// becomes ready and a nil settings stream means default preferences.
func NewProcessor(
	source ActivitySource,
	sink SignalSink,
	settings SettingsStream,
	cfg Config,
	clk clock.Clock,
	logger *Logger.Logger,
) (*Processor, error) {
	if source == nil || !usable(source) {
		return nil, ErrCollaboratorUnavailable
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = Logger.NewNop()
	}
	cfg = cfg.withDefaults()

	p := &Processor{
		cfg:      cfg,
		logger:   logger,
		source:   source,
		settings: settings,
	}
	p.clock = &serialClock{inner: clk, p: p}
	p.sensitivity = NewSensitivityController(source, cfg.AdjustStep, cfg.MinMagnitude, logger)
	p.stats = NewSessionStatsTracker(cfg, p.clock, p.sensitivity, logger)
	p.gate = NewStreamGateController(sink, p.clock, cfg.HaltDebounce, logger)
	return p, nil
}

// Start applies the current preferences, subscribes to activity and
// settings, and starts the long-session check.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	p.source.SetPollInterval(p.cfg.PollInterval)

	prefs := preferences.VoicePreferences{AutomaticSensitivity: true}
	if p.settings != nil {
		prefs = p.settings.Current()
	}
	if prefs.MicrophoneSensitivity != nil {
		p.sensitivity.SetAbsolute(*prefs.MicrophoneSensitivity)
	}
	p.sensitivity.SetAutomatic(prefs.AutomaticSensitivity)
	p.muted = prefs.Muted
	p.setMonitoring(prefs.MonitoringEnabled)

	p.unsubscribeActivity = p.source.OnActivityChange(p.handleActivity)
	if p.settings != nil {
		p.unsubscribeSettings = p.settings.Subscribe(p.ApplySettings)
	}
	p.tick = p.clock.Every(p.cfg.CheckInterval, p.stats.Check)

	p.logger.Infof("voicegate: started threshold=%.1f automatic=%v muted=%v",
		p.sensitivity.Threshold(), p.sensitivity.Automatic(), p.muted)
	return nil
}

// Stop tears everything down. It is idempotent and leaves no timers behind.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true

	if p.unsubscribeActivity != nil {
		p.unsubscribeActivity()
	}
	if p.unsubscribeSettings != nil {
		p.unsubscribeSettings()
	}
	if p.tick != nil {
		p.tick.Stop()
	}
	p.gate.Close()
	if err := p.source.Close(); err != nil {
		p.logger.Warnf("voicegate: closing activity source: %v", err)
	}
	p.logger.Infof("voicegate: stopped")
}

func (p *Processor) OnMute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setMuted(true)
}

func (p *Processor) OnUnmute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setMuted(false)
}

// Speaking is the user facing indicator. It can lead the network visible
// stream state by up to the halt debounce.
func (p *Processor) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gate.Speaking()
}

// SetSensitivity is the manual absolute set from a UI control. It returns
// the stored threshold.
func (p *Processor) SetSensitivity(magnitude float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sensitivity.SetAbsolute(magnitude)
}

// ApplySettings reacts to preference edges.
func (p *Processor) ApplySettings(c preferences.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	if c.MonitoringEnabled != nil {
		p.setMonitoring(*c.MonitoringEnabled)
	}
	if c.AutomaticSensitivity != nil {
		p.sensitivity.SetAutomatic(*c.AutomaticSensitivity)
	}
	if c.MicrophoneSensitivity != nil {
		p.sensitivity.SetAbsolute(*c.MicrophoneSensitivity)
	}
	if c.Muted != nil {
		p.setMuted(*c.Muted)
	}
}

// OnSpeakingChange registers fn for indicator edges.
func (p *Processor) OnSpeakingChange(fn func(speaking bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate.OnSpeakingChange(fn)
}

// OnThresholdChange registers fn to echo the magnitude after every set.
func (p *Processor) OnThresholdChange(fn func(magnitude float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sensitivity.OnChange(fn)
}

// OnMonitoringChange registers fn for monitoring playback toggles.
func (p *Processor) OnMonitoringChange(fn func(enabled bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitorObservers = append(p.monitorObservers, fn)
}

func (p *Processor) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		State:     p.gate.State(),
		Speaking:  p.gate.Speaking(),
		Active:    p.active,
		Muted:     p.muted,
		Threshold: p.sensitivity.Threshold(),
		Automatic: p.sensitivity.Automatic(),
		Counters:  p.stats.Counters(),
	}
}

func (p *Processor) handleActivity(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || active == p.active {
		return
	}
	p.active = active

	if active {
		p.stats.SpeakingStarted()
	} else {
		p.stats.SpeakingStopped()
	}
	p.gate.Drive(p.active && !p.muted)
}

func (p *Processor) setMuted(muted bool) {
	if p.stopped {
		return
	}
	p.muted = muted
	p.gate.Drive(p.active && !p.muted)
}

func (p *Processor) setMonitoring(enabled bool) {
	if p.monitoring == enabled {
		return
	}
	p.monitoring = enabled
	for _, fn := range p.monitorObservers {
		fn(enabled)
	}
}

// usable reads the threshold once; a typed nil source panics here rather
// than later inside a callback.
func usable(source ActivitySource) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	source.Threshold()
	return true
}

// serialClock runs scheduled callbacks under the processor lock and drops
// them once the processor is stopped.
type serialClock struct {
	inner clock.Clock
	p     *Processor
}

func (c *serialClock) Now() time.Time {
	return c.inner.Now()
}

func (c *serialClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.inner.AfterFunc(d, c.guard(f))
}

func (c *serialClock) Every(d time.Duration, f func()) clock.Timer {
	return c.inner.Every(d, c.guard(f))
}

func (c *serialClock) guard(f func()) func() {
	return func() {
		c.p.mu.Lock()
		defer c.p.mu.Unlock()
		if c.p.stopped {
			return
		}
		f()
	}
}
