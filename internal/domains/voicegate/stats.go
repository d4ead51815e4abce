package voicegate

import (
	"github.com/xpanvictor/voicegate/pkg/Logger"
	"github.com/xpanvictor/voicegate/pkg/clock"
)

type adjuster interface {
	Decrease() bool
}

// SessionStatsTracker watches episode durations. Many very short episodes
// mean noise keeps tripping the detector; an episode that never ends means
// the mic is stuck open. Both lower the threshold magnitude.
type SessionStatsTracker struct {
	cfg      Config
	clock    clock.Clock
	adjust   adjuster
	logger   *Logger.Logger
	episode  SpeakingEpisode
	counters SessionCounters
}

func NewSessionStatsTracker(cfg Config, clk clock.Clock, adjust adjuster, logger *Logger.Logger) *SessionStatsTracker {
	return &SessionStatsTracker{
		cfg:    cfg.withDefaults(),
		clock:  clk,
		adjust: adjust,
		logger: logger,
	}
}

func (t *SessionStatsTracker) SpeakingStarted() {
	t.episode = SpeakingEpisode{StartedAt: t.clock.Now(), Active: true}
}

func (t *SessionStatsTracker) SpeakingStopped() {
	if !t.episode.Active {
		return
	}
	elapsed := t.clock.Now().Sub(t.episode.StartedAt)
	t.episode.Active = false

	if elapsed >= t.cfg.ShortEpisode {
		t.counters.ShortTriggers = 0
		return
	}
	t.counters.ShortTriggers++
	if t.counters.ShortTriggers > t.cfg.ShortTriggerLimit {
		t.logger.Infof("stats: %d short episodes in a row", t.counters.ShortTriggers)
		t.adjust.Decrease()
		t.counters.ShortTriggers = 0
	}
}

// Check runs the long-session heuristic; called on every periodic tick.
func (t *SessionStatsTracker) Check() {
	if !t.episode.Active {
		return
	}
	now := t.clock.Now()
	if now.Sub(t.episode.StartedAt) > t.cfg.LongEpisode {
		t.counters.LongSessions++
		t.episode.StartedAt = now
	}
	if t.counters.LongSessions > t.cfg.LongSessionLimit {
		t.logger.Infof("stats: continuous speech for %d windows", t.counters.LongSessions)
		t.adjust.Decrease()
		t.counters.LongSessions = 0
		t.episode.StartedAt = now
	}
}

func (t *SessionStatsTracker) Counters() SessionCounters {
	return t.counters
}

func (t *SessionStatsTracker) Episode() SpeakingEpisode {
	return t.episode
}
