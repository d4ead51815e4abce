package voicegate

import "time"

// Config tunes the gate and both sensitivity heuristics.
type Config struct {
	HaltDebounce  time.Duration `json:"haltDebounce"`  // delay before a halt is committed
	CheckInterval time.Duration `json:"checkInterval"` // long-session check period
	PollInterval  time.Duration `json:"pollInterval"`  // pushed to the activity source on start

	AdjustStep   float64 `json:"adjustStep"`   // magnitude removed per automatic adjustment
	MinMagnitude float64 `json:"minMagnitude"` // automatic adjustment never goes below this

	ShortEpisode      time.Duration `json:"shortEpisode"`      // episodes shorter than this are short triggers
	ShortTriggerLimit uint          `json:"shortTriggerLimit"` // adjust once the count exceeds this
	LongEpisode       time.Duration `json:"longEpisode"`       // continuous speech window
	LongSessionLimit  uint          `json:"longSessionLimit"`  // adjust once the count exceeds this
}

func DefaultConfig() Config {
	return Config{
		HaltDebounce:      500 * time.Millisecond,
		CheckInterval:     500 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		AdjustStep:        5,
		MinMagnitude:      0,
		ShortEpisode:      1500 * time.Millisecond,
		ShortTriggerLimit: 25,
		LongEpisode:       10 * time.Second,
		LongSessionLimit:  1,
	}
}

// withDefaults fills zero durations and steps; limits and the floor keep
// their zero values since zero is meaningful for them.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HaltDebounce <= 0 {
		c.HaltDebounce = def.HaltDebounce
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = def.CheckInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.AdjustStep <= 0 {
		c.AdjustStep = def.AdjustStep
	}
	if c.ShortEpisode <= 0 {
		c.ShortEpisode = def.ShortEpisode
	}
	if c.LongEpisode <= 0 {
		c.LongEpisode = def.LongEpisode
	}
	return c
}
