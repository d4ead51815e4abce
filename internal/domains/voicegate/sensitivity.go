package voicegate

import (
	"math"

	"github.com/xpanvictor/voicegate/pkg/Logger"
)

// SensitivityController owns the detection threshold. The threshold is
// stored as -|magnitude| and written through to the activity source.
type SensitivityController struct {
	source    ActivitySource
	logger    *Logger.Logger
	step      float64
	floor     float64
	threshold float64
	automatic bool
	observers []func(magnitude float64)
}

func NewSensitivityController(source ActivitySource, step, floor float64, logger *Logger.Logger) *SensitivityController {
	return &SensitivityController{
		source:    source,
		logger:    logger,
		step:      step,
		floor:     math.Abs(floor),
		threshold: source.Threshold(),
		automatic: true,
	}
}

// SetAbsolute stores -|magnitude| and returns the threshold the source accepted.
func (s *SensitivityController) SetAbsolute(magnitude float64) float64 {
	s.source.SetThreshold(-math.Abs(magnitude))
	s.threshold = s.source.Threshold()

	echo := math.Abs(s.threshold)
	for _, fn := range s.observers {
		fn(echo)
	}
	return s.threshold
}

// Decrease lowers the magnitude by the configured step.
func (s *SensitivityController) Decrease() bool {
	return s.DecreaseBy(s.step)
}

// DecreaseBy lowers the magnitude by step, never below the floor. It does
// nothing while automatic adjustment is disabled and reports whether the
// threshold moved.
func (s *SensitivityController) DecreaseBy(step float64) bool {
	if !s.automatic {
		return false
	}
	current := math.Abs(s.threshold)
	next := current - step
	if next < s.floor {
		next = s.floor
	}
	if next == current {
		return false
	}
	s.SetAbsolute(next)
	s.logger.Infof("sensitivity: automatic adjustment %.1f -> %.1f", current, next)
	return true
}

func (s *SensitivityController) SetAutomatic(enabled bool) {
	s.automatic = enabled
}

func (s *SensitivityController) Automatic() bool {
	return s.automatic
}

func (s *SensitivityController) Threshold() float64 {
	return s.threshold
}

func (s *SensitivityController) Magnitude() float64 {
	return math.Abs(s.threshold)
}

// OnChange registers fn to receive the magnitude after every set.
func (s *SensitivityController) OnChange(fn func(magnitude float64)) {
	s.observers = append(s.observers, fn)
}
