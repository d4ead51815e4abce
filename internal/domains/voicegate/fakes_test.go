package voicegate

import (
	"time"
)

type fakeSource struct {
	threshold float64
	interval  time.Duration
	callbacks map[int]func(bool)
	nextID    int
	closed    int
}

func newFakeSource(threshold float64) *fakeSource {
	return &fakeSource{threshold: threshold, callbacks: make(map[int]func(bool))}
}

func (s *fakeSource) OnActivityChange(fn func(bool)) func() {
	s.nextID++
	id := s.nextID
	s.callbacks[id] = fn
	return func() { delete(s.callbacks, id) }
}

func (s *fakeSource) SetThreshold(t float64) {
	s.threshold = t
}

func (s *fakeSource) Threshold() float64 {
	return s.threshold
}

func (s *fakeSource) SetPollInterval(d time.Duration) {
	s.interval = d
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

func (s *fakeSource) subscribers() int {
	return len(s.callbacks)
}

func (s *fakeSource) emit(active bool) {
	for _, fn := range s.callbacks {
		fn(active)
	}
}

type recordingSink struct {
	ready   bool
	signals []Signal
}

func (s *recordingSink) Ready() bool {
	return s.ready
}

func (s *recordingSink) Notify(sig Signal) {
	s.signals = append(s.signals, sig)
}

func (s *recordingSink) count(sig Signal) int {
	n := 0
	for _, got := range s.signals {
		if got == sig {
			n++
		}
	}
	return n
}

type countingAdjuster struct {
	calls int
}

func (a *countingAdjuster) Decrease() bool {
	a.calls++
	return true
}
