// Package clock abstracts wall time and callback scheduling so that timing
// driven components can be stepped deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a handle on a scheduled callback. Stop reports whether the call
// prevented a future firing; stopping an already fired or stopped timer is a
// no-op returning false.
type Timer interface {
	Stop() bool
}

// Clock schedules one-shot and periodic callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) Timer
}

type realClock struct{}

// New returns a Clock backed by the runtime timers. Callbacks run on their
// own goroutines; callers serialize them where needed.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Every(d time.Duration, f func()) Timer {
	t := &ticker{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go t.run(f)
	return t
}

type ticker struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *ticker) run(f func()) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			// re-check so a tick racing with Stop is dropped
			select {
			case <-t.done:
				return
			default:
			}
			f()
		}
	}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
		stopped = true
	})
	return stopped
}
