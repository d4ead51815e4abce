package activity

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/xpanvictor/voicegate/pkg/Logger"
	audioring "github.com/xpanvictor/voicegate/pkg/io/audioRing"
)

// MinLevel is reported for digital silence instead of -Inf.
const MinLevel = -100.0

var ErrClosed = errors.New("activity: detector closed")

// Config contains configuration for the energy detector
type Config struct {
	Threshold    float64       `json:"threshold"`    // dBFS a frame must exceed to count as loud
	PollInterval time.Duration `json:"pollInterval"` // how often buffered frames are evaluated
	History      int           `json:"history"`      // loud/quiet slots remembered
	RingCapacity int           `json:"ringCapacity"` // bytes of buffered audio
}

// DefaultConfig mirrors the usual browser speaking detector defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:    -50,
		PollInterval: 50 * time.Millisecond,
		History:      10,
		RingCapacity: 64 * 1024,
	}
}

type subscriber struct {
	id uint64
	fn func(bool)
}

// EnergyDetector classifies PCM frames as speaking or silent by peak level.
// Speaking starts when a loud frame follows at least two loud frames among
// the last three, and stops when a quiet frame follows a fully quiet history.
type EnergyDetector struct {
	mu        sync.Mutex
	logger    *Logger.Logger
	ring      audioring.AudioRingBuffer
	threshold float64
	interval  time.Duration
	history   []bool
	speaking  bool
	subs      []subscriber
	nextID    uint64
	closed    bool
	done      chan struct{}
}

func NewEnergyDetector(cfg Config, logger *Logger.Logger) *EnergyDetector {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.History < 3 {
		cfg.History = def.History
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = def.RingCapacity
	}
	return &EnergyDetector{
		logger:    logger,
		ring:      audioring.New(cfg.RingCapacity),
		threshold: cfg.Threshold,
		interval:  cfg.PollInterval,
		history:   make([]bool, cfg.History),
		done:      make(chan struct{}),
	}
}

// Push buffers a frame for the next poll.
func (d *EnergyDetector) Push(frame audioring.AudioInput) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return d.ring.Enqueue(frame)
}

// Run evaluates buffered frames every poll interval until ctx is done or the
// detector is closed.
func (d *EnergyDetector) Run(ctx context.Context) {
	interval := d.PollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			for _, frame := range d.ring.Drain(0) {
				d.Process(frame)
			}
			if next := d.PollInterval(); next != interval {
				interval = next
				ticker.Reset(next)
			}
		}
	}
}

// Process evaluates a single frame immediately.
func (d *EnergyDetector) Process(frame audioring.AudioInput) {
	d.Observe(PeakLevel(frame.Data))
}

// Observe feeds one level sample (dBFS) through the speaking history.
func (d *EnergyDetector) Observe(level float64) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	loud := level > d.threshold
	changed := false
	if loud && !d.speaking {
		recent := 0
		for _, h := range d.history[len(d.history)-3:] {
			if h {
				recent++
			}
		}
		if recent >= 2 {
			d.speaking = true
			changed = true
		}
	} else if level < d.threshold && d.speaking {
		quiet := true
		for _, h := range d.history {
			if h {
				quiet = false
				break
			}
		}
		if quiet {
			d.speaking = false
			changed = true
		}
	}
	copy(d.history, d.history[1:])
	d.history[len(d.history)-1] = loud

	speaking := d.speaking
	subs := append([]subscriber(nil), d.subs...)
	d.mu.Unlock()

	if !changed {
		return
	}
	d.logger.Debugf("activity: speaking=%v level=%.1fdB", speaking, level)
	for _, s := range subs {
		s.fn(speaking)
	}
}

// OnActivityChange registers fn for speaking transitions.
func (d *EnergyDetector) OnActivityChange(fn func(active bool)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscriber{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

func (d *EnergyDetector) SetThreshold(threshold float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
}

func (d *EnergyDetector) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

func (d *EnergyDetector) SetPollInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interval = interval
}

func (d *EnergyDetector) PollInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// Speaking reports the current classification.
func (d *EnergyDetector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// Close stops Run, drops subscribers and buffered audio. Safe to call twice.
func (d *EnergyDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.subs = nil
	close(d.done)
	d.ring.Reset()
	return nil
}

// PeakLevel returns the peak amplitude of 16-bit little endian PCM in dBFS.
func PeakLevel(pcm []byte) float64 {
	peak := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak == 0 {
		return MinLevel
	}
	level := 20 * math.Log10(float64(peak)/32768.0)
	if level < MinLevel {
		return MinLevel
	}
	return level
}
