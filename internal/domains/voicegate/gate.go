package voicegate

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"
	"github.com/xpanvictor/voicegate/pkg/Logger"
	"github.com/xpanvictor/voicegate/pkg/clock"
)

// Gate states
const (
	StateIdle        = "idle"
	StateStreaming   = "streaming"
	StateHaltPending = "halt_pending"
)

// Gate events
const (
	eventOpen    = "open"
	eventRelease = "release"
	eventResume  = "resume"
	eventHalt    = "halt"
)

// StreamGateController turns the wanted stream state into at most one start
// per rising edge and one debounced halt per falling edge.
//
//	idle --open--> streaming --release--> halt_pending --halt--> idle
//	                   ^                       |
//	                   +--------resume---------+
type StreamGateController struct {
	machine  *fsm.FSM
	sink     SignalSink
	clock    clock.Clock
	debounce time.Duration
	logger   *Logger.Logger

	pendingHalt clock.Timer
	haltGen     uint64

	speaking  bool
	observers []func(speaking bool)
}

func NewStreamGateController(sink SignalSink, clk clock.Clock, debounce time.Duration, logger *Logger.Logger) *StreamGateController {
	g := &StreamGateController{
		sink:     sink,
		clock:    clk,
		debounce: debounce,
		logger:   logger,
	}
	g.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventOpen, Src: []string{StateIdle}, Dst: StateStreaming},
			{Name: eventRelease, Src: []string{StateStreaming}, Dst: StateHaltPending},
			{Name: eventResume, Src: []string{StateHaltPending}, Dst: StateStreaming},
			{Name: eventHalt, Src: []string{StateHaltPending}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"after_" + eventOpen: func(_ context.Context, _ *fsm.Event) {
				g.emit(SignalStreamStart)
			},
			"after_" + eventRelease: func(_ context.Context, _ *fsm.Event) {
				g.scheduleHalt()
			},
			"after_" + eventResume: func(_ context.Context, _ *fsm.Event) {
				g.cancelHalt()
			},
			"after_" + eventHalt: func(_ context.Context, _ *fsm.Event) {
				g.emit(SignalStreamHalt)
			},
		},
	)
	return g
}

// Drive feeds the wanted state: speaking and not muted.
func (g *StreamGateController) Drive(wantActive bool) {
	g.setSpeaking(wantActive)

	switch g.machine.Current() {
	case StateIdle:
		if wantActive {
			g.fire(eventOpen)
		}
	case StateStreaming:
		if !wantActive {
			g.fire(eventRelease)
		}
	case StateHaltPending:
		if wantActive {
			g.fire(eventResume)
		}
	}
}

func (g *StreamGateController) State() string {
	return g.machine.Current()
}

// IsStreaming is true while peers consider the stream live, including the
// debounce window before a halt.
func (g *StreamGateController) IsStreaming() bool {
	return g.machine.Current() != StateIdle
}

// Speaking is the undebounced indicator shown to the user.
func (g *StreamGateController) Speaking() bool {
	return g.speaking
}

// OnSpeakingChange registers fn for indicator edges.
func (g *StreamGateController) OnSpeakingChange(fn func(speaking bool)) {
	g.observers = append(g.observers, fn)
}

// Close cancels any pending halt. The gate state is left as is.
func (g *StreamGateController) Close() {
	g.cancelHalt()
}

func (g *StreamGateController) fire(event string) {
	from := g.machine.Current()
	err := g.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		g.logger.Errorf("gate: %s from %s failed: %v", event, from, err)
		return
	}
	g.logger.Debugf("gate: %s -> %s", from, g.machine.Current())
}

func (g *StreamGateController) scheduleHalt() {
	g.cancelHalt()
	g.haltGen++
	gen := g.haltGen
	g.pendingHalt = g.clock.AfterFunc(g.debounce, func() {
		g.haltDue(gen)
	})
}

func (g *StreamGateController) cancelHalt() {
	if g.pendingHalt == nil {
		return
	}
	g.pendingHalt.Stop()
	g.pendingHalt = nil
	g.haltGen++
}

// haltDue runs when the debounce timer fires; a timer that was cancelled
// after it had already been dispatched carries a stale generation.
func (g *StreamGateController) haltDue(gen uint64) {
	if gen != g.haltGen || g.machine.Current() != StateHaltPending {
		return
	}
	g.pendingHalt = nil
	g.fire(eventHalt)
}

func (g *StreamGateController) emit(sig Signal) {
	if g.sink == nil || !g.sink.Ready() {
		g.logger.Warnf("gate: sink not ready, dropping %s", sig)
		return
	}
	g.sink.Notify(sig)
	g.logger.Debugf("gate: sent %s", sig)
}

func (g *StreamGateController) setSpeaking(speaking bool) {
	if g.speaking == speaking {
		return
	}
	g.speaking = speaking
	for _, fn := range g.observers {
		fn(speaking)
	}
}
