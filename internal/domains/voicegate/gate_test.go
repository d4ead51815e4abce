package voicegate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/voicegate/pkg/Logger"
	"github.com/xpanvictor/voicegate/pkg/clock/clocktest"
)

const debounce = 500 * time.Millisecond

func newGate(t *testing.T) (*StreamGateController, *recordingSink, *clocktest.Fake) {
	t.Helper()
	sink := &recordingSink{ready: true}
	clk := clocktest.NewFake(time.Unix(0, 0))
	return NewStreamGateController(sink, clk, debounce, Logger.NewNop()), sink, clk
}

func TestRepeatedWantActiveStartsOnce(t *testing.T) {
	g, sink, _ := newGate(t)

	g.Drive(true)
	g.Drive(true)

	assert.Equal(t, []Signal{SignalStreamStart}, sink.signals)
	assert.Equal(t, StateStreaming, g.State())
}

func TestFlapInsideDebounceCancelsHalt(t *testing.T) {
	g, sink, clk := newGate(t)

	g.Drive(true)
	g.Drive(false)
	assert.Equal(t, StateHaltPending, g.State())
	assert.True(t, g.IsStreaming())

	clk.Advance(300 * time.Millisecond)
	g.Drive(true)
	clk.Advance(2 * time.Second)

	assert.Equal(t, 0, sink.count(SignalStreamHalt))
	assert.Equal(t, 1, sink.count(SignalStreamStart))
	assert.Equal(t, StateStreaming, g.State())
	assert.Equal(t, 0, clk.Pending())
}

func TestHaltAfterDebounce(t *testing.T) {
	g, sink, clk := newGate(t)

	g.Drive(true)
	g.Drive(false)

	clk.Advance(499 * time.Millisecond)
	assert.Equal(t, 0, sink.count(SignalStreamHalt))

	clk.Advance(time.Millisecond)
	assert.Equal(t, []Signal{SignalStreamStart, SignalStreamHalt}, sink.signals)
	assert.Equal(t, StateIdle, g.State())
	assert.False(t, g.IsStreaming())
}

func TestRepeatedReleaseKeepsOriginalDeadline(t *testing.T) {
	g, sink, clk := newGate(t)

	g.Drive(true)
	g.Drive(false)
	clk.Advance(300 * time.Millisecond)
	g.Drive(false)
	clk.Advance(250 * time.Millisecond)

	assert.Equal(t, 1, sink.count(SignalStreamHalt))
	assert.Equal(t, StateIdle, g.State())
}

func TestIdleIgnoresWantInactive(t *testing.T) {
	g, sink, clk := newGate(t)

	g.Drive(false)
	clk.Advance(time.Second)

	assert.Empty(t, sink.signals)
	assert.Equal(t, StateIdle, g.State())
}

func TestSinkNotReadyDropsButAdvances(t *testing.T) {
	g, sink, clk := newGate(t)
	sink.ready = false

	g.Drive(true)
	assert.Empty(t, sink.signals)
	assert.Equal(t, StateStreaming, g.State())

	g.Drive(false)
	sink.ready = true
	clk.Advance(debounce)
	assert.Equal(t, []Signal{SignalStreamHalt}, sink.signals)

	g.Drive(true)
	assert.Equal(t, []Signal{SignalStreamHalt, SignalStreamStart}, sink.signals)
}

func TestNilSinkNeverNotifies(t *testing.T) {
	clk := clocktest.NewFake(time.Unix(0, 0))
	g := NewStreamGateController(nil, clk, debounce, Logger.NewNop())

	g.Drive(true)
	g.Drive(false)
	clk.Advance(debounce)
	assert.Equal(t, StateIdle, g.State())
}

func TestStaleHaltTimerIsIgnored(t *testing.T) {
	g, sink, _ := newGate(t)

	g.Drive(true)
	g.Drive(false)
	stale := g.haltGen
	g.Drive(true)

	// a timer that was already dispatched when it got cancelled
	g.haltDue(stale)
	assert.Equal(t, 0, sink.count(SignalStreamHalt))
	assert.Equal(t, StateStreaming, g.State())
}

func TestCloseCancelsPendingHalt(t *testing.T) {
	g, sink, clk := newGate(t)

	g.Drive(true)
	g.Drive(false)
	require.Equal(t, 1, clk.Pending())

	g.Close()
	g.Close()
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Second)
	assert.Equal(t, 0, sink.count(SignalStreamHalt))
}

func TestSpeakingIndicatorIsNotDebounced(t *testing.T) {
	g, _, clk := newGate(t)
	var edges []bool
	g.OnSpeakingChange(func(s bool) { edges = append(edges, s) })

	g.Drive(true)
	assert.True(t, g.Speaking())
	g.Drive(true)
	g.Drive(false)
	assert.False(t, g.Speaking(), "indicator drops before the halt is sent")
	assert.True(t, g.IsStreaming())

	clk.Advance(debounce)
	assert.Equal(t, []bool{true, false}, edges)
}
