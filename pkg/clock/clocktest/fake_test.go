package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAfterFuncFiresOnce(t *testing.T) {
	start := time.Unix(1000, 0)
	f := NewFake(start)

	var firedAt []time.Time
	f.AfterFunc(500*time.Millisecond, func() { firedAt = append(firedAt, f.Now()) })

	f.Advance(499 * time.Millisecond)
	assert.Empty(t, firedAt)

	f.Advance(time.Millisecond)
	require.Len(t, firedAt, 1)
	assert.Equal(t, start.Add(500*time.Millisecond), firedAt[0])

	f.Advance(time.Second)
	assert.Len(t, firedAt, 1)
	assert.Equal(t, 0, f.Pending())
}

func TestFakeStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	f.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFakeEveryOrdering(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []string
	ticker := f.Every(500*time.Millisecond, func() { order = append(order, "tick") })
	f.AfterFunc(time.Second, func() { order = append(order, "once") })

	f.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"tick", "tick", "once", "tick"}, order)

	assert.True(t, ticker.Stop())
	f.Advance(time.Second)
	assert.Len(t, order, 4)
}

func TestFakeCallbackCanSchedule(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	count := 0
	var again func()
	again = func() {
		count++
		if count < 3 {
			f.AfterFunc(100*time.Millisecond, again)
		}
	}
	f.AfterFunc(100*time.Millisecond, again)

	f.Advance(time.Second)
	assert.Equal(t, 3, count)
}
