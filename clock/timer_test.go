package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTimerTick(t *testing.T) {
	c := &fakeClock{t: time.Unix(1000, 0)}
	tm := newTimer(c.now)

	c.advance(16 * time.Millisecond)
	tm.Tick()
	assert.Equal(t, 16*time.Millisecond, tm.DeltaTime())

	c.advance(20 * time.Millisecond)
	tm.Tick()
	assert.Equal(t, 20*time.Millisecond, tm.DeltaTime())
	assert.Equal(t, 36*time.Millisecond, tm.TotalTime())

	timing := tm.Timing()
	assert.InDelta(t, 0.036, timing.Total, 1e-6)
	assert.InDelta(t, 0.020, timing.Delta, 1e-6)
}

func TestTimerPauseIsExcluded(t *testing.T) {
	c := &fakeClock{t: time.Unix(1000, 0)}
	tm := newTimer(c.now)

	c.advance(time.Second)
	tm.Tick()
	tm.Stop()
	require.True(t, tm.Stopped())

	c.advance(5 * time.Second)
	tm.Tick()
	assert.Zero(t, tm.DeltaTime())
	assert.Equal(t, time.Second, tm.TotalTime())

	tm.Start()
	c.advance(time.Second)
	tm.Tick()
	assert.Equal(t, time.Second, tm.DeltaTime(), "paused interval is not a frame")
	assert.Equal(t, 2*time.Second, tm.TotalTime())

	tm.Start() // no-op while running
	tm.Reset()
	assert.Zero(t, tm.TotalTime())
}

func TestTimerDeltaNeverNegative(t *testing.T) {
	c := &fakeClock{t: time.Unix(1000, 0)}
	tm := newTimer(c.now)
	c.advance(-time.Second)
	tm.Tick()
	assert.Zero(t, tm.DeltaTime())
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(200)
	t.Cleanup(l.Stop)
	assert.Equal(t, 200, l.FPS())

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	unlimited := NewLimiter(0)
	assert.NoError(t, unlimited.Wait(context.Background()))
	assert.ErrorIs(t, unlimited.Wait(ctx), context.Canceled)
}
