// Package clock provides the frame clock: a pausable game timer and a
// frame rate limiter.
package clock

import (
	"context"
	"time"

	"github.com/gogpu/framering"
)

// Timer measures total and per-frame time. Time spent stopped is excluded
// from TotalTime.
type Timer struct {
	now func() time.Time

	base     time.Time
	prev     time.Time
	curr     time.Time
	stopTime time.Time
	paused   time.Duration
	delta    time.Duration
	stopped  bool
}

// NewTimer returns a reset timer reading the wall clock.
func NewTimer() *Timer {
	return newTimer(time.Now)
}

func newTimer(now func() time.Time) *Timer {
	t := &Timer{now: now}
	t.Reset()
	return t
}

// Reset restarts the timer from zero.
func (t *Timer) Reset() {
	now := t.now()
	t.base, t.prev, t.curr = now, now, now
	t.paused, t.delta = 0, 0
	t.stopped = false
}

// Stop pauses the timer.
func (t *Timer) Stop() {
	if t.stopped {
		return
	}
	t.stopTime = t.now()
	t.stopped = true
}

// Start resumes a stopped timer. The paused interval is accumulated so it
// does not count towards TotalTime.
func (t *Timer) Start() {
	if !t.stopped {
		return
	}
	now := t.now()
	t.paused += now.Sub(t.stopTime)
	t.prev = now
	t.stopped = false
}

// Tick advances the timer by one frame.
func (t *Timer) Tick() {
	if t.stopped {
		t.delta = 0
		return
	}
	t.curr = t.now()
	t.delta = t.curr.Sub(t.prev)
	t.prev = t.curr
	// The clock may step backwards (e.g. NTP adjustment).
	if t.delta < 0 {
		t.delta = 0
	}
}

// TotalTime returns the time elapsed since Reset, excluding pauses.
func (t *Timer) TotalTime() time.Duration {
	end := t.curr
	if t.stopped {
		end = t.stopTime
	}
	return end.Sub(t.base) - t.paused
}

// DeltaTime returns the duration of the last frame.
func (t *Timer) DeltaTime() time.Duration { return t.delta }

// Stopped reports whether the timer is paused.
func (t *Timer) Stopped() bool { return t.stopped }

// Timing returns the frame timing in seconds.
func (t *Timer) Timing() framering.Timing {
	return framering.Timing{
		Total: float32(t.TotalTime().Seconds()),
		Delta: float32(t.delta.Seconds()),
	}
}

// Limiter paces a frame loop at a fixed rate.
type Limiter struct {
	fps    int
	ticker *time.Ticker
}

// NewLimiter returns a limiter for fps frames per second. Zero disables
// pacing.
func NewLimiter(fps int) *Limiter {
	l := &Limiter{fps: fps}
	if fps > 0 {
		l.ticker = time.NewTicker(time.Second / time.Duration(fps))
	}
	return l
}

// FPS returns the configured rate.
func (l *Limiter) FPS() int { return l.fps }

// Wait blocks until the next frame is due or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.ticker == nil {
		return ctx.Err()
	}
	select {
	case <-l.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the ticker.
func (l *Limiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}
