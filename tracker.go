package framering

import (
	"fmt"
	"time"
)

// Tracker is the CPU side of the completion marker protocol.
//
// The current value counts markers requested by the CPU and only grows.
// The fence's completed value is reported by the GPU, never decreases and
// never exceeds the current value.
type Tracker struct {
	queue   Queue
	fence   Fence
	current uint64
	timeout time.Duration

	stalls    uint64
	stallTime time.Duration
}

// NewTracker creates a tracker signalling on queue and observing fence.
// A timeout <= 0 makes EnsureSlotReusable wait forever.
func NewTracker(queue Queue, fence Fence, timeout time.Duration) *Tracker {
	return &Tracker{queue: queue, fence: fence, timeout: timeout}
}

// CurrentValue returns the highest marker issued so far.
func (t *Tracker) CurrentValue() uint64 { return t.current }

// CompletedValue returns the highest marker the GPU has finished.
func (t *Tracker) CompletedValue() uint64 { return t.fence.CompletedValue() }

// EnsureSlotReusable returns once the GPU has finished all work that
// referenced slot. It returns immediately for a slot that was never
// submitted or whose marker was already reached; otherwise it blocks the
// calling goroutine until the fence reaches the slot's marker.
//
// This is the only stall point of the frame loop. It only blocks when the
// CPU is a full ring ahead of the GPU. With a timeout configured, a GPU that
// never gets there is reported as ErrDeviceLost.
func (t *Tracker) EnsureSlotReusable(slot *Resource) error {
	m := slot.marker
	if m == 0 || t.fence.CompletedValue() >= m {
		return nil
	}

	start := time.Now()
	ok, err := t.fence.Wait(m, t.timeout)
	if err != nil {
		return fmt.Errorf("wait for marker %d: %w", m, err)
	}
	if !ok {
		completed := t.fence.CompletedValue()
		Logger().Warn("fence wait timed out",
			"slot", slot.index, "marker", m, "completed", completed, "timeout", t.timeout)
		return fmt.Errorf("%w: marker %d not reached after %v (completed %d)", ErrDeviceLost, m, t.timeout, completed)
	}

	d := time.Since(start)
	t.stalls++
	t.stallTime += d
	Logger().Debug("stalled on frame resource", "slot", slot.index, "marker", m, "duration", d)
	return nil
}

// Advance allocates the next marker, stores it in slot and asks the queue
// to signal it once all previously submitted work has finished. It does
// not block. On failure the slot keeps its previous marker.
func (t *Tracker) Advance(slot *Resource) error {
	next := t.current + 1
	if err := t.queue.Signal(next); err != nil {
		return fmt.Errorf("signal marker %d: %w", next, err)
	}
	t.current = next
	slot.marker = next
	return nil
}

// Flush signals a fresh marker and blocks until the GPU reaches it, which
// drains all submitted work.
func (t *Tracker) Flush() error {
	next := t.current + 1
	if err := t.queue.Signal(next); err != nil {
		return fmt.Errorf("signal flush marker %d: %w", next, err)
	}
	t.current = next
	ok, err := t.fence.Wait(next, t.timeout)
	if err != nil {
		return fmt.Errorf("wait for flush marker %d: %w", next, err)
	}
	if !ok {
		return fmt.Errorf("%w: flush marker %d not reached after %v", ErrDeviceLost, next, t.timeout)
	}
	return nil
}

// Stalls returns how many times EnsureSlotReusable blocked and for how long
// in total.
func (t *Tracker) Stalls() (count uint64, total time.Duration) {
	return t.stalls, t.stallTime
}
