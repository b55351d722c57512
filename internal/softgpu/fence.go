package softgpu

import (
	"sync"
	"time"
)

// Fence is the device's completion marker. Waiters are woken through a
// channel that is closed and replaced on every completion.
type Fence struct {
	mu        sync.Mutex
	completed uint64
	changed   chan struct{}
	lost      <-chan struct{}
}

func newFence(lost <-chan struct{}) *Fence {
	return &Fence{changed: make(chan struct{}), lost: lost}
}

// CompletedValue returns the highest marker the timeline has reached.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Wait blocks until the fence reaches value or timeout elapses. A timeout
// <= 0 waits forever. Waiting on a closed device fails with ErrClosed.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		f.mu.Lock()
		reached, changed := f.completed >= value, f.changed
		f.mu.Unlock()
		if reached {
			return true, nil
		}
		select {
		case <-changed:
		case <-deadline:
			return f.CompletedValue() >= value, nil
		case <-f.lost:
			return false, ErrClosed
		}
	}
}

func (f *Fence) complete(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	close(f.changed)
	f.changed = make(chan struct{})
}
