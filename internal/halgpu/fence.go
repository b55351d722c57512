package halgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// waitSlice bounds a single device wait when the caller waits forever, so
// a lost device shows up in the logs instead of hanging silently.
const waitSlice = time.Second

// Fence adapts a hal timeline fence to framering.Fence.
//
// hal only answers "has the fence reached v?", so the completed value is
// found by probing the markers signaled since the last observed one.
type Fence struct {
	device hal.Device
	fence  hal.Fence

	mu        sync.Mutex
	completed uint64
	signaled  uint64
}

func newFence(device hal.Device) (*Fence, error) {
	f, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create fence: %w", err)
	}
	return &Fence{device: device, fence: f}, nil
}

// CompletedValue returns the highest marker the GPU has reached.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for v := f.completed + 1; v <= f.signaled; v++ {
		ok, err := f.device.Wait(f.fence, v, 0)
		if err != nil || !ok {
			break
		}
		f.completed = v
	}
	return f.completed
}

// Wait blocks until the fence reaches value. A timeout <= 0 waits forever.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	if f.CompletedValue() >= value {
		return true, nil
	}
	if timeout > 0 {
		return f.wait(value, timeout)
	}
	for {
		ok, err := f.wait(value, waitSlice)
		if err != nil || ok {
			return ok, err
		}
		slogger().Warn("halgpu: still waiting for fence", "value", value, "completed", f.CompletedValue())
	}
}

func (f *Fence) wait(value uint64, timeout time.Duration) (bool, error) {
	ok, err := f.device.Wait(f.fence, value, timeout)
	if err != nil {
		return false, fmt.Errorf("halgpu: wait for fence value %d: %w", value, err)
	}
	if ok {
		f.mu.Lock()
		if value > f.completed {
			f.completed = value
		}
		f.mu.Unlock()
	}
	return ok, nil
}

func (f *Fence) markSignaled(value uint64) {
	f.mu.Lock()
	f.signaled = value
	f.mu.Unlock()
}

func (f *Fence) destroy() {
	if f.fence != nil {
		f.device.DestroyFence(f.fence)
		f.fence = nil
	}
}
