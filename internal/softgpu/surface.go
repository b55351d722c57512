package softgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/framering"
)

// Target is one back buffer.
type Target int

// Index returns the back buffer index.
func (t Target) Index() int { return int(t) }

// Surface is a swap chain without a window. Present flips the back buffer
// index; the timeline tracks each buffer's usage state through barriers.
type Surface struct {
	mu       sync.Mutex
	index    int
	states   []framering.TargetState
	presents uint64
}

func newSurface(n int) *Surface {
	return &Surface{states: make([]framering.TargetState, n)}
}

// CurrentTarget returns the back buffer the next frame renders into.
func (s *Surface) CurrentTarget() framering.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Target(s.index)
}

// Present advances the back buffer index. It does not wait for the GPU.
func (s *Surface) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = (s.index + 1) % len(s.states)
	s.presents++
	return nil
}

// BufferCount returns the number of back buffers.
func (s *Surface) BufferCount() int { return len(s.states) }

// Presents returns how many times Present was called.
func (s *Surface) Presents() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// transition moves target i from before to after and reports a mismatch
// with the tracked state.
func (s *Surface) transition(i int, before, after framering.TargetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.states) {
		return fmt.Errorf("back buffer %d out of range", i)
	}
	cur := s.states[i]
	s.states[i] = after
	if cur != before {
		return fmt.Errorf("back buffer %d is %s, barrier expected %s", i, cur, before)
	}
	return nil
}
