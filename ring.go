package framering

import "fmt"

// Ring is the fixed-size, round-robin collection of frame resources.
//
// Exactly one slot is current. AdvanceAndSelect moves to the next slot and
// must be called once per produced frame, before any per-frame state is
// touched. The first call selects slot 0, so frame F uses slot F mod N.
type Ring struct {
	slots []*Resource
	index int
}

// NewRing allocates size frame resources on dev, each with its own command
// allocator and constant buffers sized by c.
func NewRing(dev Device, size int, c Capacity) (*Ring, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if size < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidRingSize, size)
	}
	if c.Passes < 1 {
		c.Passes = DefaultPassCount
	}
	r := &Ring{
		slots: make([]*Resource, 0, size),
		index: size - 1,
	}
	for i := 0; i < size; i++ {
		res, err := newResource(dev, i, c)
		if err != nil {
			r.Destroy()
			return nil, fmt.Errorf("framering: build ring: %w", err)
		}
		r.slots = append(r.slots, res)
	}
	Logger().Info("frame ring built",
		"slots", size, "objects", c.Objects, "materials", c.Materials, "passes", c.Passes)
	return r, nil
}

// AdvanceAndSelect increments the current index modulo the ring size and
// returns the new current slot.
func (r *Ring) AdvanceAndSelect() *Resource {
	r.index = (r.index + 1) % len(r.slots)
	return r.slots[r.index]
}

// Current returns the current slot.
func (r *Ring) Current() *Resource { return r.slots[r.index] }

// Index returns the current slot index.
func (r *Ring) Index() int { return r.index }

// Size returns the number of slots.
func (r *Ring) Size() int { return len(r.slots) }

// Slot returns slot i.
func (r *Ring) Slot(i int) *Resource { return r.slots[i] }

// MaxMarker returns the highest marker stored in any slot.
func (r *Ring) MaxMarker() uint64 {
	var m uint64
	for _, s := range r.slots {
		if s.marker > m {
			m = s.marker
		}
	}
	return m
}

// Destroy releases every slot's resources. The caller must have drained the
// GPU first (see Tracker.Flush).
func (r *Ring) Destroy() {
	for _, s := range r.slots {
		s.destroy()
	}
	r.slots = r.slots[:0]
}
