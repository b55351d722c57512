package framering

import "fmt"

// Capacity sizes the constant buffers of every frame resource.
type Capacity struct {
	Objects   int
	Materials int
	Passes    int
}

// Resource is one slot of the ring: the command allocator and constant
// buffers the CPU fills for one frame, plus the marker the GPU must reach
// before any of them may be touched again.
//
// All fields are exclusively owned by the slot. CPU writes are legal only
// while the fence's completed value is at least Marker().
type Resource struct {
	index  int
	marker uint64

	Allocator  CommandAllocator
	ObjectCB   UploadBuffer
	MaterialCB UploadBuffer // nil when the ring has no material capacity
	PassCB     UploadBuffer
}

func newResource(dev Device, index int, c Capacity) (_ *Resource, err error) {
	r := &Resource{index: index}
	defer func() {
		if err != nil {
			r.destroy()
		}
	}()

	if r.Allocator, err = dev.NewCommandAllocator(fmt.Sprintf("frame_%d_alloc", index)); err != nil {
		return nil, fmt.Errorf("slot %d: command allocator: %w", index, err)
	}
	if r.PassCB, err = dev.NewUploadBuffer(fmt.Sprintf("frame_%d_pass_cb", index), PassConstantsSize, c.Passes); err != nil {
		return nil, fmt.Errorf("slot %d: pass buffer: %w", index, err)
	}
	if c.Objects > 0 {
		if r.ObjectCB, err = dev.NewUploadBuffer(fmt.Sprintf("frame_%d_object_cb", index), ObjectConstantsSize, c.Objects); err != nil {
			return nil, fmt.Errorf("slot %d: object buffer: %w", index, err)
		}
	}
	if c.Materials > 0 {
		if r.MaterialCB, err = dev.NewUploadBuffer(fmt.Sprintf("frame_%d_material_cb", index), MaterialConstantsSize, c.Materials); err != nil {
			return nil, fmt.Errorf("slot %d: material buffer: %w", index, err)
		}
	}
	return r, nil
}

// Index is the slot's position in the ring.
func (r *Resource) Index() int { return r.index }

// Marker is the fence value the GPU must reach before this slot can be
// reused. Zero means the slot was never submitted.
func (r *Resource) Marker() uint64 { return r.marker }

func (r *Resource) destroy() {
	if r.Allocator != nil {
		r.Allocator.Destroy()
		r.Allocator = nil
	}
	for _, b := range []*UploadBuffer{&r.ObjectCB, &r.MaterialCB, &r.PassCB} {
		if *b != nil {
			(*b).Destroy()
			*b = nil
		}
	}
}
