package framering

import (
	"fmt"
	"time"
)

// The interfaces in this file are the boundary between the frame core and a
// graphics backend. The core never creates devices; it only allocates the
// per-slot objects it owns and drives the queue and fence.

// Device allocates per-slot resources and exposes the single direct queue,
// the single fence and the presentation surface.
type Device interface {
	// NewCommandAllocator creates an allocator that backs the command
	// lists recorded for one ring slot.
	NewCommandAllocator(label string) (CommandAllocator, error)

	// NewUploadBuffer creates a CPU-write/GPU-read buffer holding count
	// elements of elementSize bytes. Implementations may round the element
	// stride up to the device's constant buffer alignment.
	NewUploadBuffer(label string, elementSize, count int) (UploadBuffer, error)

	// NewMesh uploads immutable vertex and index data.
	NewMesh(label string, vertices []byte, stride uint32, indices []uint16) (Mesh, error)

	Queue() Queue
	Fence() Fence
	Surface() Surface
}

// Queue is the device's direct execution queue. Work executes in
// submission order.
type Queue interface {
	// Submit hands a closed command list to the GPU.
	Submit(list CommandList) error

	// Signal enqueues an instruction that sets the fence to value once all
	// previously submitted work has finished. It does not block.
	Signal(value uint64) error
}

// Fence is the GPU-side view of the completion marker.
type Fence interface {
	// CompletedValue returns the highest marker the GPU has finished.
	CompletedValue() uint64

	// Wait blocks until CompletedValue reaches value. A timeout <= 0 waits
	// forever. It reports false if the timeout elapsed first.
	Wait(value uint64, timeout time.Duration) (bool, error)
}

// CommandAllocator owns the memory behind recorded command lists.
// Reset is only legal once the GPU finished every list allocated from it.
type CommandAllocator interface {
	Reset() error

	// Begin opens a command list with the given initial pipeline.
	Begin(kind PipelineKind) (CommandList, error)

	Destroy()
}

// CommandList records GPU commands for a single frame.
type CommandList interface {
	// Barrier transitions a presentation target between usage states.
	Barrier(target Target, before, after TargetState)

	// BeginPass starts rendering into target, clearing color and depth.
	BeginPass(target Target, clear [4]float32)

	SetPipeline(kind PipelineKind)

	// SetPassConstants binds element index of the per-pass buffer.
	SetPassConstants(buf UploadBuffer, index int)

	// Draw issues one indexed draw with its object (and material) constants.
	Draw(call DrawCall) error

	EndPass()

	// Close finishes recording. The list can then be submitted.
	Close() error
}

// UploadBuffer is persistently mapped constant memory.
type UploadBuffer interface {
	// CopyData writes data into element index.
	// It returns ErrObjectIndexOutOfRange when index is outside [0, Len()).
	CopyData(index int, data []byte) error

	// ElementSize is the aligned stride between elements.
	ElementSize() int

	// Len is the number of elements.
	Len() int

	Destroy()
}

// Mesh is a backend handle to uploaded geometry.
type Mesh interface {
	Label() string
}

// Target is one presentation buffer (back buffer).
type Target interface {
	Index() int
}

// Surface is the presentation surface.
type Surface interface {
	// CurrentTarget returns the back buffer the next frame renders into.
	CurrentTarget() Target

	// Present swaps the displayed image and advances the back buffer index.
	Present() error

	// BufferCount is the number of back buffers in the swap chain.
	BufferCount() int
}

// TargetState is the usage state of a presentation target.
type TargetState int

// Presentation target states.
const (
	TargetPresent TargetState = iota
	TargetRenderAttachment
)

// String returns the state name.
func (s TargetState) String() string {
	switch s {
	case TargetPresent:
		return "Present"
	case TargetRenderAttachment:
		return "RenderAttachment"
	default:
		return fmt.Sprintf("TargetState(%d)", int(s))
	}
}

// PipelineKind selects one of the precompiled pipeline configurations.
type PipelineKind int

// Pipeline configurations.
const (
	PipelineOpaque PipelineKind = iota
	PipelineOpaqueWireframe
	PipelineAlphaTested
	PipelineTransparent
)

// String returns the pipeline name.
func (k PipelineKind) String() string {
	switch k {
	case PipelineOpaque:
		return "opaque"
	case PipelineOpaqueWireframe:
		return "opaque_wireframe"
	case PipelineAlphaTested:
		return "alpha_tested"
	case PipelineTransparent:
		return "transparent"
	default:
		return fmt.Sprintf("PipelineKind(%d)", int(k))
	}
}

// Topology is the primitive topology of a draw.
type Topology int

// Primitive topologies.
const (
	TopologyTriangleList Topology = iota
	TopologyLineList
	TopologyPointList
)

// DrawCall holds everything Record needs to draw one render item from the
// current slot.
type DrawCall struct {
	Mesh       Mesh
	Topology   Topology
	IndexCount uint32
	StartIndex uint32
	BaseVertex int32

	Objects     UploadBuffer
	ObjectIndex int

	// Materials is nil when the item has no material.
	Materials     UploadBuffer
	MaterialIndex int
}
