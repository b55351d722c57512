package halgpu

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framering"
)

// Errors returned when opening a device.
var (
	ErrBackendUnavailable = errors.New("halgpu: backend not available")
	ErrNoAdapter          = errors.New("halgpu: no GPU adapters found")
	ErrNotHALProvider     = errors.New("halgpu: provider does not expose HAL types")
)

// Default offscreen swap chain.
const (
	DefaultWidth       = 800
	DefaultHeight      = 600
	DefaultBufferCount = 2
)

type options struct {
	width, height uint32
	bufferCount   int
}

// Option configures a Device.
type Option func(*options)

// WithSurfaceSize sets the back buffer size.
func WithSurfaceSize(width, height uint32) Option {
	return func(o *options) { o.width, o.height = width, height }
}

// WithBufferCount sets the number of back buffers.
func WithBufferCount(n int) Option {
	return func(o *options) { o.bufferCount = n }
}

// Device implements framering.Device on a wgpu hal device.
//
// Submitted command buffers are batched until the next Signal, which hands
// them to the hal queue together with the fence value, because hal signals
// a fence only as part of a submission.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // nil when the device is borrowed
	adapter  string

	fence           *Fence
	surface         *Surface
	pipelines       *pipelineCache
	defaultMaterial *UploadBuffer

	pending []hal.CommandBuffer
	closed  bool
}

var _ framering.Device = (*Device)(nil)

// New wraps an open hal device. The caller keeps ownership of device and
// queue; Close releases only what New created.
func New(device hal.Device, queue hal.Queue, opts ...Option) (_ *Device, err error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("halgpu: nil device or queue")
	}
	o := options{width: DefaultWidth, height: DefaultHeight, bufferCount: DefaultBufferCount}
	for _, opt := range opts {
		opt(&o)
	}
	if o.width == 0 || o.height == 0 || o.bufferCount < 1 {
		return nil, fmt.Errorf("halgpu: invalid surface %dx%d x%d", o.width, o.height, o.bufferCount)
	}

	d := &Device{device: device, queue: queue}
	defer func() {
		if err != nil {
			d.release()
		}
	}()

	if d.fence, err = newFence(device); err != nil {
		return nil, err
	}
	if d.pipelines, err = newPipelineCache(device); err != nil {
		return nil, fmt.Errorf("halgpu: %w", err)
	}
	if d.surface, err = newSurface(device, o.width, o.height, o.bufferCount); err != nil {
		return nil, fmt.Errorf("halgpu: %w", err)
	}
	// Items without a material bind a neutral white record.
	if d.defaultMaterial, err = newUploadBuffer(d, "framering_default_material", framering.MaterialConstantsSize, 1); err != nil {
		return nil, err
	}
	white := framering.MaterialConstants{DiffuseAlbedo: [4]float32{1, 1, 1, 1}, Roughness: 1}
	if err = d.defaultMaterial.CopyData(0, white.Bytes(false)); err != nil {
		return nil, err
	}

	slogger().Info("halgpu: device ready", "surface", fmt.Sprintf("%dx%d", o.width, o.height), "buffers", o.bufferCount)
	return d, nil
}

// NewFromProvider shares the device of an external provider (for example a
// gogpu window). The provider must expose HalDevice() and HalQueue().
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHALProvider)
	}
	return New(device, queue, opts...)
}

// instanceFactory is implemented by hal backends.
type instanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// OpenNoop opens a device on the noop backend, which accepts every call
// and completes fences on submission.
func OpenNoop(opts ...Option) (*Device, error) {
	return open(&noop.API{}, "noop", opts...)
}

// Open opens a device on a registered hal backend. Backends register
// themselves when their package is imported, e.g.
//
//	import _ "github.com/gogpu/wgpu/hal/vulkan"
func Open(backend gputypes.Backend, opts ...Option) (*Device, error) {
	b, ok := hal.GetBackend(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, backend)
	}
	return open(b, fmt.Sprint(backend), opts...)
}

func open(api instanceFactory, name string, opts ...Option) (*Device, error) {
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("halgpu: %s: create instance: %w", name, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w (%s)", ErrNoAdapter, name)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("halgpu: %s: open device: %w", name, err)
	}

	d, err := New(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.adapter = selected.Info.Name
	slogger().Info("halgpu: adapter opened", "backend", name, "adapter", d.adapter)
	return d, nil
}

// SetLogger sets the package logger.
func (d *Device) SetLogger(l *slog.Logger) { SetLogger(l) }

// Adapter returns the adapter name, empty for a borrowed device.
func (d *Device) Adapter() string { return d.adapter }

// NewCommandAllocator creates a command allocator.
func (d *Device) NewCommandAllocator(label string) (framering.CommandAllocator, error) {
	return &CommandAllocator{dev: d, label: label}, nil
}

// NewUploadBuffer creates a uniform buffer of count records.
func (d *Device) NewUploadBuffer(label string, elementSize, count int) (framering.UploadBuffer, error) {
	return newUploadBuffer(d, label, elementSize, count)
}

// NewMesh uploads position-only geometry; stride must be VertexStride.
func (d *Device) NewMesh(label string, vertices []byte, stride uint32, indices []uint16) (framering.Mesh, error) {
	return newMesh(d, label, vertices, stride, indices)
}

// DestroyMesh releases a mesh created by NewMesh.
func (d *Device) DestroyMesh(m framering.Mesh) {
	if mesh, ok := m.(*Mesh); ok {
		mesh.destroy(d.device)
	}
}

// Queue returns the direct queue.
func (d *Device) Queue() framering.Queue { return (*queue)(d) }

// Fence returns the timeline fence.
func (d *Device) Fence() framering.Fence { return d.fence }

// Surface returns the offscreen swap chain.
func (d *Device) Surface() framering.Surface { return d.surface }

// Close releases every resource New created and, for devices opened by
// Open or OpenNoop, the device and instance. The caller must have drained
// the GPU (framering.Driver.Close does).
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true
	d.release()
	slogger().Info("halgpu: device closed")
}

func (d *Device) release() {
	if d.defaultMaterial != nil {
		d.defaultMaterial.Destroy()
		d.defaultMaterial = nil
	}
	if d.surface != nil {
		d.surface.destroy()
		d.surface = nil
	}
	if d.pipelines != nil {
		d.pipelines.destroy()
		d.pipelines = nil
	}
	if d.fence != nil {
		d.fence.destroy()
		d.fence = nil
	}
	if d.instance != nil {
		d.device.Destroy()
		d.instance.Destroy()
		d.instance = nil
	}
}

func (d *Device) uploadStatic(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// queue is the Device seen as a framering.Queue.
type queue Device

func (q *queue) Submit(list framering.CommandList) error {
	cl, ok := list.(*CommandList)
	if !ok || cl.alloc.dev != (*Device)(q) {
		return ErrForeignResource
	}
	if !cl.closed || cl.cmdBuf == nil {
		return fmt.Errorf("halgpu: submit of an unclosed command list")
	}
	q.pending = append(q.pending, cl.cmdBuf)
	return nil
}

func (q *queue) Signal(value uint64) error {
	if err := q.queue.Submit(q.pending, q.fence.fence, value); err != nil {
		return fmt.Errorf("halgpu: submit with fence value %d: %w", value, err)
	}
	q.pending = nil
	q.fence.markSignaled(value)
	slogger().Debug("halgpu: signaled", "value", value)
	return nil
}
