package softgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/framering"
)

// Errors returned by the software device.
var (
	ErrClosed              = errors.New("softgpu: device closed")
	ErrAllocatorInUse      = errors.New("softgpu: command allocator reset while its lists are in flight")
	ErrListNotClosed       = errors.New("softgpu: command list submitted before Close")
	ErrListClosed          = errors.New("softgpu: command list already closed")
	ErrForeignResource     = errors.New("softgpu: resource was not created by this device")
	ErrMarkerNotIncreasing = errors.New("softgpu: signaled marker does not increase")
	ErrDrawOutOfRange      = errors.New("softgpu: draw exceeds mesh index count")
)

type config struct {
	latency     time.Duration
	manual      bool
	bufferCount int
}

// Option configures a Device.
type Option func(*config)

// WithLatency delays the execution of every command list by d.
func WithLatency(d time.Duration) Option {
	return func(c *config) { c.latency = d }
}

// WithManualTimeline stops the timeline until Release is called.
func WithManualTimeline() Option {
	return func(c *config) { c.manual = true }
}

// WithBufferCount sets the number of back buffers. Default is 2.
func WithBufferCount(n int) Option {
	return func(c *config) { c.bufferCount = n }
}

// op is one entry of the GPU timeline: either a command list or a signal.
type op struct {
	list   *CommandList
	signal uint64

	// epoch is the marker that completes with this op.
	epoch uint64
}

// Device is a software framering.Device.
type Device struct {
	cfg     config
	fence   *Fence
	surface *Surface

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []op
	signaled uint64
	released uint64
	closed   bool

	lost      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	logMu      sync.Mutex
	executions []Execution
	violations []Violation
}

var _ framering.Device = (*Device)(nil)

// New starts a software device and its timeline goroutine. Call Close to
// stop it.
func New(opts ...Option) *Device {
	cfg := config{bufferCount: 2}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bufferCount < 1 {
		cfg.bufferCount = 1
	}
	d := &Device{
		cfg:  cfg,
		lost: make(chan struct{}),
		done: make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	d.fence = newFence(d.lost)
	d.surface = newSurface(cfg.bufferCount)
	go d.run()
	slogger().Info("softgpu: device started",
		"latency", cfg.latency, "manual", cfg.manual, "buffers", cfg.bufferCount)
	return d
}

// SetLogger sets the package logger. framering.NewDriver calls it with the
// driver's logger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// NewCommandAllocator creates a command allocator.
func (d *Device) NewCommandAllocator(label string) (framering.CommandAllocator, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	return &CommandAllocator{label: label, dev: d}, nil
}

// NewUploadBuffer creates count elements of elementSize bytes, each padded
// to framering.ConstantBufferAlignment.
func (d *Device) NewUploadBuffer(label string, elementSize, count int) (framering.UploadBuffer, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	if elementSize <= 0 || count < 0 {
		return nil, fmt.Errorf("softgpu: upload buffer %q: invalid size %d x %d", label, elementSize, count)
	}
	stride := framering.AlignConstantBufferSize(elementSize)
	return &UploadBuffer{label: label, stride: stride, count: count, data: make([]byte, stride*count)}, nil
}

// NewMesh copies vertex and index data into an immutable mesh.
func (d *Device) NewMesh(label string, vertices []byte, stride uint32, indices []uint16) (framering.Mesh, error) {
	if stride == 0 || len(vertices)%int(stride) != 0 {
		return nil, fmt.Errorf("softgpu: mesh %q: %d vertex bytes not a multiple of stride %d", label, len(vertices), stride)
	}
	return &Mesh{
		label:    label,
		vertices: append([]byte(nil), vertices...),
		stride:   stride,
		indices:  append([]uint16(nil), indices...),
	}, nil
}

// Queue returns the direct queue.
func (d *Device) Queue() framering.Queue { return (*queue)(d) }

// Fence returns the device fence.
func (d *Device) Fence() framering.Fence { return d.fence }

// Surface returns the presentation surface.
func (d *Device) Surface() framering.Surface { return d.surface }

// Release lets a manual timeline run up to and including marker value.
// It has no effect on a free-running device.
func (d *Device) Release(value uint64) {
	d.mu.Lock()
	if value > d.released {
		d.released = value
	}
	d.mu.Unlock()
	d.cond.Broadcast()
}

// ReleaseAll lets a manual timeline run freely.
func (d *Device) ReleaseAll() { d.Release(math.MaxUint64) }

// Pending returns the number of timeline entries not yet executed.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Executions returns the executed command lists in timeline order.
func (d *Device) Executions() []Execution {
	d.logMu.Lock()
	defer d.logMu.Unlock()
	return append([]Execution(nil), d.executions...)
}

// Violations returns every hazard detected during execution.
func (d *Device) Violations() []Violation {
	d.logMu.Lock()
	defer d.logMu.Unlock()
	return append([]Violation(nil), d.violations...)
}

// Close stops the timeline. Work not executed yet is dropped and pending
// fence waits fail with ErrClosed.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		dropped := len(d.pending)
		d.pending = nil
		d.mu.Unlock()
		d.cond.Broadcast()
		<-d.done
		close(d.lost)
		slogger().Info("softgpu: device closed", "dropped", dropped)
	})
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Device) enqueue(o op) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.pending = append(d.pending, o)
	d.cond.Broadcast()
	return nil
}

// run is the GPU timeline.
func (d *Device) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for !d.closed && !d.runnable() {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		o := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		if o.list == nil {
			d.fence.complete(o.signal)
			slogger().Debug("softgpu: marker reached", "marker", o.signal)
			continue
		}
		if d.cfg.latency > 0 {
			time.Sleep(d.cfg.latency)
		}
		d.execute(o)
	}
}

func (d *Device) runnable() bool {
	if len(d.pending) == 0 {
		return false
	}
	return !d.cfg.manual || d.pending[0].epoch <= d.released
}

// queue is the Device seen as a framering.Queue.
type queue Device

func (q *queue) Submit(list framering.CommandList) error {
	d := (*Device)(q)
	cl, ok := list.(*CommandList)
	if !ok || cl.alloc.dev != d {
		return ErrForeignResource
	}
	if !cl.closed {
		return ErrListNotClosed
	}
	cl.snapshot()

	d.mu.Lock()
	epoch := d.signaled + 1
	d.mu.Unlock()

	cl.alloc.inFlight.Add(1)
	if err := d.enqueue(op{list: cl, epoch: epoch}); err != nil {
		cl.alloc.inFlight.Add(-1)
		return err
	}
	return nil
}

func (q *queue) Signal(value uint64) error {
	d := (*Device)(q)
	d.mu.Lock()
	if value <= d.signaled {
		last := d.signaled
		d.mu.Unlock()
		return fmt.Errorf("%w: %d after %d", ErrMarkerNotIncreasing, value, last)
	}
	d.signaled = value
	d.mu.Unlock()
	return d.enqueue(op{signal: value, epoch: value})
}
