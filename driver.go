package framering

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// FrameInput is sampled once per frame before the Update step.
type FrameInput struct {
	Camera CameraState
	Timing Timing

	// Wireframe selects the wireframe variant of the opaque pipeline.
	Wireframe bool
}

// Stats summarizes the driver's progress.
type Stats struct {
	Frames     uint64
	Stalls     uint64
	StallTime  time.Duration
	LastMarker uint64
	Completed  uint64
	Slot       int
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Frames[%d produced, slot %d, marker %d/%d completed, %d stalls (%v)]",
		s.Frames, s.Slot, s.Completed, s.LastMarker, s.Stalls, s.StallTime)
}

// Driver runs the per-frame state machine:
//
//	Rotate -> Synchronize -> Update -> Record -> Submit -> Present -> Stamp
//
// Steps never branch back within a frame. Any failure aborts the remaining
// steps of that frame and is returned as a *FrameError. Failures are not
// recoverable: every later Frame and Resize returns the same error, and the
// caller is expected to Close the driver.
//
// Driver is not safe for concurrent use.
type Driver struct {
	cfg      Config
	device   Device
	queue    Queue
	surface  Surface
	scene    *Scene
	ring     *Ring
	tracker  *Tracker
	lighting Lighting

	frames   uint64
	lastPass PassConstants
	closed   bool
	released bool

	// failed is the first frame error. A failed frame may have left work on
	// the GPU that no slot marker covers, so the driver accepts no further
	// frames; only Close, whose drain covers every submission, remains.
	failed *FrameError
}

// NewDriver builds the ring on device and binds scene to it.
//
// The per-object and per-material capacity is fixed here, from the
// configuration or, when zero, from the scene's current size. Every dirty
// countdown in the scene is re-derived from the configured ring size.
func NewDriver(device Device, scene *Scene, opts ...Option) (*Driver, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if scene == nil {
		return nil, ErrNilScene
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	capacity := Capacity{
		Objects:   cfg.MaxObjects,
		Materials: cfg.MaxMaterials,
		Passes:    cfg.PassCount,
	}
	if capacity.Objects == 0 {
		capacity.Objects = len(scene.Objects())
	}
	if capacity.Materials == 0 {
		capacity.Materials = len(scene.Materials())
	}
	if err := scene.validate(capacity); err != nil {
		return nil, err
	}
	cfg.MaxObjects, cfg.MaxMaterials = capacity.Objects, capacity.Materials

	propagateLogger(device, Logger())

	ring, err := NewRing(device, cfg.RingSize, capacity)
	if err != nil {
		return nil, err
	}
	scene.bind(cfg.RingSize)

	lighting := DefaultLighting()
	lighting.Ambient = mgl32.Vec4(cfg.AmbientLight)

	return &Driver{
		cfg:      cfg,
		device:   device,
		queue:    device.Queue(),
		surface:  device.Surface(),
		scene:    scene,
		ring:     ring,
		tracker:  NewTracker(device.Queue(), device.Fence(), time.Duration(cfg.FenceTimeout)),
		lighting: lighting,
	}, nil
}

// Frame produces one frame.
func (d *Driver) Frame(in FrameInput) error {
	if d.closed {
		return ErrDriverClosed
	}
	if d.failed != nil {
		return d.failed
	}
	frame := d.frames
	fail := func(step Step, err error) error {
		Logger().Error("frame aborted", "frame", frame, "step", step.String(), "err", err)
		d.failed = &FrameError{Frame: frame, Step: step, Err: err}
		return d.failed
	}

	// Rotate.
	slot := d.ring.AdvanceAndSelect()

	// Synchronize: the only blocking point.
	if err := d.synchronize(slot); err != nil {
		return fail(StepSynchronize, err)
	}

	// Update.
	if err := d.update(slot, in); err != nil {
		return fail(StepUpdate, err)
	}

	// Record.
	list, err := d.record(slot, in.Wireframe)
	if err != nil {
		return fail(StepRecord, err)
	}

	// Submit.
	if err := d.queue.Submit(list); err != nil {
		return fail(StepSubmit, err)
	}

	// Present.
	if err := d.surface.Present(); err != nil {
		return fail(StepPresent, err)
	}

	// Stamp.
	if err := d.tracker.Advance(slot); err != nil {
		return fail(StepStamp, err)
	}

	d.frames++
	Logger().Debug("frame produced",
		"frame", frame, "slot", slot.index, "marker", slot.marker,
		"completed", d.tracker.CompletedValue())
	return nil
}

func (d *Driver) synchronize(slot *Resource) error {
	_, before := d.tracker.Stalls()
	if err := d.tracker.EnsureSlotReusable(slot); err != nil {
		return err
	}
	if _, after := d.tracker.Stalls(); after-before > time.Duration(d.cfg.StallWarnThreshold) && d.cfg.StallWarnThreshold > 0 {
		Logger().Warn("long stall waiting for GPU", "slot", slot.index, "marker", slot.marker, "duration", after-before)
	}
	return nil
}

func (d *Driver) update(slot *Resource, in FrameInput) error {
	rowMajor := d.cfg.RowMajorConstants
	if _, err := PropagateObjectUpdates(d.scene.Objects(), slot, rowMajor); err != nil {
		return err
	}
	if _, err := PropagateMaterialUpdates(d.scene.Materials(), slot, rowMajor); err != nil {
		return err
	}
	pc, err := PublishPassConstants(slot, in.Camera, in.Timing, PassParams{
		Lens:     d.cfg.Lens,
		Viewport: d.cfg.Viewport,
		Lighting: d.lighting,
		RowMajor: rowMajor,
	})
	if err != nil {
		return err
	}
	d.lastPass = pc
	return nil
}

// record resets the slot's allocator, which the synchronize step made
// legal, and records a list that binds only this slot's buffers.
func (d *Driver) record(slot *Resource, wireframe bool) (CommandList, error) {
	if err := slot.Allocator.Reset(); err != nil {
		return nil, fmt.Errorf("reset allocator: %w", err)
	}
	opaque := PipelineOpaque
	if wireframe {
		opaque = PipelineOpaqueWireframe
	}
	list, err := slot.Allocator.Begin(opaque)
	if err != nil {
		return nil, fmt.Errorf("begin command list: %w", err)
	}

	target := d.surface.CurrentTarget()
	list.Barrier(target, TargetPresent, TargetRenderAttachment)
	list.BeginPass(target, d.cfg.ClearColor)
	list.SetPassConstants(slot.PassCB, 0)

	if err := d.drawItems(list, slot, d.scene.Layer(LayerOpaque)); err != nil {
		return nil, err
	}
	for _, l := range [...]struct {
		layer Layer
		kind  PipelineKind
	}{
		{LayerAlphaTested, PipelineAlphaTested},
		{LayerTransparent, PipelineTransparent},
	} {
		items := d.scene.Layer(l.layer)
		if len(items) == 0 {
			continue
		}
		list.SetPipeline(l.kind)
		if err := d.drawItems(list, slot, items); err != nil {
			return nil, err
		}
	}

	list.EndPass()
	list.Barrier(target, TargetRenderAttachment, TargetPresent)
	if err := list.Close(); err != nil {
		return nil, fmt.Errorf("close command list: %w", err)
	}
	return list, nil
}

func (d *Driver) drawItems(list CommandList, slot *Resource, items []*RenderItem) error {
	for _, it := range items {
		geo := d.scene.Geometry(it.Geometry)
		call := DrawCall{
			Mesh:          geo.Mesh,
			Topology:      it.Topology,
			IndexCount:    it.Args.IndexCount,
			StartIndex:    it.Args.StartIndex,
			BaseVertex:    it.Args.BaseVertex,
			Objects:       slot.ObjectCB,
			ObjectIndex:   it.Object.Index,
			MaterialIndex: int(it.Material),
		}
		if it.Material != NoMaterial {
			call.Materials = slot.MaterialCB
		}
		if err := list.Draw(call); err != nil {
			return fmt.Errorf("draw %s: %w", geo.Name, err)
		}
	}
	return nil
}

// Resize drains the GPU and switches to a new viewport. The projection
// follows on the next frame.
func (d *Driver) Resize(width, height int) error {
	if d.closed {
		return ErrDriverClosed
	}
	if d.failed != nil {
		return d.failed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, width, height)
	}
	if err := d.tracker.Flush(); err != nil {
		return fmt.Errorf("framering: resize: %w", err)
	}
	d.cfg.Viewport = Viewport{Width: width, Height: height}
	return nil
}

// Close drains the GPU and releases every slot. Resources are released
// only after the fence reached the last issued marker, so no in-flight GPU
// read outlives its memory. If the drain fails the slots are kept, since the
// GPU may still be reading them, and a later Close retries the drain.
func (d *Driver) Close() error {
	if d.released {
		return nil
	}
	d.closed = true
	if err := d.tracker.Flush(); err != nil {
		Logger().Error("drain before shutdown failed", "err", err)
		return fmt.Errorf("framering: close: %w", err)
	}
	d.ring.Destroy()
	d.released = true
	Logger().Info("frame driver closed", "frames", d.frames, "marker", d.tracker.CurrentValue())
	return nil
}

// SetLighting replaces the lights written into subsequent pass records.
// A setup with more than MaxLights lights is rejected and the current one
// kept.
func (d *Driver) SetLighting(l Lighting) error {
	if err := l.Validate(); err != nil {
		return err
	}
	d.lighting = l
	return nil
}

// Stats returns the driver's counters.
func (d *Driver) Stats() Stats {
	stalls, stallTime := d.tracker.Stalls()
	return Stats{
		Frames:     d.frames,
		Stalls:     stalls,
		StallTime:  stallTime,
		LastMarker: d.tracker.CurrentValue(),
		Completed:  d.tracker.CompletedValue(),
		Slot:       d.ring.Index(),
	}
}

// Config returns the effective configuration, with capacities resolved.
func (d *Driver) Config() Config { return d.cfg }

// Ring returns the frame resource ring.
func (d *Driver) Ring() *Ring { return d.ring }

// Tracker returns the completion tracker.
func (d *Driver) Tracker() *Tracker { return d.tracker }

// Scene returns the bound scene.
func (d *Driver) Scene() *Scene { return d.scene }

// LastPassConstants returns the pass record written by the last frame.
func (d *Driver) LastPassConstants() PassConstants { return d.lastPass }
