package framering

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// PropagateObjectUpdates writes every dirty object into the current slot's
// per-object buffer and decrements its countdown. Objects whose countdown
// is zero are skipped: all slots already hold their newest value.
//
// Because each slot has its own buffer, one transform change is applied N
// times, once per slot, before the countdown reaches zero.
func PropagateObjectUpdates(objects []*ObjectState, slot *Resource, rowMajor bool) (written int, err error) {
	for _, o := range objects {
		if o.dirty.n == 0 {
			continue
		}
		if err := writeElement(slot.ObjectCB, o.Index, o.Constants().Bytes(rowMajor)); err != nil {
			return written, fmt.Errorf("object %s: %w", o.ID, err)
		}
		o.dirty.applied()
		written++
	}
	return written, nil
}

// PropagateMaterialUpdates is PropagateObjectUpdates for materials.
func PropagateMaterialUpdates(materials []*MaterialState, slot *Resource, rowMajor bool) (written int, err error) {
	for _, m := range materials {
		if m.dirty.n == 0 {
			continue
		}
		if err := writeElement(slot.MaterialCB, m.Index, m.constants.Bytes(rowMajor)); err != nil {
			return written, fmt.Errorf("material %q: %w", m.Name, err)
		}
		m.dirty.applied()
		written++
	}
	return written, nil
}

// writeElement checks the index against the buffer before writing so an
// out-of-range index never reaches backend memory.
func writeElement(buf UploadBuffer, index int, data []byte) error {
	if buf == nil {
		return fmt.Errorf("%w: index %d, buffer has no capacity", ErrObjectIndexOutOfRange, index)
	}
	if index < 0 || index >= buf.Len() {
		return fmt.Errorf("%w: index %d, capacity %d", ErrObjectIndexOutOfRange, index, buf.Len())
	}
	return buf.CopyData(index, data)
}

// CameraState is the per-frame camera input.
type CameraState struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3
}

// Timing carries the game clock, in seconds.
type Timing struct {
	Total float32
	Delta float32
}

// Lighting is the scene lighting written into the pass record.
type Lighting struct {
	Ambient mgl32.Vec4
	Lights  []Light
}

// Validate reports a lighting setup that does not fit the pass record.
func (l Lighting) Validate() error {
	if len(l.Lights) > MaxLights {
		return fmt.Errorf("%w: %d, the pass record holds %d", ErrTooManyLights, len(l.Lights), MaxLights)
	}
	return nil
}

// DefaultLighting is a three-light key, fill and back rig.
func DefaultLighting() Lighting {
	return Lighting{
		Ambient: mgl32.Vec4{0.25, 0.25, 0.35, 1},
		Lights: []Light{
			{Direction: mgl32.Vec3{0.57735, -0.57735, 0.57735}, Strength: mgl32.Vec3{0.6, 0.6, 0.6}},
			{Direction: mgl32.Vec3{-0.57735, -0.57735, 0.57735}, Strength: mgl32.Vec3{0.3, 0.3, 0.3}},
			{Direction: mgl32.Vec3{0, -0.707, -0.707}, Strength: mgl32.Vec3{0.15, 0.15, 0.15}},
		},
	}
}

// PassParams holds the pass inputs that change rarely.
type PassParams struct {
	Lens     Lens
	Viewport Viewport
	Lighting Lighting
	RowMajor bool
}

// ViewMatrix builds the right-handed look-at matrix of cam.
func ViewMatrix(cam CameraState) mgl32.Mat4 {
	return mgl32.LookAtV(cam.Eye, cam.Target, cam.Up)
}

// ProjectionMatrix builds a right-handed perspective projection with a
// [0, 1] depth range.
func ProjectionMatrix(lens Lens, aspect float32) mgl32.Mat4 {
	zeroToOne := mgl32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	return zeroToOne.Mul4(mgl32.Perspective(lens.FovY, aspect, lens.Near, lens.Far))
}

// BuildPassConstants computes the pass record: view, projection, their
// product and the three inverses, plus viewport, clip planes, timing and
// lights. Inverses of singular matrices are not guarded. Lights past
// MaxLights are not packed; PublishPassConstants rejects them.
func BuildPassConstants(cam CameraState, timing Timing, p PassParams) PassConstants {
	view := ViewMatrix(cam)
	proj := ProjectionMatrix(p.Lens, p.Viewport.Aspect())
	viewProj := proj.Mul4(view)

	w, h := float32(p.Viewport.Width), float32(p.Viewport.Height)
	pc := PassConstants{
		View:                view,
		InvView:             view.Inv(),
		Proj:                proj,
		InvProj:             proj.Inv(),
		ViewProj:            viewProj,
		InvViewProj:         viewProj.Inv(),
		EyePosW:             cam.Eye,
		RenderTargetSize:    mgl32.Vec2{w, h},
		InvRenderTargetSize: mgl32.Vec2{1 / w, 1 / h},
		NearZ:               p.Lens.Near,
		FarZ:                p.Lens.Far,
		TotalTime:           timing.Total,
		DeltaTime:           timing.Delta,
		AmbientLight:        p.Lighting.Ambient,
	}
	copy(pc.Lights[:], p.Lighting.Lights)
	return pc
}

// PublishPassConstants computes the pass record and writes it into element
// 0 of the current slot's per-pass buffer. It runs once per frame,
// independent of how many objects changed.
func PublishPassConstants(slot *Resource, cam CameraState, timing Timing, p PassParams) (PassConstants, error) {
	if err := p.Lighting.Validate(); err != nil {
		return PassConstants{}, fmt.Errorf("pass constants: %w", err)
	}
	pc := BuildPassConstants(cam, timing, p)
	if err := writeElement(slot.PassCB, 0, pc.Bytes(p.RowMajor)); err != nil {
		return pc, fmt.Errorf("pass constants: %w", err)
	}
	return pc, nil
}
