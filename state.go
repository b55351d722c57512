package framering

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// dirtyCounter counts how many ring slots still hold stale data for one
// record. It stays within [0, frames].
type dirtyCounter struct {
	n      int
	frames int
}

// mark flags every slot stale. A pending countdown is superseded, never
// extended.
func (c *dirtyCounter) mark() { c.n = c.frames }

// applied records that the current slot now holds the newest value.
func (c *dirtyCounter) applied() {
	if c.n > 0 {
		c.n--
	}
}

// bind ties the counter to a ring size and marks every slot stale.
func (c *dirtyCounter) bind(frames int) {
	c.frames = frames
	c.n = frames
}

// ObjectState is the mutable state of one drawable object.
//
// Every mutation resets NumFramesDirty to the ring size so each frame
// resource receives the update once. ObjectState is not safe for concurrent
// use; it belongs to the goroutine that drives the frame loop.
type ObjectState struct {
	// ID identifies the object independently of its buffer slot.
	ID uuid.UUID

	// Index is the element of the per-object constant buffer this object owns.
	Index int

	world        mgl32.Mat4
	texTransform mgl32.Mat4
	dirty        dirtyCounter
}

// NewObjectState creates an object owning element index of a ring with
// ringSize slots. The object starts dirty in every slot.
func NewObjectState(index, ringSize int, world mgl32.Mat4) *ObjectState {
	o := &ObjectState{
		ID:           uuid.New(),
		Index:        index,
		world:        world,
		texTransform: mgl32.Ident4(),
	}
	o.dirty.bind(ringSize)
	return o
}

// World returns the world transform.
func (o *ObjectState) World() mgl32.Mat4 { return o.world }

// TexTransform returns the texture coordinate transform.
func (o *ObjectState) TexTransform() mgl32.Mat4 { return o.texTransform }

// SetWorld changes the world transform and marks every slot stale.
func (o *ObjectState) SetWorld(m mgl32.Mat4) {
	o.world = m
	o.dirty.mark()
}

// SetTexTransform changes the texture transform and marks every slot stale.
func (o *ObjectState) SetTexTransform(m mgl32.Mat4) {
	o.texTransform = m
	o.dirty.mark()
}

// NumFramesDirty is the number of slots that still hold stale data.
func (o *ObjectState) NumFramesDirty() int { return o.dirty.n }

// Constants returns the record written into the per-object buffer.
func (o *ObjectState) Constants() ObjectConstants {
	return ObjectConstants{World: o.world, TexTransform: o.texTransform}
}

// MaterialState is the mutable state of one material, propagated across
// slots with the same countdown rule as ObjectState.
type MaterialState struct {
	ID    uuid.UUID
	Name  string
	Index int

	constants MaterialConstants
	dirty     dirtyCounter
}

// NewMaterialState creates a material owning element index of the
// per-material buffer.
func NewMaterialState(name string, index, ringSize int, c MaterialConstants) *MaterialState {
	m := &MaterialState{
		ID:        uuid.New(),
		Name:      name,
		Index:     index,
		constants: c,
	}
	m.dirty.bind(ringSize)
	return m
}

// Constants returns the current material record.
func (m *MaterialState) Constants() MaterialConstants { return m.constants }

// SetConstants replaces the material record and marks every slot stale.
func (m *MaterialState) SetConstants(c MaterialConstants) {
	m.constants = c
	m.dirty.mark()
}

// SetMatTransform changes the material transform (used for animated
// texture scrolling) and marks every slot stale.
func (m *MaterialState) SetMatTransform(t mgl32.Mat4) {
	m.constants.MatTransform = t
	m.dirty.mark()
}

// NumFramesDirty is the number of slots that still hold stale data.
func (m *MaterialState) NumFramesDirty() int { return m.dirty.n }
