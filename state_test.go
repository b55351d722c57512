package framering

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectStateStartsDirtyInEverySlot(t *testing.T) {
	o := NewObjectState(0, 3, mgl32.Ident4())
	assert.Equal(t, 3, o.NumFramesDirty())
	assert.Equal(t, mgl32.Ident4(), o.TexTransform())
	assert.NotEqual(t, o.ID, NewObjectState(1, 3, mgl32.Ident4()).ID)
}

func TestDirtyCountdownConverges(t *testing.T) {
	dev := newFakeDevice()
	r, err := NewRing(dev, 3, Capacity{Objects: 1})
	require.NoError(t, err)

	o := NewObjectState(0, 3, mgl32.Ident4())
	for i := 0; i < 3; i++ {
		_, err := PropagateObjectUpdates([]*ObjectState{o}, r.AdvanceAndSelect(), false)
		require.NoError(t, err)
	}
	require.Equal(t, 0, o.NumFramesDirty())

	world := mgl32.Translate3D(1, 2, 3)
	o.SetWorld(world)
	for _, want := range []int{2, 1, 0, 0} {
		slot := r.AdvanceAndSelect()
		_, err := PropagateObjectUpdates([]*ObjectState{o}, slot, false)
		require.NoError(t, err)
		assert.Equal(t, want, o.NumFramesDirty())
	}

	// Every slot now holds the new transform.
	for i := 0; i < r.Size(); i++ {
		data := r.Slot(i).ObjectCB.(*fakeBuffer).data[0]
		assert.Equal(t, world, DecodeMat4(data[:64]), "slot %d", i)
	}
}

func TestDirtyCountdownSupersededResetsToN(t *testing.T) {
	o := NewObjectState(0, 3, mgl32.Ident4())
	o.dirty.applied()
	o.dirty.applied()
	require.Equal(t, 1, o.NumFramesDirty())

	o.SetTexTransform(mgl32.Scale3D(2, 2, 1))
	assert.Equal(t, 3, o.NumFramesDirty())

	o.SetWorld(mgl32.Ident4())
	assert.Equal(t, 3, o.NumFramesDirty(), "countdown is reset, never extended past N")
}

func TestCleanObjectIsSkipped(t *testing.T) {
	dev := newFakeDevice()
	r, err := NewRing(dev, 2, Capacity{Objects: 2})
	require.NoError(t, err)

	a := NewObjectState(0, 2, mgl32.Ident4())
	b := NewObjectState(1, 2, mgl32.Ident4())
	b.dirty.n = 0

	slot := r.AdvanceAndSelect()
	n, err := PropagateObjectUpdates([]*ObjectState{a, b}, slot, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, slot.ObjectCB.(*fakeBuffer).data[1])
}

func TestPropagateOutOfRangeIndex(t *testing.T) {
	dev := newFakeDevice()
	r, err := NewRing(dev, 2, Capacity{Objects: 1})
	require.NoError(t, err)

	o := NewObjectState(5, 2, mgl32.Ident4())
	_, err = PropagateObjectUpdates([]*ObjectState{o}, r.AdvanceAndSelect(), false)
	assert.ErrorIs(t, err, ErrObjectIndexOutOfRange)
	assert.Equal(t, 2, o.NumFramesDirty(), "failed write must not count as applied")
}

func TestMaterialCountdown(t *testing.T) {
	dev := newFakeDevice()
	r, err := NewRing(dev, 2, Capacity{Materials: 1})
	require.NoError(t, err)

	m := NewMaterialState("grass", 0, 2, MaterialConstants{Roughness: 0.125})
	for _, want := range []int{1, 0} {
		_, err := PropagateMaterialUpdates([]*MaterialState{m}, r.AdvanceAndSelect(), false)
		require.NoError(t, err)
		assert.Equal(t, want, m.NumFramesDirty())
	}

	m.SetMatTransform(mgl32.Translate3D(0.1, 0, 0))
	assert.Equal(t, 2, m.NumFramesDirty())
	assert.Equal(t, float32(0.125), m.Constants().Roughness)

	m.SetConstants(MaterialConstants{Roughness: 0.5})
	assert.Equal(t, 2, m.NumFramesDirty())
}

func TestPropagateMaterialWithoutBuffer(t *testing.T) {
	dev := newFakeDevice()
	r, err := NewRing(dev, 1, Capacity{Objects: 1})
	require.NoError(t, err)

	m := NewMaterialState("water", 0, 1, MaterialConstants{})
	_, err = PropagateMaterialUpdates([]*MaterialState{m}, r.AdvanceAndSelect(), false)
	assert.ErrorIs(t, err, ErrObjectIndexOutOfRange)
}
