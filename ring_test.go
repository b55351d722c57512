package framering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRingValidation(t *testing.T) {
	_, err := NewRing(nil, 3, Capacity{})
	assert.ErrorIs(t, err, ErrNilDevice)

	_, err = NewRing(newFakeDevice(), 0, Capacity{})
	assert.ErrorIs(t, err, ErrInvalidRingSize)
}

func TestRingFrameUsesSlotFrameModN(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		r, err := NewRing(newFakeDevice(), n, Capacity{Objects: 1})
		require.NoError(t, err)
		for f := 0; f < 4*n; f++ {
			slot := r.AdvanceAndSelect()
			assert.Equal(t, f%n, slot.Index(), "n=%d frame=%d", n, f)
			assert.Same(t, slot, r.Current())
			assert.Equal(t, slot.Index(), r.Index())
		}
	}
}

func TestRingSlotsOwnTheirResources(t *testing.T) {
	dev := newFakeDevice()
	r, err := NewRing(dev, 3, Capacity{Objects: 4, Materials: 2})
	require.NoError(t, err)
	require.Equal(t, 3, r.Size())

	seen := map[UploadBuffer]bool{}
	for i := 0; i < r.Size(); i++ {
		s := r.Slot(i)
		assert.Equal(t, uint64(0), s.Marker())
		for _, b := range []UploadBuffer{s.ObjectCB, s.MaterialCB, s.PassCB} {
			require.NotNil(t, b)
			assert.False(t, seen[b], "buffer shared between slots")
			seen[b] = true
		}
		assert.Equal(t, 4, s.ObjectCB.Len())
		assert.Equal(t, 2, s.MaterialCB.Len())
		assert.Equal(t, DefaultPassCount, s.PassCB.Len())
		assert.Equal(t, 256, s.ObjectCB.ElementSize())
	}
	assert.Len(t, dev.allocators, 3)
	assert.Contains(t, dev.buffers, "frame_2_object_cb")
}

func TestRingWithoutMaterials(t *testing.T) {
	r, err := NewRing(newFakeDevice(), 2, Capacity{Objects: 1})
	require.NoError(t, err)
	assert.Nil(t, r.Slot(0).MaterialCB)
}

func TestRingBuildFailureReleasesSlots(t *testing.T) {
	dev := newFakeDevice()
	dev.failBuffer = "frame_1_object_cb"

	_, err := NewRing(dev, 3, Capacity{Objects: 1})
	require.Error(t, err)

	for _, a := range dev.allocators {
		assert.True(t, a.destroyed, "%s not destroyed", a.label)
	}
	for label, b := range dev.buffers {
		assert.True(t, b.destroyed, "%s not destroyed", label)
	}
}

func TestRingMaxMarkerAndDestroy(t *testing.T) {
	dev := newFakeDevice()
	r, err := NewRing(dev, 3, Capacity{Objects: 1})
	require.NoError(t, err)

	tr := NewTracker(dev.Queue(), dev.Fence(), 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Advance(r.AdvanceAndSelect()))
	}
	assert.Equal(t, uint64(5), r.MaxMarker())

	r.Destroy()
	assert.Equal(t, 0, r.Size())
	for _, a := range dev.allocators {
		assert.True(t, a.destroyed)
	}
}

func TestFrameErrorUnwraps(t *testing.T) {
	err := error(&FrameError{Frame: 7, Step: StepSynchronize, Err: ErrDeviceLost})
	assert.ErrorIs(t, err, ErrDeviceLost)
	assert.Equal(t, "framering: frame 7: synchronize: "+ErrDeviceLost.Error(), err.Error())

	var fe *FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, StepSynchronize, fe.Step)
}
