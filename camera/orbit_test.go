package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/gogpu/framering"
)

func TestNewOrbitEye(t *testing.T) {
	o := NewOrbit()
	eye := o.Eye()
	assert.InDelta(t, 15, eye.Len(), 1e-4)
	assert.InDelta(t, 15*math.Cos(0.2*math.Pi), eye.Y(), 1e-4)
	assert.InDelta(t, 0, eye.X(), 1e-4, "theta = 3pi/2 puts the eye on -Z")
	assert.Less(t, eye.Z(), float32(0))
}

func TestOrbitRotate(t *testing.T) {
	o := NewOrbit()
	o.MouseDown(100, 100)
	o.MouseMove(ButtonLeft, 140, 100)
	assert.InDelta(t, 1.5*math.Pi+mgl32.DegToRad(10), o.Theta, 1e-5)

	// Dragging far down clamps phi away from the pole.
	o.MouseMove(ButtonLeft, 140, 10000)
	assert.InDelta(t, MaxPhi, o.Phi, 1e-6)
	o.MouseMove(ButtonLeft, 140, -10000)
	assert.InDelta(t, MinPhi, o.Phi, 1e-6)
}

func TestOrbitZoom(t *testing.T) {
	tests := []struct {
		name   string
		x, y   int
		radius float32
	}{
		{"right drag zooms out", 100, 0, 20},
		{"up drag zooms out", 0, -100, 20},
		{"clamped near", -1000, 0, MinRadius},
		{"clamped far", 10000, 0, MaxRadius},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrbit()
			o.MouseDown(0, 0)
			o.MouseMove(ButtonRight, tt.x, tt.y)
			assert.InDelta(t, tt.radius, o.Radius, 1e-4)
		})
	}
}

func TestOrbitMoveWithoutButtonOnlyTracks(t *testing.T) {
	o := NewOrbit()
	before := *o
	o.MouseMove(ButtonNone, 50, 50)
	assert.Equal(t, before.Theta, o.Theta)
	assert.Equal(t, before.Radius, o.Radius)

	o.MouseMove(ButtonLeft, 54, 50)
	assert.InDelta(t, before.Theta+mgl32.DegToRad(1), o.Theta, 1e-5)
}

func TestOrbitStateLooksAtOrigin(t *testing.T) {
	o := NewOrbit()
	view := framering.ViewMatrix(o.State())
	p := view.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, p.X(), 1e-4)
	assert.InDelta(t, 0, p.Y(), 1e-4)
	assert.InDelta(t, -15, p.Z(), 1e-4)
}
