// Package camera provides the orbit camera that feeds framering's pass
// constants.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framering"
)

// Orbit limits.
const (
	RotateDegreesPerPixel = 0.25
	ZoomUnitsPerPixel     = 0.05

	MinPhi    = 0.1
	MaxPhi    = math.Pi - 0.1
	MinRadius = 5
	MaxRadius = 150
)

// Button is a mouse button state.
type Button int

// Mouse buttons.
const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonRight
)

// Orbit is a camera on a sphere around the origin, driven by mouse drags.
// The left button rotates, the right button zooms.
//
// Theta is the azimuth in the XZ plane, Phi the polar angle from +Y.
type Orbit struct {
	Theta  float32
	Phi    float32
	Radius float32

	lastX, lastY int
}

// NewOrbit returns a camera looking at the origin
// from 15 units away.
func NewOrbit() *Orbit {
	return &Orbit{Theta: 1.5 * math.Pi, Phi: 0.2 * math.Pi, Radius: 15}
}

// MouseDown records the drag origin.
func (o *Orbit) MouseDown(x, y int) {
	o.lastX, o.lastY = x, y
}

// MouseMove applies a drag to (x, y) with button held.
func (o *Orbit) MouseMove(button Button, x, y int) {
	dx := float32(x - o.lastX)
	dy := float32(y - o.lastY)
	o.lastX, o.lastY = x, y

	switch button {
	case ButtonLeft:
		o.Theta += mgl32.DegToRad(RotateDegreesPerPixel * dx)
		o.Phi = mgl32.Clamp(o.Phi+mgl32.DegToRad(RotateDegreesPerPixel*dy), MinPhi, MaxPhi)
	case ButtonRight:
		o.Radius = mgl32.Clamp(o.Radius+ZoomUnitsPerPixel*(dx-dy), MinRadius, MaxRadius)
	}
}

// Eye converts the spherical coordinates to a world position.
func (o *Orbit) Eye() mgl32.Vec3 {
	sinPhi, cosPhi := math.Sincos(float64(o.Phi))
	sinTheta, cosTheta := math.Sincos(float64(o.Theta))
	r := float64(o.Radius)
	return mgl32.Vec3{
		float32(r * sinPhi * cosTheta),
		float32(r * cosPhi),
		float32(r * sinPhi * sinTheta),
	}
}

// State returns the camera input for the next frame.
func (o *Orbit) State() framering.CameraState {
	return framering.CameraState{Eye: o.Eye(), Up: mgl32.Vec3{0, 1, 0}}
}
