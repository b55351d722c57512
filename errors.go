package framering

import (
	"errors"
	"fmt"
)

// Core errors.
var (
	// ErrDeviceLost is returned when the GPU does not reach a marker within
	// the configured fence timeout. All in-flight state must be discarded.
	ErrDeviceLost = errors.New("framering: device lost (fence wait timed out)")

	// ErrObjectIndexOutOfRange is returned when an object or material index
	// falls outside the capacity of the per-slot constant buffer.
	ErrObjectIndexOutOfRange = errors.New("framering: constant buffer index out of range")

	// ErrInvalidRingSize is returned when a ring is built with fewer than one slot.
	ErrInvalidRingSize = errors.New("framering: ring size must be at least 1")

	// ErrNilDevice is returned when a driver or ring is created without a device.
	ErrNilDevice = errors.New("framering: device is nil")

	// ErrNilScene is returned when a driver is created without a scene.
	ErrNilScene = errors.New("framering: scene is nil")

	// ErrDriverClosed is returned by Frame after Close.
	ErrDriverClosed = errors.New("framering: driver is closed")

	// ErrCapacityExceeded is returned when a scene holds more objects or
	// materials than the ring was sized for.
	ErrCapacityExceeded = errors.New("framering: scene exceeds ring capacity")

	// ErrTooManyLights is returned when a lighting setup holds more than
	// MaxLights lights.
	ErrTooManyLights = errors.New("framering: too many lights")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("framering: invalid configuration")
)

// Step names one state of the per-frame state machine.
type Step int

// Per-frame steps, in execution order.
const (
	StepRotate Step = iota
	StepSynchronize
	StepUpdate
	StepRecord
	StepSubmit
	StepPresent
	StepStamp
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case StepRotate:
		return "rotate"
	case StepSynchronize:
		return "synchronize"
	case StepUpdate:
		return "update"
	case StepRecord:
		return "record"
	case StepSubmit:
		return "submit"
	case StepPresent:
		return "present"
	case StepStamp:
		return "stamp"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// FrameError reports the frame and step at which the state machine aborted.
// The remaining steps of that frame were not executed.
type FrameError struct {
	Frame uint64
	Step  Step
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("framering: frame %d: %s: %v", e.Frame, e.Step, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
