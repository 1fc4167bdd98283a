// Package camera mediates between the flow service and a camera device. The
// device itself sits behind the Provider interface so the controller can run
// against real hardware adapters, file-backed frame sources or test fakes.
package camera

import (
	"context"
	"errors"
	"fmt"
)

// Facing selects which physical camera a capture request targets.
type Facing string

const (
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
)

// Opposite returns the other facing mode.
func (f Facing) Opposite() Facing {
	if f == FacingBack {
		return FacingFront
	}
	return FacingBack
}

// Dimension is a resolution constraint: Ideal is the preferred value, Min and
// Max (0 = unconstrained) bound what the device may deliver.
type Dimension struct {
	Ideal int
	Min   int
	Max   int
}

// Constraints parameterize a stream request.
type Constraints struct {
	Width  Dimension
	Height Dimension
	Facing Facing
}

// Classified acquisition failures. Anything else is an "other" failure and is
// surfaced with its own message.
var (
	ErrPermissionDenied  = errors.New("camera access denied")
	ErrDeviceNotFound    = errors.New("no camera found")
	ErrDeviceUnsupported = errors.New("camera not supported")
)

// UserMessage maps an acquisition failure to the message shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access denied. Please allow camera access and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "No camera found. Please connect a camera."
	case errors.Is(err, ErrDeviceUnsupported):
		return "Camera not supported on this device."
	default:
		return fmt.Sprintf("Failed to access camera: %v", err)
	}
}

// Retryable reports whether the controller may be re-initialized without an
// explicit user action. Permission and missing-device failures require the
// user to act first.
func Retryable(err error) bool {
	return !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrDeviceNotFound)
}

// Frame is one still image pulled from a live stream.
type Frame struct {
	Width  int
	Height int
	// Data holds the encoded raster (JPEG or PNG bytes).
	Data []byte
}

// Stream is an active camera feed.
//
// Implementations must guarantee:
//   - Frame() resolves only once the feed has nonzero dimensions
//   - Pause() disables delivery without releasing the device
//   - Close() is idempotent and releases all underlying hardware tracks
type Stream interface {
	// Frame blocks until a frame with nonzero dimensions is available or the
	// context is done.
	Frame(ctx context.Context) (Frame, error)
	// Pause disables the feed without stopping it.
	Pause()
	// Close stops all tracks. Safe to call multiple times.
	Close() error
}

// Provider acquires camera streams.
type Provider interface {
	// Open requests a stream for the given constraints. Failures are
	// classified via ErrPermissionDenied, ErrDeviceNotFound and
	// ErrDeviceUnsupported where possible.
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}
