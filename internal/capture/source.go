// Package capture samples camera frames on a fixed cadence and hands them
// to the inference session.
//
// The loop never waits on the network. Each tick encodes at most one frame
// and launches its send on a separate goroutine; when the session is not
// connected or too many sends are already outstanding the frame is dropped.
// There is no queue and no retry.
package capture

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrUnavailable means the media source could not start or was revoked,
	// for example when camera permission is denied.
	ErrUnavailable = errors.New("capture: media source unavailable")

	// ErrNoFrame means no frame is ready yet; the tick is skipped.
	ErrNoFrame = errors.New("capture: no frame available")
)

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

// Source is a camera or other producer of video frames.
type Source interface {
	// Start acquires the device, requesting frames of roughly size.
	Start(ctx context.Context, size Size) error
	// Frame returns the most recent frame.
	Frame() (image.Image, error)
	// Stop releases the device.
	Stop() error
}
