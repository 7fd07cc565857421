package reproject

import "errors"

var (
	// ErrConfiguration is returned for settings the renderer cannot run
	// with: a non-positive rate or an out of range option. The tick is
	// aborted before any buffer changes and the destination is not written.
	ErrConfiguration = errors.New("reproject: invalid configuration")

	// ErrInvalidFrame is returned when a tick is missing its source or
	// destination, or its render context has no area.
	ErrInvalidFrame = errors.New("reproject: invalid frame")

	// ErrClosed is returned by every call on a closed Renderer.
	ErrClosed = errors.New("reproject: renderer closed")
)
