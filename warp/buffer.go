package warp

import "fmt"

// Format is the pixel format of a buffer.
type Format uint8

const (
	// FormatRGBA16Float stores four 16-bit float channels. Default for every
	// internally allocated buffer.
	FormatRGBA16Float Format = iota

	// FormatRGBA32Float stores four 32-bit float channels.
	FormatRGBA32Float

	// FormatRGBA8Unorm stores four 8-bit normalized channels. Only valid for
	// host-owned destination buffers; it cannot hold signed motion vectors.
	FormatRGBA8Unorm

	// FormatBGRA8Unorm is FormatRGBA8Unorm with swapped red and blue, the
	// usual surface format.
	FormatBGRA8Unorm
)

// DefaultFormat is the format used for reference buffers.
const DefaultFormat = FormatRGBA16Float

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA16Float:
		return "RGBA16Float"
	case FormatRGBA32Float:
		return "RGBA32Float"
	case FormatRGBA8Unorm:
		return "RGBA8Unorm"
	case FormatBGRA8Unorm:
		return "BGRA8Unorm"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		return 4
	}
}

// Signed reports whether the format can hold negative values.
func (f Format) Signed() bool {
	return f == FormatRGBA16Float || f == FormatRGBA32Float
}

// Buffer is an image buffer handle owned either by an [Allocator] or by the
// host pipeline.
type Buffer interface {
	// Width returns the width in pixels.
	Width() int

	// Height returns the height in pixels.
	Height() int

	// Format returns the pixel format.
	Format() Format

	// Label returns the debug label.
	Label() string
}

// BufferDesc describes a buffer to allocate.
type BufferDesc struct {
	Width  int
	Height int
	Format Format
	Label  string
}

// SizeBytes returns the memory needed by the described buffer.
func (d BufferDesc) SizeBytes() uint64 {
	if d.Width <= 0 || d.Height <= 0 {
		return 0
	}
	//nolint:gosec // G115: dimensions validated positive
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel())
}

// Validate checks the descriptor dimensions.
func (d BufferDesc) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, d.Width, d.Height)
	}
	return nil
}

// Allocator creates and destroys buffers.
//
// Allocate failures must wrap [ErrAllocation]. Release of a nil buffer is a
// no-op; releasing a buffer twice or releasing a buffer the allocator did not
// create must not panic.
type Allocator interface {
	Allocate(desc BufferDesc) (Buffer, error)
	Release(b Buffer)
}

// SameSize reports whether two buffers have identical dimensions.
func SameSize(a, b Buffer) bool {
	return a.Width() == b.Width() && a.Height() == b.Height()
}
