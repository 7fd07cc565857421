package warp

import (
	"errors"
	"fmt"
)

// Contract errors.
var (
	// ErrAllocation is wrapped by every allocation failure. Allocation
	// failures are fatal to the tick that hit them.
	ErrAllocation = errors.New("warp: buffer allocation failed")

	// ErrInvocation is wrapped by every pass failure reported by a backend.
	ErrInvocation = errors.New("warp: pass invocation failed")

	// ErrInvalidDimensions is returned for non-positive buffer sizes.
	ErrInvalidDimensions = errors.New("warp: invalid dimensions")

	// ErrReleasedBuffer is returned when a pass reads or writes a buffer that
	// has already been released.
	ErrReleasedBuffer = errors.New("warp: buffer has been released")

	// ErrUnsupportedPass is returned when a backend cannot execute a pass.
	ErrUnsupportedPass = errors.New("warp: unsupported pass")

	// ErrSizeMismatch is returned when the outputs of a pass differ in size.
	ErrSizeMismatch = errors.New("warp: output size mismatch")

	// ErrForeignBuffer is returned when a buffer does not belong to the backend
	// it is handed to.
	ErrForeignBuffer = errors.New("warp: buffer not created by this backend")

	// ErrMissingInput is returned when a pass needs a binding that is not set.
	ErrMissingInput = errors.New("warp: missing pass input")
)

// Params are the scalar pass parameters forwarded verbatim on every tick.
type Params struct {
	// StepSizeFactor scales the motion step of the spacewarp gather.
	StepSizeFactor float32

	// MaximumStepSize bounds the motion step length in UV units.
	MaximumStepSize float32

	// FillOutOfScreenOcclusion is 1 to clamp samples falling outside the
	// reference frame to its edge, 0 to leave them black.
	FillOutOfScreenOcclusion float32

	// FillDepthOcclusion is 1 to fill disocclusion holes with the reference
	// pixel at the same position, 0 to leave them black.
	FillDepthOcclusion float32
}

// FillOutOfScreen reports whether out-of-screen samples are clamped.
func (p Params) FillOutOfScreen() bool { return p.FillOutOfScreenOcclusion >= 0.5 }

// FillDepth reports whether disocclusion holes are filled.
func (p Params) FillDepth() bool { return p.FillDepthOcclusion >= 0.5 }

// Bindings is the set of inputs visible to a pass.
//
// Every buffer is a non-owning reference and may be nil when the
// corresponding state does not exist yet.
type Bindings struct {
	// Source is the main pass input: the host source frame, or the buffer
	// being displayed for Display passes.
	Source Buffer

	// SourceMotionDepth is the host motion-vector and depth buffer for the
	// current frame.
	SourceMotionDepth Buffer

	// PreviousColor is the reference color.
	PreviousColor Buffer

	// PreviousMotionDepth is the reference motion-depth.
	PreviousMotionDepth Buffer

	// MotionHistory is the motion accumulated since the reference frame.
	MotionHistory Buffer

	// Previous is the camera pose captured with the reference frame.
	Previous CameraPose

	// Current is the camera pose of the current tick.
	Current CameraPose

	Params Params
}

// Invoker executes passes. Implementations run each pass to completion
// before returning; failures wrap [ErrInvocation] or one of the contract
// errors above.
type Invoker interface {
	Invoke(pass PassID, b Bindings, out ...Buffer) error
}

// Backend both allocates buffers and executes passes on them.
type Backend interface {
	Allocator
	Invoker
}

// CheckOutputs validates the outputs of a pass: the count must match
// [PassID.Outputs], no output may be nil and all outputs share one size.
func CheckOutputs(pass PassID, out []Buffer) error {
	if !pass.Valid() {
		return fmt.Errorf("%w: %v", ErrUnsupportedPass, pass)
	}
	if len(out) != pass.Outputs() {
		return fmt.Errorf("%w: %v writes %d outputs, got %d", ErrInvocation, pass, pass.Outputs(), len(out))
	}
	for i, b := range out {
		if b == nil {
			return fmt.Errorf("%w: %v output %d is nil", ErrInvocation, pass, i)
		}
		if i > 0 && !SameSize(out[0], b) {
			return fmt.Errorf("%w: %v output %d is %dx%d, want %dx%d",
				ErrSizeMismatch, pass, i, b.Width(), b.Height(), out[0].Width(), out[0].Height())
		}
	}
	return nil
}

// Requires returns the bindings a pass cannot run without.
func Requires(pass PassID, b Bindings) error {
	switch pass {
	case PassDisplay, PassInitialize, PassUpdateMotionVectorHistory:
		if b.Source == nil {
			return fmt.Errorf("%w: %v needs a source", ErrMissingInput, pass)
		}
	case PassDisplayPrevious, PassOrientationalTimewarp:
		if b.PreviousColor == nil {
			return fmt.Errorf("%w: %v needs a reference color", ErrMissingInput, pass)
		}
	case PassPositionalTimewarpForward, PassPositionalTimewarpBackward:
		if b.PreviousColor == nil || b.PreviousMotionDepth == nil {
			return fmt.Errorf("%w: %v needs reference color and motion-depth", ErrMissingInput, pass)
		}
	case PassAccurateSpacewarp:
		if b.PreviousColor == nil || b.MotionHistory == nil {
			return fmt.Errorf("%w: %v needs reference color and motion history", ErrMissingInput, pass)
		}
	}
	return nil
}
