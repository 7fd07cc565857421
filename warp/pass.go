package warp

import "fmt"

// PassID selects the pass executed by an [Invoker].
//
// The first four values are the reprojection techniques; their numeric
// values match the technique indices of the configuration surface.
type PassID uint8

const (
	// PassOrientationalTimewarp re-renders the reference color for the
	// current camera orientation, ignoring translation.
	PassOrientationalTimewarp PassID = iota

	// PassPositionalTimewarpForward scatters reference pixels into the
	// current view using the reference depth.
	PassPositionalTimewarpForward

	// PassPositionalTimewarpBackward gathers reference pixels for every
	// destination pixel using the reference depth.
	PassPositionalTimewarpBackward

	// PassAccurateSpacewarp gathers reference pixels along the accumulated
	// per-pixel motion history.
	PassAccurateSpacewarp

	// PassInitialize copies the source color and motion-depth into two
	// outputs (color, motion-depth).
	PassInitialize

	// PassUpdateMotionVectorHistory adds the source motion vectors to the
	// installed motion history and writes the sum into the output.
	PassUpdateMotionVectorHistory

	// PassResetMotionVectorHistory clears the output to zero.
	PassResetMotionVectorHistory

	// PassDisplay copies the source into the output.
	PassDisplay

	// PassDisplayPrevious copies the installed reference color into the output.
	PassDisplayPrevious

	passCount
)

// NumPasses is the number of defined passes.
const NumPasses = int(passCount)

var passNames = [passCount]string{
	PassOrientationalTimewarp:      "OrientationalTimewarp",
	PassPositionalTimewarpForward:  "PositionalTimewarpForward",
	PassPositionalTimewarpBackward: "PositionalTimewarpBackward",
	PassAccurateSpacewarp:          "AccurateSpacewarp",
	PassInitialize:                 "Initialize",
	PassUpdateMotionVectorHistory:  "UpdateMotionVectorHistory",
	PassResetMotionVectorHistory:   "ResetMotionVectorHistory",
	PassDisplay:                    "Display",
	PassDisplayPrevious:            "DisplayPrevious",
}

// String returns the pass name.
func (p PassID) String() string {
	if p < passCount {
		return passNames[p]
	}
	return fmt.Sprintf("PassID(%d)", p)
}

// Valid reports whether p is a defined pass.
func (p PassID) Valid() bool {
	return p < passCount
}

// IsTechnique reports whether p is one of the four reprojection techniques.
func (p PassID) IsTechnique() bool {
	return p <= PassAccurateSpacewarp
}

// Outputs returns the number of output buffers the pass writes.
func (p PassID) Outputs() int {
	if p == PassInitialize {
		return 2
	}
	return 1
}
