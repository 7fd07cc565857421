package reproject

import (
	"fmt"

	"github.com/gogpu/reproject/warp"
)

// OptimizationMode selects what the renderer does with reprojection.
type OptimizationMode uint8

const (
	// OptimizationNone passes the source through unchanged.
	OptimizationNone OptimizationMode = iota

	// LatencyReduction pre-warps every simulated frame to the camera pose of
	// the tick that displays it.
	LatencyReduction

	// FrameGeneration synthesizes extrapolated frames between simulated
	// ones.
	FrameGeneration

	numModes
)

var modeNames = [numModes]string{
	OptimizationNone: "None",
	LatencyReduction: "LatencyReduction",
	FrameGeneration:  "FrameGeneration",
}

// modeLabels are the names shown by settings editors.
var modeLabels = [numModes]string{
	OptimizationNone: "None",
	LatencyReduction: "Motion-to-photon latency reduction",
	FrameGeneration:  "Frame extrapolation",
}

// String returns the mode name.
func (m OptimizationMode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return fmt.Sprintf("OptimizationMode(%d)", m)
}

// Label returns the editor label of the mode.
func (m OptimizationMode) Label() string {
	if m < numModes {
		return modeLabels[m]
	}
	return m.String()
}

// Valid reports whether m is a defined mode.
func (m OptimizationMode) Valid() bool { return m < numModes }

// Technique is the reprojection technique applied to reference frames.
type Technique uint8

const (
	// TechniqueNone uses the reference color as is.
	TechniqueNone Technique = iota
	OrientationalTimewarp
	PositionalTimewarpForward
	PositionalTimewarpBackward
	AccurateSpacewarp

	numTechniques
)

var techniqueNames = [numTechniques]string{
	TechniqueNone:              "None",
	OrientationalTimewarp:      "OrientationalTimewarp",
	PositionalTimewarpForward:  "PositionalTimewarpForward",
	PositionalTimewarpBackward: "PositionalTimewarpBackward",
	AccurateSpacewarp:          "AccurateSpacewarp",
}

var techniqueLabels = [numTechniques]string{
	TechniqueNone:              "None",
	OrientationalTimewarp:      "Orientational Timewarp",
	PositionalTimewarpForward:  "Positional Timewarp FE",
	PositionalTimewarpBackward: "Positional Timewarp BE",
	AccurateSpacewarp:          "Spacewarp",
}

// String returns the technique name.
func (t Technique) String() string {
	if t < numTechniques {
		return techniqueNames[t]
	}
	return fmt.Sprintf("Technique(%d)", t)
}

// Label returns the editor label of the technique.
func (t Technique) Label() string {
	if t < numTechniques {
		return techniqueLabels[t]
	}
	return t.String()
}

// Valid reports whether t is a defined technique.
func (t Technique) Valid() bool { return t < numTechniques }

// Pass returns the warp pass implementing t. TechniqueNone has no pass.
func (t Technique) Pass() (warp.PassID, bool) {
	if t == TechniqueNone || !t.Valid() {
		return 0, false
	}
	return warp.PassID(t - 1), true
}

// ModeLabels returns the editor labels of every mode in option order.
func ModeLabels() []string { return append([]string(nil), modeLabels[:]...) }

// TechniqueLabels returns the editor labels of every technique in option
// order.
func TechniqueLabels() []string { return append([]string(nil), techniqueLabels[:]...) }
