package wgpu

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/reproject/warp"
)

// ErrShader is returned when a technique shader does not compile.
var ErrShader = errors.New("wgpu: invalid technique shader")

var (
	//go:embed shaders/common.wgsl
	commonShaderSource string

	//go:embed shaders/display.wgsl
	displayShaderSource string

	//go:embed shaders/display_previous.wgsl
	displayPreviousShaderSource string

	//go:embed shaders/initialize.wgsl
	initializeShaderSource string

	//go:embed shaders/reset_history.wgsl
	resetHistoryShaderSource string

	//go:embed shaders/update_history.wgsl
	updateHistoryShaderSource string

	//go:embed shaders/orientational_timewarp.wgsl
	orientationalShaderSource string

	//go:embed shaders/positional_timewarp_forward.wgsl
	positionalForwardShaderSource string

	//go:embed shaders/positional_timewarp_backward.wgsl
	positionalBackwardShaderSource string

	//go:embed shaders/accurate_spacewarp.wgsl
	spacewarpShaderSource string
)

// passShaders maps every pass to the body appended to the common prelude.
var passShaders = [warp.NumPasses]string{
	warp.PassOrientationalTimewarp:      orientationalShaderSource,
	warp.PassPositionalTimewarpForward:  positionalForwardShaderSource,
	warp.PassPositionalTimewarpBackward: positionalBackwardShaderSource,
	warp.PassAccurateSpacewarp:          spacewarpShaderSource,
	warp.PassInitialize:                 initializeShaderSource,
	warp.PassUpdateMotionVectorHistory:  updateHistoryShaderSource,
	warp.PassResetMotionVectorHistory:   resetHistoryShaderSource,
	warp.PassDisplay:                    displayShaderSource,
	warp.PassDisplayPrevious:            displayPreviousShaderSource,
}

// shaderSource returns the full WGSL module of a pass body.
func shaderSource(body string) string {
	return commonShaderSource + "\n" + body
}

// validateShader compiles a full WGSL module with naga.
func validateShader(label, source string) error {
	if _, err := naga.Compile(source); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrShader, label, err)
	}
	return nil
}

// program is one draw of a pass.
type program struct {
	vertex   string
	fragment string
	topology gputypes.PrimitiveTopology

	// depth enables a Depth32Float attachment with a less-than test.
	depth      bool
	depthWrite bool
}

var (
	fullscreen = program{vertex: "vs_main", fragment: "fs_main", topology: gputypes.PrimitiveTopologyTriangleList}
	scatter    = program{vertex: "vs_scatter", fragment: "fs_scatter", topology: gputypes.PrimitiveTopologyPointList, depth: true, depthWrite: true}
	holeFill   = program{vertex: "vs_fill", fragment: "fs_fill", topology: gputypes.PrimitiveTopologyTriangleList, depth: true}
)

// programs returns the draws of a pass in submission order.
func programs(pass warp.PassID, params warp.Params) []program {
	if pass != warp.PassPositionalTimewarpForward {
		return []program{fullscreen}
	}
	if params.FillDepth() {
		return []program{scatter, holeFill}
	}
	return []program{scatter}
}
