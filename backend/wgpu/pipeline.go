package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/reproject/warp"
	"github.com/gogpu/wgpu/hal"
)

// numTextureBindings is the number of input textures of the shared layout.
const numTextureBindings = 5

// depthFormat is the format of the forward scatter depth buffer.
const depthFormat = gputypes.TextureFormatDepth32Float

// pipelineKey identifies a render pipeline. Pipelines depend on the target
// formats, so one pass may own several.
type pipelineKey struct {
	pass    warp.PassID
	program program
	targets [2]gputypes.TextureFormat
}

// pipelineCache owns the shader modules, the shared layouts and every render
// pipeline created so far. It is not safe for concurrent use; the backend
// serializes access.
type pipelineCache struct {
	device hal.Device

	sources    [warp.NumPasses]string
	modules    [warp.NumPasses]hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  map[pipelineKey]hal.RenderPipeline
}

func newPipelineCache(device hal.Device, sources [warp.NumPasses]string) (*pipelineCache, error) {
	c := &pipelineCache{
		device:    device,
		sources:   sources,
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}

	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}}
	for i := 1; i <= numTextureBindings; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i), //nolint:gosec // G115: small constant range
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "reproject_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	c.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "reproject_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{c.bindLayout},
	})
	if err != nil {
		c.destroy()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	c.pipeLayout = pipeLayout
	return c, nil
}

// module returns the shader module of a pass, creating it on first use.
func (c *pipelineCache) module(pass warp.PassID) (hal.ShaderModule, error) {
	if m := c.modules[pass]; m != nil {
		return m, nil
	}
	m, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  pass.String() + "_shader",
		Source: hal.ShaderSource{WGSL: shaderSource(c.sources[pass])},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %v shader: %w", pass, err)
	}
	c.modules[pass] = m
	return m, nil
}

// pipeline returns the render pipeline for one draw of pass into targets.
func (c *pipelineCache) pipeline(pass warp.PassID, prog program, targets []gputypes.TextureFormat) (hal.RenderPipeline, error) {
	key := pipelineKey{pass: pass, program: prog}
	copy(key.targets[:], targets)
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	module, err := c.module(pass)
	if err != nil {
		return nil, err
	}

	colorTargets := make([]gputypes.ColorTargetState, len(targets))
	for i, f := range targets {
		colorTargets[i] = gputypes.ColorTargetState{Format: f, WriteMask: gputypes.ColorWriteMaskAll}
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("%v_%s_pipeline", pass, prog.fragment),
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: prog.vertex,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: prog.fragment,
			Targets:    colorTargets,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: prog.topology,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if prog.depth {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: prog.depthWrite,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}

	p, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("create %v pipeline: %w", pass, err)
	}
	c.pipelines[key] = p
	return p, nil
}

// count returns the number of cached pipelines.
func (c *pipelineCache) count() int { return len(c.pipelines) }

func (c *pipelineCache) destroy() {
	for k, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = nil
	}
	for i, m := range c.modules {
		if m != nil {
			c.device.DestroyShaderModule(m)
			c.modules[i] = nil
		}
	}
}
