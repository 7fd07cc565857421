package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/reproject/warp"
	"github.com/gogpu/wgpu/hal"
)

// passResources are the per-invocation objects destroyed after the fence.
type passResources struct {
	uniformBuf hal.Buffer
	bindGroup  hal.BindGroup
	depthTex   hal.Texture
	depthView  hal.TextureView
}

func (b *Backend) destroyResources(r *passResources) {
	if r.bindGroup != nil {
		b.device.DestroyBindGroup(r.bindGroup)
	}
	if r.uniformBuf != nil {
		b.device.DestroyBuffer(r.uniformBuf)
	}
	if r.depthView != nil {
		b.device.DestroyTextureView(r.depthView)
	}
	if r.depthTex != nil {
		b.device.DestroyTexture(r.depthTex)
	}
}

func (b *Backend) buildResources(pass warp.PassID, bind warp.Bindings, inputs [numTextureBindings]*Texture, w, h int) (*passResources, error) {
	r := &passResources{}
	data := makeUniforms(bind, w, h)
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "reproject_uniform",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	r.uniformBuf = buf

	entries := make([]gputypes.BindGroupEntry, 0, 1+numTextureBindings)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  0,
		Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: uniformSize},
	})
	for i, t := range inputs {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1), //nolint:gosec // G115: small constant range
			Resource: gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()},
		})
	}
	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   pass.String() + "_bind",
		Layout:  b.cache.bindLayout,
		Entries: entries,
	})
	if err != nil {
		b.destroyResources(r)
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	r.bindGroup = bg

	if pass != warp.PassPositionalTimewarpForward {
		return r, nil
	}
	depthTex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: "reproject_scatter_depth",
		Size: hal.Extent3D{
			Width:              uint32(w), //nolint:gosec // G115: validated positive
			Height:             uint32(h), //nolint:gosec // G115: validated positive
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		b.destroyResources(r)
		return nil, fmt.Errorf("create depth texture: %w", err)
	}
	r.depthTex = depthTex
	depthView, err := b.device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
		Label: "reproject_scatter_depth_view",
	})
	if err != nil {
		b.destroyResources(r)
		return nil, fmt.Errorf("create depth view: %w", err)
	}
	r.depthView = depthView
	return r, nil
}

// encode records, submits and waits for one pass. The caller holds b.mu.
func (b *Backend) encode(pass warp.PassID, bind warp.Bindings, inputs [numTextureBindings]*Texture, targets []*Texture) error {
	w, h := targets[0].width, targets[0].height
	formats := make([]gputypes.TextureFormat, len(targets))
	for i, t := range targets {
		formats[i] = textureFormat(t.format)
	}

	progs := programs(pass, bind.Params)
	pipelines := make([]hal.RenderPipeline, len(progs))
	for i, prog := range progs {
		p, err := b.cache.pipeline(pass, prog, formats)
		if err != nil {
			return err
		}
		pipelines[i] = p
	}

	res, err := b.buildResources(pass, bind, inputs, w, h)
	if err != nil {
		return err
	}
	defer b.destroyResources(res)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: pass.String() + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(pass.String()); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	transition(encoder, targets, gputypes.TextureUsageRenderAttachment)
	for i, prog := range progs {
		load := gputypes.LoadOpClear
		if i > 0 {
			load = gputypes.LoadOpLoad
		}
		desc := &hal.RenderPassDescriptor{Label: pass.String() + "_pass"}
		for _, t := range targets {
			desc.ColorAttachments = append(desc.ColorAttachments, hal.RenderPassColorAttachment{
				View:       t.view,
				LoadOp:     load,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
			})
		}
		if prog.depth {
			desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
				View:            res.depthView,
				DepthLoadOp:     load,
				DepthStoreOp:    gputypes.StoreOpStore,
				DepthClearValue: 1.0,
			}
		}

		rp := encoder.BeginRenderPass(desc)
		rp.SetPipeline(pipelines[i])
		rp.SetBindGroup(0, res.bindGroup, nil)
		rp.Draw(vertexCount(prog, inputs), 1, 0, 0)
		rp.End()
	}
	transition(encoder, targets, gputypes.TextureUsageTextureBinding)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return waitResult(b.device.Wait(fence, 1, fenceTimeout))
}

// waitResult turns the outcome of a fence wait into an error.
func waitResult(ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrFenceTimeout, fenceTimeout)
	}
	return nil
}

// vertexCount is 3 for a fullscreen triangle and one point per reference
// pixel for the scatter.
func vertexCount(prog program, inputs [numTextureBindings]*Texture) uint32 {
	if prog.topology != gputypes.PrimitiveTopologyPointList {
		return 3
	}
	ref := inputs[2]
	return uint32(ref.width * ref.height) //nolint:gosec // G115: validated positive
}

// transition records a barrier moving every target to usage.
func transition(encoder hal.CommandEncoder, targets []*Texture, usage gputypes.TextureUsage) {
	barriers := make([]hal.TextureBarrier, 0, len(targets))
	for _, t := range targets {
		if t.usage == usage {
			continue
		}
		barriers = append(barriers, hal.TextureBarrier{
			Texture: t.texture,
			Usage:   hal.TextureUsageTransition{OldUsage: t.usage, NewUsage: usage},
		})
		t.usage = usage
	}
	if len(barriers) > 0 {
		encoder.TransitionTextures(barriers)
	}
}
