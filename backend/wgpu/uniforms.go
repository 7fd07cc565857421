package wgpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/reproject/warp"
)

// Uniform block layout, 16-byte aligned:
//
//	previous pose  208 bytes  position vec4, inverse view, inverse projection,
//	                          unjittered projection*view
//	current pose   208 bytes  same layout
//	params          16 bytes  step size factor, maximum step size,
//	                          fill out of screen, fill depth
//	extent          16 bytes  target width, target height, 0, 0
const (
	poseUniformSize = 16 + 3*64
	uniformSize     = 2*poseUniformSize + 16 + 16
)

// makeUniforms packs the pass uniforms for a target of the given size.
func makeUniforms(bind warp.Bindings, width, height int) []byte {
	buf := make([]byte, uniformSize)
	off := putPose(buf, 0, bind.Previous)
	off = putPose(buf, off, bind.Current)
	off = putFloats(buf, off,
		bind.Params.StepSizeFactor,
		bind.Params.MaximumStepSize,
		bind.Params.FillOutOfScreenOcclusion,
		bind.Params.FillDepthOcclusion)
	putFloats(buf, off, float32(width), float32(height), 0, 0)
	return buf
}

func putPose(buf []byte, off int, p warp.CameraPose) int {
	off = putFloats(buf, off, float32(p.Position.X), float32(p.Position.Y), float32(p.Position.Z), 1)
	for _, m := range []warp.Mat4{p.InverseView, p.InverseProjection, p.UnjitteredProjectionView} {
		f := m.Float32()
		off = putFloats(buf, off, f[:]...)
	}
	return off
}

func putFloats(buf []byte, off int, v ...float32) int {
	for _, f := range v {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
		off += 4
	}
	return off
}
