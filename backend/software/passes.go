package software

import (
	"math"

	"github.com/gogpu/reproject/warp"
)

const (
	// wEpsilon rejects clip positions at or behind the camera plane.
	wEpsilon = 1e-6

	// depthTolerance is the NDC depth difference above which a gathered
	// reference pixel counts as occluded.
	depthTolerance = 1e-2

	// minRows is the smallest row band handed to one worker.
	minRows = 16
)

// pixelUV returns the UV of the center of pixel (x, y).
func pixelUV(x, y, w, h int) (u, v float64) {
	return (float64(x) + 0.5) / float64(w), (float64(y) + 0.5) / float64(h)
}

func uvToNDC(u, v float64) (nx, ny float64) { return 2*u - 1, 1 - 2*v }

func ndcToUV(nx, ny float64) (u, v float64) { return (nx + 1) / 2, (1 - ny) / 2 }

// sample returns the texel of img nearest to (u, v). Outside the image it
// clamps to the edge when clamp is set and reports false otherwise. A nil
// image samples zero.
func sample(img *Image, u, v float64, clamp bool) ([4]float32, bool) {
	if img == nil || math.IsNaN(u) || math.IsNaN(v) {
		return [4]float32{}, false
	}
	inside := u >= 0 && u < 1 && v >= 0 && v < 1
	if !inside && !clamp {
		return [4]float32{}, false
	}
	x := texel(u, img.width)
	y := texel(v, img.height)
	return img.Pixel(x, y), true
}

func texel(u float64, n int) int {
	if u <= 0 {
		return 0
	}
	i := int(math.Floor(u * float64(n)))
	if i >= n {
		return n - 1
	}
	return i
}

// unproject returns the world position of NDC point (nx, ny, nz) as seen by
// pose.
func unproject(pose warp.CameraPose, nx, ny, nz float64) (warp.Vec3, bool) {
	v := pose.InverseProjection.MulVec4(warp.Vec4{X: nx, Y: ny, Z: nz, W: 1})
	if math.Abs(v.W) < wEpsilon {
		return warp.Vec3{}, false
	}
	view := warp.Vec4{X: v.X / v.W, Y: v.Y / v.W, Z: v.Z / v.W, W: 1}
	return pose.InverseView.MulVec4(view).XYZ(), true
}

// project returns the NDC position of world point p as seen by pose.
func project(pose warp.CameraPose, p warp.Vec3) (nx, ny, nz float64, ok bool) {
	c := pose.UnjitteredProjectionView.MulVec4(warp.Vec4{X: p.X, Y: p.Y, Z: p.Z, W: 1})
	if c.W < wEpsilon {
		return 0, 0, 0, false
	}
	return c.X / c.W, c.Y / c.W, c.Z / c.W, true
}

// gather runs fn for every pixel of dst on the worker pool.
func (b *Backend) gather(dst *Image, fn func(x, y int, u, v float64) [4]float32) {
	w, h := dst.width, dst.height
	b.pool.Rows(h, minRows, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				u, v := pixelUV(x, y, w, h)
				dst.SetPixel(x, y, fn(x, y, u, v))
			}
		}
	})
}

// copyPass resamples src into dst. A nil src clears dst.
func (b *Backend) copyPass(src, dst *Image) {
	if src == nil {
		dst.Fill([4]float32{})
		return
	}
	if src.width == dst.width && src.height == dst.height && src.format == dst.format {
		copy(dst.pix, src.pix)
		return
	}
	b.gather(dst, func(_, _ int, u, v float64) [4]float32 {
		c, _ := sample(src, u, v, true)
		return c
	})
}

// updateHistory adds the source motion to the installed history. Depth is
// replaced by the latest one and alpha counts the accumulated frames.
func (b *Backend) updateHistory(in *inputs, dst *Image) {
	b.gather(dst, func(_, _ int, u, v float64) [4]float32 {
		old, _ := sample(in.history, u, v, true)
		md, _ := sample(in.sourceMD, u, v, true)
		return [4]float32{old[0] + md[0], old[1] + md[1], md[2], old[3] + 1}
	})
}

// reference samples the reference color at (u, v), honoring the
// out-of-screen fill setting.
func reference(in *inputs, u, v float64) [4]float32 {
	c, _ := sample(in.prevColor, u, v, in.params.FillOutOfScreen())
	return c
}

// orientational rotates the view ray of every destination pixel into the
// reference camera, ignoring translation.
func (b *Backend) orientational(in *inputs, dst *Image) {
	cur, prev := in.current, in.previous
	b.gather(dst, func(_, _ int, u, v float64) [4]float32 {
		nx, ny := uvToNDC(u, v)
		far := cur.InverseProjection.MulVec4(warp.Vec4{X: nx, Y: ny, Z: 1, W: 1})
		if math.Abs(far.W) < wEpsilon {
			return [4]float32{}
		}
		dir := cur.InverseView.MulVec4(warp.Vec4{X: far.X / far.W, Y: far.Y / far.W, Z: far.Z / far.W})
		px, py, _, ok := project(prev, prev.Position.Add(dir.XYZ()))
		if !ok {
			return [4]float32{}
		}
		ru, rv := ndcToUV(px, py)
		return reference(in, ru, rv)
	})
}

// positionalBackward reconstructs every destination pixel in world space
// from the reference depth at the same position and gathers the reference
// color where it projects.
func (b *Backend) positionalBackward(in *inputs, dst *Image) {
	cur, prev := in.current, in.previous
	fillDepth := in.params.FillDepth()
	b.gather(dst, func(_, _ int, u, v float64) [4]float32 {
		md, _ := sample(in.prevMD, u, v, true)
		nx, ny := uvToNDC(u, v)
		world, ok := unproject(cur, nx, ny, float64(md[2]))
		if !ok {
			return [4]float32{}
		}
		px, py, pz, ok := project(prev, world)
		if !ok {
			return [4]float32{}
		}
		ru, rv := ndcToUV(px, py)
		stored, inside := sample(in.prevMD, ru, rv, false)
		if inside && math.Abs(float64(stored[2])-pz) > depthTolerance {
			if fillDepth {
				c, _ := sample(in.prevColor, u, v, true)
				return c
			}
			return [4]float32{}
		}
		return reference(in, ru, rv)
	})
}

// positionalForward scatters every reference pixel to its position in the
// current view. The nearest pixel wins; pixels nothing lands on are
// disocclusion holes.
func (b *Backend) positionalForward(in *inputs, dst *Image) {
	w, h := dst.width, dst.height
	rw, rh := in.prevColor.width, in.prevColor.height
	zbuf := make([]float64, w*h)
	for i := range zbuf {
		zbuf[i] = math.Inf(1)
	}
	dst.Fill([4]float32{})

	for ry := 0; ry < rh; ry++ {
		for rx := 0; rx < rw; rx++ {
			u, v := pixelUV(rx, ry, rw, rh)
			md, _ := sample(in.prevMD, u, v, true)
			nx, ny := uvToNDC(u, v)
			world, ok := unproject(in.previous, nx, ny, float64(md[2]))
			if !ok {
				continue
			}
			cx, cy, cz, ok := project(in.current, world)
			if !ok {
				continue
			}
			cu, cv := ndcToUV(cx, cy)
			if !(cu >= 0 && cu < 1 && cv >= 0 && cv < 1) {
				continue
			}
			x, y := texel(cu, w), texel(cv, h)
			if i := y*w + x; cz < zbuf[i] {
				zbuf[i] = cz
				dst.SetPixel(x, y, in.prevColor.Pixel(rx, ry))
			}
		}
	}

	if !in.params.FillDepth() {
		return
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !math.IsInf(zbuf[y*w+x], 1) {
				continue
			}
			u, v := pixelUV(x, y, w, h)
			c, _ := sample(in.prevColor, u, v, true)
			dst.SetPixel(x, y, c)
		}
	}
}

// spacewarp steps back along the accumulated motion of every destination
// pixel and gathers the reference color there.
func (b *Backend) spacewarp(in *inputs, dst *Image) {
	factor := float64(in.params.StepSizeFactor)
	maxStep := float64(in.params.MaximumStepSize)
	b.gather(dst, func(_, _ int, u, v float64) [4]float32 {
		hist, _ := sample(in.history, u, v, true)
		du, dv := float64(hist[0])*factor, float64(hist[1])*factor
		if l := math.Hypot(du, dv); maxStep > 0 && l > maxStep {
			du, dv = du*maxStep/l, dv*maxStep/l
		}
		return reference(in, u-du, v-dv)
	})
}
