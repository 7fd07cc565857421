package software

import (
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"github.com/gogpu/reproject/warp"
)

// Image is a float32 RGBA buffer, four values per pixel, rows top to bottom.
//
// Images created by [Backend.Allocate] belong to that backend. Images
// created with [NewImage] or [FromImage] belong to the caller and are the
// usual source and destination frames.
type Image struct {
	width  int
	height int
	format warp.Format
	label  string
	pix    []float32

	owner    *Backend
	released atomic.Bool
}

// NewImage creates a caller-owned image cleared to zero.
func NewImage(width, height int, format warp.Format, label string) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		width:  width,
		height: height,
		format: format,
		label:  label,
		pix:    make([]float32, width*height*4),
	}
}

// FromImage converts img to a caller-owned RGBA8Unorm image.
func FromImage(img image.Image, label string) *Image {
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy(), warp.FormatRGBA8Unorm, label)
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			out.SetPixel(x, y, [4]float32{
				float32(c.R) / 0xffff,
				float32(c.G) / 0xffff,
				float32(c.B) / 0xffff,
				float32(c.A) / 0xffff,
			})
		}
	}
	return out
}

// Width implements [warp.Buffer].
func (m *Image) Width() int { return m.width }

// Height implements [warp.Buffer].
func (m *Image) Height() int { return m.height }

// Format implements [warp.Buffer].
func (m *Image) Format() warp.Format { return m.format }

// Label implements [warp.Buffer].
func (m *Image) Label() string { return m.label }

// Released reports whether the owning backend has released the image.
func (m *Image) Released() bool { return m.released.Load() }

// Pix returns the raw pixel values.
func (m *Image) Pix() []float32 { return m.pix }

// Pixel returns the value at (x, y). Out-of-range coordinates read zero.
func (m *Image) Pixel(x, y int) [4]float32 {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return [4]float32{}
	}
	i := (y*m.width + x) * 4
	return [4]float32{m.pix[i], m.pix[i+1], m.pix[i+2], m.pix[i+3]}
}

// SetPixel stores c at (x, y). Normalized formats clamp to [0, 1] and
// quantize to 8 bits per channel.
func (m *Image) SetPixel(x, y int, c [4]float32) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	if !m.format.Signed() {
		for k := range c {
			c[k] = quantize8(c[k])
		}
	}
	i := (y*m.width + x) * 4
	m.pix[i], m.pix[i+1], m.pix[i+2], m.pix[i+3] = c[0], c[1], c[2], c[3]
}

// Fill sets every pixel to c.
func (m *Image) Fill(c [4]float32) {
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			m.SetPixel(x, y, c)
		}
	}
}

func quantize8(v float32) float32 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return float32(math.Round(float64(v)*255)) / 255
}

// ColorModel implements [image.Image].
func (m *Image) ColorModel() color.Model { return color.NRGBA64Model }

// Bounds implements [image.Image].
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }

// At implements [image.Image]. Channels are clamped to [0, 1].
func (m *Image) At(x, y int) color.Color {
	p := m.Pixel(x, y)
	return color.NRGBA64{
		R: unit16(p[0]),
		G: unit16(p[1]),
		B: unit16(p[2]),
		A: unit16(p[3]),
	}
}

// ToNRGBA converts the image to an 8-bit [image.NRGBA].
func (m *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			p := m.Pixel(x, y)
			o := out.PixOffset(x, y)
			out.Pix[o+0] = unit8(p[0])
			out.Pix[o+1] = unit8(p[1])
			out.Pix[o+2] = unit8(p[2])
			out.Pix[o+3] = unit8(p[3])
		}
	}
	return out
}

func unit16(v float32) uint16 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(math.Round(float64(v) * 0xffff))
}

func unit8(v float32) uint8 {
	return uint8(unit16(v) >> 8)
}

var (
	_ warp.Buffer = (*Image)(nil)
	_ image.Image = (*Image)(nil)
)
