package wgpu

import (
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/reproject/warp"
	"github.com/gogpu/wgpu/hal"
)

// Texture is a GPU texture and its default view.
//
// Textures created by [Backend.Allocate] are owned by the backend and
// destroyed by [Backend.Release]. Textures created by [WrapTexture] belong to
// the host and are never destroyed by the backend.
type Texture struct {
	texture hal.Texture
	view    hal.TextureView
	width   int
	height  int
	format  warp.Format
	label   string

	owner    *Backend
	released atomic.Bool

	// usage is the last usage recorded in a barrier. Guarded by the
	// backend mutex.
	usage gputypes.TextureUsage
}

// WrapTexture wraps a host texture for use as a pass input or output. The
// texture must have been created with TextureBinding usage to be read and
// RenderAttachment usage to be written.
func WrapTexture(tex hal.Texture, view hal.TextureView, width, height int, format warp.Format, label string) *Texture {
	return &Texture{
		texture: tex,
		view:    view,
		width:   width,
		height:  height,
		format:  format,
		label:   label,
	}
}

// Width implements [warp.Buffer].
func (t *Texture) Width() int { return t.width }

// Height implements [warp.Buffer].
func (t *Texture) Height() int { return t.height }

// Format implements [warp.Buffer].
func (t *Texture) Format() warp.Format { return t.format }

// Label implements [warp.Buffer].
func (t *Texture) Label() string { return t.label }

// Released reports whether the owning backend has destroyed the texture.
func (t *Texture) Released() bool { return t.released.Load() }

// HalTexture returns the underlying HAL texture.
func (t *Texture) HalTexture() hal.Texture { return t.texture }

// HalView returns the default view of the texture.
func (t *Texture) HalView() hal.TextureView { return t.view }

// textureFormat converts a buffer format to the HAL texture format.
func textureFormat(f warp.Format) gputypes.TextureFormat {
	switch f {
	case warp.FormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float
	case warp.FormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm
	case warp.FormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatRGBA16Float
	}
}

// referenceUsage is the usage of every allocated texture: it is written by
// one pass and read by later ones.
const referenceUsage = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment

var _ warp.Buffer = (*Texture)(nil)
