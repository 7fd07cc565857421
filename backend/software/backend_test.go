package software

import (
	"errors"
	"math"
	"testing"

	"github.com/gogpu/reproject/backend"
	"github.com/gogpu/reproject/warp"
	"github.com/gogpu/reproject/warp/warptest"
)

const size = 16

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := New(append([]Option{WithWorkers(2)}, opts...)...)
	t.Cleanup(b.Close)
	return b
}

// gradient returns an image with R = x/w, G = y/h and opaque alpha.
func gradient(w, h int) *Image {
	img := NewImage(w, h, warp.FormatRGBA32Float, "gradient")
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetPixel(x, y, [4]float32{float32(x) / float32(w), float32(y) / float32(h), 0, 1})
		}
	}
	return img
}

func column(c [4]float32, w int) int {
	return int(math.Round(float64(c[0]) * float64(w)))
}

func alloc(t *testing.T, b *Backend, label string) *Image {
	t.Helper()
	buf, err := b.Allocate(warp.BufferDesc{Width: size, Height: size, Label: label})
	if err != nil {
		t.Fatalf("Allocate(%s) error = %v", label, err)
	}
	return buf.(*Image)
}

func TestAllocateBudget(t *testing.T) {
	b := newTestBackend(t, WithMemoryBudget(1))
	desc := warp.BufferDesc{Width: 256, Height: 256, Format: warp.FormatRGBA16Float}

	first, err := b.Allocate(desc)
	if err != nil {
		t.Fatalf("first Allocate() error = %v", err)
	}
	if _, err := b.Allocate(desc); err != nil {
		t.Fatalf("second Allocate() error = %v", err)
	}
	if _, err := b.Allocate(desc); !errors.Is(err, warp.ErrAllocation) {
		t.Fatalf("third Allocate() = %v, want ErrAllocation", err)
	}

	b.Release(first)
	b.Release(first)
	if _, err := b.Allocate(desc); err != nil {
		t.Errorf("Allocate() after release error = %v", err)
	}
	if got := b.Stats().Memory.BufferCount; got != 2 {
		t.Errorf("BufferCount = %d, want 2", got)
	}
}

func TestAllocateInvalid(t *testing.T) {
	b := newTestBackend(t)
	if _, err := b.Allocate(warp.BufferDesc{Width: -1, Height: 4}); !errors.Is(err, warp.ErrAllocation) {
		t.Errorf("Allocate() = %v, want ErrAllocation", err)
	}
}

func TestDisplayAndInitialize(t *testing.T) {
	b := newTestBackend(t)
	src := gradient(size, size)
	md := NewImage(size, size, warp.FormatRGBA32Float, "md")
	md.Fill([4]float32{0.25, -0.5, 0.8, 0})

	dst := NewImage(size, size, warp.FormatRGBA32Float, "dst")
	if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: src}, dst); err != nil {
		t.Fatalf("Display error = %v", err)
	}
	if dst.Pixel(5, 9) != src.Pixel(5, 9) {
		t.Errorf("Display pixel = %v, want %v", dst.Pixel(5, 9), src.Pixel(5, 9))
	}

	color, depth := alloc(t, b, "color"), alloc(t, b, "motion-depth")
	if err := b.Invoke(warp.PassInitialize, warp.Bindings{Source: src, SourceMotionDepth: md}, color, depth); err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
	if color.Pixel(3, 4) != src.Pixel(3, 4) {
		t.Errorf("Initialize color = %v, want %v", color.Pixel(3, 4), src.Pixel(3, 4))
	}
	if depth.Pixel(3, 4) != md.Pixel(3, 4) {
		t.Errorf("Initialize motion-depth = %v, want %v", depth.Pixel(3, 4), md.Pixel(3, 4))
	}

	if err := b.Invoke(warp.PassInitialize, warp.Bindings{Source: src}, color, depth); err != nil {
		t.Fatalf("Initialize without motion-depth error = %v", err)
	}
	if depth.Pixel(3, 4) != ([4]float32{}) {
		t.Errorf("motion-depth without host buffer = %v, want zero", depth.Pixel(3, 4))
	}
}

func TestDisplayResamples(t *testing.T) {
	b := newTestBackend(t)
	src := gradient(8, 8)
	dst := NewImage(16, 16, warp.FormatRGBA8Unorm, "surface")
	if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: src}, dst); err != nil {
		t.Fatal(err)
	}
	// Destination pixels 6 and 7 both sample source column 3.
	for _, x := range []int{6, 7} {
		if got := column(dst.Pixel(x, 0), 8); got != 3 {
			t.Errorf("dst column %d samples %d, want 3", x, got)
		}
	}
}

func TestMotionHistory(t *testing.T) {
	b := newTestBackend(t)
	src := gradient(size, size)
	md := NewImage(size, size, warp.FormatRGBA32Float, "md")
	md.Fill([4]float32{0.125, -0.0625, 0.5, 0})

	h0 := alloc(t, b, "h0")
	if err := b.Invoke(warp.PassResetMotionVectorHistory, warp.Bindings{Source: src}, h0); err != nil {
		t.Fatal(err)
	}
	h1 := alloc(t, b, "h1")
	if err := b.Invoke(warp.PassUpdateMotionVectorHistory, warp.Bindings{Source: src, SourceMotionDepth: md, MotionHistory: h0}, h1); err != nil {
		t.Fatal(err)
	}
	h2 := alloc(t, b, "h2")
	if err := b.Invoke(warp.PassUpdateMotionVectorHistory, warp.Bindings{Source: src, SourceMotionDepth: md, MotionHistory: h1}, h2); err != nil {
		t.Fatal(err)
	}

	want := [4]float32{0.25, -0.125, 0.5, 2}
	if got := h2.Pixel(7, 7); got != want {
		t.Errorf("history = %v, want %v", got, want)
	}

	if err := b.Invoke(warp.PassUpdateMotionVectorHistory, warp.Bindings{Source: src, SourceMotionDepth: md, MotionHistory: h2}, h2); !errors.Is(err, warp.ErrInvocation) {
		t.Errorf("in-place history update = %v, want ErrInvocation", err)
	}
}

func TestInvokeRejectsBadBuffers(t *testing.T) {
	b := newTestBackend(t)
	src := gradient(size, size)
	dst := NewImage(size, size, warp.FormatRGBA32Float, "dst")

	released := alloc(t, b, "color")
	b.Release(released)
	if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: released}, dst); !errors.Is(err, warp.ErrReleasedBuffer) {
		t.Errorf("reading released buffer = %v, want ErrReleasedBuffer", err)
	}
	if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: src}, released); !errors.Is(err, warp.ErrReleasedBuffer) {
		t.Errorf("writing released buffer = %v, want ErrReleasedBuffer", err)
	}

	foreign := warptest.NewHostBuffer(size, size, "foreign")
	if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: foreign}, dst); !errors.Is(err, warp.ErrForeignBuffer) {
		t.Errorf("foreign input = %v, want ErrForeignBuffer", err)
	}

	other := newTestBackend(t)
	theirs := alloc(t, other, "theirs")
	if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: theirs}, dst); !errors.Is(err, warp.ErrForeignBuffer) {
		t.Errorf("other backend's buffer = %v, want ErrForeignBuffer", err)
	}

	if err := b.Invoke(warp.PassDisplayPrevious, warp.Bindings{Source: src}, dst); !errors.Is(err, warp.ErrMissingInput) {
		t.Errorf("DisplayPrevious without reference = %v, want ErrMissingInput", err)
	}
}

func TestClose(t *testing.T) {
	b := New(WithWorkers(1))
	img := alloc(t, b, "color")
	b.Close()
	b.Close()

	if !img.Released() {
		t.Error("Close() left an image live")
	}
	if _, err := b.Allocate(warp.BufferDesc{Width: 1, Height: 1}); !errors.Is(err, warp.ErrAllocation) {
		t.Errorf("Allocate() after Close = %v, want ErrAllocation", err)
	}
	src := gradient(2, 2)
	if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: src}, NewImage(2, 2, warp.FormatRGBA32Float, "")); !errors.Is(err, warp.ErrInvocation) {
		t.Errorf("Invoke() after Close = %v, want ErrInvocation", err)
	}
}

func TestStatsInvocations(t *testing.T) {
	b := newTestBackend(t)
	src := gradient(4, 4)
	dst := NewImage(4, 4, warp.FormatRGBA32Float, "dst")
	for i := 0; i < 3; i++ {
		if err := b.Invoke(warp.PassDisplay, warp.Bindings{Source: src}, dst); err != nil {
			t.Fatal(err)
		}
	}
	if got := b.Stats().Invocations[warp.PassDisplay]; got != 3 {
		t.Errorf("Invocations[Display] = %d, want 3", got)
	}
}

func TestRegistered(t *testing.T) {
	b, err := backend.Open(backend.Software, backend.Config{Workers: 1, MemoryBudgetMB: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()
	if _, err := b.Allocate(warp.BufferDesc{Width: 1024, Height: 1024}); !errors.Is(err, warp.ErrAllocation) {
		t.Errorf("Allocate() past the configured budget = %v, want ErrAllocation", err)
	}
}
