// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/reproject/internal/memory"
	"github.com/gogpu/reproject/warp"
	"github.com/gogpu/wgpu/hal"
)

// fenceTimeout bounds the wait for one pass.
const fenceTimeout = 5 * time.Second

// ErrNoHAL is returned by [NewFromProvider] when the provider does not
// expose HAL device and queue objects.
var ErrNoHAL = errors.New("wgpu: provider does not expose HAL types")

// ErrFenceTimeout is returned when a pass does not finish within the fence
// timeout.
var ErrFenceTimeout = errors.New("wgpu: GPU fence wait timed out")

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Option configures a Backend.
type Option func(*options)

type options struct {
	budgetMB int
	logger   *slog.Logger
	shaders  map[warp.PassID]string
}

// WithMemoryBudget limits the memory of allocated textures.
func WithMemoryBudget(megabytes int) Option {
	return func(o *options) { o.budgetMB = megabytes }
}

// WithLogger sets the logger used by the backend.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTechniqueShader replaces the WGSL body of a reprojection technique.
// The body is appended to the shared prelude and must define the entry
// points of the built-in shader it replaces: fs_main for the gather
// techniques, vs_scatter, fs_scatter, vs_fill and fs_fill for the forward
// positional timewarp. [New] rejects bodies that do not compile.
func WithTechniqueShader(pass warp.PassID, wgsl string) Option {
	return func(o *options) {
		if o.shaders == nil {
			o.shaders = make(map[warp.PassID]string)
		}
		o.shaders[pass] = wgsl
	}
}

// Backend implements [warp.Backend] on a HAL device.
type Backend struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	mem    *memory.Manager
	cache  *pipelineCache

	// zero is bound to every unset input.
	zero *Texture

	logger      atomic.Pointer[slog.Logger]
	invocations [warp.NumPasses]atomic.Uint64
	closed      bool
}

// New creates a backend on device and queue. The backend does not take
// ownership of either.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: nil device or queue")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sources := passShaders
	for pass, body := range o.shaders {
		if !pass.IsTechnique() {
			return nil, fmt.Errorf("%w: %v is not a technique", warp.ErrUnsupportedPass, pass)
		}
		if err := validateShader(pass.String(), shaderSource(body)); err != nil {
			return nil, err
		}
		sources[pass] = body
	}

	cache, err := newPipelineCache(device, sources)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
	}
	b := &Backend{
		device: device,
		queue:  queue,
		mem:    memory.NewManager(memory.Config{MaxMemoryMB: o.budgetMB}),
		cache:  cache,
	}
	b.SetLogger(o.logger)

	zero, err := b.createTexture(warp.BufferDesc{Width: 1, Height: 1, Format: warp.DefaultFormat, Label: "reproject_zero"},
		gputypes.TextureUsageTextureBinding)
	if err != nil {
		cache.destroy()
		return nil, fmt.Errorf("wgpu: %w", err)
	}
	b.zero = zero

	b.log().Info("wgpu: backend created", "budget", b.mem.Stats().TotalBytes, "custom_shaders", len(o.shaders))
	return b, nil
}

// NewFromProvider creates a backend on the device shared by a host
// provider. The provider must expose HalDevice() and HalQueue() returning
// the HAL device and queue.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return New(device, queue, opts...)
}

// SetLogger sets the logger. Nil disables logging.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	b.logger.Store(l)
}

func (b *Backend) log() *slog.Logger { return b.logger.Load() }

func (b *Backend) createTexture(desc warp.BufferDesc, usage gputypes.TextureUsage) (*Texture, error) {
	format := textureFormat(desc.Format)
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),  //nolint:gosec // G115: validated positive
			Height:             uint32(desc.Height), //nolint:gosec // G115: validated positive
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", desc.Label, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view %s: %w", desc.Label, err)
	}
	t := WrapTexture(tex, view, desc.Width, desc.Height, desc.Format, desc.Label)
	t.owner = b
	return t, nil
}

func (b *Backend) destroyTexture(t *Texture) {
	if t.view != nil {
		b.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.texture != nil {
		b.device.DestroyTexture(t.texture)
		t.texture = nil
	}
}

// Allocate implements [warp.Allocator].
func (b *Backend) Allocate(desc warp.BufferDesc) (warp.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", warp.ErrAllocation, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("%w: wgpu backend closed", warp.ErrAllocation)
	}

	t, err := b.createTexture(desc, referenceUsage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", warp.ErrAllocation, err)
	}
	if err := b.mem.Reserve(t, desc.SizeBytes()); err != nil {
		b.destroyTexture(t)
		return nil, fmt.Errorf("%w: %s %dx%d: %w", warp.ErrAllocation, desc.Label, desc.Width, desc.Height, err)
	}
	b.log().Debug("wgpu: allocate", "label", desc.Label, "width", desc.Width, "height", desc.Height,
		"format", desc.Format.String())
	return t, nil
}

// Release implements [warp.Allocator]. Wrapped host textures, foreign
// buffers and released textures are ignored.
func (b *Backend) Release(buf warp.Buffer) {
	t, ok := buf.(*Texture)
	if !ok || t == nil || t.owner != b {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !t.released.CompareAndSwap(false, true) {
		return
	}
	b.mem.Free(t)
	b.destroyTexture(t)
	b.log().Debug("wgpu: release", "label", t.label)
}

// Invoke implements [warp.Invoker]. It returns once the GPU has finished
// the pass.
func (b *Backend) Invoke(pass warp.PassID, bind warp.Bindings, out ...warp.Buffer) error {
	if err := warp.CheckOutputs(pass, out); err != nil {
		return err
	}
	if err := warp.Requires(pass, bind); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("%w: wgpu backend closed", warp.ErrInvocation)
	}

	inputs, err := b.resolve(bind)
	if err != nil {
		return fmt.Errorf("%v: %w", pass, err)
	}
	targets := make([]*Texture, len(out))
	for i, o := range out {
		t, err := b.texture(o)
		if err != nil {
			return fmt.Errorf("%v output %d: %w", pass, i, err)
		}
		for _, in := range inputs {
			if in == t {
				return fmt.Errorf("%w: %v output %s is also an input", warp.ErrInvocation, pass, t.label)
			}
		}
		targets[i] = t
	}

	if err := b.encode(pass, bind, inputs, targets); err != nil {
		return fmt.Errorf("%w: %v: %w", warp.ErrInvocation, pass, err)
	}
	b.invocations[pass].Add(1)
	b.log().Debug("wgpu: pass", "pass", pass.String(), "width", targets[0].width, "height", targets[0].height)
	return nil
}

// texture checks that buf is a live Texture usable by this backend.
func (b *Backend) texture(buf warp.Buffer) (*Texture, error) {
	t, ok := buf.(*Texture)
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %T", warp.ErrForeignBuffer, buf)
	}
	if t.owner != nil && t.owner != b {
		return nil, fmt.Errorf("%w: %s", warp.ErrForeignBuffer, t.label)
	}
	if t.Released() {
		return nil, fmt.Errorf("%w: %s", warp.ErrReleasedBuffer, t.label)
	}
	return t, nil
}

// resolve returns the textures bound at bindings 1 to 5, with the zero
// texture standing in for unset inputs.
func (b *Backend) resolve(bind warp.Bindings) ([numTextureBindings]*Texture, error) {
	var inputs [numTextureBindings]*Texture
	slots := [numTextureBindings]struct {
		buf  warp.Buffer
		name string
	}{
		{bind.Source, "source"},
		{bind.SourceMotionDepth, "source motion-depth"},
		{bind.PreviousColor, "reference color"},
		{bind.PreviousMotionDepth, "reference motion-depth"},
		{bind.MotionHistory, "motion history"},
	}
	for i, s := range slots {
		if s.buf == nil {
			inputs[i] = b.zero
			continue
		}
		t, err := b.texture(s.buf)
		if err != nil {
			return inputs, fmt.Errorf("%s: %w", s.name, err)
		}
		inputs[i] = t
	}
	return inputs, nil
}

// Stats is a snapshot of backend usage.
type Stats struct {
	Memory      memory.Stats
	Invocations map[warp.PassID]uint64
	Pipelines   int
}

// Stats returns memory usage, per-pass invocation counts and the number of
// cached pipelines.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{Memory: b.mem.Stats(), Invocations: make(map[warp.PassID]uint64)}
	if b.cache != nil {
		s.Pipelines = b.cache.count()
	}
	for p := range b.invocations {
		if n := b.invocations[p].Load(); n > 0 {
			s.Invocations[warp.PassID(p)] = n
		}
	}
	return s
}

// Close destroys every texture still allocated and all pipelines. The
// device and queue are left alone. Close is safe to call more than once.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, h := range b.mem.Close() {
		if t, ok := h.(*Texture); ok {
			t.released.Store(true)
			b.destroyTexture(t)
		}
	}
	b.destroyTexture(b.zero)
	b.cache.destroy()
	b.log().Info("wgpu: backend closed")
}

var _ warp.Backend = (*Backend)(nil)
