// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package reproject

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/reproject/cadence"
	"github.com/gogpu/reproject/internal/refstore"
	"github.com/gogpu/reproject/warp"
)

// RenderContext is the per-tick host state.
type RenderContext struct {
	// Width and Height are the size of every reference buffer.
	Width  int
	Height int

	// Camera is the camera of this tick.
	Camera warp.Camera

	// MotionDepth is the host motion-vector and depth buffer of the source
	// frame: rg motion in UV units, b device depth. It may be nil, in which
	// case motion and depth read as zero.
	MotionDepth warp.Buffer
}

// TickResult reports what a tick did.
type TickResult struct {
	Classification cadence.Classification
	Mode           OptimizationMode
	Technique      Technique

	// Presented is false when the destination was left untouched; the host
	// decides whether to repeat its last frame.
	Presented bool
}

// Stats counts ticks since the renderer was created.
type Stats struct {
	Ticks           uint64
	Errors          uint64
	Classifications map[cadence.Classification]uint64
	LiveBuffers     int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger. By default the renderer logs through
// the package [Logger].
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// Renderer drives temporal reprojection one tick at a time.
//
// It owns the reference frame set, allocated through its backend, and the
// frame cadence. All methods are safe for concurrent use; ticks are
// serialized.
type Renderer struct {
	mu sync.Mutex

	backend  warp.Backend
	store    *refstore.Store
	clock    cadence.Evaluator
	settings Settings
	logger   *slog.Logger

	// previous is the camera pose captured with the reference frame.
	previous warp.CameraPose
	lastMode OptimizationMode
	width    int
	height   int

	ticks           uint64
	errors          uint64
	classifications [3]uint64
	closed          bool
}

// NewRenderer creates a renderer allocating and executing passes on
// backend. The settings must be valid.
func NewRenderer(backend warp.Backend, settings Settings, opts ...Option) (*Renderer, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrConfiguration)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		backend:  backend,
		store:    refstore.New(backend),
		settings: settings,
		previous: warp.IdentityCamera().Pose(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastMode, _ = settings.Mode()
	propagateLogger(backend, r.log())
	return r, nil
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return Logger()
}

// Settings returns the current settings.
func (r *Renderer) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// SetSettings replaces the settings used from the next tick on. Settings are
// validated when a tick runs, so a tick with invalid settings fails with
// [ErrConfiguration] and changes nothing.
func (r *Renderer) SetSettings(s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
}

// Render runs one tick: it classifies the tick, updates the reference frame
// set and writes dst unless the tick presents nothing. dt is the time in
// seconds elapsed during this tick, counted towards the next one.
//
// Configuration errors abort the tick before any buffer changes, though dt
// is still counted. Allocation
// and pass errors abort it too; the reference frame set keeps the buffers it
// held before the failing step and every buffer allocated by that step is
// released.
func (r *Renderer) Render(src, dst warp.Buffer, ctx RenderContext, dt float64) (TickResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return TickResult{}, ErrClosed
	}
	res, err := r.render(src, dst, ctx, dt)
	if err != nil {
		r.errors++
		return res, err
	}
	r.ticks++
	r.classifications[res.Classification]++
	return res, nil
}

func (r *Renderer) render(src, dst warp.Buffer, ctx RenderContext, dt float64) (TickResult, error) {
	if src == nil || dst == nil {
		return TickResult{}, fmt.Errorf("%w: nil source or destination", ErrInvalidFrame)
	}
	if ctx.Width <= 0 || ctx.Height <= 0 {
		return TickResult{}, fmt.Errorf("%w: render context %dx%d", ErrInvalidFrame, ctx.Width, ctx.Height)
	}

	// The clock advances on every tick, even one whose settings are invalid.
	class, err := r.clock.Classify(dt, r.settings.Cadence())
	if err != nil {
		return TickResult{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	mode, err := r.settings.Mode()
	if err != nil {
		return TickResult{}, err
	}
	technique, err := r.settings.Technique()
	if err != nil {
		return TickResult{}, err
	}
	res := TickResult{Classification: class, Mode: mode, Technique: technique}

	r.prepare(mode, ctx)

	t := &tick{
		r:         r,
		src:       src,
		dst:       dst,
		ctx:       ctx,
		technique: technique,
		current:   ctx.Camera.Pose(),
	}
	p := dispatch[mode][class]
	for _, step := range p.steps {
		if err := step(t); err != nil {
			return res, err
		}
	}
	res.Presented = p.presents
	r.log().Debug("reproject: tick",
		"class", class.String(),
		"mode", mode.String(),
		"technique", technique.String(),
		"presented", res.Presented,
		"live", r.store.Live())
	return res, nil
}

// prepare drops reference buffers the tick cannot use: every buffer on a
// resize or when switching to pass-through, and the reprojected frame when
// leaving latency reduction.
func (r *Renderer) prepare(mode OptimizationMode, ctx RenderContext) {
	if !r.store.Fits(ctx.Width, ctx.Height) {
		r.log().Info("reproject: render context resized, dropping reference frame",
			"from_width", r.width, "from_height", r.height,
			"width", ctx.Width, "height", ctx.Height)
		r.store.Reset()
	}
	r.width, r.height = ctx.Width, ctx.Height

	if mode == r.lastMode {
		return
	}
	r.log().Info("reproject: optimization mode switched", "from", r.lastMode.String(), "to", mode.String())
	switch mode {
	case OptimizationNone:
		r.store.Reset()
	case FrameGeneration:
		r.store.ReleaseRole(refstore.Reprojected)
	}
	r.lastMode = mode
}

// Reset releases the reference frame set and re-arms the cadence, so the
// next tick is Simulated.
func (r *Renderer) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.store.Reset()
	r.clock.Reset()
	r.previous = warp.IdentityCamera().Pose()
	r.log().Info("reproject: renderer reset")
	return nil
}

// Close releases the reference frame set. Later calls return [ErrClosed].
// The backend is not closed.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.store.Reset()
	r.closed = true
	return nil
}

// Stats returns tick counters and the number of live reference buffers.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		Ticks:           r.ticks,
		Errors:          r.errors,
		Classifications: make(map[cadence.Classification]uint64, len(r.classifications)),
		LiveBuffers:     r.store.Live(),
	}
	for c, n := range r.classifications {
		s.Classifications[cadence.Classification(c)] = n
	}
	return s
}

// Cadence returns the cadence accumulators, for tracing.
func (r *Renderer) Cadence() cadence.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.State()
}

// IsAllocationError reports whether err is a buffer allocation failure. The
// host should stop rendering after one.
func IsAllocationError(err error) bool { return errors.Is(err, warp.ErrAllocation) }
