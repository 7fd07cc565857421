// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software is the CPU reprojection backend.
//
// Buffers are float32 RGBA [Image] values and every pass, including the four
// reprojection techniques, is implemented in Go. Gather passes run on a
// row-parallel worker pool; the forward scatter runs on the calling
// goroutine because of its depth test.
//
// The backend is the reference implementation for tests and for hosts
// without a GPU. It is safe for concurrent use, but the passes of one frame
// are expected to be issued in order by a single orchestrator.
package software

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/reproject/internal/memory"
	"github.com/gogpu/reproject/internal/parallel"
	"github.com/gogpu/reproject/warp"
)

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
	workers  int
	logger   *slog.Logger
}

// WithMemoryBudget limits the memory of allocated images. Allocations past
// the budget fail with [warp.ErrAllocation].
func WithMemoryBudget(megabytes int) Option {
	return func(o *options) { o.budgetMB = megabytes }
}

// WithWorkers sets the number of pass workers. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger used by the backend.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Backend implements [warp.Backend] on the CPU.
type Backend struct {
	mem    *memory.Manager
	pool   *parallel.Pool
	logger atomic.Pointer[slog.Logger]

	invocations [warp.NumPasses]atomic.Uint64
	closed      atomic.Bool
}

// New creates a software backend.
func New(opts ...Option) *Backend {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	b := &Backend{
		mem:  memory.NewManager(memory.Config{MaxMemoryMB: o.budgetMB}),
		pool: parallel.NewPool(o.workers),
	}
	b.SetLogger(o.logger)
	b.log().Info("software: backend created",
		"workers", b.pool.Workers(),
		"budget", b.mem.Stats().TotalBytes)
	return b
}

// SetLogger sets the logger. Nil disables logging.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	b.logger.Store(l)
}

func (b *Backend) log() *slog.Logger { return b.logger.Load() }

// Allocate implements [warp.Allocator].
func (b *Backend) Allocate(desc warp.BufferDesc) (warp.Buffer, error) {
	if b.closed.Load() {
		return nil, fmt.Errorf("%w: software backend closed", warp.ErrAllocation)
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", warp.ErrAllocation, err)
	}

	img := NewImage(desc.Width, desc.Height, desc.Format, desc.Label)
	img.owner = b
	if err := b.mem.Reserve(img, desc.SizeBytes()); err != nil {
		return nil, fmt.Errorf("%w: %s %dx%d: %w", warp.ErrAllocation, desc.Label, desc.Width, desc.Height, err)
	}
	b.log().Debug("software: allocate", "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return img, nil
}

// Release implements [warp.Allocator]. Caller-owned images, foreign buffers
// and released images are ignored.
func (b *Backend) Release(buf warp.Buffer) {
	img, ok := buf.(*Image)
	if !ok || img == nil || img.owner != b {
		return
	}
	if !img.released.CompareAndSwap(false, true) {
		return
	}
	b.mem.Free(img)
	img.pix = nil
	b.log().Debug("software: release", "label", img.label)
}

// Invoke implements [warp.Invoker].
func (b *Backend) Invoke(pass warp.PassID, bind warp.Bindings, out ...warp.Buffer) error {
	if b.closed.Load() {
		return fmt.Errorf("%w: software backend closed", warp.ErrInvocation)
	}
	if err := warp.CheckOutputs(pass, out); err != nil {
		return err
	}
	if err := warp.Requires(pass, bind); err != nil {
		return err
	}

	in, err := b.resolve(bind)
	if err != nil {
		return fmt.Errorf("%v: %w", pass, err)
	}
	dst := make([]*Image, len(out))
	for i, o := range out {
		img, err := b.image(o)
		if err != nil {
			return fmt.Errorf("%v output %d: %w", pass, i, err)
		}
		if in.aliases(img) {
			return fmt.Errorf("%w: %v output %s is also an input", warp.ErrInvocation, pass, img.label)
		}
		dst[i] = img
	}

	switch pass {
	case warp.PassDisplay:
		b.copyPass(in.source, dst[0])
	case warp.PassDisplayPrevious:
		b.copyPass(in.prevColor, dst[0])
	case warp.PassInitialize:
		b.copyPass(in.source, dst[0])
		b.copyPass(in.sourceMD, dst[1])
	case warp.PassResetMotionVectorHistory:
		dst[0].Fill([4]float32{})
	case warp.PassUpdateMotionVectorHistory:
		b.updateHistory(in, dst[0])
	case warp.PassOrientationalTimewarp:
		b.orientational(in, dst[0])
	case warp.PassPositionalTimewarpBackward:
		b.positionalBackward(in, dst[0])
	case warp.PassPositionalTimewarpForward:
		b.positionalForward(in, dst[0])
	case warp.PassAccurateSpacewarp:
		b.spacewarp(in, dst[0])
	default:
		return fmt.Errorf("%w: %v", warp.ErrUnsupportedPass, pass)
	}

	b.invocations[pass].Add(1)
	b.log().Debug("software: pass", "pass", pass.String(), "width", dst[0].width, "height", dst[0].height)
	return nil
}

// image checks that buf is a live Image usable by this backend.
func (b *Backend) image(buf warp.Buffer) (*Image, error) {
	img, ok := buf.(*Image)
	if !ok || img == nil {
		return nil, fmt.Errorf("%w: %T", warp.ErrForeignBuffer, buf)
	}
	if img.owner != nil && img.owner != b {
		return nil, fmt.Errorf("%w: %s", warp.ErrForeignBuffer, img.label)
	}
	if img.Released() {
		return nil, fmt.Errorf("%w: %s", warp.ErrReleasedBuffer, img.label)
	}
	return img, nil
}

// inputs are the resolved bindings of one pass.
type inputs struct {
	source    *Image
	sourceMD  *Image
	prevColor *Image
	prevMD    *Image
	history   *Image

	previous warp.CameraPose
	current  warp.CameraPose
	params   warp.Params
}

func (in *inputs) aliases(img *Image) bool {
	return img == in.source || img == in.sourceMD || img == in.prevColor || img == in.prevMD || img == in.history
}

func (b *Backend) resolve(bind warp.Bindings) (*inputs, error) {
	in := &inputs{previous: bind.Previous, current: bind.Current, params: bind.Params}
	slots := []struct {
		buf  warp.Buffer
		dst  **Image
		name string
	}{
		{bind.Source, &in.source, "source"},
		{bind.SourceMotionDepth, &in.sourceMD, "source motion-depth"},
		{bind.PreviousColor, &in.prevColor, "reference color"},
		{bind.PreviousMotionDepth, &in.prevMD, "reference motion-depth"},
		{bind.MotionHistory, &in.history, "motion history"},
	}
	for _, s := range slots {
		if s.buf == nil {
			continue
		}
		img, err := b.image(s.buf)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = img
	}
	return in, nil
}

// Stats is a snapshot of backend usage.
type Stats struct {
	Memory      memory.Stats
	Invocations map[warp.PassID]uint64
}

// Stats returns memory usage and per-pass invocation counts.
func (b *Backend) Stats() Stats {
	s := Stats{Memory: b.mem.Stats(), Invocations: make(map[warp.PassID]uint64)}
	for p := range b.invocations {
		if n := b.invocations[p].Load(); n > 0 {
			s.Invocations[warp.PassID(p)] = n
		}
	}
	return s
}

// Close releases every image still allocated and stops the workers. Later
// calls fail; Close is safe to call more than once.
func (b *Backend) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	for _, h := range b.mem.Close() {
		if img, ok := h.(*Image); ok {
			img.released.Store(true)
			img.pix = nil
		}
	}
	b.pool.Close()
	b.log().Info("software: backend closed")
}

var _ warp.Backend = (*Backend)(nil)
