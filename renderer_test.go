package reproject

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/reproject/cadence"
	"github.com/gogpu/reproject/internal/refstore"
	"github.com/gogpu/reproject/warp"
	"github.com/gogpu/reproject/warp/warptest"
)

const (
	frameSize = 8
	tick60    = 1.0 / 60
)

// frame is the host side of a test: source, destination and motion-depth.
type frame struct {
	src, dst, md *warptest.Buffer
}

func newFrame(w, h int) frame {
	return frame{
		src: warptest.NewHostBuffer(w, h, "src"),
		dst: warptest.NewHostBuffer(w, h, "dst"),
		md:  warptest.NewHostBuffer(w, h, "md"),
	}
}

func (f frame) context() RenderContext {
	return RenderContext{
		Width:       f.src.Width(),
		Height:      f.src.Height(),
		Camera:      warp.IdentityCamera(),
		MotionDepth: f.md,
	}
}

func settings(mode OptimizationMode, reprojection int) Settings {
	s := DefaultSettings()
	s.OptimizationOption = int(mode)
	s.ReprojectionMode = reprojection
	return s
}

func newTestRenderer(t *testing.T, s Settings) (*Renderer, *warptest.Backend) {
	t.Helper()
	b := warptest.New()
	r, err := NewRenderer(b, s)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r, b
}

func render(t *testing.T, r *Renderer, f frame, dt float64) TickResult {
	t.Helper()
	res, err := r.Render(f.src, f.dst, f.context(), dt)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return res
}

func id(buf warp.Buffer) int {
	if buf == nil {
		return 0
	}
	return buf.(*warptest.Buffer).ID()
}

// checkNoLeak verifies that every live backend buffer is installed.
func checkNoLeak(t *testing.T, r *Renderer, b *warptest.Backend) {
	t.Helper()
	if b.Live() != r.store.Live() {
		t.Errorf("backend holds %d buffers, store %d", b.Live(), r.store.Live())
	}
}

func writes(evs []warptest.Event, buf int) int {
	n := 0
	for _, ev := range evs {
		if ev.Op == warptest.OpInvoke && slices.Contains(ev.Writes, buf) {
			n++
		}
	}
	return n
}

func TestNewRendererInvalid(t *testing.T) {
	if _, err := NewRenderer(nil, DefaultSettings()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil backend = %v, want ErrConfiguration", err)
	}
	s := DefaultSettings()
	s.ExtrapolatedFramerate = 0
	if _, err := NewRenderer(warptest.New(), s); !errors.Is(err, ErrConfiguration) {
		t.Errorf("zero rate = %v, want ErrConfiguration", err)
	}
}

func TestRenderNonePassThrough(t *testing.T) {
	r, b := newTestRenderer(t, settings(OptimizationNone, 3))
	f := newFrame(frameSize, frameSize)

	for _, dt := range []float64{0, tick60, 0.5, 1e-4, 3} {
		b.Clear()
		res := render(t, r, f, dt)
		if !res.Presented {
			t.Errorf("dt=%v not presented", dt)
		}
		evs := b.Events()
		if len(evs) != 1 || evs[0].Pass != warp.PassDisplay || evs[0].Source != f.src.ID() || evs[0].Writes[0] != f.dst.ID() {
			t.Errorf("dt=%v events = %+v, want one Display src->dst", dt, evs)
		}
	}
	if b.Allocations() != 0 {
		t.Errorf("pass-through allocated %d buffers", b.Allocations())
	}
}

func TestRenderFrameGenerationSequence(t *testing.T) {
	r, b := newTestRenderer(t, settings(FrameGeneration, 4))
	f := newFrame(frameSize, frameSize)

	simulated := []warp.PassID{
		warp.PassInitialize,
		warp.PassResetMotionVectorHistory,
		warp.PassDisplay,
		warp.PassUpdateMotionVectorHistory,
	}
	extrapolated := []warp.PassID{
		warp.PassAccurateSpacewarp,
		warp.PassUpdateMotionVectorHistory,
	}

	for i := 0; i < 8; i++ {
		b.Clear()
		res := render(t, r, f, tick60)
		wantClass, wantPasses := cadence.Simulated, simulated
		if i%2 == 1 {
			wantClass, wantPasses = cadence.Extrapolated, extrapolated
		}
		if res.Classification != wantClass {
			t.Fatalf("tick %d = %v, want %v", i, res.Classification, wantClass)
		}
		if got := b.Passes(); !slices.Equal(got, wantPasses) {
			t.Errorf("tick %d passes = %v, want %v", i, got, wantPasses)
		}
		if writes(b.Events(), f.dst.ID()) != 1 {
			t.Errorf("tick %d wrote the destination %d times", i, writes(b.Events(), f.dst.ID()))
		}
		checkNoLeak(t, r, b)
	}

	// Color, motion-depth and history; never a reprojected frame.
	if got := r.store.Live(); got != 3 {
		t.Errorf("live reference buffers = %d, want 3", got)
	}
}

func TestRenderFrameGenerationRegular(t *testing.T) {
	s := settings(FrameGeneration, 1)
	s.SimulatedFramerate, s.ExtrapolatedFramerate = 20, 40
	r, b := newTestRenderer(t, s)
	f := newFrame(frameSize, frameSize)

	render(t, r, f, 1.0/120)
	b.Clear()
	res := render(t, r, f, 1.0/120)
	if res.Classification != cadence.Regular {
		t.Fatalf("classification = %v, want Regular", res.Classification)
	}
	if res.Presented {
		t.Error("Regular tick presented")
	}
	if got := b.Passes(); !slices.Equal(got, []warp.PassID{warp.PassUpdateMotionVectorHistory}) {
		t.Errorf("passes = %v, want history update only", got)
	}
	if n := writes(b.Events(), f.dst.ID()); n != 0 {
		t.Errorf("Regular tick wrote the destination %d times", n)
	}
}

func TestRenderTechniqueNoneNeverWarps(t *testing.T) {
	for _, mode := range []OptimizationMode{LatencyReduction, FrameGeneration} {
		t.Run(mode.String(), func(t *testing.T) {
			r, b := newTestRenderer(t, settings(mode, 0))
			f := newFrame(frameSize, frameSize)
			for i := 0; i < 12; i++ {
				render(t, r, f, tick60)
			}
			for _, p := range b.Passes() {
				if p.IsTechnique() {
					t.Fatalf("technique pass %v invoked with reprojection mode 0", p)
				}
			}
			if !slices.Contains(b.Passes(), warp.PassDisplayPrevious) {
				t.Error("reference color never copied forward")
			}
		})
	}
}

func TestRenderTechniqueSelection(t *testing.T) {
	for mode := 1; mode <= 4; mode++ {
		r, b := newTestRenderer(t, settings(FrameGeneration, mode))
		f := newFrame(frameSize, frameSize)
		render(t, r, f, tick60)
		b.Clear()
		render(t, r, f, tick60)

		want := warp.PassID(mode - 1)
		if got := b.Passes()[0]; got != want {
			t.Errorf("reprojection mode %d ran %v, want %v", mode, got, want)
		}
		if ev := b.Events()[0]; ev.Writes[0] != f.dst.ID() {
			t.Errorf("reprojection mode %d wrote buffer %d, want destination", mode, ev.Writes[0])
		}
	}
}

func TestRenderLatencyReduction(t *testing.T) {
	r, b := newTestRenderer(t, settings(LatencyReduction, 1))
	f := newFrame(frameSize, frameSize)

	// Without a reference the source seeds the reprojected frame.
	render(t, r, f, tick60)
	want := []warp.PassID{
		warp.PassDisplay,
		warp.PassDisplay,
		warp.PassInitialize,
		warp.PassResetMotionVectorHistory,
		warp.PassUpdateMotionVectorHistory,
	}
	if got := b.Passes(); !slices.Equal(got, want) {
		t.Fatalf("first tick passes = %v, want %v", got, want)
	}
	seeded := id(r.store.Get(refstore.Reprojected))

	b.Clear()
	res := render(t, r, f, tick60)
	if res.Classification != cadence.Extrapolated {
		t.Fatalf("second tick = %v, want Extrapolated", res.Classification)
	}
	evs := b.Events()
	if evs[0].Pass != warp.PassDisplay || evs[0].Source != seeded || evs[0].Writes[0] != f.dst.ID() {
		t.Errorf("extrapolated tick displayed %+v, want reprojected frame %d", evs[0], seeded)
	}

	oldColor := id(r.store.Get(refstore.Color))
	oldReprojected := seeded
	b.Clear()
	render(t, r, f, tick60)
	evs = b.Events()

	warped, displayed := -1, -1
	for i, ev := range evs {
		switch {
		case ev.Op == warptest.OpInvoke && ev.Pass == warp.PassOrientationalTimewarp:
			warped = i
			if !slices.Contains(ev.Reads, oldColor) {
				t.Errorf("timewarp read %v, want old reference color %d", ev.Reads, oldColor)
			}
		case warped >= 0 && ev.Op == warptest.OpInvoke && slices.Contains(ev.Writes, f.dst.ID()):
			displayed = i
			if ev.Source != evs[warped].Writes[0] {
				t.Errorf("displayed buffer %d, want freshly warped %d", ev.Source, evs[warped].Writes[0])
			}
		}
	}
	if warped < 0 || displayed < warped {
		t.Fatalf("warp at %d, display at %d", warped, displayed)
	}
	for i, ev := range evs {
		if ev.Op == warptest.OpRelease && (ev.Buffer == oldColor || ev.Buffer == oldReprojected) && i < displayed {
			t.Errorf("buffer %d released at event %d before the display at %d", ev.Buffer, i, displayed)
		}
	}
	checkNoLeak(t, r, b)
	if got := r.store.Live(); got != 4 {
		t.Errorf("live reference buffers = %d, want 4", got)
	}
}

func TestRenderRateChangeResyncs(t *testing.T) {
	s := settings(FrameGeneration, 2)
	r, _ := newTestRenderer(t, s)
	f := newFrame(frameSize, frameSize)

	if got := render(t, r, f, tick60).Classification; got != cadence.Simulated {
		t.Fatalf("first tick = %v", got)
	}
	s.ExtrapolatedFramerate = 90
	r.SetSettings(s)
	if got := render(t, r, f, tick60).Classification; got != cadence.Simulated {
		t.Errorf("tick after rate change = %v, want Simulated", got)
	}
	if got := r.Cadence().AccumulatedExtrapolated; got != tick60 {
		t.Errorf("extrapolated accumulator = %v, want %v", got, tick60)
	}
}

func TestRenderSimulatedFasterThanExtrapolated(t *testing.T) {
	s := settings(FrameGeneration, 3)
	s.SimulatedFramerate, s.ExtrapolatedFramerate = 60, 30
	r, _ := newTestRenderer(t, s)
	f := newFrame(frameSize, frameSize)
	for i := 0; i < 20; i++ {
		if got := render(t, r, f, tick60).Classification; got != cadence.Simulated {
			t.Fatalf("tick %d = %v, want Simulated", i, got)
		}
	}
}

func TestRenderConfigurationError(t *testing.T) {
	r, b := newTestRenderer(t, settings(FrameGeneration, 1))
	f := newFrame(frameSize, frameSize)
	render(t, r, f, tick60)
	b.Clear()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"optimization option", func(s *Settings) { s.OptimizationOption = 3 }},
		{"reprojection mode", func(s *Settings) { s.ReprojectionMode = -1 }},
		{"simulated rate", func(s *Settings) { s.SimulatedFramerate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings(FrameGeneration, 1)
			tt.mutate(&s)
			r.SetSettings(s)
			if _, err := r.Render(f.src, f.dst, f.context(), tick60); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Render() = %v, want ErrConfiguration", err)
			}
			if evs := b.Events(); len(evs) != 0 {
				t.Errorf("failed tick recorded %v", evs)
			}
		})
	}
	if got := r.Stats().Errors; got != uint64(len(tests)) {
		t.Errorf("Stats().Errors = %d, want %d", got, len(tests))
	}
}

func TestRenderForwardsParamsToEveryPass(t *testing.T) {
	for _, mode := range []OptimizationMode{OptimizationNone, LatencyReduction, FrameGeneration} {
		t.Run(mode.String(), func(t *testing.T) {
			s := settings(mode, 4)
			s.StepSizeFactor = 0.5
			s.MaximumStepSize = 3
			s.FillOutOfScreenOcclusion = 1
			s.FillDepthOcclusion = 1
			want := s.Params()

			r, b := newTestRenderer(t, s)
			f := newFrame(frameSize, frameSize)
			invokes := 0
			for i := 0; i < 8; i++ {
				render(t, r, f, 1.0/120)
				for _, ev := range b.Events() {
					if ev.Op != warptest.OpInvoke {
						continue
					}
					invokes++
					if ev.Params != want {
						t.Errorf("tick %d %v params = %+v, want %+v", i, ev.Pass, ev.Params, want)
					}
				}
				b.Clear()
			}
			if invokes == 0 {
				t.Fatal("no passes invoked")
			}
		})
	}
}

func TestRenderConfigurationErrorAdvancesClock(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"optimization option", func(s *Settings) { s.OptimizationOption = 7 }},
		{"reprojection mode", func(s *Settings) { s.ReprojectionMode = 9 }},
		{"simulated rate", func(s *Settings) { s.SimulatedFramerate = 0 }},
		{"extrapolated rate", func(s *Settings) { s.ExtrapolatedFramerate = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := settings(FrameGeneration, 1)
			r, _ := newTestRenderer(t, valid)
			f := newFrame(frameSize, frameSize)
			if got := render(t, r, f, tick60).Classification; got != cadence.Simulated {
				t.Fatalf("first tick = %v, want Simulated", got)
			}

			before := r.Cadence()
			bad := valid
			tt.mutate(&bad)
			r.SetSettings(bad)
			if _, err := r.Render(f.src, f.dst, f.context(), tick60); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Render() = %v, want ErrConfiguration", err)
			}
			after := r.Cadence()
			if after.AccumulatedSimulated != before.AccumulatedSimulated+tick60 ||
				after.AccumulatedExtrapolated != before.AccumulatedExtrapolated+tick60 {
				t.Errorf("accumulators %+v -> %+v, want both advanced by %v", before, after, tick60)
			}

			r.SetSettings(valid)
			if got := render(t, r, f, tick60).Classification; got != cadence.Simulated {
				t.Errorf("tick after the failed one = %v, want Simulated", got)
			}
		})
	}
}

func TestRenderInvalidFrame(t *testing.T) {
	r, _ := newTestRenderer(t, DefaultSettings())
	f := newFrame(frameSize, frameSize)
	if _, err := r.Render(nil, f.dst, f.context(), 0); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("nil source = %v, want ErrInvalidFrame", err)
	}
	ctx := f.context()
	ctx.Width = 0
	if _, err := r.Render(f.src, f.dst, ctx, 0); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("empty context = %v, want ErrInvalidFrame", err)
	}
}

func TestRenderAllocationFailureKeepsReference(t *testing.T) {
	s := settings(FrameGeneration, 1)
	s.SimulatedFramerate, s.ExtrapolatedFramerate = 60, 60
	r, b := newTestRenderer(t, s)
	f := newFrame(frameSize, frameSize)
	render(t, r, f, tick60)

	color := r.store.Get(refstore.Color)
	history := r.store.Get(refstore.MotionHistory)
	b.FailAllocate = warptest.FailAllocationAt(b.Allocations() + 1)

	_, err := r.Render(f.src, f.dst, f.context(), tick60)
	if !errors.Is(err, warp.ErrAllocation) || !IsAllocationError(err) {
		t.Fatalf("Render() = %v, want ErrAllocation", err)
	}
	if r.store.Get(refstore.Color) != color || r.store.Get(refstore.MotionHistory) != history {
		t.Error("failed tick replaced the reference frame")
	}
	if color.(*warptest.Buffer).Released() {
		t.Error("failed tick released the reference color")
	}
	checkNoLeak(t, r, b)

	b.FailAllocate = nil
	render(t, r, f, tick60)
	if !color.(*warptest.Buffer).Released() {
		t.Error("superseded reference color still live")
	}
	checkNoLeak(t, r, b)
}

func TestRenderInvocationFailureKeepsReference(t *testing.T) {
	for _, pass := range []warp.PassID{warp.PassInitialize, warp.PassResetMotionVectorHistory, warp.PassOrientationalTimewarp} {
		t.Run(pass.String(), func(t *testing.T) {
			s := settings(LatencyReduction, 1)
			s.SimulatedFramerate, s.ExtrapolatedFramerate = 60, 60
			r, b := newTestRenderer(t, s)
			f := newFrame(frameSize, frameSize)
			render(t, r, f, tick60)

			color := r.store.Get(refstore.Color)
			reprojected := r.store.Get(refstore.Reprojected)
			b.FailInvoke = warptest.FailPass(pass)
			if _, err := r.Render(f.src, f.dst, f.context(), tick60); !errors.Is(err, warp.ErrInvocation) {
				t.Fatalf("Render() = %v, want ErrInvocation", err)
			}
			if r.store.Get(refstore.Color) != color || r.store.Get(refstore.Reprojected) != reprojected {
				t.Error("failed tick replaced reference buffers")
			}
			checkNoLeak(t, r, b)
		})
	}
}

func TestRenderResize(t *testing.T) {
	r, b := newTestRenderer(t, settings(LatencyReduction, 2))
	small := newFrame(frameSize, frameSize)
	render(t, r, small, tick60)
	render(t, r, small, tick60)

	large := newFrame(2*frameSize, frameSize)
	res := render(t, r, large, tick60)
	if res.Classification != cadence.Simulated {
		t.Fatalf("classification = %v", res.Classification)
	}
	for _, role := range []refstore.Role{refstore.Color, refstore.MotionDepth, refstore.Reprojected, refstore.MotionHistory} {
		buf := r.store.Get(role)
		if buf == nil || buf.Width() != 2*frameSize || buf.Height() != frameSize {
			t.Errorf("%v = %v after resize", role, buf)
		}
	}
	checkNoLeak(t, r, b)
}

func TestRenderModeSwitch(t *testing.T) {
	r, b := newTestRenderer(t, settings(LatencyReduction, 1))
	f := newFrame(frameSize, frameSize)
	render(t, r, f, tick60)
	if !r.store.Has(refstore.Reprojected) {
		t.Fatal("latency reduction kept no reprojected frame")
	}

	r.SetSettings(settings(FrameGeneration, 1))
	render(t, r, f, tick60)
	if r.store.Has(refstore.Reprojected) {
		t.Error("frame generation kept the reprojected frame")
	}
	checkNoLeak(t, r, b)

	r.SetSettings(settings(OptimizationNone, 1))
	render(t, r, f, tick60)
	if b.Live() != 0 {
		t.Errorf("pass-through kept %d buffers", b.Live())
	}
}

func TestRendererReset(t *testing.T) {
	r, b := newTestRenderer(t, settings(FrameGeneration, 1))
	f := newFrame(frameSize, frameSize)
	render(t, r, f, tick60)
	render(t, r, f, tick60)

	if err := r.Reset(); err != nil {
		t.Fatal(err)
	}
	if b.Live() != 0 {
		t.Errorf("Reset() kept %d buffers", b.Live())
	}
	if got := render(t, r, f, 1e-6).Classification; got != cadence.Simulated {
		t.Errorf("tick after Reset = %v, want Simulated", got)
	}
}

func TestRendererClose(t *testing.T) {
	r, b := newTestRenderer(t, settings(LatencyReduction, 4))
	f := newFrame(frameSize, frameSize)
	render(t, r, f, tick60)

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Live() != 0 {
		t.Errorf("Close() kept %d buffers", b.Live())
	}
	if err := r.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() = %v, want ErrClosed", err)
	}
	if _, err := r.Render(f.src, f.dst, f.context(), tick60); !errors.Is(err, ErrClosed) {
		t.Errorf("Render() after Close = %v, want ErrClosed", err)
	}
	if err := r.Reset(); !errors.Is(err, ErrClosed) {
		t.Errorf("Reset() after Close = %v, want ErrClosed", err)
	}
}

func TestRendererStats(t *testing.T) {
	r, _ := newTestRenderer(t, settings(FrameGeneration, 1))
	f := newFrame(frameSize, frameSize)
	for i := 0; i < 6; i++ {
		render(t, r, f, tick60)
	}
	s := r.Stats()
	if s.Ticks != 6 || s.Classifications[cadence.Simulated] != 3 || s.Classifications[cadence.Extrapolated] != 3 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.LiveBuffers != 3 {
		t.Errorf("LiveBuffers = %d, want 3", s.LiveBuffers)
	}
}

// TestRenderNeverReadsReleased drives every (mode, technique) pair through
// mode switches and resizes. The recording backend rejects any pass that
// reads or writes a released buffer.
func TestRenderNeverReadsReleased(t *testing.T) {
	b := warptest.New()
	r, err := NewRenderer(b, DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	frames := []frame{newFrame(frameSize, frameSize), newFrame(frameSize, 2*frameSize)}
	dts := []float64{tick60, 1.0 / 144, 1.0 / 30, 0.002}

	n := 0
	for mode := 0; mode < int(numModes); mode++ {
		for reprojection := 0; reprojection < int(numTechniques); reprojection++ {
			s := settings(OptimizationMode(mode), reprojection)
			s.ExtrapolatedFramerate = 60 + 30*(reprojection%2)
			r.SetSettings(s)
			for i := 0; i < 9; i++ {
				f := frames[(n/7)%len(frames)]
				if _, err := r.Render(f.src, f.dst, f.context(), dts[n%len(dts)]); err != nil {
					t.Fatalf("mode %d reprojection %d tick %d: %v", mode, reprojection, i, err)
				}
				n++
			}
			checkNoLeak(t, r, b)
		}
	}
}
