package reproject

import (
	"fmt"

	"github.com/gogpu/reproject/cadence"
	"github.com/gogpu/reproject/internal/refstore"
	"github.com/gogpu/reproject/warp"
)

// step is one stage of a tick.
type step func(*tick) error

// plan is the behavior of one (mode, classification) cell.
type plan struct {
	steps    []step
	presents bool
}

// dispatch is the behavior matrix, indexed by mode then classification.
var dispatch = [numModes][3]plan{
	OptimizationNone: {
		cadence.Simulated:    {steps: []step{passThrough}, presents: true},
		cadence.Extrapolated: {steps: []step{passThrough}, presents: true},
		cadence.Regular:      {steps: []step{passThrough}, presents: true},
	},
	LatencyReduction: {
		cadence.Simulated:    {steps: []step{lateApply, updateHistory}, presents: true},
		cadence.Extrapolated: {steps: []step{displayReprojected, updateHistory}, presents: true},
		cadence.Regular:      {steps: []step{displayReprojected, updateHistory}, presents: true},
	},
	FrameGeneration: {
		cadence.Simulated:    {steps: []step{initializeReference, passThrough, updateHistory}, presents: true},
		cadence.Extrapolated: {steps: []step{applyReprojection, updateHistory}, presents: true},
		cadence.Regular:      {steps: []step{updateHistory}},
	},
}

// tick carries the inputs of one Render call through its steps.
type tick struct {
	r         *Renderer
	src, dst  warp.Buffer
	ctx       RenderContext
	technique Technique
	current   warp.CameraPose
}

// bindings returns the installed reference frame set as pass inputs.
func (t *tick) bindings() warp.Bindings {
	s := t.r.store
	return warp.Bindings{
		Source:              t.src,
		SourceMotionDepth:   t.ctx.MotionDepth,
		PreviousColor:       s.Get(refstore.Color),
		PreviousMotionDepth: s.Get(refstore.MotionDepth),
		MotionHistory:       s.Get(refstore.MotionHistory),
		Previous:            t.r.previous,
		Current:             t.current,
	}
}

// sourceBindings returns the current source frame as pass inputs.
func (t *tick) sourceBindings() warp.Bindings {
	return warp.Bindings{Source: t.src, SourceMotionDepth: t.ctx.MotionDepth}
}

// invoke runs pass with the tick's warp parameters, whatever the pass.
func (t *tick) invoke(pass warp.PassID, bind warp.Bindings, out ...warp.Buffer) error {
	bind.Params = t.r.settings.Params()
	if err := t.r.backend.Invoke(pass, bind, out...); err != nil {
		return fmt.Errorf("%v: %w", pass, err)
	}
	return nil
}

// display copies buf to the destination.
func (t *tick) display(buf warp.Buffer) error {
	return t.invoke(warp.PassDisplay, warp.Bindings{Source: buf}, t.dst)
}

// reproject writes the reference frame, warped to the current pose, into
// out. With no technique the reference color is copied unchanged.
func (t *tick) reproject(out warp.Buffer) error {
	pass, ok := t.technique.Pass()
	if !ok {
		pass = warp.PassDisplayPrevious
	}
	return t.invoke(pass, t.bindings(), out)
}

func (t *tick) hasReference() bool { return t.r.store.Has(refstore.Color) }

func passThrough(t *tick) error { return t.display(t.src) }

// Lease slots of lateApply.
const (
	leaseReprojected = iota
	leaseColor
	leaseMotionDepth
	leaseHistory
)

// Lease slots of initializeReference.
const (
	initColor = iota
	initMotionDepth
	initHistory
)

// Lease slot of updateHistory.
const updatedHistory = 0

// lateApply warps the reference frame to the current pose, presents the
// result and only then replaces the reference frame with the source.
func lateApply(t *tick) error {
	s := t.r.store
	lease, err := s.Lease(t.ctx.Width, t.ctx.Height,
		"reprojected", "color", "motion-depth", "motion-history")
	if err != nil {
		return err
	}
	defer lease.Discard()

	reprojected := lease.Buffer(leaseReprojected)
	if t.hasReference() {
		err = t.reproject(reprojected)
	} else {
		err = t.invoke(warp.PassDisplay, t.sourceBindings(), reprojected)
	}
	if err != nil {
		return err
	}
	if err := t.display(reprojected); err != nil {
		return err
	}

	bind := t.sourceBindings()
	if err := t.invoke(warp.PassInitialize, bind, lease.Buffer(leaseColor), lease.Buffer(leaseMotionDepth)); err != nil {
		return err
	}
	if err := t.invoke(warp.PassResetMotionVectorHistory, bind, lease.Buffer(leaseHistory)); err != nil {
		return err
	}

	if err := s.ReplaceReprojected(reprojected); err != nil {
		return err
	}
	lease.Take(leaseReprojected)
	if err := s.ReplaceColorAndMotionDepth(lease.Buffer(leaseColor), lease.Buffer(leaseMotionDepth)); err != nil {
		return err
	}
	lease.Take(leaseColor)
	lease.Take(leaseMotionDepth)
	if err := s.ReplaceMotionHistory(lease.Buffer(leaseHistory)); err != nil {
		return err
	}
	lease.Take(leaseHistory)

	t.r.previous = t.current
	return nil
}

// initializeReference captures the source as the new reference frame with
// an empty motion history.
func initializeReference(t *tick) error {
	s := t.r.store
	lease, err := s.Lease(t.ctx.Width, t.ctx.Height, "color", "motion-depth", "motion-history")
	if err != nil {
		return err
	}
	defer lease.Discard()

	bind := t.sourceBindings()
	if err := t.invoke(warp.PassInitialize, bind, lease.Buffer(initColor), lease.Buffer(initMotionDepth)); err != nil {
		return err
	}
	if err := t.invoke(warp.PassResetMotionVectorHistory, bind, lease.Buffer(initHistory)); err != nil {
		return err
	}

	if err := s.ReplaceColorAndMotionDepth(lease.Buffer(initColor), lease.Buffer(initMotionDepth)); err != nil {
		return err
	}
	lease.Take(initColor)
	lease.Take(initMotionDepth)
	if err := s.ReplaceMotionHistory(lease.Buffer(initHistory)); err != nil {
		return err
	}
	lease.Take(initHistory)

	t.r.previous = t.current
	return nil
}

// applyReprojection presents the reference frame warped to the current pose.
func applyReprojection(t *tick) error {
	if !t.hasReference() {
		t.r.log().Warn("reproject: no reference frame, presenting source")
		return passThrough(t)
	}
	return t.reproject(t.dst)
}

// displayReprojected presents the frame kept by the last late-apply.
func displayReprojected(t *tick) error {
	buf := t.r.store.Get(refstore.Reprojected)
	if buf == nil {
		t.r.log().Warn("reproject: no reprojected frame, presenting source")
		return passThrough(t)
	}
	return t.display(buf)
}

// updateHistory adds the source motion to the motion history.
func updateHistory(t *tick) error {
	s := t.r.store
	lease, err := s.Lease(t.ctx.Width, t.ctx.Height, "motion-history")
	if err != nil {
		return err
	}
	defer lease.Discard()

	bind := t.sourceBindings()
	bind.MotionHistory = s.Get(refstore.MotionHistory)
	if err := t.invoke(warp.PassUpdateMotionVectorHistory, bind, lease.Buffer(updatedHistory)); err != nil {
		return err
	}
	if err := s.ReplaceMotionHistory(lease.Buffer(updatedHistory)); err != nil {
		return err
	}
	lease.Take(updatedHistory)
	return nil
}
