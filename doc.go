// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package reproject schedules temporal reprojection for a real-time renderer.
//
// # Overview
//
// A host pipeline calls [Renderer.Render] once per displayed frame. The
// renderer classifies the tick against two target rates, a simulated rate at
// which the host renders real frames and an extrapolated rate at which
// frames are presented, and then either passes the source through, refreshes
// its reference frame, or synthesizes the frame from the reference with one
// of four reprojection techniques.
//
// # Quick Start
//
//	backend := software.New()
//	defer backend.Close()
//
//	settings := reproject.DefaultSettings()
//	settings.OptimizationOption = int(reproject.FrameGeneration)
//	settings.ReprojectionMode = 4 // Spacewarp
//
//	r, err := reproject.NewRenderer(backend, settings)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	res, err := r.Render(src, dst, reproject.RenderContext{
//	    Width:       w,
//	    Height:      h,
//	    Camera:      camera,
//	    MotionDepth: motionDepth,
//	}, dt)
//
// # Modes
//
//   - [OptimizationNone] copies the source to the destination.
//   - [LatencyReduction] warps the last reference frame to the newest camera
//     pose on simulated ticks and shows that frame until the next one.
//   - [FrameGeneration] shows real frames on simulated ticks and
//     extrapolated ones in between.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Renderer, Settings, OptimizationMode, Technique
//   - cadence: tick classification
//   - warp: pass contract, buffers and camera math shared by backends
//   - Backends: software (CPU reference), wgpu (GPU via gogpu/wgpu/hal)
//   - Internal: refstore (reference frame slots), memory (budgets), parallel
package reproject

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
