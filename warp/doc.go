// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package warp defines the contract between the reprojection orchestrator
// and the backend that executes reprojection passes.
//
// The orchestrator never touches pixels. It allocates and releases image
// buffers through an [Allocator] and records work through an [Invoker].
// Both are usually implemented by a single [Backend]:
//
//   - backend/software: CPU float32 images, every pass implemented in Go
//   - backend/wgpu: GPU textures on gogpu/wgpu/hal, passes in WGSL
//   - warp/warptest: recording backend that tracks handle validity
//
// # Buffer conventions
//
// Every internally allocated buffer is a four channel floating point image
// of the render-context size ([FormatRGBA16Float] by default) so that signed
// motion vectors survive storage.
//
// Motion-depth buffers store the screen-space motion vector in R and G
// (current UV minus previous UV, Y pointing down) and the device depth in
// B, that is the NDC z produced by the host projection. Motion-history
// buffers store the motion accumulated since the last reference frame in R
// and G, the latest depth in B and the number of accumulated frames in A.
//
// # Bindings
//
// A pass reads the buffers installed in [Bindings]. Installed buffers are
// non-owning references valid only for the duration of the call; ownership
// stays with the reference store.
package warp
