// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu is the GPU reprojection backend built on the gogpu HAL.
//
// Every pass is a fullscreen render pass with a WGSL fragment shader reading
// its inputs with textureLoad, except the forward positional timewarp, which
// scatters one point per reference pixel against a depth buffer. All passes
// share one bind group layout:
//
//	binding 0: uniform block (both camera poses, scalar params, target size)
//	binding 1: source
//	binding 2: source motion-depth
//	binding 3: reference color
//	binding 4: reference motion-depth
//	binding 5: motion history
//
// Unset inputs are bound to a 1x1 zero texture. Each [Backend.Invoke] builds
// its uniform buffer and bind group, submits, waits on a fence and destroys
// them again, so passes complete in order.
//
// Host textures enter the backend through [WrapTexture]; the backend never
// destroys them.
package wgpu
