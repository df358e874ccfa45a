// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpu implements parmin.Accelerator on a WebGPU adapter. The
// kernels are compiled from their WGSL source; kernel arguments are mapped
// onto the shader's storage and uniform bindings.
//
// The backend links against the native wgpu library and is only built
// with the gpu build tag:
//
//	go build -tags gpu ./cmd/parmin
package gpu
