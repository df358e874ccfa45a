// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package parmin runs a two-stage parallel minimum reduction over large
// uint32 arrays and measures the memory bandwidth it achieves.
//
// The root package is the accelerator runtime: an OpenCL-style execution
// model (contexts, buffers, programs, kernels, an in-order command queue
// and completion events) whose work-items run as goroutines on the host
// cores, together with the grid planner that shapes a dispatch for a
// device class.
//
// Related packages:
//   - kernels: the partial_min / global_reduce kernel pair, as native Go
//     kernels for the host runtime and as WGSL source for GPUs
//   - minbench: the dispatch orchestrator, reference computation,
//     verifier and reporter
//   - gpu: a WebGPU backend (build with -tags gpu)
//
// The parmin command ties them together.
//
// Example usage:
//
//	ctx, err := parmin.NewContext(parmin.Options{Class: parmin.ClassWideSIMD})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ctx.Release()
//
//	prog, _ := ctx.BuildProgram(kernels.Source)
//	minp, _ := prog.Kernel("partial_min")
//	src, _ := ctx.CreateBuffer("src", parmin.MemReadOnly|parmin.MemCopyHostPtr, n, host)
//	minp.SetArg(0, src)
//	...
//	ev, _ := ctx.EnqueueKernel(minp, grid.GlobalSize, grid.LocalSize)
//	ctx.EnqueueKernel(reduce, grid.Groups, 0, ev)
//	ctx.Finish()
package parmin
