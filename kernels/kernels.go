// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernels provides the two-stage minimum reduction: partial_min
// folds a stripe of the source per work-item, then per work-group through
// a local atomic minimum; global_reduce folds the per-group minima into
// slot 0. Each kernel exists as WGSL source and as a native Go function
// registered with the parmin host runtime under the same entry point name.
package kernels

import (
	"math"
	"sync/atomic"

	"github.com/LynnColeArt/parmin"
)

// Entry point names.
const (
	PartialMinName   = "partial_min"
	GlobalReduceName = "global_reduce"
)

// Argument indices, shared by both kernels where they overlap.
const (
	ArgSource   = 0 // uint4 source array (read-only)
	ArgGroupMin = 1 // per-group minima, slot 0 ends up holding the result
	ArgScratch  = 2 // local memory, one word
	ArgDebug    = 3 // grid diagnostics
	ArgElements = 4 // number of uint32 elements in the source
	ArgMode     = 5 // parmin.AddressMode
)

// Kernel arity.
const (
	PartialMinArgs   = 6
	GlobalReduceArgs = 2
)

// DebugWords is the number of debug words written by partial_min:
// groups, threads, chunks per thread, stride.
const DebugWords = 4

// ScratchBytes is the local memory partial_min needs per group.
const ScratchBytes = parmin.WordSize

func init() {
	parmin.RegisterKernel(parmin.KernelSpec{
		Name:    PartialMinName,
		NumArgs: PartialMinArgs,
		Func:    PartialMin,
	})
	parmin.RegisterKernel(parmin.KernelSpec{
		Name:    GlobalReduceName,
		NumArgs: GlobalReduceArgs,
		Func:    GlobalReduce,
	})
}

// PartialMin reduces one work-item's stripe of 4-wide chunks, then the
// work-group's private minima into args[ArgGroupMin][group].
func PartialMin(wi *parmin.WorkItem, args parmin.Args) {
	src := args.Words(ArgSource)
	gmin := args.Words(ArgGroupMin)
	lmin := args.Words(ArgScratch)
	dbg := args.Words(ArgDebug)
	nitems := args.Uint(ArgElements)
	mode := parmin.AddressMode(args.Uint(ArgMode))

	global := uint32(wi.GlobalSize)
	count := (nitems / parmin.VectorWidth) / global
	idx, stride := uint32(wi.GlobalID)*count, uint32(1)
	if mode == parmin.ModeStrided {
		idx, stride = uint32(wi.GlobalID), global
	}

	pmin := uint32(math.MaxUint32)
	for n := uint32(0); n < count; n++ {
		base := int(idx) * parmin.VectorWidth
		v := src[base : base+4 : base+4]
		pmin = min(pmin, v[0], v[1], v[2], v[3])
		idx += stride
	}

	if wi.LocalID == 0 {
		atomic.StoreUint32(&lmin[0], math.MaxUint32)
	}
	wi.Barrier()
	parmin.AtomicMinUint32(&lmin[0], pmin)
	wi.Barrier()
	if wi.LocalID == 0 {
		atomic.StoreUint32(&gmin[wi.GroupID], atomic.LoadUint32(&lmin[0]))
	}

	if wi.GlobalID == 0 {
		dbg[0] = uint32(wi.NumGroups)
		dbg[1] = global
		dbg[2] = count
		dbg[3] = stride
	}
}

// GlobalReduce folds args[ArgGroupMin][i] into slot 0 for work-item i.
func GlobalReduce(wi *parmin.WorkItem, args parmin.Args) {
	gmin := args.Words(ArgGroupMin)
	parmin.AtomicMinUint32(&gmin[0], atomic.LoadUint32(&gmin[wi.GlobalID]))
}
