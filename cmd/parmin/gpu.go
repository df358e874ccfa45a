//go:build gpu

package main

import (
	"github.com/LynnColeArt/parmin"
	"github.com/LynnColeArt/parmin/gpu"
)

func openGPU(opts deviceOptions) (parmin.Accelerator, error) {
	return gpu.Open(gpu.Options{ComputeUnits: opts.Units, LowPower: opts.LowPower})
}
