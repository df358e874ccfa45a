//go:build !gpu

package main

import "github.com/LynnColeArt/parmin"

func openGPU(deviceOptions) (parmin.Accelerator, error) {
	return nil, parmin.NewDeviceError("open gpu", "built without WebGPU support (rebuild with -tags gpu)", nil)
}
