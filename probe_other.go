//go:build !linux

package parmin

import "runtime"

func affinityCPUs() (int, error) {
	return runtime.NumCPU(), nil
}

func systemMemory() uint64 {
	return 0
}
