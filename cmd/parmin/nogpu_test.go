//go:build !gpu

package main

import "testing"

func TestRunWithoutGPU(t *testing.T) {
	if got := run([]string{"-device", "gpu", "-lowpower", "-n", "64", "-iterations", "1"}); got != exitDevice {
		t.Errorf("run(-device gpu -lowpower) = %d, want %d", got, exitDevice)
	}
}
