package parmin

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions
type CPUFeatures struct {
	HasSSE4     bool
	HasAVX      bool
	HasAVX2     bool
	HasAVX512F  bool // Foundation
	HasAVX512BW bool // Byte/Word
	HasNEON     bool // ARM64 Advanced SIMD
	HasSVE      bool // ARM64 Scalable Vector Extension
}

// Global CPU feature detection
var cpuFeatures CPUFeatures

func init() {
	detectCPUFeatures()
}

// detectCPUFeatures populates the global cpuFeatures struct
func detectCPUFeatures() {
	cpuFeatures = CPUFeatures{
		HasSSE4:     cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:      cpu.X86.HasAVX,
		HasAVX2:     cpu.X86.HasAVX2,
		HasAVX512F:  cpu.X86.HasAVX512F,
		HasAVX512BW: cpu.X86.HasAVX512BW,
		HasNEON:     cpu.ARM64.HasASIMD,
		HasSVE:      cpu.ARM64.HasSVE,
	}
}

// SIMDLanes returns the number of 32-bit lanes in the widest vector unit
// the host supports. It is informational; the host kernels are scalar Go.
func SIMDLanes() int {
	switch {
	case cpuFeatures.HasAVX512F:
		return 16
	case cpuFeatures.HasAVX2, cpuFeatures.HasAVX:
		return 8
	case cpuFeatures.HasSSE4, cpuFeatures.HasNEON:
		return 4
	}
	return 1
}

// GetCPUInfo returns a string describing available CPU features
func GetCPUInfo() string {
	var features []string

	if cpuFeatures.HasSSE4 {
		features = append(features, "SSE4")
	}
	if cpuFeatures.HasAVX {
		features = append(features, "AVX")
	}
	if cpuFeatures.HasAVX2 {
		features = append(features, "AVX2")
	}
	if cpuFeatures.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if cpuFeatures.HasAVX512BW {
		features = append(features, "AVX512BW")
	}
	if cpuFeatures.HasNEON {
		features = append(features, "NEON")
	}
	if cpuFeatures.HasSVE {
		features = append(features, "SVE")
	}

	if len(features) == 0 {
		return "no SIMD extensions detected"
	}
	return strings.Join(features, ", ")
}
