package parmin

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCountersUnavailable is returned by PerfMonitor.Start when the platform
// or the process permissions do not allow hardware counters.
var ErrCountersUnavailable = errors.New("hardware counters unavailable")

// PerfCounters holds the hardware counter totals of one measured window.
type PerfCounters struct {
	Duration time.Duration

	// CPU counters
	Cycles       uint64
	Instructions uint64
	BranchMisses uint64
	CacheMisses  uint64
	LLCMisses    uint64 // Last level cache read misses

	// Derived metrics
	IPC             float64 // Instructions per cycle
	MemoryBandwidth float64 // GB/s of source data read
	BytesPerMiss    float64 // Source bytes read per last level miss
}

// counterNames are the events a PerfMonitor opens, in read order.
var counterNames = [...]string{
	"cycles",
	"instructions",
	"branch-misses",
	"cache-misses",
	"LLC-load-misses",
}

func (pc *PerfCounters) set(name string, value uint64) {
	switch name {
	case "cycles":
		pc.Cycles = value
	case "instructions":
		pc.Instructions = value
	case "branch-misses":
		pc.BranchMisses = value
	case "cache-misses":
		pc.CacheMisses = value
	case "LLC-load-misses":
		pc.LLCMisses = value
	}
}

// CalculateMetrics fills the derived metrics given the bytes the window read.
func (pc *PerfCounters) CalculateMetrics(bytes uint64) {
	if pc.Cycles > 0 {
		pc.IPC = float64(pc.Instructions) / float64(pc.Cycles)
	}
	if pc.Duration > 0 {
		pc.MemoryBandwidth = float64(bytes) / (pc.Duration.Seconds() * 1e9)
	}
	if pc.LLCMisses > 0 {
		pc.BytesPerMiss = float64(bytes) / float64(pc.LLCMisses)
	}
}

// String formats performance counters for display
func (pc *PerfCounters) String() string {
	var sb strings.Builder

	sb.WriteString("Performance Counters:\n")
	if pc.Duration > 0 {
		fmt.Fprintf(&sb, "  Duration:          %v\n", pc.Duration)
	}
	if pc.Cycles > 0 {
		fmt.Fprintf(&sb, "  CPU Cycles:        %d\n", pc.Cycles)
		fmt.Fprintf(&sb, "  Instructions:      %d\n", pc.Instructions)
		fmt.Fprintf(&sb, "  IPC:               %.2f\n", pc.IPC)
	}
	if pc.BranchMisses > 0 {
		fmt.Fprintf(&sb, "  Branch Misses:     %d\n", pc.BranchMisses)
	}
	if pc.CacheMisses > 0 {
		fmt.Fprintf(&sb, "  Cache Misses:      %d\n", pc.CacheMisses)
	}
	if pc.LLCMisses > 0 {
		fmt.Fprintf(&sb, "  LLC Load Misses:   %d\n", pc.LLCMisses)
		fmt.Fprintf(&sb, "  Bytes per Miss:    %.1f\n", pc.BytesPerMiss)
	}
	if pc.MemoryBandwidth > 0 {
		fmt.Fprintf(&sb, "  Memory Bandwidth:  %.2f GB/s\n", pc.MemoryBandwidth)
	}
	return sb.String()
}

// MeasureWithHardwareCounters runs fn inside a counter window. When counters
// cannot be opened it still times fn and returns the Start error alongside
// the timing-only counters.
func MeasureWithHardwareCounters(fn func() error) (*PerfCounters, error) {
	pm := NewPerfMonitor()
	startErr := pm.Start()
	start := time.Now()
	if err := fn(); err != nil {
		pm.Stop()
		return nil, err
	}
	elapsed := time.Since(start)
	pc := pm.Stop()
	pc.Duration = elapsed
	return pc, startErr
}
