//go:build !linux

package parmin

// PerfMonitor is a stub on platforms without perf_event_open.
type PerfMonitor struct{}

// NewPerfMonitor returns a stub monitor.
func NewPerfMonitor() *PerfMonitor {
	return &PerfMonitor{}
}

// Start always reports ErrCountersUnavailable.
func (pm *PerfMonitor) Start() error {
	return ErrCountersUnavailable
}

// Stop returns empty counters.
func (pm *PerfMonitor) Stop() *PerfCounters {
	return &PerfCounters{}
}
