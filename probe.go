package parmin

import "runtime"

// fallbackMemory is assumed when the platform does not report total RAM.
const fallbackMemory = 16 * 1024 * 1024 * 1024

// ProbeComputeUnits returns the number of CPUs this process may run on.
// On Linux it honours the scheduler affinity mask, so a process pinned with
// taskset or a cgroup cpuset sees only its own cores.
func ProbeComputeUnits() (int, error) {
	n, err := affinityCPUs()
	if err != nil || n <= 0 {
		return runtime.NumCPU(), nil
	}
	return n, nil
}

// SystemMemory returns total physical memory in bytes.
func SystemMemory() uint64 {
	if m := systemMemory(); m > 0 {
		return m
	}
	return fallbackMemory
}
