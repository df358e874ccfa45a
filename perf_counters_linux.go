//go:build linux

package parmin

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

type perfEventConfig struct {
	name   string
	typ    uint32
	config uint64
}

var perfEvents = [len(counterNames)]perfEventConfig{
	{counterNames[0], unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES},
	{counterNames[1], unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS},
	{counterNames[2], unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_MISSES},
	{counterNames[3], unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_MISSES},
	{counterNames[4], unix.PERF_TYPE_HW_CACHE, cacheConfig(
		unix.PERF_COUNT_HW_CACHE_LL, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS)},
}

func cacheConfig(cache, op, result uint64) uint64 {
	return cache | op<<8 | result<<16
}

// PerfMonitor counts hardware events over every thread of the process.
// Work-items run on goroutines spread over runtime threads, so one counter
// per event is opened on each thread present at Start, with inherit set for
// threads created later.
type PerfMonitor struct {
	mu  sync.Mutex
	fds [][]int // per event, one fd per thread
}

// NewPerfMonitor returns an idle monitor.
func NewPerfMonitor() *PerfMonitor {
	return &PerfMonitor{}
}

// Start opens and enables the counters. Events the hardware lacks are
// skipped; if none opens, Start wraps ErrCountersUnavailable.
func (pm *PerfMonitor) Start() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.closeLocked()

	tids, err := threadIDs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCountersUnavailable, err)
	}

	pm.fds = make([][]int, len(perfEvents))
	opened := 0
	var firstErr error
	for i, ev := range perfEvents {
		for _, tid := range tids {
			attr := unix.PerfEventAttr{
				Type:   ev.typ,
				Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
				Config: ev.config,
				Bits:   unix.PerfBitDisabled | unix.PerfBitInherit | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
			}
			fd, err := unix.PerfEventOpen(&attr, tid, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
			if err != nil {
				// Threads exit between listing and opening.
				if err != unix.ESRCH && firstErr == nil {
					firstErr = fmt.Errorf("open %s: %w", ev.name, err)
				}
				continue
			}
			pm.fds[i] = append(pm.fds[i], fd)
			opened++
		}
	}
	if opened == 0 {
		pm.fds = nil
		if firstErr == nil {
			firstErr = fmt.Errorf("no threads to count")
		}
		return fmt.Errorf("%w: %v", ErrCountersUnavailable, firstErr)
	}

	if enableCounters(pm.fds) == 0 {
		pm.fds = nil
		return fmt.Errorf("%w: no counter could be enabled", ErrCountersUnavailable)
	}
	return nil
}

// perfIoctl issues a perf event ioctl.
var perfIoctl = unix.IoctlSetInt

// enableCounters resets and enables every fd, closing and dropping those
// that refuse. It returns the number left counting.
func enableCounters(fds [][]int) int {
	enabled := 0
	for i, list := range fds {
		kept := list[:0]
		for _, fd := range list {
			if perfIoctl(fd, unix.PERF_EVENT_IOC_RESET, 0) != nil ||
				perfIoctl(fd, unix.PERF_EVENT_IOC_ENABLE, 0) != nil {
				unix.Close(fd)
				continue
			}
			kept = append(kept, fd)
		}
		fds[i] = kept
		enabled += len(kept)
	}
	return enabled
}

// Stop disables the counters and returns their totals. Stop on an idle
// monitor returns zero counters.
func (pm *PerfMonitor) Stop() *PerfCounters {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pc := &PerfCounters{}
	for i, fds := range pm.fds {
		var total uint64
		for _, fd := range fds {
			// A counter still running past the window is not reported.
			if perfIoctl(fd, unix.PERF_EVENT_IOC_DISABLE, 0) != nil {
				continue
			}
			var buf [8]byte
			if n, err := unix.Read(fd, buf[:]); err == nil && n == len(buf) {
				total += binary.NativeEndian.Uint64(buf[:])
			}
		}
		pc.set(perfEvents[i].name, total)
	}
	pm.closeLocked()
	return pc
}

func (pm *PerfMonitor) closeLocked() {
	for _, fds := range pm.fds {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}
	pm.fds = nil
}

func threadIDs() ([]int, error) {
	entries, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		if tid, err := strconv.Atoi(e.Name()); err == nil {
			tids = append(tids, tid)
		}
	}
	return tids, nil
}
