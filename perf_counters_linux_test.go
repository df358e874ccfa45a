//go:build linux

package parmin

import (
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestEnableCountersDropsRefused(t *testing.T) {
	var files []*os.File
	open := func() int {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatal(err)
		}
		w.Close()
		files = append(files, r)
		fd, err := unix.Dup(int(r.Fd()))
		if err != nil {
			t.Fatal(err)
		}
		return fd
	}
	good, refuseReset, refuseEnable := open(), open(), open()
	t.Cleanup(func() {
		unix.Close(good)
		for _, f := range files {
			f.Close()
		}
	})

	var calls []uint
	saved := perfIoctl
	perfIoctl = func(fd int, req uint, _ int) error {
		calls = append(calls, req)
		switch {
		case fd == refuseReset && req == unix.PERF_EVENT_IOC_RESET,
			fd == refuseEnable && req == unix.PERF_EVENT_IOC_ENABLE:
			return errors.New("refused")
		}
		return nil
	}
	t.Cleanup(func() { perfIoctl = saved })

	fds := [][]int{{good, refuseReset}, {refuseEnable}}
	if n := enableCounters(fds); n != 1 {
		t.Errorf("enableCounters = %d, want 1", n)
	}
	if len(fds[0]) != 1 || fds[0][0] != good || len(fds[1]) != 0 {
		t.Errorf("kept fds = %v, want [[%d] []]", fds, good)
	}
	if len(calls) != 5 {
		t.Errorf("%d ioctls issued, want 5", len(calls))
	}
}

func TestStopSkipsCountersThatFailToDisable(t *testing.T) {
	saved := perfIoctl
	perfIoctl = func(int, uint, int) error { return errors.New("refused") }
	t.Cleanup(func() { perfIoctl = saved })

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	// Eight bytes are readable, so a read would report a count.
	w.Write([]byte{1, 0, 0, 0, 0, 0, 0, 0})
	w.Close()
	fd, err := unix.Dup(int(r.Fd()))
	if err != nil {
		t.Fatal(err)
	}

	pm := NewPerfMonitor()
	pm.fds = make([][]int, len(perfEvents))
	pm.fds[0] = []int{fd}
	if pc := pm.Stop(); pc.Cycles != 0 {
		t.Errorf("Cycles = %d from a counter that never stopped, want 0", pc.Cycles)
	}
}
