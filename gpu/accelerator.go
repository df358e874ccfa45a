//go:build gpu

package gpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/LynnColeArt/parmin"
	"github.com/openfluke/webgpu/wgpu"
)

// Options configures the WebGPU accelerator.
type Options struct {
	// ComputeUnits is reported to the grid planner. WebGPU does not expose
	// the number of execution units, so it defaults to
	// parmin.DefaultGPUComputeUnits.
	ComputeUnits int
	// LowPower requests the integrated adapter instead of the discrete one.
	LowPower bool
}

// Accelerator is a parmin.Accelerator backed by a WebGPU device and its
// single queue.
type Accelerator struct {
	instance  *wgpu.Instance
	adapter   *wgpu.Adapter
	device    *wgpu.Device
	queue     *wgpu.Queue
	info      *parmin.Device
	maxGroups uint32

	mu       sync.Mutex
	pending  []*parmin.Event
	programs []*program
	buffers  []*buffer
	released bool
}

var _ parmin.Accelerator = (*Accelerator)(nil)

// Open requests an adapter and device. It returns a DeviceUnavailable
// error when no adapter is present.
func Open(opts Options) (*Accelerator, error) {
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, parmin.NewDeviceError("Open", "failed to create WebGPU instance", nil)
	}

	pp := wgpu.PowerPreferenceHighPerformance
	if opts.LowPower {
		pp = wgpu.PowerPreferenceLowPower
	}
	ad, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{PowerPreference: pp})
	if err != nil || ad == nil {
		inst.Release()
		return nil, parmin.NewDeviceError("Open", "no WebGPU adapter", err)
	}

	dev, err := ad.RequestDevice(&wgpu.DeviceDescriptor{})
	if err != nil || dev == nil {
		ad.Release()
		inst.Release()
		return nil, parmin.NewDeviceError("Open", "RequestDevice failed", err)
	}

	units := opts.ComputeUnits
	if units <= 0 {
		units = parmin.DefaultGPUComputeUnits
	}
	info := ad.GetInfo()
	limits := ad.GetLimits().Limits

	return &Accelerator{
		instance:  inst,
		adapter:   ad,
		device:    dev,
		queue:     dev.GetQueue(),
		maxGroups: limits.MaxComputeWorkgroupsPerDimension,
		info: &parmin.Device{
			Name:         fmt.Sprintf("%s (%s)", info.Name, info.VendorName),
			Class:        parmin.ClassWideSIMD,
			ComputeUnits: units,
			MaxGroupSize: parmin.DefaultGroupWidth,
			TotalMem:     limits.MaxStorageBufferBindingSize,
			Features:     "WebGPU",
		},
	}, nil
}

// Device returns the adapter description.
func (a *Accelerator) Device() *parmin.Device {
	return a.info
}

func (a *Accelerator) checkOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return parmin.ErrReleased
	}
	return nil
}

// Finish waits until the queue is idle and completes every pending event.
func (a *Accelerator) Finish() error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	a.pollIdle()
	a.completePending(nil)
	return nil
}

// pollIdle blocks until the device reports no outstanding submissions.
func (a *Accelerator) pollIdle() {
	for !a.device.Poll(true, nil) {
		time.Sleep(100 * time.Microsecond)
	}
}

func (a *Accelerator) completePending(err error) {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()
	for _, ev := range pending {
		ev.Complete(err)
	}
}

// Release waits for the queue, then frees every buffer, program and the
// device itself.
func (a *Accelerator) Release() error {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil
	}
	a.released = true
	programs, buffers := a.programs, a.buffers
	a.programs, a.buffers = nil, nil
	a.mu.Unlock()

	a.pollIdle()
	a.completePending(nil)
	for _, p := range programs {
		p.Release()
	}
	for _, b := range buffers {
		b.Release()
	}
	a.device.Release()
	a.adapter.Release()
	a.instance.Release()
	return nil
}
