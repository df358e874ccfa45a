package parmin

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// DeviceClass selects the execution model a device is planned for.
type DeviceClass int

const (
	// ClassScalar is a multi-core device with no lockstep lanes (a CPU).
	ClassScalar DeviceClass = iota
	// ClassWideSIMD is a device that schedules threads in lockstep
	// wavefronts and benefits from coalesced, strided access (a GPU).
	ClassWideSIMD
)

// String returns the short device class name used in reports.
func (c DeviceClass) String() string {
	switch c {
	case ClassScalar:
		return "CPU"
	case ClassWideSIMD:
		return "GPU"
	default:
		return "Unknown"
	}
}

// ParseDeviceClass maps a command-line device name to a class.
func ParseDeviceClass(s string) (DeviceClass, error) {
	switch strings.ToLower(s) {
	case "cpu", "scalar":
		return ClassScalar, nil
	case "gpu", "simd", "wide-simd":
		return ClassWideSIMD, nil
	}
	return 0, &Error{
		Type:    ErrTypeInvalidArg,
		Op:      "ParseDeviceClass",
		Message: fmt.Sprintf("unknown device class %q", s),
		Code:    InvalidDeviceType,
	}
}

// Device describes a compute device and the capabilities the grid planner
// and dispatcher depend on.
type Device struct {
	ID           int         // Unique device identifier
	Name         string      // Human-readable device name
	Class        DeviceClass // Execution model
	ComputeUnits int         // Independent parallel execution units
	MaxGroupSize int         // Maximum work-items per group
	TotalMem     uint64      // Memory available for buffers, in bytes
	Features     string      // Instruction set extensions, if known
}

// Accelerator is the runtime surface the reduction harness drives. The
// host Context implements it; the gpu package provides a WebGPU version.
type Accelerator interface {
	Device() *Device
	BuildProgram(source string) (Program, error)
	CreateBuffer(label string, flags MemFlags, words int, host []uint32) (Buffer, error)
	EnqueueKernel(k Kernel, global, local int, waitFor ...*Event) (*Event, error)
	Finish() error
	MapBuffer(b Buffer, words int) ([]uint32, error)
	Release() error
}

// Program is a built kernel program.
type Program interface {
	Kernel(name string) (Kernel, error)
	EntryPoints() []string
	BuildLog() string
	Release()
}

// Kernel is a program entry point with its bound arguments.
type Kernel interface {
	Name() string
	SetArg(index int, value any) error
}

// Buffer is a region of device memory holding 32-bit words.
type Buffer interface {
	Label() string
	Words() int
	Flags() MemFlags
	Release() error
}

// LocalMem requests Size bytes of group-shared scratch memory for a kernel
// argument. Every group receives its own zeroed copy.
type LocalMem struct {
	Size int
}

// Options configures a host Context.
type Options struct {
	Class        DeviceClass
	ComputeUnits int                 // Overrides the probe when positive
	Probe        func() (int, error) // Replaces the affinity probe
	Workers      int                 // Goroutines running groups; defaults to ComputeUnits
	MemoryLimit  uint64              // Buffer memory cap in bytes; defaults to system memory
}

// Context is the host runtime: an accelerator whose execution units are
// the CPU cores of this process. It manages buffers, programs and a single
// in-order command queue.
type Context struct {
	device   *Device
	memory   *MemoryPool
	queue    *Queue
	workers  int
	released atomic.Bool
	mu       sync.Mutex
	programs []*hostProgram
}

var _ Accelerator = (*Context)(nil)

var deviceID atomic.Int32

// NewContext probes the host and creates a context for the requested device
// class. It fails with a device error, before allocating anything, when
// the probe reports no execution units.
func NewContext(opts Options) (*Context, error) {
	if opts.Class != ClassScalar && opts.Class != ClassWideSIMD {
		return nil, &Error{
			Type:    ErrTypeDevice,
			Op:      "NewContext",
			Message: fmt.Sprintf("no device of class %d", opts.Class),
			Code:    DeviceNotFound,
		}
	}

	units := opts.ComputeUnits
	if units <= 0 {
		probe := opts.Probe
		if probe == nil {
			probe = ProbeComputeUnits
		}
		n, err := probe()
		if err != nil {
			return nil, NewDeviceError("NewContext", "compute unit probe failed", err)
		}
		units = n
	}
	if units <= 0 {
		return nil, ErrNoDevice
	}

	limit := opts.MemoryLimit
	if limit == 0 {
		limit = SystemMemory()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = units
	}

	dev := &Device{
		ID:           int(deviceID.Add(1)) - 1,
		Name:         fmt.Sprintf("host %s (%d units, %d-lane SIMD)", opts.Class, units, SIMDLanes()),
		Class:        opts.Class,
		ComputeUnits: units,
		MaxGroupSize: MaxGroupSize,
		TotalMem:     limit,
		Features:     GetCPUInfo(),
	}

	return &Context{
		device:  dev,
		memory:  NewMemoryPool(limit),
		queue:   newQueue(QueueDepth),
		workers: workers,
	}, nil
}

// Device returns the device this context runs on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Finish blocks until every enqueued command has completed and returns the
// first failure observed since the previous Finish.
func (ctx *Context) Finish() error {
	if ctx.released.Load() {
		return ErrReleased
	}
	return ctx.queue.Finish()
}

// Release drains the queue and frees every buffer and program. The context
// cannot be used afterwards.
func (ctx *Context) Release() error {
	if ctx.released.Swap(true) {
		return nil
	}
	err := ctx.queue.Finish()
	ctx.queue.close()

	ctx.mu.Lock()
	for _, p := range ctx.programs {
		p.Release()
	}
	ctx.programs = nil
	ctx.mu.Unlock()

	ctx.memory.ReleaseAll()
	return err
}

// MemoryStats reports current and peak buffer memory in bytes.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// WorkItem identifies one kernel instance within a dispatch. It provides
// the same indexing as OpenCL's get_global_id, get_local_id, get_group_id,
// get_global_size, get_local_size and get_num_groups.
type WorkItem struct {
	GlobalID   int
	LocalID    int
	GroupID    int
	GlobalSize int
	LocalSize  int
	NumGroups  int

	barrier *Barrier
}

// Barrier blocks until every work-item of the group has reached it.
func (wi *WorkItem) Barrier() {
	if wi.barrier != nil {
		wi.barrier.Wait()
	}
}

// KernelFunc is the native implementation of a kernel entry point. It is
// called concurrently for every work-item of a dispatch.
type KernelFunc func(wi *WorkItem, args Args)

// Args holds the resolved arguments of one group: buffer and local memory
// arguments as word slices, scalar arguments as uint32.
type Args []any

// Words returns the word slice bound at index i.
func (a Args) Words(i int) []uint32 {
	return a[i].([]uint32)
}

// Uint returns the scalar bound at index i.
func (a Args) Uint(i int) uint32 {
	return a[i].(uint32)
}

// NDRange is a one-dimensional dispatch shape.
type NDRange struct {
	Global int
	Local  int
}

// Groups returns the number of work-groups in the range.
func (r NDRange) Groups() int {
	return r.Global / r.Local
}
