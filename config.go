package parmin

// Grid planning
const (
	// Base work-group width for wide-SIMD devices (one wavefront)
	DefaultGroupWidth = 64

	// Work-groups resident per execution unit. Seven wavefronts per SIMD
	// keeps the memory pipelines saturated on the devices this was tuned on.
	Oversubscription = 7

	// Maximum work-items per group accepted by the host runtime
	MaxGroupSize = 1024

	// Lanes per vector chunk read by the reduction kernels
	VectorWidth = 4
)

// Benchmark defaults
const (
	// Source array length (16M uint32, 64MB)
	DefaultElements = 4096 * 4096

	// Timed dispatch pairs per run
	DefaultIterations = 500

	// Compute units assumed for WebGPU adapters, which do not report them
	DefaultGPUComputeUnits = 16
)

// Memory pool parameters
const (
	// Memory alignment for allocations, in bytes
	MemoryAlignment = 64

	// Size of one buffer word, in bytes
	WordSize = 4
)

// Command queue parameters
const (
	// Pending commands buffered before Enqueue blocks
	QueueDepth = 1024
)
