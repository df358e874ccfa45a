package minbench

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/LynnColeArt/parmin"
	"github.com/LynnColeArt/parmin/kernels"
)

// State is a step of a reduction run.
type State int

const (
	StateIdle State = iota
	StateBuffersAllocated
	StateArgumentsBound
	StateDispatching
	StateSynchronized
	StateResultsMapped
	StateDone
)

var stateNames = [...]string{
	StateIdle:             "Idle",
	StateBuffersAllocated: "BuffersAllocated",
	StateArgumentsBound:   "ArgumentsBound",
	StateDispatching:      "Dispatching",
	StateSynchronized:     "Synchronized",
	StateResultsMapped:    "ResultsMapped",
	StateDone:             "Done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// StageError records the step and state at which a run failed.
type StageError struct {
	State State
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (in %s): %v", e.Stage, e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Diagnostics are the grid parameters partial_min reports through its debug
// buffer.
type Diagnostics struct {
	Groups  uint32
	Threads uint32
	Count   uint32
	Stride  uint32
}

// Result is the outcome of one run.
type Result struct {
	Min         uint32
	Diagnostics Diagnostics
	Grid        parmin.GridShape
	Mode        parmin.AddressMode
	Elements    int
	Iterations  int
	Elapsed     time.Duration
	Event       *parmin.Event        // Completion token of the last global_reduce
	Counters    *parmin.PerfCounters // Hardware counters of the timed window, if enabled
}

// Bandwidth returns the source bytes read per second across all iterations,
// in GB/s.
func (r *Result) Bandwidth() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Elements) * parmin.WordSize * float64(r.Iterations) / secs / 1e9
}

// Orchestrator runs the two-stage reduction on an accelerator.
type Orchestrator struct {
	acc     parmin.Accelerator
	source  string
	log     *slog.Logger
	state   State
	monitor *parmin.PerfMonitor
}

// New returns an orchestrator that builds source on acc. A nil logger
// discards state transitions.
func New(acc parmin.Accelerator, source string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		acc:    acc,
		source: source,
		log:    logger,
	}
}

// EnableCounters makes later runs collect hardware counters over the timed
// dispatch window. Runs continue without counters where they cannot open.
func (o *Orchestrator) EnableCounters() {
	o.monitor = parmin.NewPerfMonitor()
}

// State returns the state the last run reached.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) transition(next State, attrs ...any) {
	o.log.Debug("state", append([]any{"from", o.state, "to", next}, attrs...)...)
	o.state = next
}

func (o *Orchestrator) fail(stage string, err error) error {
	o.log.Error("run failed", "stage", stage, "state", o.state, "code", parmin.CodeOf(err), "err", err)
	return &StageError{State: o.state, Stage: stage, Err: err}
}

// Run uploads src, dispatches partial_min then global_reduce iterations
// times over grid, waits once for completion and maps the result. Every
// buffer and the program are released before Run returns.
func (o *Orchestrator) Run(src []uint32, grid parmin.GridShape, iterations int) (*Result, error) {
	o.state = StateIdle
	n := len(src)
	switch {
	case n < parmin.VectorWidth || n%parmin.VectorWidth != 0:
		return nil, o.fail("validate", parmin.NewInvalidArgError("Run",
			fmt.Sprintf("source length %d is not a positive multiple of %d", n, parmin.VectorWidth)))
	case iterations < 1:
		return nil, o.fail("validate", parmin.NewInvalidArgError("Run",
			fmt.Sprintf("iterations %d < 1", iterations)))
	case grid.GlobalSize < 1 || grid.LocalSize < 1 || grid.Groups < 1 ||
		grid.GlobalSize != grid.Groups*grid.LocalSize:
		return nil, o.fail("validate", parmin.NewInvalidArgError("Run",
			fmt.Sprintf("malformed grid %v", grid)))
	case (n/parmin.VectorWidth)%grid.GlobalSize != 0:
		return nil, o.fail("validate", parmin.NewInvalidArgError("Run",
			fmt.Sprintf("global size %d does not divide %d chunks", grid.GlobalSize, n/parmin.VectorWidth)))
	}
	mode := parmin.ModeFor(o.acc.Device().Class)

	prog, err := o.acc.BuildProgram(o.source)
	if err != nil {
		return nil, o.fail("build program", err)
	}
	defer prog.Release()
	minp, err := prog.Kernel(kernels.PartialMinName)
	if err != nil {
		return nil, o.fail("create kernel", err)
	}
	reduce, err := prog.Kernel(kernels.GlobalReduceName)
	if err != nil {
		return nil, o.fail("create kernel", err)
	}

	srcBuf, err := o.acc.CreateBuffer("src", parmin.MemReadOnly|parmin.MemCopyHostPtr, n, src)
	if err != nil {
		return nil, o.fail("create src buffer", err)
	}
	defer srcBuf.Release()
	dstBuf, err := o.acc.CreateBuffer("dst", parmin.MemReadWrite, grid.Groups, nil)
	if err != nil {
		return nil, o.fail("create dst buffer", err)
	}
	defer dstBuf.Release()
	dbgBuf, err := o.acc.CreateBuffer("dbg", parmin.MemWriteOnly, max(grid.GlobalSize, kernels.DebugWords), nil)
	if err != nil {
		return nil, o.fail("create dbg buffer", err)
	}
	defer dbgBuf.Release()
	o.transition(StateBuffersAllocated, "elements", n, "groups", grid.Groups)

	binds := []struct {
		k     parmin.Kernel
		index int
		value any
	}{
		{minp, kernels.ArgSource, srcBuf},
		{minp, kernels.ArgGroupMin, dstBuf},
		{minp, kernels.ArgScratch, parmin.LocalMem{Size: kernels.ScratchBytes}},
		{minp, kernels.ArgDebug, dbgBuf},
		{minp, kernels.ArgElements, n},
		{minp, kernels.ArgMode, uint32(mode)},
		{reduce, kernels.ArgSource, srcBuf},
		{reduce, kernels.ArgGroupMin, dstBuf},
	}
	for _, b := range binds {
		if err := b.k.SetArg(b.index, b.value); err != nil {
			return nil, o.fail("set "+b.k.Name()+" args", err)
		}
	}
	o.transition(StateArgumentsBound, "mode", mode)

	o.transition(StateDispatching, "global", grid.GlobalSize, "local", grid.LocalSize, "iterations", iterations)
	counting := o.startCounters()
	var last *parmin.Event
	start := time.Now()
	for i := 0; i < iterations; i++ {
		ev, err := o.acc.EnqueueKernel(minp, grid.GlobalSize, grid.LocalSize)
		if err != nil {
			o.drain()
			o.stopCounters(counting)
			return nil, o.fail(fmt.Sprintf("enqueue %s (iteration %d)", minp.Name(), i), err)
		}
		last, err = o.acc.EnqueueKernel(reduce, grid.Groups, 0, ev)
		if err != nil {
			o.drain()
			o.stopCounters(counting)
			return nil, o.fail(fmt.Sprintf("enqueue %s (iteration %d)", reduce.Name(), i), err)
		}
	}
	if err := o.acc.Finish(); err != nil {
		o.stopCounters(counting)
		return nil, o.fail("finish", err)
	}
	elapsed := time.Since(start)
	counters := o.stopCounters(counting)
	if counters != nil {
		counters.Duration = elapsed
		counters.CalculateMetrics(uint64(n) * parmin.WordSize * uint64(iterations))
	}
	o.transition(StateSynchronized, "elapsed", elapsed)

	dst, err := o.acc.MapBuffer(dstBuf, 1)
	if err != nil {
		return nil, o.fail("map dst buffer", err)
	}
	dbg, err := o.acc.MapBuffer(dbgBuf, kernels.DebugWords)
	if err != nil {
		return nil, o.fail("map dbg buffer", err)
	}
	o.transition(StateResultsMapped, "min", dst[0])

	res := &Result{
		Min: dst[0],
		Diagnostics: Diagnostics{
			Groups:  dbg[0],
			Threads: dbg[1],
			Count:   dbg[2],
			Stride:  dbg[3],
		},
		Grid:       grid,
		Mode:       mode,
		Elements:   n,
		Iterations: iterations,
		Elapsed:    elapsed,
		Event:      last,
		Counters:   counters,
	}
	o.transition(StateDone)
	return res, nil
}

// drain waits for already submitted work so buffers are not released under
// running kernels. Its error is superseded by the enqueue failure.
func (o *Orchestrator) drain() {
	if err := o.acc.Finish(); err != nil {
		o.log.Debug("drain after failed enqueue", "err", err)
	}
}

func (o *Orchestrator) startCounters() bool {
	if o.monitor == nil {
		return false
	}
	if err := o.monitor.Start(); err != nil {
		o.log.Warn("running without hardware counters", "err", err)
		return false
	}
	return true
}

func (o *Orchestrator) stopCounters(counting bool) *parmin.PerfCounters {
	if !counting {
		return nil
	}
	return o.monitor.Stop()
}
