package minbench

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/LynnColeArt/parmin"
	"github.com/LynnColeArt/parmin/kernels"
)

func TestGenerateSource(t *testing.T) {
	a := GenerateSource(1000, 42)
	b := GenerateSource(1000, 42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d", i)
		}
	}
	// First value of the multiply-with-carry sequence.
	if want := uint32(42 * 42); a[0] != want {
		t.Errorf("first word = %d, want %d", a[0], want)
	}
	if c := GenerateSource(1000, 43); c[999] == a[999] && c[998] == a[998] {
		t.Error("different seeds produced the same tail")
	}
}

func TestReferenceMin(t *testing.T) {
	if got := ReferenceMin([]uint32{5, 3, 9, 1, 7, 2, 8, 4}); got != 1 {
		t.Errorf("ReferenceMin = %d, want 1", got)
	}
	if got := ReferenceMin(nil); got != math.MaxUint32 {
		t.Errorf("ReferenceMin(nil) = %d, want MaxUint32", got)
	}
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Elements != 4096*4096 || cfg.Iterations != 500 {
		t.Errorf("defaults = %d elements, %d iterations", cfg.Elements, cfg.Iterations)
	}

	for _, bad := range []Config{
		{Elements: 6, Iterations: 1, Runs: 1},
		{Elements: 0, Iterations: 1, Runs: 1},
		{Elements: 8, Iterations: 0, Runs: 1},
		{Elements: 8, Iterations: 1, Runs: 0},
	} {
		if err := bad.Validate(); !parmin.IsInvalidArgError(err) {
			t.Errorf("Validate(%+v) = %v, want invalid argument", bad, err)
		}
	}
	if strconv.IntSize == 64 {
		// The element count is passed to the kernel as a uint32.
		var past uint64 = math.MaxUint32 + 5
		huge := Config{Elements: int(past &^ 3), Iterations: 1, Runs: 1}
		if err := huge.Validate(); !parmin.IsInvalidArgError(err) {
			t.Errorf("Validate(%d elements) = %v, want invalid argument", huge.Elements, err)
		}
	}

	t.Setenv(EnvElements, "1024")
	t.Setenv(EnvIterations, "7")
	t.Setenv(EnvSeed, "0x10")
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Elements != 1024 || cfg.Iterations != 7 || cfg.Seed != 16 {
		t.Errorf("ApplyEnv gave %+v", cfg)
	}

	t.Setenv(EnvIterations, "many")
	if err := cfg.ApplyEnv(); !parmin.IsInvalidArgError(err) {
		t.Errorf("ApplyEnv(bad iterations) = %v, want invalid argument", err)
	}
}

func TestRunMatchesReference(t *testing.T) {
	for _, class := range []parmin.DeviceClass{parmin.ClassScalar, parmin.ClassWideSIMD} {
		for _, n := range []int{4, 64, 4096, 1 << 16} {
			src := GenerateSource(n, 2024)
			ctx := parmin.NewContextOrFail(t, class, 3)
			grid, err := parmin.PlanGrid(class, 3, n)
			if err != nil {
				t.Fatalf("PlanGrid: %v", err)
			}

			o := New(ctx, kernels.Source, nil)
			res, err := o.Run(src, grid, 5)
			if err != nil {
				t.Fatalf("%v n=%d: Run: %v", class, n, err)
			}
			if v := Verify(res.Min, ReferenceMin(src)); !v.Correct() {
				t.Errorf("%v n=%d: got %d, want %d", class, n, v.Got, v.Want)
			}
			if o.State() != StateDone {
				t.Errorf("state = %v, want Done", o.State())
			}
			if res.Diagnostics.Threads != uint32(grid.GlobalSize) || res.Diagnostics.Groups != uint32(grid.Groups) {
				t.Errorf("%v n=%d: diagnostics %+v for grid %v", class, n, res.Diagnostics, grid)
			}
			if res.Event == nil {
				t.Fatal("no completion token")
			}
			if err := res.Event.Wait(); err != nil {
				t.Errorf("completion token failed: %v", err)
			}
			if allocated, _ := ctx.MemoryStats(); allocated != 0 {
				t.Errorf("%d bytes still allocated after Run", allocated)
			}
		}
	}
}

func TestRunCompileFailure(t *testing.T) {
	ctx := parmin.NewContextOrFail(t, parmin.ClassScalar, 1)
	o := New(ctx, "@compute @workgroup_size(1) fn partial_max() {}", nil)
	_, err := o.Run(make([]uint32, 8), parmin.GridShape{GlobalSize: 1, LocalSize: 1, Groups: 1}, 1)
	if !parmin.IsCompileError(err) {
		t.Fatalf("Run = %v, want compile failure", err)
	}
	if !strings.Contains(parmin.BuildLog(err), "partial_max") {
		t.Errorf("build log %q does not name the entry point", parmin.BuildLog(err))
	}
	var se *StageError
	if !errors.As(err, &se) || se.State != StateIdle {
		t.Errorf("stage error = %+v, want failure in Idle", se)
	}
	if allocated, peak := ctx.MemoryStats(); allocated != 0 || peak != 0 {
		t.Errorf("buffers allocated before the build failed: %d/%d", allocated, peak)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	ctx := parmin.NewContextOrFail(t, parmin.ClassScalar, 1)
	o := New(ctx, kernels.Source, nil)
	one := parmin.GridShape{GlobalSize: 1, LocalSize: 1, Groups: 1}

	if _, err := o.Run(make([]uint32, 6), one, 1); !parmin.IsInvalidArgError(err) {
		t.Errorf("Run(6 elements) = %v, want invalid argument", err)
	}
	if _, err := o.Run(make([]uint32, 8), one, 0); !parmin.IsInvalidArgError(err) {
		t.Errorf("Run(0 iterations) = %v, want invalid argument", err)
	}
	if _, err := o.Run(make([]uint32, 8), parmin.GridShape{GlobalSize: 4, LocalSize: 3, Groups: 1}, 1); !parmin.IsInvalidArgError(err) {
		t.Errorf("Run(bad grid) = %v, want invalid argument", err)
	}

	// Grids that do not tile the chunks would leave elements unread.
	tiling := []struct {
		name string
		src  []uint32
		grid parmin.GridShape
	}{
		{"remainder", []uint32{9, 9, 9, 9, 8, 8, 8, 8, 1, 9, 9, 9}, parmin.GridShape{GlobalSize: 2, LocalSize: 1, Groups: 2}},
		{"more threads than chunks", []uint32{9, 9, 9, 9, 8, 8, 8, 8}, parmin.GridShape{GlobalSize: 4, LocalSize: 1, Groups: 4}},
	}
	for _, tt := range tiling {
		res, err := o.Run(tt.src, tt.grid, 1)
		if !parmin.IsInvalidArgError(err) {
			t.Errorf("%s: Run = (%+v, %v), want invalid argument", tt.name, res, err)
		}
		if o.State() != StateIdle {
			t.Errorf("%s: state %v, want %v", tt.name, o.State(), StateIdle)
		}
	}
}

func TestRunResourceExhaustion(t *testing.T) {
	ctx, err := parmin.NewContext(parmin.Options{Class: parmin.ClassScalar, ComputeUnits: 1, MemoryLimit: 1024})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Release()

	o := New(ctx, kernels.Source, nil)
	_, err = o.Run(make([]uint32, 4096), parmin.GridShape{GlobalSize: 1, LocalSize: 1, Groups: 1}, 1)
	if !parmin.IsMemoryError(err) {
		t.Fatalf("Run = %v, want resource exhaustion", err)
	}
	if !strings.Contains(err.Error(), "src") {
		t.Errorf("error %q does not name the buffer", err)
	}
}

func TestRunDispatchFailure(t *testing.T) {
	ctx := parmin.NewContextOrFail(t, parmin.ClassScalar, 1)
	o := New(ctx, kernels.Source, nil)
	// A group wider than the runtime allows is rejected at enqueue.
	grid := parmin.GridShape{GlobalSize: 2048, LocalSize: 2048, Groups: 1}
	_, err := o.Run(make([]uint32, 2048*4), grid, 3)
	if !parmin.IsDispatchError(err) || parmin.CodeOf(err) != parmin.InvalidWorkGroupSize {
		t.Fatalf("Run = %v, want dispatch failure", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.State != StateDispatching {
		t.Errorf("stage error = %+v, want failure while dispatching", se)
	}
	if allocated, _ := ctx.MemoryStats(); allocated != 0 {
		t.Errorf("%d bytes leaked after the failed run", allocated)
	}
}

// zeroUnits reports a device without execution units and records every
// call that would touch device memory.
type zeroUnits struct {
	parmin.Accelerator
	calls []string
}

func (z *zeroUnits) Device() *parmin.Device {
	return &parmin.Device{Name: "empty", Class: parmin.ClassWideSIMD}
}

func (z *zeroUnits) BuildProgram(string) (parmin.Program, error) {
	z.calls = append(z.calls, "BuildProgram")
	return nil, errors.New("unexpected")
}

func (z *zeroUnits) CreateBuffer(label string, _ parmin.MemFlags, _ int, _ []uint32) (parmin.Buffer, error) {
	z.calls = append(z.calls, "CreateBuffer "+label)
	return nil, errors.New("unexpected")
}

func TestSessionNoUnits(t *testing.T) {
	acc := &zeroUnits{}
	s := &Session{Config: Config{Elements: 8, Iterations: 1, Runs: 1}, Out: new(bytes.Buffer)}
	_, err := s.Run(acc, make([]uint32, 8), 0)
	if !parmin.IsDeviceError(err) {
		t.Fatalf("Run = %v, want device unavailable", err)
	}
	if len(acc.calls) != 0 {
		t.Errorf("device touched before failing: %v", acc.calls)
	}
}

func TestSessionReport(t *testing.T) {
	src := []uint32{5, 3, 9, 1, 7, 2, 8, 4}
	ctx := parmin.NewContextOrFail(t, parmin.ClassScalar, 2)

	var out bytes.Buffer
	rl, err := OpenResultsLog(t.TempDir(), "test")
	if err != nil {
		t.Fatalf("OpenResultsLog: %v", err)
	}
	s := &Session{Config: Config{Elements: len(src), Iterations: 2, Runs: 3}, Out: &out, Log: rl}
	results, err := s.Run(ctx, src, ReferenceMin(src))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	report := out.String()
	for _, want := range []string{
		"CPU: compute units: 2\n",
		"global_work_size : 2\n",
		"2 groups, 2 threads, count 1, stride 1\n",
		"computed value: 1\n",
		"result correct\n",
		"runs: 3, B/W mean",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	records, err := ReadResultsLog(rl.Path())
	if err != nil {
		t.Fatalf("ReadResultsLog: %v", err)
	}
	if len(records) != 3 || records[0].Status != "pass" || records[0].Min != 1 || records[0].Mode != "contiguous" {
		t.Errorf("records = %+v", records)
	}
	if mem := rl.Records(); len(mem) != len(records) || mem[2].GlobalSize != records[2].GlobalSize {
		t.Errorf("in-memory records %+v differ from the file %+v", mem, records)
	}
}

func TestSessionMismatch(t *testing.T) {
	src := []uint32{5, 3, 9, 1, 7, 2, 8, 4}
	ctx := parmin.NewContextOrFail(t, parmin.ClassScalar, 1)

	var out bytes.Buffer
	s := &Session{Config: Config{Elements: len(src), Iterations: 1, Runs: 2}, Out: &out}
	// A wrong reference stands in for a faulty device.
	results, err := s.Run(ctx, src, 0)
	if !parmin.IsVerificationError(err) {
		t.Fatalf("Run = %v, want verification mismatch", err)
	}
	if len(results) != 1 {
		t.Errorf("session continued after a mismatch: %d results", len(results))
	}
	if !strings.Contains(out.String(), "result INcorrect\n") {
		t.Errorf("report does not flag the mismatch:\n%s", out.String())
	}
}

func TestBandwidthAndSummary(t *testing.T) {
	res := &Result{Elements: 1000, Iterations: 10, Elapsed: time.Millisecond}
	if got, want := res.Bandwidth(), 0.04; math.Abs(got-want) > 1e-12 {
		t.Errorf("Bandwidth() = %v, want %v", got, want)
	}
	if (&Result{}).Bandwidth() != 0 {
		t.Error("zero elapsed time should report zero bandwidth")
	}

	results := []*Result{
		{Elements: 1e6, Iterations: 1, Elapsed: time.Millisecond},
		{Elements: 1e6, Iterations: 1, Elapsed: 2 * time.Millisecond},
	}
	s := Summarize(results)
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
	if s.Runs != 2 || !near(s.Max, 4) || !near(s.Min, 2) || !near(s.Mean, 3) {
		t.Errorf("Summarize = %+v", s)
	}
	if math.Abs(s.StdDev-math.Sqrt2) > 1e-9 {
		t.Errorf("StdDev = %v, want sqrt(2)", s.StdDev)
	}
	if one := Summarize(results[:1]); one.StdDev != 0 {
		t.Errorf("single run stddev = %v, want 0", one.StdDev)
	}
}

func TestSessionCountersAndColdCache(t *testing.T) {
	src := GenerateSource(1024, 7)
	ctx := parmin.NewContextOrFail(t, parmin.ClassWideSIMD, 2)

	var out bytes.Buffer
	s := &Session{
		Config: Config{Elements: len(src), Iterations: 2, Runs: 2, Counters: true, ColdCache: true},
		Out:    &out,
	}
	results, err := s.Run(ctx, src, ReferenceMin(src))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, res := range results {
		if res.Min != ReferenceMin(src) {
			t.Errorf("run %d: min %d, want %d", i, res.Min, ReferenceMin(src))
		}
		// Counters are absent where the kernel refuses perf events.
		if pc := res.Counters; pc != nil {
			if pc.Duration != res.Elapsed {
				t.Errorf("run %d: counter window %v, timed window %v", i, pc.Duration, res.Elapsed)
			}
			if !strings.Contains(out.String(), "Performance Counters:\n") {
				t.Errorf("counters not reported:\n%s", out.String())
			}
		}
	}
}

func TestFlushCaches(t *testing.T) {
	if d := FlushCaches(0); d != 0 {
		t.Errorf("FlushCaches(0) = %v, want 0", d)
	}
	if d := FlushCaches(1 << 20); d < 0 {
		t.Errorf("FlushCaches(1MiB) = %v", d)
	}
}
