package kernels

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/LynnColeArt/parmin"
)

// reduce runs the kernel pair once on a host context over grid and returns
// slot 0 and the debug words.
func reduce(t *testing.T, class parmin.DeviceClass, src []uint32, grid parmin.GridShape) (uint32, []uint32) {
	t.Helper()
	ctx := parmin.NewContextOrFail(t, class, 4)
	prog, err := ctx.BuildProgram(Source)
	if err != nil {
		t.Fatalf("BuildProgram: %v\n%s", err, parmin.BuildLog(err))
	}
	minp, err := prog.Kernel(PartialMinName)
	if err != nil {
		t.Fatalf("Kernel: %v", err)
	}
	red, err := prog.Kernel(GlobalReduceName)
	if err != nil {
		t.Fatalf("Kernel: %v", err)
	}

	n := len(src)
	srcBuf := parmin.CreateBufferOrFail(t, ctx, "src", parmin.MemReadOnly|parmin.MemCopyHostPtr, n, src)
	dst := parmin.CreateBufferOrFail(t, ctx, "dst", parmin.MemReadWrite, grid.Groups, nil)
	dbg := parmin.CreateBufferOrFail(t, ctx, "dbg", parmin.MemWriteOnly, max(grid.GlobalSize, DebugWords), nil)
	parmin.SetArgsOrFail(t, minp, srcBuf, dst, parmin.LocalMem{Size: ScratchBytes}, dbg,
		uint32(n), uint32(parmin.ModeFor(class)))
	parmin.SetArgsOrFail(t, red, srcBuf, dst)

	ev := parmin.EnqueueOrFail(t, ctx, minp, grid.GlobalSize, grid.LocalSize)
	parmin.EnqueueOrFail(t, ctx, red, grid.Groups, 0, ev)
	parmin.FinishOrFail(t, ctx)
	return parmin.MapOrFail(t, ctx, dst, 1)[0], parmin.MapOrFail(t, ctx, dbg, DebugWords)
}

func serialMin(src []uint32) uint32 {
	m := uint32(math.MaxUint32)
	for _, v := range src {
		m = min(m, v)
	}
	return m
}

func TestSource(t *testing.T) {
	want := []string{PartialMinName, GlobalReduceName}
	if got := parmin.EntryPoints(Source); !reflect.DeepEqual(got, want) {
		t.Errorf("EntryPoints(Source) = %v, want %v", got, want)
	}
	src, err := Load("")
	if err != nil || src != Source {
		t.Errorf("Load(\"\") did not return the embedded source: %v", err)
	}
	if _, err := Load("does/not/exist.wgsl"); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestReductionMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, class := range []parmin.DeviceClass{parmin.ClassScalar, parmin.ClassWideSIMD} {
		for _, n := range []int{4, 8, 60, 1024, 4000, 1 << 16} {
			src := make([]uint32, n)
			for i := range src {
				src[i] = rng.Uint32() | 1
			}
			// Put the minimum in the last chunk to catch dropped tails.
			src[n-1] = 0

			grid, err := parmin.PlanGrid(class, 4, n)
			if err != nil {
				t.Fatalf("PlanGrid: %v", err)
			}
			got, dbg := reduce(t, class, src, grid)
			if want := serialMin(src); got != want {
				t.Errorf("%v n=%d grid %v: min %d, want %d", class, n, grid, got, want)
			}

			stride := uint32(1)
			if class == parmin.ClassWideSIMD {
				stride = uint32(grid.GlobalSize)
			}
			wantDbg := []uint32{uint32(grid.Groups), uint32(grid.GlobalSize), uint32(grid.Count(n)), stride}
			if !reflect.DeepEqual(dbg, wantDbg) {
				t.Errorf("%v n=%d: debug words %v, want %v", class, n, dbg, wantDbg)
			}
		}
	}
}

func TestSingleChunk(t *testing.T) {
	grid, err := parmin.PlanGrid(parmin.ClassScalar, 1, 4)
	if err != nil {
		t.Fatalf("PlanGrid: %v", err)
	}
	if grid != (parmin.GridShape{GlobalSize: 1, LocalSize: 1, Groups: 1}) {
		t.Fatalf("grid = %v, want one thread", grid)
	}
	if got, _ := reduce(t, parmin.ClassScalar, []uint32{9, 4, 6, 8}, grid); got != 4 {
		t.Errorf("min = %d, want 4", got)
	}
}

func TestTwoThreadPartials(t *testing.T) {
	src := []uint32{5, 3, 9, 1, 7, 2, 8, 4}

	// Each thread run as its own group exposes its private minimum.
	gmin := make([]uint32, 2)
	args := parmin.Args{src, gmin, make([]uint32, 1), make([]uint32, DebugWords), uint32(len(src)), uint32(parmin.ModeContiguous)}
	for gid := 0; gid < 2; gid++ {
		args[ArgScratch] = make([]uint32, 1)
		PartialMin(&parmin.WorkItem{GlobalID: gid, GroupID: gid, GlobalSize: 2, LocalSize: 1, NumGroups: 2}, args)
	}
	if gmin[0] != 1 || gmin[1] != 2 {
		t.Errorf("thread partials = %v, want [1 2]", gmin)
	}

	got, dbg := reduce(t, parmin.ClassScalar, src, parmin.GridShape{GlobalSize: 2, LocalSize: 2, Groups: 1})
	if got != 1 {
		t.Errorf("slot 0 = %d, want 1", got)
	}
	if want := []uint32{1, 2, 1, 1}; !reflect.DeepEqual(dbg, want) {
		t.Errorf("debug words = %v, want %v", dbg, want)
	}
}

func TestGlobalReduceOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := make([]uint32, 64)
	for i := range base {
		base[i] = rng.Uint32()
	}
	want := serialMin(base)

	for trial := 0; trial < 20; trial++ {
		gmin := append([]uint32(nil), base...)
		args := parmin.Args{nil, gmin}
		for _, gid := range rng.Perm(len(gmin)) {
			GlobalReduce(&parmin.WorkItem{GlobalID: gid, GlobalSize: len(gmin), LocalSize: 1}, args)
		}
		if gmin[0] != want {
			t.Fatalf("trial %d: slot 0 = %d, want %d", trial, gmin[0], want)
		}
	}
}

func BenchmarkPartialMin(b *testing.B) {
	const n = 1 << 20
	src := make([]uint32, n)
	for i := range src {
		src[i] = uint32(n - i)
	}
	grid, err := parmin.PlanGrid(parmin.ClassScalar, 1, n)
	if err != nil {
		b.Fatal(err)
	}
	args := parmin.Args{src, make([]uint32, 1), make([]uint32, 1), make([]uint32, DebugWords), uint32(n), uint32(parmin.ModeContiguous)}
	wi := &parmin.WorkItem{GlobalSize: grid.GlobalSize, LocalSize: 1, NumGroups: 1}

	b.SetBytes(n * parmin.WordSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PartialMin(wi, args)
	}
}
