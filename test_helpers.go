package parmin

import (
	"testing"
)

// NewContextOrFail creates a host context with the given class and unit
// count, released when the test ends.
func NewContextOrFail(t testing.TB, class DeviceClass, units int) *Context {
	t.Helper()
	ctx, err := NewContext(Options{Class: class, ComputeUnits: units})
	if err != nil {
		t.Fatalf("Failed to create %s context with %d units: %v", class, units, err)
	}
	t.Cleanup(func() { ctx.Release() })
	return ctx
}

// CreateBufferOrFail allocates a buffer and fails the test if unsuccessful
func CreateBufferOrFail(t testing.TB, acc Accelerator, label string, flags MemFlags, words int, host []uint32) Buffer {
	t.Helper()
	buf, err := acc.CreateBuffer(label, flags, words, host)
	if err != nil {
		t.Fatalf("Failed to create buffer %s of %d words: %v", label, words, err)
	}
	return buf
}

// SetArgsOrFail binds args to k in index order
func SetArgsOrFail(t testing.TB, k Kernel, args ...any) {
	t.Helper()
	for i, arg := range args {
		if err := k.SetArg(i, arg); err != nil {
			t.Fatalf("SetArg(%d) on %s failed: %v", i, k.Name(), err)
		}
	}
}

// EnqueueOrFail enqueues a kernel and fails the test if it is rejected
func EnqueueOrFail(t testing.TB, acc Accelerator, k Kernel, global, local int, waitFor ...*Event) *Event {
	t.Helper()
	ev, err := acc.EnqueueKernel(k, global, local, waitFor...)
	if err != nil {
		t.Fatalf("EnqueueKernel %s (%d/%d) failed: %v", k.Name(), global, local, err)
	}
	return ev
}

// FinishOrFail waits for the queue and fails the test on any error
func FinishOrFail(t testing.TB, acc Accelerator) {
	t.Helper()
	if err := acc.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
}

// MapOrFail maps words words of b and fails the test if unsuccessful
func MapOrFail(t testing.TB, acc Accelerator, b Buffer, words int) []uint32 {
	t.Helper()
	out, err := acc.MapBuffer(b, words)
	if err != nil {
		t.Fatalf("MapBuffer %s failed: %v", b.Label(), err)
	}
	return out
}
