package parmin

import "sync/atomic"

// AtomicMinUint32 stores min(*addr, val) into *addr as one atomic
// read-modify-write and returns the previous value. Concurrent callers may
// interleave in any order; the final value is the minimum of all of them.
func AtomicMinUint32(addr *uint32, val uint32) uint32 {
	for {
		old := atomic.LoadUint32(addr)
		if old <= val || atomic.CompareAndSwapUint32(addr, old, val) {
			return old
		}
	}
}
