package minbench

import (
	"runtime"
	"time"
)

// FlushSize is twice the largest common last level cache, enough to evict
// the source array from it.
const FlushSize = 64 << 20

const cacheLine = 64

// FlushCaches simulates a cold cache by writing every cache line of a
// scratch buffer of size bytes twice with different patterns. It returns
// how long the flush took.
func FlushCaches(size int) time.Duration {
	if size <= 0 {
		return 0
	}
	data := make([]byte, size)
	start := time.Now()
	for i := 0; i < len(data); i += cacheLine {
		data[i] = byte(i)
	}
	// Second pass with a different pattern so the lines are replaced.
	for i := 0; i < len(data); i += cacheLine {
		data[i] = byte(i * 7)
	}
	elapsed := time.Since(start)
	runtime.KeepAlive(data)
	runtime.GC()
	return elapsed
}
