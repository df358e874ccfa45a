package parmin

import (
	"fmt"
	"sync"
)

// MemFlags describes how a buffer is accessed by kernels and whether it is
// initialised from host memory.
type MemFlags int

const (
	MemReadWrite   MemFlags = 1 << iota // Kernels read and write
	MemWriteOnly                        // Kernels only write
	MemReadOnly                         // Kernels only read
	MemCopyHostPtr                      // Initialise from the host slice
)

const accessMask = MemReadWrite | MemWriteOnly | MemReadOnly

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead, and refuses allocations beyond its limit.
type MemoryPool struct {
	mu         sync.Mutex
	limit      int64
	freeList   []*allocation
	live       map[*allocation]struct{}
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	data []uint32
	used bool
}

// NewMemoryPool creates a new memory pool holding at most limit bytes.
// A zero limit means unbounded.
func NewMemoryPool(limit uint64) *MemoryPool {
	return &MemoryPool{
		limit: int64(limit),
		live:  make(map[*allocation]struct{}),
	}
}

// Allocate returns a zeroed block of at least words 32-bit words
func (mp *MemoryPool) Allocate(words int) (*allocation, error) {
	if words <= 0 {
		return nil, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to alignment
	const alignWords = MemoryAlignment / WordSize
	aligned := (words + alignWords - 1) &^ (alignWords - 1)
	bytes := int64(aligned) * WordSize

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if len(alloc.data) >= aligned {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			clear(alloc.data)
			alloc.used = true
			mp.live[alloc] = struct{}{}
			mp.track(int64(len(alloc.data)) * WordSize)
			return alloc, nil
		}
	}

	if mp.limit > 0 && mp.totalAlloc+bytes > mp.limit {
		return nil, &Error{
			Type:    ErrTypeMemory,
			Op:      "Allocate",
			Message: fmt.Sprintf("%d bytes requested, %d of %d in use", bytes, mp.totalAlloc, mp.limit),
			Code:    MemObjectAllocationFailure,
		}
	}

	alloc := &allocation{
		data: make([]uint32, aligned),
		used: true,
	}
	mp.live[alloc] = struct{}{}
	mp.track(bytes)
	return alloc, nil
}

func (mp *MemoryPool) track(bytes int64) {
	mp.totalAlloc += bytes
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(alloc *allocation) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if alloc == nil || !alloc.used {
		return ErrDoubleFree
	}

	alloc.used = false
	delete(mp.live, alloc)
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(len(alloc.data)) * WordSize
	return nil
}

// ReleaseAll frees every live block and drops the free list.
func (mp *MemoryPool) ReleaseAll() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for alloc := range mp.live {
		alloc.used = false
	}
	mp.live = make(map[*allocation]struct{})
	mp.freeList = nil
	mp.totalAlloc = 0
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// hostBuffer is a Buffer backed by pool memory.
type hostBuffer struct {
	ctx   *Context
	alloc *allocation
	label string
	flags MemFlags
	words int
}

func (b *hostBuffer) Label() string   { return b.label }
func (b *hostBuffer) Words() int      { return b.words }
func (b *hostBuffer) Flags() MemFlags { return b.flags }

// Release returns the buffer memory to the pool.
func (b *hostBuffer) Release() error {
	return b.ctx.memory.Free(b.alloc)
}

func (b *hostBuffer) data() []uint32 {
	return b.alloc.data[:b.words:b.words]
}

// CreateBuffer allocates a buffer of words 32-bit words. With
// MemCopyHostPtr the first words elements of host are copied in.
func (ctx *Context) CreateBuffer(label string, flags MemFlags, words int, host []uint32) (Buffer, error) {
	if ctx.released.Load() {
		return nil, ErrReleased
	}
	switch flags & accessMask {
	case MemReadWrite, MemWriteOnly, MemReadOnly:
	default:
		return nil, &Error{
			Type:    ErrTypeInvalidArg,
			Op:      "CreateBuffer",
			Message: fmt.Sprintf("buffer %s: exactly one access flag required", label),
			Code:    InvalidValue,
		}
	}
	if words <= 0 {
		return nil, &Error{
			Type:    ErrTypeInvalidArg,
			Op:      "CreateBuffer",
			Message: fmt.Sprintf("buffer %s: size must be positive", label),
			Code:    InvalidBufferSize,
		}
	}
	if flags&MemCopyHostPtr != 0 && len(host) < words {
		return nil, &Error{
			Type:    ErrTypeInvalidArg,
			Op:      "CreateBuffer",
			Message: fmt.Sprintf("buffer %s: host slice has %d words, need %d", label, len(host), words),
			Code:    InvalidValue,
		}
	}

	alloc, err := ctx.memory.Allocate(words)
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}

	buf := &hostBuffer{
		ctx:   ctx,
		alloc: alloc,
		label: label,
		flags: flags,
		words: words,
	}
	if flags&MemCopyHostPtr != 0 {
		copy(buf.data(), host[:words])
	}
	return buf, nil
}

// MapBuffer waits for every previously enqueued command, then returns a
// read-only snapshot of the first words words of b.
func (ctx *Context) MapBuffer(b Buffer, words int) ([]uint32, error) {
	if ctx.released.Load() {
		return nil, ErrReleased
	}
	hb, ok := b.(*hostBuffer)
	if !ok || hb.ctx != ctx || !hb.alloc.used {
		return nil, &Error{
			Type:    ErrTypeInvalidArg,
			Op:      "MapBuffer",
			Message: "buffer does not belong to this context",
			Code:    InvalidMemObject,
		}
	}
	if words <= 0 || words > hb.words {
		return nil, &Error{
			Type:    ErrTypeInvalidArg,
			Op:      "MapBuffer",
			Message: fmt.Sprintf("map of %d words outside buffer %s of %d", words, hb.label, hb.words),
			Code:    InvalidValue,
		}
	}

	out := make([]uint32, words)
	ev := ctx.queue.submit("map "+hb.label, func() error {
		copy(out, hb.data()[:words])
		return nil
	}, nil)
	if err := ev.Wait(); err != nil {
		return nil, &Error{
			Type:    ErrTypeDispatch,
			Op:      "MapBuffer",
			Message: "map of " + hb.label + " failed",
			Code:    MapFailure,
			Err:     err,
		}
	}
	return out, nil
}
