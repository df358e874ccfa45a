package parmin

import (
	"errors"
	"sync"
)

// errBarrierBroken is raised in work-items waiting on a barrier whose group
// has already failed.
var errBarrierBroken = errors.New("work-group barrier broken")

// Barrier is a reusable rendezvous for the work-items of one group. Memory
// written before Wait by any participant is visible to every participant
// after Wait returns.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	waiting    int
	generation uint64
	broken     bool
}

// NewBarrier returns a barrier for n participants.
func NewBarrier(n int) *Barrier {
	b := &Barrier{parties: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until every remaining participant has called Wait. It panics
// with errBarrierBroken if the barrier is broken while waiting.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		panic(errBarrierBroken)
	}
	gen := b.generation
	b.waiting++
	if b.waiting >= b.parties {
		b.trip()
		return
	}
	for gen == b.generation && !b.broken {
		b.cond.Wait()
	}
	if gen == b.generation {
		panic(errBarrierBroken)
	}
}

// Depart removes a participant that has finished its kernel. Work-items
// that return without reaching a barrier must not strand the others.
func (b *Barrier) Depart() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.parties--
	if b.waiting > 0 && b.waiting >= b.parties {
		b.trip()
	}
}

// Break releases every waiter with errBarrierBroken.
func (b *Barrier) Break() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.broken = true
	b.cond.Broadcast()
}

func (b *Barrier) trip() {
	b.waiting = 0
	b.generation++
	b.cond.Broadcast()
}
