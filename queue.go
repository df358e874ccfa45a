package parmin

import (
	"fmt"
	"sync"
)

// Queue is an in-order command queue. Commands execute one at a time in
// submission order on a dedicated worker goroutine; a command first waits
// on its wait list and fails without running if any dependency failed.
type Queue struct {
	tasks chan *command
	wg    sync.WaitGroup

	state  sync.RWMutex // guards closed against concurrent submits
	closed bool

	mu  sync.Mutex
	err error
}

type command struct {
	run     func() error
	waitFor []*Event
	event   *Event
}

func newQueue(depth int) *Queue {
	q := &Queue{
		tasks: make(chan *command, depth),
	}
	go q.worker()
	return q
}

// worker processes commands for the queue
func (q *Queue) worker() {
	for cmd := range q.tasks {
		err := cmd.exec()
		if err != nil {
			q.mu.Lock()
			if q.err == nil {
				q.err = err
			}
			q.mu.Unlock()
		}
		cmd.event.Complete(err)
		q.wg.Done()
	}
}

func (cmd *command) exec() error {
	if err := WaitForEvents(cmd.waitFor...); err != nil {
		return NewDispatchError(cmd.event.label, ExecStatusErrorForEvents,
			"dependency failed", err)
	}
	return cmd.run()
}

// submit adds a command to the queue and returns its completion token.
func (q *Queue) submit(label string, run func() error, waitFor []*Event) *Event {
	ev := NewEvent(label)

	q.state.RLock()
	defer q.state.RUnlock()
	if q.closed {
		ev.Complete(NewDispatchError(label, InvalidCommandQueue, "queue is closed", nil))
		return ev
	}
	q.wg.Add(1)
	q.tasks <- &command{run: run, waitFor: waitFor, event: ev}
	return ev
}

// Finish waits for all commands in the queue to complete and returns the
// first failure since the previous Finish.
func (q *Queue) Finish() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	return nil
}

func (q *Queue) close() {
	q.state.Lock()
	defer q.state.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
}
