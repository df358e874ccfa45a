package parmin

import "sync"

// Event is a completion token for an enqueued command. Once Done is
// closed the command has finished and its memory effects are visible to
// every command that waits on the event.
type Event struct {
	label string
	done  chan struct{}
	once  sync.Once
	err   error
}

// NewEvent returns a pending event. Backends complete it exactly once.
func NewEvent(label string) *Event {
	return &Event{
		label: label,
		done:  make(chan struct{}),
	}
}

// Complete marks the event finished with the given status. Later calls
// are ignored.
func (e *Event) Complete(err error) {
	e.once.Do(func() {
		e.err = err
		close(e.done)
	})
}

// Done is closed when the command has finished.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the command finishes and returns its status.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// Label names the command the event belongs to.
func (e *Event) Label() string {
	return e.label
}

// WaitForEvents blocks until every event has completed and returns the
// first failure.
func WaitForEvents(events ...*Event) error {
	var first error
	for _, ev := range events {
		if err := ev.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
