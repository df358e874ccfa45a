package parmin

import (
	"errors"
	"testing"
	"time"
)

func TestQueueInOrder(t *testing.T) {
	q := newQueue(4)
	defer q.close()

	var order []int
	for i := 0; i < 100; i++ {
		q.submit("step", func() error {
			order = append(order, i)
			return nil
		}, nil)
	}
	if err := q.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("command %d ran at position %d", v, i)
		}
	}
	if len(order) != 100 {
		t.Errorf("ran %d commands, want 100", len(order))
	}
}

func TestQueueFailedDependency(t *testing.T) {
	q := newQueue(4)
	defer q.close()

	boom := errors.New("boom")
	first := q.submit("first", func() error { return boom }, nil)
	ran := false
	second := q.submit("second", func() error {
		ran = true
		return nil
	}, []*Event{first})

	if err := second.Wait(); CodeOf(err) != ExecStatusErrorForEvents {
		t.Errorf("dependent event error = %v, want %v", err, ExecStatusErrorForEvents)
	}
	if ran {
		t.Error("dependent command ran after its dependency failed")
	}

	err := q.Finish()
	if !errors.Is(err, boom) {
		t.Errorf("Finish() = %v, want the first failure", err)
	}
	if err := q.Finish(); err != nil {
		t.Errorf("second Finish() = %v, want nil", err)
	}
}

func TestQueueClosed(t *testing.T) {
	q := newQueue(1)
	q.close()
	ev := q.submit("late", func() error { return nil }, nil)
	if err := ev.Wait(); CodeOf(err) != InvalidCommandQueue {
		t.Errorf("submit after close = %v, want %v", err, InvalidCommandQueue)
	}
}

func TestEvent(t *testing.T) {
	ev := NewEvent("k")
	select {
	case <-ev.Done():
		t.Fatal("new event is already done")
	default:
	}

	want := errors.New("first")
	ev.Complete(want)
	ev.Complete(errors.New("second"))
	if err := ev.Wait(); err != want {
		t.Errorf("Wait() = %v, want %v", err, want)
	}
	if ev.Label() != "k" {
		t.Errorf("Label() = %q", ev.Label())
	}

	ok := NewEvent("ok")
	go func() {
		time.Sleep(time.Millisecond)
		ok.Complete(nil)
	}()
	if err := WaitForEvents(ok, ev); err != want {
		t.Errorf("WaitForEvents() = %v, want %v", err, want)
	}
}
