package executor

import (
	"context"
	"testing"

	"github.com/tidelake/tidelake/pkg/types"
)

func entryWithPriority(id string, priority int) *taskEntry {
	return &taskEntry{
		task: &types.Task{ID: id, Priority: priority},
		ctx:  context.Background(),
	}
}

func TestQueuePriorityOrder(t *testing.T) {
	q := newTaskQueue(0)
	q.push(entryWithPriority("low", 1))
	q.push(entryWithPriority("high", 3))
	q.push(entryWithPriority("normal", 2))

	want := []string{"high", "normal", "low"}
	for _, id := range want {
		entry := q.pop()
		if entry == nil || entry.task.ID != id {
			t.Fatalf("expected %s next, got %+v", id, entry)
		}
	}
	if q.pop() != nil {
		t.Error("expected empty queue")
	}
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	q := newTaskQueue(0)
	q.push(entryWithPriority("first", 2))
	q.push(entryWithPriority("second", 2))
	q.push(entryWithPriority("third", 2))

	want := []string{"first", "second", "third"}
	for _, id := range want {
		entry := q.pop()
		if entry.task.ID != id {
			t.Fatalf("expected %s next, got %s", id, entry.task.ID)
		}
	}
}

func TestQueueRequeueKeepsPosition(t *testing.T) {
	q := newTaskQueue(0)
	q.push(entryWithPriority("first", 2))
	q.push(entryWithPriority("second", 2))
	q.push(entryWithPriority("third", 2))

	// A popped head returned to the queue stays ahead of its peers.
	head := q.pop()
	if head.task.ID != "first" {
		t.Fatalf("expected first at the head, got %s", head.task.ID)
	}
	q.requeue(head)

	want := []string{"first", "second", "third"}
	for _, id := range want {
		entry := q.pop()
		if entry.task.ID != id {
			t.Fatalf("expected %s next, got %s", id, entry.task.ID)
		}
	}
}

func TestQueueCapacity(t *testing.T) {
	q := newTaskQueue(2)
	if !q.push(entryWithPriority("a", 1)) || !q.push(entryWithPriority("b", 1)) {
		t.Fatal("pushes under capacity must succeed")
	}
	if q.push(entryWithPriority("c", 1)) {
		t.Error("push over capacity must fail")
	}
	if q.len() != 2 {
		t.Errorf("expected length 2, got %d", q.len())
	}
}

func TestQueueDrain(t *testing.T) {
	q := newTaskQueue(0)
	for i := 0; i < 5; i++ {
		q.push(entryWithPriority(string(rune('a'+i)), i))
	}

	drained := q.drain()
	if len(drained) != 5 {
		t.Fatalf("expected 5 drained entries, got %d", len(drained))
	}
	if q.len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.len())
	}
}
