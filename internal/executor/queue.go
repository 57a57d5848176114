package executor

import (
	"container/heap"
	"context"

	"github.com/tidelake/tidelake/pkg/types"
)

// taskEntry pairs a task with the context governing its execution. The
// context carries the batch deadline so an abandoned batch also cancels
// its in-flight tasks.
type taskEntry struct {
	task *types.Task
	ctx  context.Context

	// seq preserves FIFO order within one priority level.
	seq uint64

	index int
}

// taskHeap orders entries by descending priority, then ascending sequence.
type taskHeap []*taskEntry

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	entry := x.(*taskEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// taskQueue is a bounded priority queue. Not safe for concurrent use; the
// processor serializes access under its own mutex.
type taskQueue struct {
	heap     taskHeap
	capacity int
	nextSeq  uint64
}

func newTaskQueue(capacity int) *taskQueue {
	q := &taskQueue{capacity: capacity}
	heap.Init(&q.heap)
	return q
}

// push enqueues an entry, reporting false when the queue is full.
func (q *taskQueue) push(entry *taskEntry) bool {
	if q.capacity > 0 && len(q.heap) >= q.capacity {
		return false
	}
	entry.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.heap, entry)
	return true
}

// requeue returns a popped entry to the queue keeping its original
// sequence, so it stays ahead of its priority peers.
func (q *taskQueue) requeue(entry *taskEntry) {
	heap.Push(&q.heap, entry)
}

// pop removes and returns the highest-priority entry, nil when empty.
func (q *taskQueue) pop() *taskEntry {
	if len(q.heap) == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*taskEntry)
}

func (q *taskQueue) len() int {
	return len(q.heap)
}

// drain removes every queued entry.
func (q *taskQueue) drain() []*taskEntry {
	entries := make([]*taskEntry, 0, len(q.heap))
	for {
		entry := q.pop()
		if entry == nil {
			return entries
		}
		entries = append(entries, entry)
	}
}
