package sched

import (
	"container/heap"
	"sync"
)

// QueuedTask is one task waiting in a dispatch queue.
type QueuedTask struct {
	PID     int32
	Class   Class
	Vtime   int64
	seq     int64 // FIFO tie-break
}

// vtimeHeap orders by Vtime, ties broken FIFO via seq.
type vtimeHeap []*QueuedTask

func (h vtimeHeap) Len() int { return len(h) }
func (h vtimeHeap) Less(i, j int) bool {
	if h[i].Vtime != h[j].Vtime {
		return h[i].Vtime < h[j].Vtime
	}
	return h[i].seq < h[j].seq
}
func (h vtimeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *vtimeHeap) Push(x any)   { *h = append(*h, x.(*QueuedTask)) }
func (h *vtimeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DispatchQueue is a vtime-ordered FIFO-tiebreak queue for one die, or
// the fallback queue.
type DispatchQueue struct {
	mu   sync.Mutex
	id   int // die id, or nr_dies for the fallback queue
	h    vtimeHeap
	next int64
}

func newDispatchQueue(id int) *DispatchQueue {
	return &DispatchQueue{id: id}
}

// Insert adds a task at the given vtime.
func (q *DispatchQueue) Insert(pid int32, class Class, vtime int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	heap.Push(&q.h, &QueuedTask{PID: pid, Class: class, Vtime: vtime, seq: q.next})
}

// MoveToLocal pops the earliest-vtime task, if any.
func (q *DispatchQueue) MoveToLocal() (*QueuedTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.h).(*QueuedTask), true
}

// Len reports the number of queued tasks.
func (q *DispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// MinPriorityClass returns the lowest-priority (largest Priority())
// class currently queued, used only for diagnostics — the hot path's
// own victim search (preempt.go) reads CpuRunState, not queues.
func (q *DispatchQueue) MinPriorityClass() (Class, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return ClassUnknown, false
	}
	worst := q.h[0].Class
	for _, t := range q.h {
		if t.Class.Priority() > worst.Priority() {
			worst = t.Class
		}
	}
	return worst, true
}

// DispatchQueues is the full set: one per die plus the fallback queue,
// created at Init and destroyed at Exit. The count is nr_dies+1 for
// the lifetime of the scheduler (spec §3 invariant).
type DispatchQueues struct {
	perDie   []*DispatchQueue
	fallback *DispatchQueue
}

// NewDispatchQueues creates nrDies per-die queues plus one fallback queue.
func NewDispatchQueues(nrDies int) *DispatchQueues {
	qs := &DispatchQueues{
		perDie:   make([]*DispatchQueue, nrDies),
		fallback: newDispatchQueue(nrDies),
	}
	for d := 0; d < nrDies; d++ {
		qs.perDie[d] = newDispatchQueue(d)
	}
	return qs
}

// Count returns nr_dies+1, the invariant dispatch-queue count.
func (qs *DispatchQueues) Count() int { return len(qs.perDie) + 1 }

// Die returns the per-die queue for d.
func (qs *DispatchQueues) Die(d int) *DispatchQueue {
	if d < 0 || d >= len(qs.perDie) {
		return qs.fallback
	}
	return qs.perDie[d]
}

// Fallback returns the fallback queue.
func (qs *DispatchQueues) Fallback() *DispatchQueue { return qs.fallback }

// Vtime computes the enqueue virtual time for a class per spec §4.6:
// gaming is always first, interactive scales lightly with burst,
// everything else (CPU-bound) is penalized more heavily.
func Vtime(class Class, burstNs int64) int64 {
	switch class {
	case ClassGaming, ClassVmGaming:
		return 0
	case ClassInteractive:
		return burstNs / 1000
	default:
		return burstNs / 100
	}
}
