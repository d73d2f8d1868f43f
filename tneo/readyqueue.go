package tneo

import (
	"math/bits"

	"github.com/riuson/tneo/tnlist"
)

// noPriority is the sentinel returned by readyQueueSet.highestPriority
// when the bitmap is entirely clear.
const noPriority = -1

// readyQueueSet is an array of per-priority run queues plus a bitmap of
// non-empty priorities (spec §4.2). Highest priority is bit 0 / index 0,
// so "find highest ready priority" is a single count-trailing-zeros.
type readyQueueSet struct {
	slots  []tnlist.Node[*Task]
	bitmap uint64
}

func newReadyQueueSet(n int) *readyQueueSet {
	rq := &readyQueueSet{slots: make([]tnlist.Node[*Task], n)}
	for i := range rq.slots {
		rq.slots[i].Reset()
	}
	return rq
}

// enqueue appends task to the slot for its current priority and sets the
// bitmap bit. Precondition: task is not already linked into any
// ready-queue slot.
func (rq *readyQueueSet) enqueue(task *Task) {
	rq.slots[task.priority].PushBack(&task.taskQueue)
	rq.bitmap |= 1 << uint(task.priority)
}

// remove unlinks task from its slot, clearing the bitmap bit if that slot
// becomes empty.
func (rq *readyQueueSet) remove(task *Task) {
	p := task.priority
	task.taskQueue.Remove()
	if rq.slots[p].Empty() {
		rq.bitmap &^= 1 << uint(p)
	}
}

// highestPriority returns the index of the lowest set bit of the bitmap,
// or noPriority if every slot is empty.
func (rq *readyQueueSet) highestPriority() int {
	if rq.bitmap == 0 {
		return noPriority
	}
	return bits.TrailingZeros64(rq.bitmap)
}

// firstOf returns the first task linked into the slot for priority p, or
// nil if that slot is empty.
func (rq *readyQueueSet) firstOf(p int) *Task {
	n := rq.slots[p].Front()
	if n == nil {
		return nil
	}
	return n.Value()
}

// highestPriorityTask returns the head of the highest-priority non-empty
// slot, or nil if the whole ready set is empty.
func (rq *readyQueueSet) highestPriorityTask() *Task {
	p := rq.highestPriority()
	if p == noPriority {
		return nil
	}
	return rq.firstOf(p)
}

// rotate moves task — which must currently be linked at the head of its
// own slot — to the tail of that same slot. Used for round-robin rotation
// and for task_yield.
func (rq *readyQueueSet) rotate(task *Task) {
	rq.remove(task)
	rq.enqueue(task)
}
