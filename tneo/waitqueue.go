package tneo

import "github.com/riuson/tneo/tnlist"

// enqueueReady transitions t into exactly the Runnable bit (from either
// Dormant or a just-completed wait), arms its round-robin budget, and links
// it into the ready set. Callers own the surrounding critical section.
func (k *Kernel) enqueueReady(t *Task) {
	t.state |= StateRunnable
	t.roundRobinBudget = k.cfg.roundRobinTicksFor(t.priority)
	k.ready.enqueue(t)
}

// findNextTask recomputes next as the head of the highest-priority
// non-empty ready slot, falling back to the idle task. Callers own the
// surrounding critical section (spec §4.5).
func (k *Kernel) findNextTask() {
	t := k.ready.highestPriorityTask()
	if t == nil {
		t = k.idle
	}
	k.next = t
}

// switchIfNeeded invokes the architecture context switch if current and
// next have diverged. Must be called with interrupts enabled, from task
// context (spec §4.5); it does not return to its caller until this task is
// current again.
func (k *Kernel) switchIfNeeded() {
	if k.current != k.next {
		k.arch.ContextSwitch(k)
	}
}

// armTimeout links t into the pending-timeouts list with the given
// countdown. It arms whatever timeout it is given; waitCurr never calls it
// for TimeoutInfinite, and no caller reaches waitCurr with TimeoutPoll.
func (k *Kernel) armTimeout(t *Task, timeout int) {
	t.hasDeadline = true
	t.deadlineTicks = timeout
	k.timeouts.PushBack(&t.timeoutQueue)
}

// cancelTimeout unlinks t from the pending-timeouts list if a timeout was
// armed for it; harmless no-op otherwise.
func (k *Kernel) cancelTimeout(t *Task) {
	if !t.hasDeadline {
		return
	}
	t.hasDeadline = false
	t.timeoutQueue.Remove()
}

// waitCurr blocks the current task on queue (spec §4.4): removes it from
// the ready set, marks it Waiting with the given reason, appends it (FIFO)
// to queue, arms a timeout if finite, and recomputes next. Callers own the
// surrounding critical section; waitCurr never itself performs the switch
// — that happens once the caller releases interrupts and calls
// switchIfNeeded.
func (k *Kernel) waitCurr(queue *tnlist.Node[*Task], reason WaitReason, timeout int) {
	t := k.current
	k.ready.remove(t)
	t.state &^= StateRunnable
	t.state |= StateWaiting
	t.waitReason = reason
	t.waitRC = RCTimeout
	queue.PushBack(&t.taskQueue)
	if timeout != TimeoutInfinite {
		k.armTimeout(t, timeout)
	}
	k.findNextTask()
}

// waitComplete ends t's wait with result rc (spec §4.4): unlinks it from
// its wait-queue, cancels any armed timeout, clears Waiting, and — unless
// Suspended is also set — makes it Runnable again and recomputes next.
// Callers own the surrounding critical section.
func (k *Kernel) waitComplete(t *Task, rc RCode) {
	t.taskQueue.Remove()
	k.cancelTimeout(t)
	t.state &^= StateWaiting
	t.waitReason = WaitReasonNone
	t.waitRC = rc
	if t.state&StateSuspended == 0 {
		k.enqueueReady(t)
		k.findNextTask()
	}
}

// queueNotifyDeleted completes every waiter on queue with DELETED (spec
// §4.4), for use by a primitive's Delete operation. Callers own the
// surrounding critical section.
func (k *Kernel) queueNotifyDeleted(queue *tnlist.Node[*Task]) {
	queue.ForEachSafe(func(n *tnlist.Node[*Task]) bool {
		k.waitComplete(n.Value(), RCDeleted)
		return true
	})
}
