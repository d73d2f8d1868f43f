package tneo

import "github.com/riuson/tneo/tnlist"

// semMagic tags a live Semaphore, same identity-tag discipline as Task.
const semMagic uint32 = 0x53454d41 // "SEMA"

// Semaphore is a counting semaphore over the wait-queue protocol (spec
// §4.6), the canonical worked example of a blocking primitive. Invariant:
// 0 <= count <= maxCount; count > 0 implies waitQueue is empty; waitQueue
// non-empty implies count == 0 (signal hands its unit directly to the head
// waiter without ever touching count — see [Kernel.signalLocked]).
type Semaphore struct {
	magic     uint32
	kernel    *Kernel
	count     int
	maxCount  int
	waitQueue tnlist.Node[*Task]
}

// Count returns the semaphore's current count.
func (s *Semaphore) Count() int { return s.count }

// MaxCount returns the semaphore's configured maximum count.
func (s *Semaphore) MaxCount() int { return s.maxCount }

// IsAlive reports whether the semaphore has not been passed to
// [Kernel.SemaphoreDelete].
func (s *Semaphore) IsAlive() bool { return s.magic == semMagic }

func (k *Kernel) checkSem(s *Semaphore) RCode {
	if s == nil || s.magic != semMagic || s.kernel != k {
		return RCInvalidObj
	}
	return RCOk
}

// SemaphoreCreate initializes a new semaphore with the given starting and
// maximum counts. Task context only; does not disable interrupts (creation
// is serialized by the caller, per spec §4.6).
func (k *Kernel) SemaphoreCreate(startCount, maxCount int) (*Semaphore, RCode) {
	if k.cfg.CheckParam {
		if maxCount <= 0 || startCount < 0 || startCount > maxCount {
			return nil, RCWParam
		}
	}
	if k.arch.InsideISR() {
		return nil, RCWContext
	}
	s := &Semaphore{
		magic:    semMagic,
		kernel:   k,
		count:    startCount,
		maxCount: maxCount,
	}
	s.waitQueue.Reset()
	k.log.Debug().Int("count", startCount).Int("max_count", maxCount).Log("semaphore created")
	return s, RCOk
}

// SemaphoreDelete releases every waiter with DELETED and clears the
// identity tag. Task context only.
func (k *Kernel) SemaphoreDelete(s *Semaphore) RCode {
	if rc := k.checkSem(s); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		k.queueNotifyDeleted(&s.waitQueue)
		s.magic = 0
		return RCOk
	})
}

// SemaphoreAcquire decrements the count if it's positive, else blocks the
// calling task until signaled, the semaphore is deleted, or timeout
// expires (TimeoutPoll fails immediately instead of blocking). Task
// context only. Returns OK, TIMEOUT, or DELETED.
func (k *Kernel) SemaphoreAcquire(s *Semaphore, timeout int) RCode {
	if rc := k.checkSem(s); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}

	tok := k.enterCritical()
	if s.count >= 1 {
		s.count--
		k.leaveCritical(tok)
		return RCOk
	}
	if timeout == TimeoutPoll {
		k.leaveCritical(tok)
		return RCTimeout
	}

	t := k.current
	k.waitCurr(&s.waitQueue, WaitReasonSem, timeout)
	k.leaveCritical(tok)
	k.switchIfNeeded()
	return t.waitRC
}

// SemaphoreAcquirePolling is SemaphoreAcquire with TimeoutPoll: it never
// blocks. Task context only.
func (k *Kernel) SemaphoreAcquirePolling(s *Semaphore) RCode {
	return k.SemaphoreAcquire(s, TimeoutPoll)
}

// SemaphoreIAcquirePolling is SemaphoreAcquirePolling's ISR-context
// counterpart: ISRs must not block, so this is the only acquire form
// available to them.
func (k *Kernel) SemaphoreIAcquirePolling(s *Semaphore) RCode {
	if rc := k.checkSem(s); rc != RCOk {
		return rc
	}
	if !k.arch.InsideISR() {
		return RCWContext
	}
	tok := k.enterCriticalISR()
	defer k.leaveCriticalISR(tok)
	if s.count >= 1 {
		s.count--
		return RCOk
	}
	return RCTimeout
}

// signalLocked is the shared body of Signal and ISignal: if a waiter is
// queued, hand it the unit directly (count is untouched — see Semaphore's
// doc comment); otherwise increment count, or report OVERFLOW if already
// at maxCount. Callers own the surrounding critical section.
func (k *Kernel) signalLocked(s *Semaphore) RCode {
	if !s.waitQueue.Empty() {
		waiter := s.waitQueue.Front().Value()
		k.waitComplete(waiter, RCOk)
		return RCOk
	}
	if s.count < s.maxCount {
		s.count++
		return RCOk
	}
	return RCOverflow
}

// SemaphoreSignal releases one unit: wakes the longest-waiting blocked
// task if any, else increments count (or returns OVERFLOW at maxCount).
// Task context only.
func (k *Kernel) SemaphoreSignal(s *Semaphore) RCode {
	if rc := k.checkSem(s); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		return k.signalLocked(s)
	})
}

// SemaphoreISignal is SemaphoreSignal's ISR-context counterpart. Per spec
// §4.5's deferred-switch discipline, it only ever updates next — the
// caller's Arch ISR wrapper must call [Kernel.Reschedule] once the
// outermost interrupt handler returns.
func (k *Kernel) SemaphoreISignal(s *Semaphore) RCode {
	if rc := k.checkSem(s); rc != RCOk {
		return rc
	}
	if !k.arch.InsideISR() {
		return RCWContext
	}
	tok := k.enterCriticalISR()
	rc := k.signalLocked(s)
	k.leaveCriticalISR(tok)
	return rc
}
