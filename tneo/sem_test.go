package tneo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreCreateValidatesParams(t *testing.T) {
	k, _ := newTestKernel(t)

	_, rc := k.SemaphoreCreate(-1, 1)
	assert.Equal(t, RCWParam, rc)

	_, rc = k.SemaphoreCreate(0, 0)
	assert.Equal(t, RCWParam, rc)

	_, rc = k.SemaphoreCreate(2, 1)
	assert.Equal(t, RCWParam, rc)
}

func TestSemaphoreAcquirePollingImmediateAndTimeout(t *testing.T) {
	k, _ := newTestKernel(t)
	s, rc := k.SemaphoreCreate(1, 1)
	require.Equal(t, RCOk, rc)

	assert.Equal(t, RCOk, k.SemaphoreAcquirePolling(s))
	assert.Equal(t, 0, s.Count())

	assert.Equal(t, RCTimeout, k.SemaphoreAcquirePolling(s))
}

func TestSemaphoreSignalIncrementsWhenNoWaiters(t *testing.T) {
	k, _ := newTestKernel(t)
	s, _ := k.SemaphoreCreate(0, 2)

	require.Equal(t, RCOk, k.SemaphoreSignal(s))
	assert.Equal(t, 1, s.Count())
}

func TestSemaphoreSignalOverflow(t *testing.T) {
	k, _ := newTestKernel(t)
	s, _ := k.SemaphoreCreate(1, 1)

	assert.Equal(t, RCOverflow, k.SemaphoreSignal(s))
	assert.Equal(t, 1, s.Count())
}

// TestSemaphoreSignalWakesFIFOHeadWaiter exercises spec boundary scenario
// 2 (FIFO wakeup): three same-priority waiters queue in order, two signals
// wake exactly the first two, in order, and count is never touched since
// the unit is handed directly to the waiter.
func TestSemaphoreSignalWakesFIFOHeadWaiter(t *testing.T) {
	k, _ := newTestKernel(t)
	s, rc := k.SemaphoreCreate(0, 1)
	require.Equal(t, RCOk, rc)

	t1, _ := k.TaskCreate("t1", func(any) {}, nil, 4, 0)
	t2, _ := k.TaskCreate("t2", func(any) {}, nil, 4, 0)
	t3, _ := k.TaskCreate("t3", func(any) {}, nil, 4, 0)

	for _, waiter := range []*Task{t1, t2, t3} {
		require.Equal(t, RCOk, k.TaskActivate(waiter))
		// whitebox: enqueue directly on the wait-queue protocol rather
		// than through the blocking public API (see kernel_test.go).
		k.current = waiter
		k.waitCurr(&s.waitQueue, WaitReasonSem, TimeoutInfinite)
	}
	assert.Equal(t, 0, s.Count())

	require.Equal(t, RCOk, k.SemaphoreSignal(s))
	assert.Equal(t, StateRunnable, t1.State())
	assert.Equal(t, RCOk, t1.waitRC)
	assert.Equal(t, StateWaiting, t2.State())
	assert.Equal(t, StateWaiting, t3.State())
	assert.Equal(t, 0, s.Count(), "unit handed directly to waiter, count untouched")

	require.Equal(t, RCOk, k.SemaphoreSignal(s))
	assert.Equal(t, StateRunnable, t2.State())
	assert.Equal(t, StateWaiting, t3.State())
	assert.Equal(t, 0, s.Count(), "second unit also handed directly to a waiter")
}

// TestSemaphoreDeleteNotifiesWaitersWithDeleted exercises spec boundary
// scenario 4 (delete-while-waiting).
func TestSemaphoreDeleteNotifiesWaitersWithDeleted(t *testing.T) {
	k, _ := newTestKernel(t)
	s, _ := k.SemaphoreCreate(0, 1)

	waiter, _ := k.TaskCreate("waiter", func(any) {}, nil, 2, 0)
	require.Equal(t, RCOk, k.TaskActivate(waiter))
	k.current = waiter
	k.waitCurr(&s.waitQueue, WaitReasonSem, TimeoutInfinite)

	require.Equal(t, RCOk, k.SemaphoreDelete(s))
	assert.Equal(t, StateRunnable, waiter.State())
	assert.Equal(t, RCDeleted, waiter.waitRC)
	assert.False(t, s.IsAlive())

	assert.Equal(t, RCInvalidObj, k.SemaphoreAcquirePolling(s))
}

// TestSemaphoreWaiterStaysPendingWhileSuspended exercises spec boundary
// scenario 5 (suspend interaction): a signal delivered to a Waiting+
// Suspended task clears the wait but must not re-enqueue it until resumed.
func TestSemaphoreWaiterStaysPendingWhileSuspended(t *testing.T) {
	k, _ := newTestKernel(t)
	s, _ := k.SemaphoreCreate(0, 1)

	waiter, _ := k.TaskCreate("waiter", func(any) {}, nil, 2, 0)
	require.Equal(t, RCOk, k.TaskActivate(waiter))
	k.current = waiter
	k.waitCurr(&s.waitQueue, WaitReasonSem, TimeoutInfinite)
	require.Equal(t, StateWaiting, waiter.State())

	// Suspend a Waiting task directly (whitebox: TaskSuspend's public
	// contract only special-cases Dormant/Suspended, so this mutation is
	// exactly what it would do here too).
	waiter.state |= StateSuspended
	require.Equal(t, StateWaiting|StateSuspended, waiter.State())

	require.Equal(t, RCOk, k.SemaphoreSignal(s))
	assert.Equal(t, StateSuspended, waiter.State(), "resumed wait, still suspended")
	assert.Equal(t, RCOk, waiter.waitRC)

	require.Equal(t, RCOk, k.TaskResume(waiter))
	assert.Equal(t, StateRunnable, waiter.State())
}

func TestSemaphoreISignalAndIAcquirePollingRequireISRContext(t *testing.T) {
	k, _ := newTestKernel(t)
	s, _ := k.SemaphoreCreate(0, 1)

	assert.Equal(t, RCWContext, k.SemaphoreISignal(s))
	assert.Equal(t, RCWContext, k.SemaphoreIAcquirePolling(s))

	arch := k.arch.(*testArch)
	arch.insideISR = true

	assert.Equal(t, RCOk, k.SemaphoreISignal(s))
	assert.Equal(t, RCOk, k.SemaphoreIAcquirePolling(s))
}

func TestSemaphoreOperationsRejectWrongContext(t *testing.T) {
	k, _ := newTestKernel(t)
	s, _ := k.SemaphoreCreate(0, 1)
	arch := k.arch.(*testArch)
	arch.insideISR = true

	assert.Equal(t, RCWContext, k.SemaphoreAcquire(s, TimeoutInfinite))
	assert.Equal(t, RCWContext, k.SemaphoreSignal(s))
	assert.Equal(t, RCWContext, k.SemaphoreDelete(s))
	_, rc := k.SemaphoreCreate(0, 1)
	assert.Equal(t, RCWContext, rc)
}
