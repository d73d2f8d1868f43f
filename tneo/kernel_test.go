package tneo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testArch is a synchronous, single-goroutine Arch double: ContextSwitch
// and friends commit current=next immediately and return, with no real
// goroutine parking. It exercises every scheduler state transition without
// needing actual concurrency — genuine blocking round trips (a wait that
// only resumes once a different goroutine signals it) belong to the
// simarch-backed test suite instead.
type testArch struct {
	insideISR     bool
	switches      int
	systemStarted bool
}

func (a *testArch) IntDis()                {}
func (a *testArch) IntEn()                 {}
func (a *testArch) SrSaveIntDis() IntToken { return 0 }
func (a *testArch) SrRestore(IntToken)     {}
func (a *testArch) IIntDisSave() IntToken  { return 0 }
func (a *testArch) IIntRestore(IntToken)   {}
func (a *testArch) InsideISR() bool        { return a.insideISR }

func (a *testArch) ContextSwitch(k *Kernel)     { a.switches++; k.CommitSwitch() }
func (a *testArch) ContextSwitchExit(k *Kernel) { a.switches++; k.CommitSwitch() }
func (a *testArch) SystemStart(k *Kernel) {
	a.systemStarted = true
	k.CommitSwitch()
	k.MarkSystemRunning()
}

func (a *testArch) StackStartGet(low uintptr, words int) uintptr { return low + uintptr(words) }
func (a *testArch) StackInit(_ *Task, stackStart uintptr) uintptr { return stackStart }

func (a *testArch) Idle(*Kernel) {}

func newTestKernel(t *testing.T) (*Kernel, *testArch) {
	t.Helper()
	arch := &testArch{}
	cfg := DefaultConfig()
	cfg.PrioritiesCount = 8
	k, rc := NewKernel(cfg, arch)
	require.Equal(t, RCOk, rc)
	require.NotNil(t, k)
	return k, arch
}

func TestNewKernelRejectsNilArch(t *testing.T) {
	_, rc := NewKernel(DefaultConfig(), nil)
	assert.Equal(t, RCWParam, rc)
}

func TestNewKernelRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PrioritiesCount = 0
	_, rc := NewKernel(cfg, &testArch{})
	assert.Equal(t, RCWParam, rc)
}

func TestNewKernelCreatesIdleTaskAtLowestPriority(t *testing.T) {
	k, _ := newTestKernel(t)
	idle := k.IdleTask()
	require.NotNil(t, idle)
	assert.Equal(t, k.cfg.PrioritiesCount-1, idle.Priority())
	assert.True(t, idle.isSchedulable())
}

func TestStartSwitchesIntoIdleWhenNothingElseReady(t *testing.T) {
	k, arch := newTestKernel(t)
	k.Start()
	assert.True(t, arch.systemStarted)
	assert.Same(t, k.IdleTask(), k.CurrentTask())
	assert.True(t, k.IsRunning())
}

func TestTaskActivateMakesTaskCurrentWhenHighestPriority(t *testing.T) {
	k, _ := newTestKernel(t)
	k.Start()

	task, rc := k.TaskCreate("worker", func(any) {}, nil, 1, 0)
	require.Equal(t, RCOk, rc)

	rc = k.TaskActivate(task)
	assert.Equal(t, RCOk, rc)
	assert.Same(t, task, k.CurrentTask())
	assert.Equal(t, StateRunnable, task.State())
}

func TestTaskActivateTwiceFails(t *testing.T) {
	k, _ := newTestKernel(t)
	task, _ := k.TaskCreate("worker", func(any) {}, nil, 1, 0)
	require.Equal(t, RCOk, k.TaskActivate(task))
	assert.Equal(t, RCWState, k.TaskActivate(task))
}

func TestTaskCreateValidatesParams(t *testing.T) {
	k, _ := newTestKernel(t)
	_, rc := k.TaskCreate("bad", nil, nil, 1, 0)
	assert.Equal(t, RCWParam, rc)

	_, rc = k.TaskCreate("bad-priority", func(any) {}, nil, 999, 0)
	assert.Equal(t, RCWParam, rc)
}

func TestTaskSuspendResumeRoundTrip(t *testing.T) {
	k, _ := newTestKernel(t)
	task, _ := k.TaskCreate("worker", func(any) {}, nil, 1, 0)
	require.Equal(t, RCOk, k.TaskActivate(task))

	require.Equal(t, RCOk, k.TaskSuspend(task))
	assert.Equal(t, StateSuspended, task.State())
	assert.NotSame(t, task, k.CurrentTask())

	require.Equal(t, RCOk, k.TaskResume(task))
	assert.Equal(t, StateRunnable, task.State())
}

func TestTaskSuspendTwiceFails(t *testing.T) {
	k, _ := newTestKernel(t)
	task, _ := k.TaskCreate("worker", func(any) {}, nil, 1, 0)
	require.Equal(t, RCOk, k.TaskActivate(task))
	require.Equal(t, RCOk, k.TaskSuspend(task))
	assert.Equal(t, RCWState, k.TaskSuspend(task))
}

func TestTaskDeleteRequiresDormant(t *testing.T) {
	k, _ := newTestKernel(t)
	task, _ := k.TaskCreate("worker", func(any) {}, nil, 1, 0)
	require.Equal(t, RCOk, k.TaskActivate(task))
	assert.Equal(t, RCWState, k.TaskDelete(task))

	require.Equal(t, RCOk, k.TaskSuspend(task))
	// Suspended, not Dormant: still not deletable.
	assert.Equal(t, RCWState, k.TaskDelete(task))
}

func TestTaskDeleteClearsIdentity(t *testing.T) {
	k, _ := newTestKernel(t)
	task, _ := k.TaskCreate("worker", func(any) {}, nil, 1, 0)
	require.Equal(t, RCOk, k.TaskDelete(task))
	assert.False(t, task.IsAlive())
	assert.Equal(t, RCInvalidObj, k.TaskDelete(task))
}

func TestChangePriorityMigratesReadySlot(t *testing.T) {
	k, _ := newTestKernel(t)
	low, _ := k.TaskCreate("low", func(any) {}, nil, 0, 0)
	require.Equal(t, RCOk, k.TaskActivate(low))

	high, _ := k.TaskCreate("high", func(any) {}, nil, 2, 0)
	require.Equal(t, RCOk, k.TaskActivate(high))
	// low (priority 0) still current; high only ready at priority 2.
	assert.Same(t, low, k.CurrentTask())

	require.Equal(t, RCOk, k.ChangePriority(high, 0))
	assert.Equal(t, 0, high.Priority())
	assert.Equal(t, 0, high.BasePriority())
	assert.Nil(t, k.ready.firstOf(2), "left its old slot")
	assert.Equal(t, 2, k.ready.slots[0].Len(), "joined slot 0 behind low")
}

func TestChangePriorityValidatesRange(t *testing.T) {
	k, _ := newTestKernel(t)
	task, _ := k.TaskCreate("worker", func(any) {}, nil, 1, 0)
	assert.Equal(t, RCWParam, k.ChangePriority(task, 999))
}

func TestTickExpiresTimeoutAndRestoresRunnable(t *testing.T) {
	k, _ := newTestKernel(t)
	k.Start()

	waiter, _ := k.TaskCreate("waiter", func(any) {}, nil, 3, 0)
	require.Equal(t, RCOk, k.TaskActivate(waiter))
	require.Same(t, waiter, k.CurrentTask())

	// whitebox: invoke the wait-queue protocol directly rather than
	// through the blocking public API, which would need a real
	// goroutine-parking Arch to resume from.
	k.waitCurr(&k.sleepQueue, WaitReasonSleep, 2)
	assert.Equal(t, StateWaiting, waiter.State())

	k.Tick()
	assert.Equal(t, StateWaiting, waiter.State(), "one tick remaining")

	k.Tick()
	assert.Equal(t, StateRunnable, waiter.State())
	assert.Equal(t, RCTimeout, waiter.waitRC)
}

func TestTickAppliesRoundRobinRotation(t *testing.T) {
	k, _ := newTestKernel(t)
	k.cfg.RoundRobinDefaultTicks = []int{0, 0, 2}

	first, _ := k.TaskCreate("first", func(any) {}, nil, 2, 0)
	second, _ := k.TaskCreate("second", func(any) {}, nil, 2, 0)
	require.Equal(t, RCOk, k.TaskActivate(first))
	require.Equal(t, RCOk, k.TaskActivate(second))
	require.Same(t, first, k.CurrentTask())
	require.Same(t, first, k.ready.firstOf(2))

	k.Tick()
	assert.Same(t, first, k.ready.firstOf(2), "budget not yet exhausted")

	k.Tick()
	assert.Same(t, second, k.ready.firstOf(2), "rotated after budget exhausted")
}

func TestReschedulePerformsDeferredSwitch(t *testing.T) {
	k, arch := newTestKernel(t)
	k.Start()

	task, _ := k.TaskCreate("worker", func(any) {}, nil, 0, 0)

	// Simulate an ISR-context completion: mutate state directly, as an
	// ISR-context kernel call would, without switching inline.
	tok := k.enterCriticalISR()
	k.ready.enqueue(task)
	task.state = StateRunnable
	k.findNextTask()
	k.leaveCriticalISR(tok)

	before := arch.switches
	assert.NotSame(t, task, k.CurrentTask())
	k.Reschedule()
	assert.Same(t, task, k.CurrentTask())
	assert.Greater(t, arch.switches, before)
}
