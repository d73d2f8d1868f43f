// Package simarch is a goroutine-based, single-process simulation of the
// tneo architecture port: every task gets its own goroutine, handed
// control one at a time through a per-task channel (the "baton"), with a
// single mutex standing in for "the CPU" so that only ever one goroutine
// is actually executing kernel-adjacent code.
//
// This backend cannot preempt a task that is busy running its own Go code
// between kernel calls — Go gives no hook for that short of the runtime's
// own asynchronous preemption, which this package does not attempt to
// observe or rely on. An interrupt simulated via [Arch.RunISR] can only
// meaningfully interleave at a point the current task has itself yielded
// the CPU: a blocking kernel call, [tneo.Kernel.TaskYield], or the idle
// task's own wait loop. Driving RunISR while a task is mid-computation
// will simply block until that task next yields — it will not observe a
// mid-body interruption. Real firmware ports don't have this limitation;
// it is specific to simulating interrupts with goroutines on a host OS.
//
// Test and demo code that is neither a task nor a simulated interrupt —
// ordinary driver code building a scenario — must still go through the
// same baton before calling a task-context-only Kernel method
// (TaskCreate, TaskActivate, SemaphoreCreate, and similar), via
// [Arch.RunTaskContext]; calling the Kernel directly from such a goroutine
// would race every task goroutine's own ownership of the CPU.
package simarch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/riuson/tneo/tneo"
)

// Arch implements tneo.Arch over goroutines.
type Arch struct {
	ctx context.Context

	// kernelMu models CPU ownership: exactly one goroutine — a task or an
	// interrupt handler — holds it while actually executing.
	kernelMu sync.Mutex

	mu           sync.Mutex
	insideISR    bool
	inDriverCall bool

	bindOnce sync.Once
	kernel   *tneo.Kernel
}

// New builds an Arch. ctx bounds the lifetime of [Arch.SystemStart]: once
// canceled, the simulated boot call returns, unblocking
// [tneo.Kernel.Start]'s caller.
func New(ctx context.Context) *Arch {
	return &Arch{ctx: ctx}
}

type taskHandle struct {
	// resume is buffered so a release never has to block waiting for its
	// target to reach the matching receive — park and Idle both tolerate
	// a token arriving slightly before they start listening for it.
	resume chan struct{}
}

func handleOf(t *tneo.Task) *taskHandle {
	h, _ := t.ArchHandle().(*taskHandle)
	return h
}

func (a *Arch) bind(k *tneo.Kernel) {
	a.bindOnce.Do(func() { a.kernel = k })
}

// park releases CPU ownership and blocks until this task's handle receives
// a fresh release, then reacquires ownership before returning.
func (a *Arch) park(t *tneo.Task) {
	h := handleOf(t)
	a.kernelMu.Unlock()
	<-h.resume
	a.kernelMu.Lock()
}

// release hands CPU ownership's next turn to t, without blocking — the
// caller must itself give up kernelMu (via park, or permanently on exit)
// for that turn to actually begin.
func (a *Arch) release(t *tneo.Task) {
	handleOf(t).resume <- struct{}{}
}

func (a *Arch) IntDis() {}
func (a *Arch) IntEn()  {}

func (a *Arch) SrSaveIntDis() tneo.IntToken { return 0 }
func (a *Arch) SrRestore(tneo.IntToken)     {}

func (a *Arch) IIntDisSave() tneo.IntToken {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.insideISR
	a.insideISR = true
	if prev {
		return 1
	}
	return 0
}

func (a *Arch) IIntRestore(tok tneo.IntToken) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.insideISR = tok == 1
}

// InsideISR reports whether the calling goroutine is running inside
// [Arch.RunISR].
func (a *Arch) InsideISR() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.insideISR
}

// StackStartGet returns stackLowAddress offset by the word count — this
// backend has no real stack to place, but keeps the
// arithmetic a real port would do so tests exercising it see sane values.
func (a *Arch) StackStartGet(stackLowAddress uintptr, stackSizeWords int) uintptr {
	return stackLowAddress + uintptr(stackSizeWords)
}

// StackInit spawns the goroutine that will execute t's body once first
// released, parked immediately awaiting that release. If body returns
// naturally (rather than the task calling [tneo.Kernel.TaskExit] itself),
// StackInit calls TaskExit on its behalf, mirroring how a real task
// wrapper loop treats a returning body as an implicit exit.
func (a *Arch) StackInit(t *tneo.Task, stackStart uintptr) uintptr {
	h := &taskHandle{resume: make(chan struct{}, 1)}
	t.SetArchHandle(h)
	body, arg := t.Body()

	go func() {
		<-h.resume
		a.kernelMu.Lock()
		body(arg)
		if a.kernel != nil {
			a.kernel.TaskExit()
		}
	}()

	return stackStart
}

// ContextSwitch hands CPU ownership to k.NextTask(). Called from task
// context (the common case: TaskSleep, SemaphoreAcquire and friends
// switching away from the task currently running), the caller's own
// goroutine is prev's, so it parks itself. Called from inside [Arch.RunISR]
// or [Arch.RunTaskContext] — a simulated ISR, or a test/demo driver
// invoking a task-context-only Kernel method on prev's behalf — the caller
// is that driver's own goroutine, not prev's: there is nothing of prev's to
// park, and the driver call itself releases kernelMu once it returns,
// letting next actually run only once that call has fully exited.
func (a *Arch) ContextSwitch(k *tneo.Kernel) {
	a.bind(k)
	prev := k.CurrentTask()
	next := k.NextTask()
	k.CommitSwitch()
	if prev == next {
		return
	}
	a.release(next)
	a.mu.Lock()
	external := a.insideISR || a.inDriverCall
	a.mu.Unlock()
	if external {
		return
	}
	a.park(prev)
}

// RunTaskContext runs fn with CPU ownership held, the way a task body runs
// between kernel calls, but on the calling goroutine rather than a task's
// own. Test and demo driver code that needs to call a task-context-only
// Kernel method (TaskCreate, TaskActivate, TaskSuspend, SemaphoreCreate,
// ...) without itself being a task goes through this, instead of calling
// the Kernel directly and racing every task goroutine's own ownership of
// kernelMu. Blocks until ownership is free, same as a task resuming from a
// park; reentrant calls from within fn will deadlock, same as a real
// critical section would.
func (a *Arch) RunTaskContext(fn func()) {
	a.kernelMu.Lock()
	defer a.kernelMu.Unlock()
	a.mu.Lock()
	a.inDriverCall = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.inDriverCall = false
		a.mu.Unlock()
	}()
	fn()
}

// ContextSwitchExit hands CPU ownership to k.NextTask(), gives up
// ownership permanently, and ends the calling goroutine. Never returns.
func (a *Arch) ContextSwitchExit(k *tneo.Kernel) {
	a.bind(k)
	next := k.NextTask()
	k.CommitSwitch()
	a.release(next)
	a.kernelMu.Unlock()
	runtime.Goexit()
}

// SystemStart acquires CPU ownership, hands the first turn to
// k.NextTask(), then blocks — standing in for a boot routine whose stack
// is discarded on the first real switch — until ctx is canceled.
func (a *Arch) SystemStart(k *tneo.Kernel) {
	a.bind(k)
	a.kernelMu.Lock()
	next := k.NextTask()
	k.CommitSwitch()
	k.MarkSystemRunning()
	a.release(next)
	a.kernelMu.Unlock()
	<-a.ctx.Done()
}

// Idle is the idle task's wait-for-interrupt step. Called with kernelMu
// held (idle is current), it releases ownership for up to a millisecond —
// or until explicitly released early — giving a concurrently-running
// [Arch.RunISR] call its only opportunity to interleave when idle is the
// sole runnable task and would otherwise hold the baton forever: nothing
// else can ever make a task ready without first acquiring kernelMu itself.
//
// Releasing kernelMu does not, by itself, guarantee idle is still current
// when it reacquires: an ISR-driven switch during the wait may have picked
// a different task as next. The trailing loop re-parks on idle's own
// handle, exactly as any other displaced task would, until a later switch
// legitimately hands control back.
func (a *Arch) Idle(k *tneo.Kernel) {
	self := k.CurrentTask()
	h := handleOf(self)

	a.kernelMu.Unlock()
	select {
	case <-h.resume:
	case <-time.After(time.Millisecond):
	}
	a.kernelMu.Lock()

	for k.CurrentTask() != self {
		a.kernelMu.Unlock()
		<-h.resume
		a.kernelMu.Lock()
	}
}

// RunISR simulates an interrupt: acquires CPU ownership (blocking until
// whichever task currently holds it yields — see the package doc for why
// this is a simplification, not true preemption), runs fn with InsideISR
// reporting true, then performs the deferred-switch epilogue (spec-shaped:
// an ISR-context kernel call only ever updates next, and RunISR is the
// "last interrupt exit" that turns that into an actual switch).
func (a *Arch) RunISR(k *tneo.Kernel, fn func()) {
	a.kernelMu.Lock()
	a.mu.Lock()
	a.insideISR = true
	a.mu.Unlock()

	fn()
	k.Reschedule()

	a.mu.Lock()
	a.insideISR = false
	a.mu.Unlock()
	a.kernelMu.Unlock()
}

// VirtualClock drives a Kernel's tick through [Arch.RunISR], either
// synchronously (for deterministic tests) or on a real wall-clock period.
type VirtualClock struct {
	arch *Arch
	k    *tneo.Kernel
}

// NewVirtualClock builds a VirtualClock for k, ticking through a.
func NewVirtualClock(a *Arch, k *tneo.Kernel) *VirtualClock {
	return &VirtualClock{arch: a, k: k}
}

// Advance fires n ticks synchronously, one at a time. Intended for
// deterministic tests driving the scheduler's timeout and round-robin
// machinery without real wall-clock delay.
func (c *VirtualClock) Advance(n int) {
	for i := 0; i < n; i++ {
		c.arch.RunISR(c.k, c.k.Tick)
	}
}

// Run fires one tick every period until ctx is canceled.
func (c *VirtualClock) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.arch.RunISR(c.k, c.k.Tick)
		}
	}
}
