package tneo

import (
	"github.com/riuson/tneo/tnlist"
	"github.com/riuson/tneo/tnlog"
)

const (
	// TimeoutInfinite means a blocking call never times out.
	TimeoutInfinite = -1
	// TimeoutPoll means a blocking call fails immediately with TIMEOUT
	// instead of waiting, if its condition isn't already satisfied.
	TimeoutPoll = 0
)

type kernelOptions struct {
	log      *tnlog.Logger
	throttle *tnlog.Throttle
}

// KernelOption configures a Kernel at construction time.
type KernelOption interface {
	applyKernel(*kernelOptions)
}

type kernelOptionImpl struct {
	fn func(*kernelOptions)
}

func (o *kernelOptionImpl) applyKernel(opts *kernelOptions) { o.fn(opts) }

// WithLogger installs a structured logger. The default, if omitted, is
// [tnlog.Discard] — logging is opt-in, never a required dependency.
func WithLogger(log *tnlog.Logger) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) { opts.log = log }}
}

// WithLogThrottle rate-limits the kernel's hot-path log category (the
// per-tick "tick" event, the only one the kernel throttles), independent of
// the logger's own level filter.
func WithLogThrottle(t *tnlog.Throttle) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) { opts.throttle = t }}
}

func resolveKernelOptions(opts []KernelOption) *kernelOptions {
	cfg := &kernelOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyKernel(cfg)
	}
	return cfg
}

// Kernel is one schedulable universe: one ready-queue set, one all-tasks
// list, one current/next pair (spec §4.5). Every exported method assumes a
// single logical caller at a time, same as the C original assumed a single
// CPU — mutual exclusion is the installed Arch's job (via
// SrSaveIntDis/SrRestore), not a sync.Mutex here.
type Kernel struct {
	cfg  Config
	arch Arch

	ready      *readyQueueSet
	allTasks   tnlist.Node[*Task]
	timeouts   tnlist.Node[*Task]
	sleepQueue tnlist.Node[*Task]

	current *Task
	next    *Task
	idle    *Task

	running bool
	ticks   uint64

	log      *tnlog.Logger
	throttle *tnlog.Throttle
}

// NewKernel builds a Kernel over the given configuration and architecture
// port, and creates the idle task (lowest priority), which NewKernel itself
// makes Runnable and links into the ready set, so the caller never
// activates it; [Kernel.findNextTask] also falls back to it whenever the
// ready set is empty.
func NewKernel(cfg Config, arch Arch, opts ...KernelOption) (*Kernel, RCode) {
	if arch == nil {
		return nil, RCWParam
	}
	if rc := cfg.validate(); rc != RCOk {
		return nil, rc
	}
	o := resolveKernelOptions(opts)

	k := &Kernel{
		cfg:      cfg,
		arch:     arch,
		ready:    newReadyQueueSet(cfg.PrioritiesCount),
		log:      o.log,
		throttle: o.throttle,
	}
	k.allTasks.Reset()
	k.timeouts.Reset()
	k.sleepQueue.Reset()
	if k.log == nil {
		k.log = tnlog.Discard()
	}

	idle, rc := k.TaskCreate("idle", k.idleBody, nil, cfg.PrioritiesCount-1, 0)
	if rc != RCOk {
		return nil, rc
	}
	k.idle = idle
	k.idle.state = 0
	k.enqueueReady(k.idle)

	return k, RCOk
}

// idleBody stands in for the architecture's wait-for-interrupt instruction:
// with nothing else runnable there is, by definition, nothing useful to do
// until the next tick or ISR, so it waits via the Arch's Idle hook and then
// yields, over and over, for the lifetime of the Kernel.
func (k *Kernel) idleBody(any) {
	for {
		k.arch.Idle(k)
		k.TaskYield()
	}
}

// Start performs the first-ever context switch, into the highest-priority
// task currently ready (normally the idle task, if nothing else has been
// activated yet). Precondition: interrupts not yet enabled.
func (k *Kernel) Start() {
	k.findNextTask()
	k.arch.SystemStart(k)
}

// CurrentTask returns the task the Arch implementation considers current.
// Exported for Arch implementations; ordinary callers don't need it.
func (k *Kernel) CurrentTask() *Task { return k.current }

// NextTask returns the task findNextTask most recently selected. Exported
// for Arch implementations.
func (k *Kernel) NextTask() *Task { return k.next }

// CommitSwitch assigns current = next and returns the new current task. An
// Arch implementation calls this exactly once per context switch, at the
// point its own save/restore handshake has actually transferred control.
func (k *Kernel) CommitSwitch() *Task {
	k.current = k.next
	return k.current
}

// MarkSystemRunning records that SystemStart has completed. Exported for
// Arch implementations.
func (k *Kernel) MarkSystemRunning() { k.running = true }

// IsRunning reports whether Start has completed its first switch.
func (k *Kernel) IsRunning() bool { return k.running }

// Config returns the configuration the Kernel was built with.
func (k *Kernel) Config() Config { return k.cfg }

// Ticks returns the number of completed Tick calls.
func (k *Kernel) Ticks() uint64 { return k.ticks }

// IdleTask returns the Kernel's idle task.
func (k *Kernel) IdleTask() *Task { return k.idle }

// Logger returns the Kernel's structured logger (never nil).
func (k *Kernel) Logger() *tnlog.Logger { return k.log }

// ForEachTask iterates every task ever created on this Kernel and not yet
// deleted, in creation order, stopping early if fn returns false.
func (k *Kernel) ForEachTask(fn func(t *Task) bool) {
	k.allTasks.ForEachSafe(func(n *tnlist.Node[*Task]) bool {
		return fn(n.Value())
	})
}

// enterCritical disables interrupts for a task-context critical section,
// returning the token the matching leaveCritical call must consume.
func (k *Kernel) enterCritical() IntToken { return k.arch.SrSaveIntDis() }

func (k *Kernel) leaveCritical(tok IntToken) { k.arch.SrRestore(tok) }

// enterCriticalISR is enterCritical's ISR-context counterpart.
func (k *Kernel) enterCriticalISR() IntToken { return k.arch.IIntDisSave() }

func (k *Kernel) leaveCriticalISR(tok IntToken) { k.arch.IIntRestore(tok) }

// withReschedule runs fn with interrupts disabled, restores interrupts,
// then performs a context switch if fn left next diverged from current.
// It is the shape every non-blocking kernel call in this package shares:
// mutate under interrupts-disabled, then switch_if_needed outside it (spec
// §4.3, §4.5). It is not used by calls that themselves block the caller
// (TaskSleep, SemaphoreAcquire) — those need the post-resumption wait_rc,
// which this helper has no way to thread back.
func (k *Kernel) withReschedule(fn func() RCode) RCode {
	tok := k.enterCritical()
	rc := fn()
	k.leaveCritical(tok)
	k.switchIfNeeded()
	return rc
}

func (k *Kernel) checkTask(t *Task) RCode {
	if t == nil || !t.IsAlive() {
		return RCInvalidObj
	}
	return RCOk
}

// TaskCreate allocates a new Dormant task. Task context only.
func (k *Kernel) TaskCreate(name string, body func(arg any), arg any, priority, stackSizeWords int) (*Task, RCode) {
	if k.cfg.CheckParam {
		if body == nil {
			return nil, RCWParam
		}
		if priority < 0 || priority >= k.cfg.PrioritiesCount {
			return nil, RCWParam
		}
		if stackSizeWords < 0 {
			return nil, RCWParam
		}
	}
	if k.arch.InsideISR() {
		return nil, RCWContext
	}

	t := newTask(name, body, arg, priority, stackSizeWords)
	stackStart := t.stackLow
	if stackSizeWords > 0 {
		stackStart = k.arch.StackStartGet(t.stackLow, stackSizeWords)
	}
	t.stackPointer = k.arch.StackInit(t, stackStart)

	tok := k.enterCritical()
	k.allTasks.PushBack(&t.createQueue)
	k.leaveCritical(tok)

	k.log.Debug().Str("task", name).Int("priority", priority).Log("task created")
	return t, RCOk
}

// TaskActivate transitions t from Dormant to Runnable. Task context only.
func (k *Kernel) TaskActivate(t *Task) RCode {
	if rc := k.checkTask(t); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		if t.state != StateDormant {
			return RCWState
		}
		t.state = 0
		k.enqueueReady(t)
		k.findNextTask()
		return RCOk
	})
}

// TaskExit transitions the calling task to Dormant and never returns to
// its caller. Task context only; t is implicitly the current task.
func (k *Kernel) TaskExit() {
	if k.arch.InsideISR() {
		return
	}
	_ = k.enterCritical()
	t := k.current
	if t.state&StateRunnable != 0 {
		k.ready.remove(t)
	}
	t.state = StateDormant
	t.waitReason = WaitReasonNone
	k.findNextTask()
	k.log.Info().Str("task", t.name).Log("task exited")
	// ContextSwitchExit transfers control away permanently; interrupts
	// remain disabled per its precondition, and this goroutine (in the
	// simulated Arch) never executes another line of this function.
	k.arch.ContextSwitchExit(k)
}

// TaskDelete clears t's identity tag, permitting reuse of its memory.
// t must be Dormant. Task context only.
func (k *Kernel) TaskDelete(t *Task) RCode {
	if rc := k.checkTask(t); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	tok := k.enterCritical()
	if t.state != StateDormant {
		k.leaveCritical(tok)
		return RCWState
	}
	t.createQueue.Remove()
	t.magic = 0
	k.leaveCritical(tok)
	return RCOk
}

// TaskSuspend adds the Suspended bit to t's state, removing it from the
// ready set if it was Runnable. Task context only.
func (k *Kernel) TaskSuspend(t *Task) RCode {
	if rc := k.checkTask(t); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		if t.state == StateDormant || t.state&StateSuspended != 0 {
			return RCWState
		}
		if t.state&StateRunnable != 0 {
			k.ready.remove(t)
			t.state &^= StateRunnable
		}
		t.state |= StateSuspended
		k.findNextTask()
		return RCOk
	})
}

// TaskResume clears the Suspended bit. If the task was suspended-only (not
// also Waiting) it returns to Runnable and is re-enqueued; if it was
// Waiting+Suspended it becomes plain Waiting. Task context only.
func (k *Kernel) TaskResume(t *Task) RCode {
	if rc := k.checkTask(t); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		if t.state&StateSuspended == 0 {
			return RCWState
		}
		t.state &^= StateSuspended
		if t.state == 0 {
			k.enqueueReady(t)
			k.findNextTask()
		}
		return RCOk
	})
}

// TaskSleep blocks the calling task for the given number of ticks, or
// until [Kernel.TaskWakeup] releases it early. Returns OK (woken early) or
// TIMEOUT (slept the full duration); nothing in this package ends a sleep
// with FORCE. Task context only; ticks
// must be positive — sleeping for TimeoutPoll ticks is meaningless and
// sleeping forever belongs to TaskSuspend, not this call.
func (k *Kernel) TaskSleep(ticks int) RCode {
	if k.arch.InsideISR() {
		return RCWContext
	}
	if ticks <= 0 {
		return RCWParam
	}
	t := k.current
	tok := k.enterCritical()
	k.waitCurr(&k.sleepQueue, WaitReasonSleep, ticks)
	k.leaveCritical(tok)
	k.switchIfNeeded()
	return t.waitRC
}

// TaskWakeup ends a sleeping task's wait early, with result OK. Returns
// WSTATE if t isn't currently sleeping. Task context only.
func (k *Kernel) TaskWakeup(t *Task) RCode {
	if rc := k.checkTask(t); rc != RCOk {
		return rc
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		if t.state&StateWaiting == 0 || t.waitReason != WaitReasonSleep {
			return RCWState
		}
		k.waitComplete(t, RCOk)
		return RCOk
	})
}

// TaskYield rotates the calling task to the tail of its priority's ready
// slot (if still Runnable) and reschedules. A no-op, returning immediately,
// if no other task at the same priority is ready. Task context only.
func (k *Kernel) TaskYield() RCode {
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		t := k.current
		if t.isSchedulable() {
			k.ready.rotate(t)
			t.roundRobinBudget = k.cfg.roundRobinTicksFor(t.priority)
		}
		k.findNextTask()
		return RCOk
	})
}

// ChangePriority sets both t's base and current priority (this kernel
// implements no priority-inheritance mechanism that could make them
// diverge) and, if t is Runnable, migrates it to the new priority's ready
// slot atomically. Task context only.
func (k *Kernel) ChangePriority(t *Task, newPriority int) RCode {
	if rc := k.checkTask(t); rc != RCOk {
		return rc
	}
	if k.cfg.CheckParam && (newPriority < 0 || newPriority >= k.cfg.PrioritiesCount) {
		return RCWParam
	}
	if k.arch.InsideISR() {
		return RCWContext
	}
	return k.withReschedule(func() RCode {
		if t.priority == newPriority {
			t.basePriority = newPriority
			return RCOk
		}
		wasRunnable := t.state == StateRunnable
		if wasRunnable {
			k.ready.remove(t)
		}
		t.basePriority = newPriority
		t.priority = newPriority
		if wasRunnable {
			k.enqueueReady(t)
		}
		k.findNextTask()
		return RCOk
	})
}

// applyRoundRobin decrements the current task's round-robin budget, if any
// is configured for its priority, and rotates it to the tail of its slot
// once the budget is exhausted. Callers own the surrounding critical
// section.
func (k *Kernel) applyRoundRobin() {
	t := k.current
	if t == nil || !t.isSchedulable() {
		return
	}
	ticks := k.cfg.roundRobinTicksFor(t.priority)
	if ticks <= 0 {
		return
	}
	t.roundRobinBudget--
	if t.roundRobinBudget <= 0 {
		k.ready.rotate(t)
		t.roundRobinBudget = ticks
		k.findNextTask()
	}
}

// Tick advances virtual time by one unit: expires any pending timeouts and
// applies round-robin rotation to the current task. It is the external
// tick driver's sole entry point into the Kernel (spec §5's "Cancellation
// & timeouts") and is ISR context — like any ISR-context completion, it
// only ever updates next; it never switches inline. Call [Kernel.Reschedule]
// once the outermost ISR has returned, per spec §4.5's deferred-switch
// epilogue.
func (k *Kernel) Tick() {
	tok := k.enterCriticalISR()
	k.ticks++

	var expired []*Task
	k.timeouts.ForEachSafe(func(n *tnlist.Node[*Task]) bool {
		t := n.Value()
		t.deadlineTicks--
		if t.deadlineTicks <= 0 {
			expired = append(expired, t)
		}
		return true
	})
	for _, t := range expired {
		k.waitComplete(t, RCTimeout)
	}

	k.applyRoundRobin()

	if k.throttle == nil || k.throttle.Allow("tick") {
		k.log.Trace().Log("tick")
	}

	k.leaveCriticalISR(tok)
}

// Reschedule performs a context switch if current and next have diverged
// since the last switch. This is spec §4.5's deferred-switch ISR epilogue:
// an Arch implementation's ISR wrapper calls it once, after the outermost
// interrupt handler returns, never from inside the handler itself.
func (k *Kernel) Reschedule() {
	k.switchIfNeeded()
}
