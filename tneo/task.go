package tneo

import "github.com/riuson/tneo/tnlist"

// taskMagic is the identity tag stamped into every live Task. Chosen to be
// a pattern unlikely to appear in freed or zeroed memory, per spec §9.
const taskMagic uint32 = 0x5441534b // "TASK"

// State is the task state bitmask (spec §3). It is a bitmask rather than a
// single enum specifically because Waiting and Suspended are independent:
// a task can be Suspended while still Waiting on a primitive, and each bit
// is cleared independently of the other on resume/wait-completion.
type State uint8

const (
	// StateRunnable means the task is linked into the ready set at its
	// current priority. A task is schedulable iff its state is exactly
	// this bit and no other.
	StateRunnable State = 1 << iota
	// StateWaiting means the task is linked into exactly one
	// wait-queue, blocked on some primitive.
	StateWaiting
	// StateSuspended means the task was explicitly suspended; it is not
	// in the ready set regardless of any other bit.
	StateSuspended
	// StateDormant means the task has not been activated yet, or has
	// returned from task_exit. It is in neither the ready set nor any
	// wait-queue, though it stays linked into its Kernel's all-tasks list.
	StateDormant
)

// String returns a compact, order-independent rendering such as
// "Waiting|Suspended".
func (s State) String() string {
	if s == 0 {
		return "none"
	}
	names := []struct {
		bit  State
		name string
	}{
		{StateRunnable, "Runnable"},
		{StateWaiting, "Waiting"},
		{StateSuspended, "Suspended"},
		{StateDormant, "Dormant"},
	}
	out := ""
	for _, n := range names {
		if s&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

// WaitReason identifies which kind of primitive a Waiting task is blocked
// on; it is delivered nowhere on the wire, it just disambiguates
// diagnostics and lets a primitive assert that a task it is about to wake
// was actually waiting on *it*.
type WaitReason uint8

const (
	WaitReasonNone WaitReason = iota
	WaitReasonSem
	WaitReasonMutex
	WaitReasonEventGroup
	WaitReasonQueue
	WaitReasonSleep
)

func (r WaitReason) String() string {
	switch r {
	case WaitReasonNone:
		return "none"
	case WaitReasonSem:
		return "sem"
	case WaitReasonMutex:
		return "mutex"
	case WaitReasonEventGroup:
		return "event_group"
	case WaitReasonQueue:
		return "queue"
	case WaitReasonSleep:
		return "sleep"
	default:
		return "unknown"
	}
}

// Task is the scheduled unit (spec §3). Every live Task is created by
// [Kernel.TaskCreate] and owned by exactly one [Kernel] for its lifetime.
type Task struct {
	magic uint32

	// taskQueue links this task into exactly one of: a ready-queue slot,
	// a primitive's wait-queue, or nowhere.
	taskQueue tnlist.Node[*Task]
	// createQueue links this task into its Kernel's all-tasks list.
	createQueue tnlist.Node[*Task]
	// timeoutQueue links this task into its Kernel's pending-timeouts
	// list whenever a finite-timeout wait is currently armed for it. A
	// task may be linked into timeoutQueue and taskQueue simultaneously
	// (one wait-queue, one timeout list), unlike taskQueue's "at most one
	// queue" rule.
	timeoutQueue tnlist.Node[*Task]

	name string
	body func(arg any)
	arg  any

	basePriority int
	priority     int

	state      State
	waitReason WaitReason
	waitRC     RCode

	// roundRobinBudget counts down the remaining ticks this task may run
	// for before being rotated to the tail of its ready-queue slot (spec
	// §4.2). Irrelevant while the task isn't Runnable-and-current.
	roundRobinBudget int

	// stackLow/stackSize/stackPointer are symbolic in this repository —
	// simarch backs every task with a goroutine, which has its own
	// runtime-managed stack — but are kept because spec §6 names the
	// stack helpers as part of the architecture port contract, and a
	// real firmware port needs exactly these fields.
	stackLow     uintptr
	stackSize    int
	stackPointer uintptr

	archHandle any // opaque, set and read only by the installed Arch

	// hasDeadline reports whether timeoutQueue is currently linked.
	hasDeadline bool
	// deadlineTicks counts down to zero; reaching it fires a TIMEOUT
	// completion of the current wait.
	deadlineTicks int
}

func newTask(name string, body func(arg any), arg any, priority, stackSizeWords int) *Task {
	t := &Task{
		magic:        taskMagic,
		name:         name,
		body:         body,
		arg:          arg,
		basePriority: priority,
		priority:     priority,
		state:        StateDormant,
		stackSize:    stackSizeWords,
	}
	t.taskQueue.Reset()
	t.taskQueue.SetValue(t)
	t.createQueue.Reset()
	t.createQueue.SetValue(t)
	t.timeoutQueue.Reset()
	t.timeoutQueue.SetValue(t)
	return t
}

// Name returns the diagnostic name the task was created with.
func (t *Task) Name() string { return t.name }

// Priority returns the task's current (possibly boosted) priority.
func (t *Task) Priority() int { return t.priority }

// BasePriority returns the priority the task was created with.
func (t *Task) BasePriority() int { return t.basePriority }

// State returns the task's current state bitmask.
func (t *Task) State() State { return t.state }

// WaitReason returns what primitive kind a Waiting task is blocked on;
// WaitReasonNone if the task isn't Waiting.
func (t *Task) WaitReason() WaitReason { return t.waitReason }

// IsAlive reports whether the task's identity tag is intact, i.e. it has
// not been passed to [Kernel.TaskDelete].
func (t *Task) IsAlive() bool { return t.magic == taskMagic }

// SetArchHandle stores an architecture-private value alongside the task
// (e.g. simarch's per-task resume channel). Only Arch implementations
// should call this.
func (t *Task) SetArchHandle(h any) { t.archHandle = h }

// ArchHandle returns whatever SetArchHandle last stored, or nil.
func (t *Task) ArchHandle() any { return t.archHandle }

// Body returns the task's entry point and its parameter, for an Arch
// implementation's StackInit to wire up.
func (t *Task) Body() (func(arg any), any) { return t.body, t.arg }

// isSchedulable reports whether the state bitmask is exactly Runnable —
// spec §3's invariant for ready-set membership.
func (t *Task) isSchedulable() bool {
	return t.state == StateRunnable
}
