package tneo

// IntToken is the opaque status-register snapshot returned by
// [Arch.SrSaveIntDis] / [Arch.IIntDisSave], passed back to the matching
// restore call. Nesting is supported: each save/restore pair must be
// properly nested, same as the C original's TN_INTSAVE_DATA convention.
type IntToken uint64

// Arch is the architecture port contract (spec §4.5, §6): everything the
// scheduler core needs from the outside world that genuinely differs by
// CPU. The core never touches a stack, an interrupt controller, or a
// register file directly — it calls through this interface, and a real
// firmware port (or, for this repository, [github.com/riuson/tneo/simarch])
// supplies the implementation.
//
// Every method here has a documented precondition about interrupt state
// and about current/next, matching the original _tn_arch_* contracts; a
// violation is a bug in the kernel core, not a reportable error, so
// implementations are free to assume it never happens.
type Arch interface {
	// IntDis unconditionally disables interrupts.
	IntDis()
	// IntEn unconditionally enables interrupts.
	IntEn()
	// SrSaveIntDis atomically disables interrupts and returns the
	// previous status-register state, for task-context critical
	// sections. Nestable.
	SrSaveIntDis() IntToken
	// SrRestore restores a token previously returned by SrSaveIntDis.
	SrRestore(tok IntToken)
	// IIntDisSave is the ISR-context counterpart of SrSaveIntDis: a
	// lighter save/disable suitable for use inside an interrupt handler.
	IIntDisSave() IntToken
	// IIntRestore restores a token previously returned by IIntDisSave.
	IIntRestore(tok IntToken)
	// InsideISR reports whether the calling context is currently
	// executing inside an interrupt service routine.
	InsideISR() bool

	// ContextSwitch performs a full context switch away from
	// k.CurrentTask() to k.NextTask(). Precondition: interrupts enabled,
	// called from task context.
	ContextSwitch(k *Kernel)
	// ContextSwitchExit is like ContextSwitch but does not save the
	// caller's context — used by task_exit, whose caller is never
	// resumed. Precondition: interrupts disabled.
	ContextSwitchExit(k *Kernel)
	// SystemStart performs the very first context switch, into
	// k.NextTask() (normally the idle task). Precondition: interrupts
	// not yet enabled.
	SystemStart(k *Kernel)

	// StackStartGet returns the initial stack-pointer value for this
	// architecture's stack growth direction, given the stack's low
	// address and size in machine words.
	StackStartGet(stackLowAddress uintptr, stackSizeWords int) uintptr
	// StackInit lays down whatever the architecture needs so that the
	// first context switch into t enters t's body with interrupts
	// enabled, and returns the new top-of-stack.
	StackInit(t *Task, stackStart uintptr) uintptr

	// Idle is the idle task's wait-for-interrupt step, called once per
	// iteration of its loop in place of a CPU-specific WFI/sleep
	// instruction. Precondition: called from the idle task, interrupts
	// enabled. Implementations may return immediately (a busy-wait port)
	// or block until the next interrupt; either is a valid "nothing to
	// do" stand-in, as long as a real interrupt arriving during the wait
	// is not lost.
	Idle(k *Kernel)
}
