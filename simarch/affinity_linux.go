//go:build linux

package simarch

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinToCPU0 locks the calling goroutine to its current OS thread and pins
// that thread to CPU 0, for closer fidelity to the single-core target this
// scheduler is modeled on — every task, ISR, and the idle loop genuinely
// contend for one core instead of spreading across the host's. Best
// effort: sched_setaffinity is refused by plenty of sandboxes (containers
// without CAP_SYS_NICE, CI runners), so a non-nil error here is routine,
// not fatal, and callers should log it rather than abort.
func PinToCPU0() error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(0)
	return unix.SchedSetaffinity(0, &set)
}
