//go:build !linux

package simarch

// PinToCPU0 is a no-op outside Linux: sched_setaffinity has no portable
// equivalent, and the demo degrades gracefully to running unpinned.
func PinToCPU0() error { return nil }
