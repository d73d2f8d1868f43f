// Package tneo implements the scheduler and synchronization core of a
// small preemptive, fixed-priority real-time kernel: the task control
// structure and its state machine, the priority-ready bitmap with
// per-priority run queues, the wait-queue protocol shared by every
// blocking primitive, the context-switch handshake with an [Arch]
// implementation, and a counting [Semaphore] built on that protocol as the
// canonical blocking primitive.
//
// This package is architecture-agnostic: it never touches a stack, an
// interrupt controller, or a register file directly. Everything that
// genuinely differs by CPU is expressed through the [Arch] interface,
// supplied once to [NewKernel]. github.com/riuson/tneo/simarch provides a
// goroutine-based simulated implementation for testing and the demo CLI;
// a real firmware port would supply its own.
package tneo
