package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/riuson/tneo/simarch"
	"github.com/riuson/tneo/tneo"
	"github.com/riuson/tneo/tnlog"
	"github.com/spf13/cobra"
)

// scenario is one of the documented boundary cases: it builds its own
// kernel, drives it, and asserts the documented outcome.
type scenario struct {
	name        string
	description string
	run         func(ctx context.Context, k *tneo.Kernel, arch *simarch.Arch, clock *simarch.VirtualClock) error
}

var scenarios = []scenario{
	{
		name:        "preemption",
		description: "an ISR signal wakes a higher-priority waiter ahead of the running task",
		run:         scenarioPreemption,
	},
	{
		name:        "fifo-wakeup",
		description: "two signals on a 3-waiter semaphore wake waiters in FIFO order",
		run:         scenarioFIFOWakeup,
	},
	{
		name:        "timeout",
		description: "an unsignaled acquire times out after its deadline and leaves count untouched",
		run:         scenarioTimeout,
	},
	{
		name:        "delete-while-waiting",
		description: "deleting a semaphore releases its waiter with DELETED",
		run:         scenarioDeleteWhileWaiting,
	},
	{
		name:        "suspend-interaction",
		description: "a signal delivered to a suspended waiter clears the wait but defers re-enqueue",
		run:         scenarioSuspendInteraction,
	},
	{
		name:        "overflow",
		description: "signaling a full semaphore returns OVERFLOW and leaves count unchanged",
		run:         scenarioOverflow,
	},
}

func newScenarioCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run one of the documented boundary scenarios and report pass/fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", fmt.Sprintf("scenario to run (%s)", scenarioNames()))
	return cmd
}

func scenarioNames() string {
	out := ""
	for i, s := range scenarios {
		if i > 0 {
			out += ", "
		}
		out += s.name
	}
	return out
}

func runScenario(parent context.Context, name string) error {
	var found *scenario
	for i := range scenarios {
		if scenarios[i].name == name {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("unknown scenario %q (choose one of: %s)", name, scenarioNames())
	}

	runID := uuid.New()
	ctx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	log := tnlog.NewStderr(parseLevel("info"))
	arch := simarch.New(ctx)
	cfg := tneo.DefaultConfig()
	cfg.PrioritiesCount = 8
	k, rc := tneo.NewKernel(cfg, arch, tneo.WithLogger(log))
	if rc != tneo.RCOk {
		return fmt.Errorf("building kernel: %w", rc)
	}
	clock := simarch.NewVirtualClock(arch, k)
	go k.Start()

	log.Info().Str("run_id", runID.String()).Str("scenario", found.name).Log(found.description)
	if err := found.run(ctx, k, arch, clock); err != nil {
		log.Err().Str("run_id", runID.String()).Str("scenario", found.name).Log(err.Error())
		return err
	}
	log.Info().Str("run_id", runID.String()).Str("scenario", found.name).Log("passed")
	return nil
}

// waitForState polls t's state until it matches want or timeout elapses.
// Every read goes through arch.RunTaskContext: t.State() is an unguarded
// field read, safe only while no task goroutine holds CPU ownership.
func waitForState(arch *simarch.Arch, t *tneo.Task, want tneo.State, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var got tneo.State
	for time.Now().Before(deadline) {
		arch.RunTaskContext(func() { got = t.State() })
		if got == want {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("task %q never reached state %s (stuck at %s)", t.Name(), want, got)
}

// scenarioPreemption only approximates the documented boundary case: a real
// architecture port can interrupt B mid-instruction, but simarch's
// goroutine baton (see its package doc) can only let an ISR in at a point B
// has itself given up the CPU. B here yields the CPU every iteration by
// sleeping one tick, standing in for "whatever quiescent point B next
// reaches"; the signal fires during one of those gaps, and the assertion is
// on the outcome (A resumes with the unit) rather than on an exact
// instruction boundary, which this backend cannot observe.
func scenarioPreemption(ctx context.Context, k *tneo.Kernel, arch *simarch.Arch, clock *simarch.VirtualClock) error {
	result := make(chan tneo.RCode, 1)
	var bIterations atomic.Int32

	var sem *tneo.Semaphore
	var a, b *tneo.Task
	var rc tneo.RCode
	arch.RunTaskContext(func() {
		sem, _ = k.SemaphoreCreate(0, 1)
		a, rc = k.TaskCreate("A", func(any) {
			result <- k.SemaphoreAcquire(sem, tneo.TimeoutInfinite)
		}, nil, 2, 0)
	})
	if rc != tneo.RCOk {
		return fmt.Errorf("creating A: %w", rc)
	}
	arch.RunTaskContext(func() {
		b, rc = k.TaskCreate("B", func(any) {
			for {
				bIterations.Add(1)
				k.TaskSleep(1)
			}
		}, nil, 5, 0)
	})
	if rc != tneo.RCOk {
		return fmt.Errorf("creating B: %w", rc)
	}

	arch.RunTaskContext(func() { rc = k.TaskActivate(b) })
	if rc != tneo.RCOk {
		return fmt.Errorf("activating B: %w", rc)
	}
	arch.RunTaskContext(func() { rc = k.TaskActivate(a) })
	if rc != tneo.RCOk {
		return fmt.Errorf("activating A: %w", rc)
	}
	if err := waitForState(arch, a, tneo.StateWaiting, time.Second); err != nil {
		return err
	}
	clock.Advance(1) // let B reach its sleep at least once, so the CPU is free

	arch.RunISR(k, func() { k.SemaphoreISignal(sem) })

	select {
	case rc := <-result:
		if rc != tneo.RCOk {
			return fmt.Errorf("A resumed with %s, want OK", rc)
		}
	case <-time.After(time.Second):
		return fmt.Errorf("A never resumed")
	}
	if bIterations.Load() == 0 {
		return fmt.Errorf("B never got to run at all, scenario didn't exercise contention")
	}
	return nil
}

func scenarioFIFOWakeup(ctx context.Context, k *tneo.Kernel, arch *simarch.Arch, clock *simarch.VirtualClock) error {
	var sem *tneo.Semaphore
	arch.RunTaskContext(func() { sem, _ = k.SemaphoreCreate(0, 1) })
	order := make(chan string, 3)
	makeWaiter := func(name string) *tneo.Task {
		var t *tneo.Task
		arch.RunTaskContext(func() {
			t, _ = k.TaskCreate(name, func(any) {
				k.SemaphoreAcquire(sem, tneo.TimeoutInfinite)
				order <- name
			}, nil, 4, 0)
		})
		return t
	}
	t1, t2, t3 := makeWaiter("T1"), makeWaiter("T2"), makeWaiter("T3")
	for _, t := range []*tneo.Task{t1, t2, t3} {
		var rc tneo.RCode
		arch.RunTaskContext(func() { rc = k.TaskActivate(t) })
		if rc != tneo.RCOk {
			return fmt.Errorf("activating %s: %w", t.Name(), rc)
		}
		if err := waitForState(arch, t, tneo.StateWaiting, time.Second); err != nil {
			return err
		}
	}

	arch.RunTaskContext(func() { k.SemaphoreSignal(sem) })
	arch.RunTaskContext(func() { k.SemaphoreSignal(sem) })

	for _, want := range []string{"T1", "T2"} {
		select {
		case got := <-order:
			if got != want {
				return fmt.Errorf("expected %s next, got %s", want, got)
			}
		case <-time.After(time.Second):
			return fmt.Errorf("expected %s, got nothing", want)
		}
	}
	var count int
	var t3State tneo.State
	arch.RunTaskContext(func() {
		count = sem.Count()
		t3State = t3.State()
	})
	if count != 0 {
		return fmt.Errorf("count = %d, want 0 (units go straight to waiters)", count)
	}
	if t3State != tneo.StateWaiting {
		return fmt.Errorf("T3 should still be waiting, is %s", t3State)
	}
	return nil
}

func scenarioTimeout(ctx context.Context, k *tneo.Kernel, arch *simarch.Arch, clock *simarch.VirtualClock) error {
	var sem *tneo.Semaphore
	var t *tneo.Task
	result := make(chan tneo.RCode, 1)
	arch.RunTaskContext(func() {
		sem, _ = k.SemaphoreCreate(0, 1)
		t, _ = k.TaskCreate("waiter", func(any) {
			result <- k.SemaphoreAcquire(sem, 10)
		}, nil, 3, 0)
	})
	var rc tneo.RCode
	arch.RunTaskContext(func() { rc = k.TaskActivate(t) })
	if rc != tneo.RCOk {
		return fmt.Errorf("activating waiter: %w", rc)
	}
	if err := waitForState(arch, t, tneo.StateWaiting, time.Second); err != nil {
		return err
	}

	clock.Advance(10)

	select {
	case rc := <-result:
		if rc != tneo.RCTimeout {
			return fmt.Errorf("acquire returned %s, want TIMEOUT", rc)
		}
	case <-time.After(time.Second):
		return fmt.Errorf("acquire never returned")
	}
	var count int
	arch.RunTaskContext(func() { count = sem.Count() })
	if count != 0 {
		return fmt.Errorf("count = %d, want 0", count)
	}
	return nil
}

func scenarioDeleteWhileWaiting(ctx context.Context, k *tneo.Kernel, arch *simarch.Arch, clock *simarch.VirtualClock) error {
	var sem *tneo.Semaphore
	var t *tneo.Task
	result := make(chan tneo.RCode, 1)
	arch.RunTaskContext(func() {
		sem, _ = k.SemaphoreCreate(0, 1)
		t, _ = k.TaskCreate("waiter", func(any) {
			result <- k.SemaphoreAcquire(sem, tneo.TimeoutInfinite)
		}, nil, 3, 0)
	})
	var rc tneo.RCode
	arch.RunTaskContext(func() { rc = k.TaskActivate(t) })
	if rc != tneo.RCOk {
		return fmt.Errorf("activating waiter: %w", rc)
	}
	if err := waitForState(arch, t, tneo.StateWaiting, time.Second); err != nil {
		return err
	}

	arch.RunTaskContext(func() { rc = k.SemaphoreDelete(sem) })
	if rc != tneo.RCOk {
		return fmt.Errorf("deleting semaphore: %w", rc)
	}

	select {
	case rc := <-result:
		if rc != tneo.RCDeleted {
			return fmt.Errorf("acquire returned %s, want DELETED", rc)
		}
	case <-time.After(time.Second):
		return fmt.Errorf("acquire never returned")
	}
	arch.RunTaskContext(func() { rc = k.SemaphoreAcquirePolling(sem) })
	if rc != tneo.RCInvalidObj {
		return fmt.Errorf("post-delete call returned %s, want INVALID_OBJ", rc)
	}
	return nil
}

func scenarioSuspendInteraction(ctx context.Context, k *tneo.Kernel, arch *simarch.Arch, clock *simarch.VirtualClock) error {
	var sem *tneo.Semaphore
	var t *tneo.Task
	result := make(chan tneo.RCode, 1)
	arch.RunTaskContext(func() {
		sem, _ = k.SemaphoreCreate(0, 1)
		t, _ = k.TaskCreate("waiter", func(any) {
			result <- k.SemaphoreAcquire(sem, tneo.TimeoutInfinite)
		}, nil, 3, 0)
	})
	var rc tneo.RCode
	arch.RunTaskContext(func() { rc = k.TaskActivate(t) })
	if rc != tneo.RCOk {
		return fmt.Errorf("activating waiter: %w", rc)
	}
	if err := waitForState(arch, t, tneo.StateWaiting, time.Second); err != nil {
		return err
	}

	arch.RunTaskContext(func() { rc = k.TaskSuspend(t) })
	if rc != tneo.RCOk {
		return fmt.Errorf("suspending waiter: %w", rc)
	}
	if err := waitForState(arch, t, tneo.StateWaiting|tneo.StateSuspended, time.Second); err != nil {
		return err
	}

	arch.RunTaskContext(func() { rc = k.SemaphoreSignal(sem) })
	if rc != tneo.RCOk {
		return fmt.Errorf("signaling: %w", rc)
	}
	if err := waitForState(arch, t, tneo.StateSuspended, time.Second); err != nil {
		return fmt.Errorf("waiter should drop to plain Suspended, not re-enqueue: %w", err)
	}

	select {
	case rc := <-result:
		return fmt.Errorf("acquire returned early (%s) while still suspended", rc)
	case <-time.After(50 * time.Millisecond):
	}

	arch.RunTaskContext(func() { rc = k.TaskResume(t) })
	if rc != tneo.RCOk {
		return fmt.Errorf("resuming waiter: %w", rc)
	}
	select {
	case rc := <-result:
		if rc != tneo.RCOk {
			return fmt.Errorf("acquire returned %s, want OK", rc)
		}
	case <-time.After(time.Second):
		return fmt.Errorf("acquire never returned after resume")
	}
	return nil
}

func scenarioOverflow(ctx context.Context, k *tneo.Kernel, arch *simarch.Arch, clock *simarch.VirtualClock) error {
	var sem *tneo.Semaphore
	var rc tneo.RCode
	arch.RunTaskContext(func() {
		sem, _ = k.SemaphoreCreate(1, 1)
		rc = k.SemaphoreSignal(sem)
	})
	if rc != tneo.RCOverflow {
		return fmt.Errorf("signal returned %s, want OVERFLOW", rc)
	}
	if sem.Count() != 1 {
		return fmt.Errorf("count = %d, want 1", sem.Count())
	}
	return nil
}
