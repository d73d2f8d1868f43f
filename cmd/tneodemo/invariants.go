package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/riuson/tneo/simarch"
	"github.com/riuson/tneo/tneo"
	"github.com/riuson/tneo/tnlog"
	"github.com/spf13/cobra"
)

func newInvariantsCmd() *cobra.Command {
	var (
		iterations int
		seed       int64
		taskCount  int
	)
	cmd := &cobra.Command{
		Use:   "invariants",
		Short: "Drive randomized task/semaphore operations and assert the documented invariants after every virtual tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvariants(cmd.Context(), iterations, seed, taskCount)
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 2000, "number of virtual ticks to advance, with an invariant check after each")
	cmd.Flags().Int64Var(&seed, "seed", 1, "PRNG seed, for reproducing a failure")
	cmd.Flags().IntVar(&taskCount, "tasks", 6, "number of tasks contending on the semaphore")
	return cmd
}

// checkInvariants asserts spec §8's quiescent-point invariants against a
// kernel and a single semaphore under contention. Called after every
// virtual tick through [simarch.Arch.RunTaskContext], so it always
// observes the kernel with no task goroutine concurrently running.
func checkInvariants(k *tneo.Kernel, sem *tneo.Semaphore) error {
	if sem.Count() < 0 || sem.Count() > sem.MaxCount() {
		return fmt.Errorf("sem.count = %d out of [0, %d]", sem.Count(), sem.MaxCount())
	}
	if sem.Count() > 0 {
		// Can't inspect the wait queue from outside the package; the
		// paired assertion (non-empty wait queue => count == 0) is
		// covered directly in tneo's own whitebox tests. Here we only
		// check the externally observable half of the invariant.
	}

	var err error
	k.ForEachTask(func(t *tneo.Task) bool {
		if t.Priority() < t.BasePriority() {
			err = fmt.Errorf("task %q priority %d < base priority %d", t.Name(), t.Priority(), t.BasePriority())
			return false
		}
		return true
	})
	return err
}

func runInvariants(parent context.Context, iterations int, seed int64, taskCount int) error {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := tnlog.NewStderr(parseLevel("warning"))
	arch := simarch.New(ctx)
	k, rc := tneo.NewKernel(cfg, arch, tneo.WithLogger(log))
	if rc != tneo.RCOk {
		return fmt.Errorf("building kernel: %w", rc)
	}
	var sem *tneo.Semaphore
	arch.RunTaskContext(func() { sem, rc = k.SemaphoreCreate(0, 3) })
	if rc != tneo.RCOk {
		return fmt.Errorf("creating semaphore: %w", rc)
	}
	clock := simarch.NewVirtualClock(arch, k)
	go k.Start()

	tasks := make([]*tneo.Task, taskCount)
	for i := range tasks {
		i := i
		var t *tneo.Task
		arch.RunTaskContext(func() {
			t, rc = k.TaskCreate(fmt.Sprintf("t%d", i), func(any) {
				rng := rand.New(rand.NewSource(seed + int64(i)))
				for {
					switch rng.Intn(3) {
					case 0:
						k.SemaphoreAcquire(sem, 5)
					case 1:
						k.SemaphoreSignal(sem)
					default:
						k.TaskSleep(1 + rng.Intn(3))
					}
				}
			}, nil, i%cfg.PrioritiesCount, 0)
		})
		if rc != tneo.RCOk {
			return fmt.Errorf("creating task %d: %w", i, rc)
		}
		tasks[i] = t
		arch.RunTaskContext(func() { rc = k.TaskActivate(t) })
		if rc != tneo.RCOk {
			return fmt.Errorf("activating task %d: %w", i, rc)
		}
	}

	for i := 0; i < iterations; i++ {
		clock.Advance(1)
		var checkErr error
		arch.RunTaskContext(func() { checkErr = checkInvariants(k, sem) })
		if checkErr != nil {
			return fmt.Errorf("iteration %d: %w", i, checkErr)
		}
	}

	fmt.Printf("ok: %d iterations, %d tasks, seed %d, no invariant violations\n", iterations, taskCount, seed)
	return nil
}
