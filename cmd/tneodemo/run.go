package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/go-utilpkg/logiface"
	"github.com/riuson/tneo/simarch"
	"github.com/riuson/tneo/tneo"
	"github.com/riuson/tneo/tnlog"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		duration   time.Duration
		tickPeriod time.Duration
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a small producer/consumer workload until the duration elapses or it's interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(cmd.Context(), duration, tickPeriod, logLevel)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to run before shutting down")
	cmd.Flags().DurationVar(&tickPeriod, "tick-period", 10*time.Millisecond, "wall-clock interval between virtual ticks")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, notice, warning, err")
	return cmd
}

func runWorkload(parent context.Context, duration, tickPeriod time.Duration, logLevel string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := tnlog.NewStderr(parseLevel(logLevel))
	throttle := tnlog.NewThrottle(time.Second, 20)

	arch := simarch.New(ctx)
	k, rc := tneo.NewKernel(cfg, arch, tneo.WithLogger(log), tneo.WithLogThrottle(throttle))
	if rc != tneo.RCOk {
		return fmt.Errorf("building kernel: %w", rc)
	}

	var sem *tneo.Semaphore
	var producer, consumer *tneo.Task
	arch.RunTaskContext(func() {
		sem, rc = k.SemaphoreCreate(0, 1)
	})
	if rc != tneo.RCOk {
		return fmt.Errorf("creating semaphore: %w", rc)
	}

	arch.RunTaskContext(func() {
		producer, rc = k.TaskCreate("producer", func(any) {
			for {
				if rc := k.SemaphoreSignal(sem); rc != tneo.RCOk && rc != tneo.RCOverflow {
					log.Notice().Str("task", "producer").Log("signal failed")
				}
				k.TaskSleep(5)
			}
		}, nil, 2, 0)
	})
	if rc != tneo.RCOk {
		return fmt.Errorf("creating producer: %w", rc)
	}

	arch.RunTaskContext(func() {
		consumer, rc = k.TaskCreate("consumer", func(any) {
			for {
				result := k.SemaphoreAcquire(sem, tneo.TimeoutInfinite)
				if result != tneo.RCOk {
					k.TaskExit()
				}
				log.Debug().Str("task", "consumer").Int("ticks", int(k.Ticks())).Log("consumed one unit")
			}
		}, nil, 3, 0)
	})
	if rc != tneo.RCOk {
		return fmt.Errorf("creating consumer: %w", rc)
	}

	arch.RunTaskContext(func() { rc = k.TaskActivate(producer) })
	if rc != tneo.RCOk {
		return fmt.Errorf("activating producer: %w", rc)
	}
	arch.RunTaskContext(func() { rc = k.TaskActivate(consumer) })
	if rc != tneo.RCOk {
		return fmt.Errorf("activating consumer: %w", rc)
	}

	clock := simarch.NewVirtualClock(arch, k)
	go clock.Run(ctx, tickPeriod)

	go k.Start()

	<-ctx.Done()
	log.Info().Int("ticks", int(k.Ticks())).Log("shutting down")
	return nil
}

func parseLevel(s string) logiface.Level {
	switch s {
	case "trace":
		return logiface.LevelTrace
	case "debug":
		return logiface.LevelDebug
	case "notice":
		return logiface.LevelNotice
	case "warning", "warn":
		return logiface.LevelWarning
	case "err", "error":
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
