// Package tnlog is the narrow structured-logging facade the kernel depends
// on. It wraps github.com/joeycumines/go-utilpkg/logiface so the kernel core
// never imports a concrete backend directly, and throttles the call site
// that sits on a hot scheduling path (the kernel's per-tick event) with
// github.com/joeycumines/go-catrate, so a misbehaving task spamming a
// primitive can't turn the log into the bottleneck.
package tnlog

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-utilpkg/logiface"
	"github.com/joeycumines/go-utilpkg/logiface/stumpy"
)

// Event is the concrete logiface event type this facade is pinned to.
type Event = stumpy.Event

// Logger is what the kernel core holds: either nil (logging disabled, every
// method below is a safe no-op per logiface's contract) or a configured
// *logiface.Logger[*Event].
type Logger = logiface.Logger[*Event]

// NewStderr builds a Logger writing newline-delimited JSON to os.Stderr, at
// or above the given level. NewKernel does not use it by default: with no
// Logger supplied it falls back to [Discard].
func NewStderr(level logiface.Level) *Logger {
	return logiface.New[*Event](
		logiface.WithLevel[*Event](level),
		stumpy.WithStumpy(stumpy.WithTimeField("ts"), stumpy.WithLevelField("level")),
	)
}

// Discard is a Logger that drops everything; cheaper than lowering the
// level, since no event is ever built.
func Discard() *Logger {
	return logiface.New[*Event](logiface.WithLevel[*Event](logiface.LevelDisabled))
}

// Throttle rate-limits a fixed set of named categories, independent of the
// Logger's own level filtering. It exists for the handful of events that
// fire once per tick or once per context switch in a busy system — without
// it a single spinning task can produce unbounded log volume.
type Throttle struct {
	limiter *catrate.Limiter
}

// NewThrottle builds a Throttle allowing at most maxPerWindow events, of any
// one category, per window.
func NewThrottle(window time.Duration, maxPerWindow int) *Throttle {
	return &Throttle{limiter: catrate.NewLimiter(map[time.Duration]int{window: maxPerWindow})}
}

// Allow reports whether an event in category may be logged right now. A nil
// Throttle always allows, so the zero value of Kernel (no throttle
// configured) behaves like unthrottled logging.
func (t *Throttle) Allow(category string) bool {
	if t == nil {
		return true
	}
	_, ok := t.limiter.Allow(category)
	return ok
}
