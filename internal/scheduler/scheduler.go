// Package scheduler arms one delayed, cancellable execution per reminder.
// There is no sweep loop or priority queue; reminders are independent
// timers, which is all the delivery-order guarantee the bot promises.
package scheduler

import (
	"time"

	"nudge/internal/async"
	"nudge/internal/logging"
)

// Engine turns target instants into armed timers.
type Engine struct {
	clock  func() time.Time
	logger logging.Logger
}

// New creates an engine. clock may be nil, in which case time.Now is used;
// tests inject a fake.
func New(clock func() time.Time, logger logging.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		clock:  clock,
		logger: logging.OrNop(logger),
	}
}

// Handle revokes a pending fire. It is owned by exactly one reminder.
type Handle struct {
	timer *time.Timer
}

// Stop prevents the fire from starting if it has not already begun. A false
// return means the fire won the race; cancellation is best effort and the
// caller must rely on the shared removal authority, not on Stop, for
// exactly-once effects.
func (h *Handle) Stop() bool {
	return h.timer.Stop()
}

// Arm schedules fire to run once when target is reached. A target at or
// before now fires immediately; that only happens through a logic error
// upstream since targets are always computed in the future, so it is logged.
// The fire body runs on the timer goroutine under panic recovery.
func (e *Engine) Arm(name string, target time.Time, fire func()) *Handle {
	delay := target.Sub(e.clock())
	if delay <= 0 {
		e.logger.Warn("scheduler: target %s for %s not in the future, firing immediately", target, name)
		delay = 0
	}
	e.logger.Debug("scheduler: armed %s in %s", name, delay)

	timer := time.AfterFunc(delay, func() {
		defer async.Recover(e.logger, "reminder fire "+name)
		fire()
	})
	return &Handle{timer: timer}
}
