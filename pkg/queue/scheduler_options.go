package queue

import (
	"log/slog"
	"time"
)

// Scheduler defaults
const (
	DefaultWakeInterval = 30 * time.Second
	DefaultBatchPause   = 2 * time.Second
)

// SchedulerOption is a functional option for configuring a scheduler
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	wakeInterval time.Duration
	batchPause   time.Duration
	clock        Clock
	logger       *slog.Logger
}

// WithWakeInterval sets the periodic safety-net interval
func WithWakeInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.wakeInterval = d
		}
	}
}

// WithBatchPause sets the pause between batches within one episode,
// keeping the downstream transport from being saturated.
func WithBatchPause(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d >= 0 {
			o.batchPause = d
		}
	}
}

// WithSchedulerClock sets the clock used to arm the retry timer
func WithSchedulerClock(clock Clock) SchedulerOption {
	return func(o *schedulerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSchedulerLogger sets the logger for the scheduler
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
