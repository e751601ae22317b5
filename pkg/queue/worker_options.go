package queue

import (
	"log/slog"
	"time"
)

// Worker defaults
const (
	DefaultMaxConcurrent = 3
	DefaultSendTimeout   = 60 * time.Second
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	maxConcurrent int
	sendTimeout   time.Duration
	policy        RetryPolicy
	clock         Clock
	logger        *slog.Logger
}

// WithMaxConcurrent sets the maximum number of jobs in flight at once
func WithMaxConcurrent(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithSendTimeout sets the per-attempt timeout imposed on the Sender
func WithSendTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithWorkerRetryPolicy sets the retry policy consulted after failures
func WithWorkerRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(o *workerOptions) {
		o.policy = policy
	}
}

// WithWorkerClock sets the clock used to timestamp attempts
func WithWorkerClock(clock Clock) WorkerOption {
	return func(o *workerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
