package queue

import "log/slog"

// Option is a functional option for configuring a Queue
type Option func(*queueOptions)

type queueOptions struct {
	workerOpts    []WorkerOption
	schedulerOpts []SchedulerOption
	clock         Clock
	logger        *slog.Logger
}

// WithLogger sets the logger shared by the facade, worker, and scheduler
func WithLogger(logger *slog.Logger) Option {
	return func(o *queueOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock shared by all queue components
func WithClock(clock Clock) Option {
	return func(o *queueOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRetryPolicy sets the retry policy consulted after failed attempts
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *queueOptions) {
		o.workerOpts = append(o.workerOpts, WithWorkerRetryPolicy(policy))
	}
}

// WithWorkerOptions passes options through to the underlying worker
func WithWorkerOptions(opts ...WorkerOption) Option {
	return func(o *queueOptions) {
		o.workerOpts = append(o.workerOpts, opts...)
	}
}

// WithSchedulerOptions passes options through to the underlying scheduler
func WithSchedulerOptions(opts ...SchedulerOption) Option {
	return func(o *queueOptions) {
		o.schedulerOpts = append(o.schedulerOpts, opts...)
	}
}

// EnqueueOption is a functional option for the Enqueue method
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	metadata map[string]string
}

// WithMetadata attaches opaque producer annotations to the job. The queue
// never interprets them.
func WithMetadata(metadata map[string]string) EnqueueOption {
	return func(o *enqueueOptions) {
		if len(metadata) == 0 {
			return
		}
		if o.metadata == nil {
			o.metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			o.metadata[k] = v
		}
	}
}
