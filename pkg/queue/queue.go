package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Queue is the public facade producers call. Enqueue is durable with
// respect to the caller: it returns only after the job is persisted, and
// never blocks on actual delivery. Everything downstream of enqueue is
// internal and observable only through Stats and the dead-letter set.
type Queue struct {
	store     Store
	worker    *Worker
	scheduler *Scheduler
	clock     Clock
	logger    *slog.Logger
}

// New wires a queue from a durable store and a sender
func New(store Store, sender Sender, opts ...Option) (*Queue, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}

	options := &queueOptions{
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	workerOpts := append([]WorkerOption{
		WithWorkerClock(options.clock),
		WithWorkerLogger(options.logger),
	}, options.workerOpts...)
	worker, err := NewWorker(store, sender, workerOpts...)
	if err != nil {
		return nil, err
	}

	schedulerOpts := append([]SchedulerOption{
		WithSchedulerClock(options.clock),
		WithSchedulerLogger(options.logger),
	}, options.schedulerOpts...)
	scheduler, err := NewScheduler(store, worker, schedulerOpts...)
	if err != nil {
		return nil, err
	}

	return &Queue{
		store:     store,
		worker:    worker,
		scheduler: scheduler,
		clock:     options.clock,
		logger:    options.logger,
	}, nil
}

// Enqueue durably records a message for background delivery and wakes the
// scheduler. It fails only when the store cannot persist the job, so the
// caller can decide whether to drop the notification instead of losing it
// silently.
func (q *Queue) Enqueue(ctx context.Context, msg Message, opts ...EnqueueOption) (uuid.UUID, error) {
	if msg.Recipient == "" {
		return uuid.Nil, ErrEmptyRecipient
	}

	options := &enqueueOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metadata := msg.Metadata
	if len(options.metadata) > 0 {
		if metadata == nil {
			metadata = make(map[string]string, len(options.metadata))
		}
		for k, v := range options.metadata {
			metadata[k] = v
		}
	}

	job := &Job{
		ID:        uuid.New(),
		Kind:      msg.Kind,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Metadata:  metadata,
		Status:    StatusPending,
		CreatedAt: q.clock.Now().UTC(),
	}

	if err := q.store.AppendJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue %q job: %w", job.Kind, err)
	}

	q.logger.Debug("job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", job.Kind))

	q.scheduler.Wake()
	return job.ID, nil
}

// Stats returns a read-only snapshot of queue occupancy
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	return q.store.Stats(ctx)
}

// Clear drops every pending and retry-scheduled job without delivering it.
// This is an irreversible operator action; in-flight jobs and the
// dead-letter set are untouched.
func (q *Queue) Clear(ctx context.Context) (int, error) {
	dropped, err := q.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}
	if dropped > 0 {
		q.logger.Info("queue cleared", slog.Int("dropped", dropped))
	}
	return dropped, nil
}

// DeadLetters returns the quarantined jobs for inspection
func (q *Queue) DeadLetters(ctx context.Context) ([]*Job, error) {
	return q.store.DeadJobs(ctx)
}

// RequeueDead readmits a quarantined job with a fresh attempt budget and
// wakes the scheduler so it is picked up promptly.
func (q *Queue) RequeueDead(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := q.store.RequeueDead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to requeue job %s: %w", id, err)
	}

	q.logger.Info("dead-letter job requeued",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", job.Kind))

	q.scheduler.Wake()
	return job, nil
}

// Start launches background delivery
func (q *Queue) Start(ctx context.Context) error {
	return q.scheduler.Start(ctx)
}

// Stop stops accepting new scheduling episodes and waits for the current
// in-flight batch to finish.
func (q *Queue) Stop() error {
	return q.scheduler.Stop()
}

// Run adapts the queue to errgroup-style supervision
func (q *Queue) Run(ctx context.Context) func() error {
	return q.scheduler.Run(ctx)
}
