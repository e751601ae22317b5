package queue

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// SchedulerStore is the narrow store view the scheduler needs to decide
// when to run.
type SchedulerStore interface {
	Stats(ctx context.Context) (Stats, error)
	NextRetryAt(ctx context.Context) (time.Time, bool, error)
}

// BatchProcessor processes one batch of eligible jobs and reports how many
// it claimed. Implemented by Worker.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// Scheduler decides when the worker runs. It is a single-goroutine loop
// that wakes on three triggers: an explicit Wake (enqueue), a periodic
// safety-net tick, and a timer armed from the earliest persisted retry due
// time. A wake starts an episode that drains eligible work batch by batch,
// with a pause between batches; only one episode runs at a time
// process-wide, so no job can be dispatched twice concurrently.
type Scheduler struct {
	store  SchedulerStore
	worker BatchProcessor

	wakeInterval time.Duration
	batchPause   time.Duration
	clock        Clock
	logger       *slog.Logger

	wake    chan struct{}
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a scheduler driving the given batch processor
func NewScheduler(store SchedulerStore, worker BatchProcessor, opts ...SchedulerOption) (*Scheduler, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if worker == nil {
		return nil, ErrWorkerNil
	}

	options := &schedulerOptions{
		wakeInterval: DefaultWakeInterval,
		batchPause:   DefaultBatchPause,
		clock:        SystemClock{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		store:        store,
		worker:       worker,
		wakeInterval: options.wakeInterval,
		batchPause:   options.batchPause,
		clock:        options.clock,
		logger:       options.logger,
		wake:         make(chan struct{}, 1),
	}, nil
}

// Start launches the scheduling loop in the background
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)

	s.logger.Info("scheduler started",
		slog.Duration("wake_interval", s.wakeInterval),
		slog.Duration("batch_pause", s.batchPause))
	return nil
}

// Stop shuts the loop down and waits for the current episode, including
// its in-flight batch, to finish. Calling Stop on a stopped scheduler is
// a no-op.
func (s *Scheduler) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	<-s.done

	s.logger.Info("scheduler stopped")
	return nil
}

// Run adapts the scheduler to errgroup-style supervision
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.Stop()
	}
}

// Wake nudges the scheduler to start an episode. It never blocks:
// redundant wakes while one is already queued collapse into it.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// TriggerNow runs a scheduling episode synchronously. It returns false
// without doing anything when another episode is already active; only one
// may run at a time. An episode keeps processing batches, pausing between
// them, until a batch claims no work.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	defer s.running.Store(false)

	for {
		claimed, err := s.worker.ProcessBatch(ctx)
		if err != nil {
			s.logger.Error("batch finished with errors",
				slog.Int("claimed", claimed),
				slog.Any("error", err))
		}
		if claimed == 0 {
			return true
		}

		select {
		case <-ctx.Done():
			return true
		case <-time.After(s.batchPause):
		}
	}
}

// loop is the single goroutine behind the idle/running state machine
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.wakeInterval)
	defer ticker.Stop()

	// The retry timer starts disarmed and is re-armed from persisted store
	// state after every episode, never from in-memory knowledge of
	// individual jobs.
	retryTimer := time.NewTimer(time.Hour)
	if !retryTimer.Stop() {
		<-retryTimer.C
	}
	defer retryTimer.Stop()

	// Pick up retry state that was persisted before a restart.
	s.armRetryTimer(ctx, retryTimer)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-retryTimer.C:
		case <-ticker.C:
			if !s.hasActiveJobs(ctx) {
				continue
			}
		}

		s.TriggerNow(ctx)
		s.armRetryTimer(ctx, retryTimer)
	}
}

// armRetryTimer points the retry timer at the earliest persisted due time,
// or leaves it disarmed when nothing is waiting out a backoff.
func (s *Scheduler) armRetryTimer(ctx context.Context, t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}

	at, ok, err := s.store.NextRetryAt(ctx)
	if err != nil {
		s.logger.Warn("failed to read next retry time", slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	t.Reset(delay)
	s.logger.Debug("retry timer armed", slog.Time("next_attempt_at", at))
}

func (s *Scheduler) hasActiveJobs(ctx context.Context) bool {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn("failed to read queue stats", slog.Any("error", err))
		return false
	}
	return stats.QueueLength > 0
}
