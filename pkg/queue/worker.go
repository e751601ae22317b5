package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerStore is the narrow store view the worker needs to drive jobs
// through their delivery attempts.
type WorkerStore interface {
	ClaimJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, attemptedAt, retryAt time.Time, errMsg string) (*Job, error)
	MarkDead(ctx context.Context, id uuid.UUID, attemptedAt time.Time, errMsg string) (*Job, error)
}

// Worker drives eligible jobs through the Sender with bounded concurrency.
// At most maxConcurrent jobs are in flight at any instant, system-wide;
// within a batch every job's outcome is handled independently, so one
// failure never cancels or delays its siblings.
type Worker struct {
	store  WorkerStore
	sender Sender
	policy RetryPolicy
	sem    chan struct{}

	sendTimeout time.Duration
	clock       Clock
	logger      *slog.Logger
}

// NewWorker creates a worker bound to a store and a sender
func NewWorker(store WorkerStore, sender Sender, opts ...WorkerOption) (*Worker, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if sender == nil {
		return nil, ErrSenderNil
	}

	options := &workerOptions{
		maxConcurrent: DefaultMaxConcurrent,
		sendTimeout:   DefaultSendTimeout,
		policy:        DefaultRetryPolicy(),
		clock:         SystemClock{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		store:       store,
		sender:      sender,
		policy:      options.policy,
		sem:         make(chan struct{}, options.maxConcurrent),
		sendTimeout: options.sendTimeout,
		clock:       options.clock,
		logger:      options.logger,
	}, nil
}

// ProcessBatch claims up to the number of free concurrency slots worth of
// eligible jobs, dispatches each in its own goroutine, and waits for all
// outcomes. It returns how many jobs were claimed; zero means there was no
// eligible work (or no free slots) this pass. Persistence failures while
// recording outcomes are joined into the returned error.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	slots := 0
	for slots < cap(w.sem) {
		select {
		case w.sem <- struct{}{}:
			slots++
		default:
			// Remaining slots are occupied by another pass.
			goto claim
		}
	}
claim:
	if slots == 0 {
		return 0, nil
	}

	jobs, err := w.store.ClaimJobs(ctx, w.clock.Now(), slots)
	if err != nil {
		w.release(slots)
		return 0, fmt.Errorf("failed to claim jobs: %w", err)
	}

	// Return slots we claimed no work for.
	w.release(slots - len(jobs))
	if len(jobs) == 0 {
		return 0, nil
	}

	w.logger.Debug("dispatching batch", slog.Int("jobs", len(jobs)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		outcome error
	)
	for _, job := range jobs {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			defer func() { <-w.sem }()

			if err := w.attempt(job); err != nil {
				mu.Lock()
				outcome = errors.Join(outcome, err)
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()

	return len(jobs), outcome
}

// attempt performs one delivery attempt and records its outcome. The send
// context is detached from the pass context so a clean shutdown lets the
// in-flight batch finish instead of aborting it mid-send.
func (w *Worker) attempt(job *Job) error {
	start := w.clock.Now()

	sendErr := w.send(job)
	attemptedAt := w.clock.Now()

	if sendErr == nil {
		if err := w.store.MarkSent(context.Background(), job.ID); err != nil {
			w.logger.Error("failed to record delivery",
				slog.String("job_id", job.ID.String()),
				slog.String("kind", job.Kind),
				slog.Any("error", err))
			return fmt.Errorf("failed to mark job %s sent: %w", job.ID, err)
		}
		w.logger.Info("job delivered",
			slog.String("job_id", job.ID.String()),
			slog.String("kind", job.Kind),
			slog.Int("attempts", job.Attempts+1),
			slog.Duration("duration", attemptedAt.Sub(start)))
		return nil
	}

	decision := w.policy.Decide(job.Attempts + 1)
	switch decision.Action {
	case ActionQuarantine:
		dead, err := w.store.MarkDead(context.Background(), job.ID, attemptedAt, sendErr.Error())
		if err != nil {
			w.logger.Error("failed to quarantine job",
				slog.String("job_id", job.ID.String()),
				slog.Any("error", err))
			return fmt.Errorf("failed to quarantine job %s: %w", job.ID, err)
		}
		w.logger.Error("job moved to dead-letter set",
			slog.String("job_id", dead.ID.String()),
			slog.String("kind", dead.Kind),
			slog.Int("attempts", dead.Attempts),
			slog.Any("error", sendErr))
	default:
		retryAt := attemptedAt.Add(decision.Delay)
		updated, err := w.store.ScheduleRetry(context.Background(), job.ID, attemptedAt, retryAt, sendErr.Error())
		if err != nil {
			w.logger.Error("failed to schedule retry",
				slog.String("job_id", job.ID.String()),
				slog.Any("error", err))
			return fmt.Errorf("failed to schedule retry for job %s: %w", job.ID, err)
		}
		w.logger.Warn("delivery failed, retry scheduled",
			slog.String("job_id", updated.ID.String()),
			slog.String("kind", updated.Kind),
			slog.Int("attempts", updated.Attempts),
			slog.Time("next_attempt_at", retryAt),
			slog.Any("error", sendErr))
	}
	return nil
}

// send invokes the Sender under the per-attempt timeout, converting panics
// into attempt failures.
func (w *Worker) send(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sender: %v", r)
			w.logger.Error("sender panicked",
				slog.String("job_id", job.ID.String()),
				slog.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), w.sendTimeout)
	defer cancel()

	return w.sender.Send(ctx, job.Message())
}

func (w *Worker) release(n int) {
	for range n {
		<-w.sem
	}
}
