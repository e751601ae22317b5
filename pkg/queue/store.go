package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable home of the active set and the dead-letter set.
// Implementations hold the authoritative in-memory state and rewrite their
// persisted representation on every mutation, serialized so no two writers
// interleave. If persisting a mutation fails, the in-memory state must be
// left as it was before the call and the error returned; a mutation is
// never assumed successful.
//
// Claims are deliberately not durable: ClaimJobs marks jobs in flight in
// memory only, so a crash mid-attempt reloads them as pending and causes at
// most one duplicate attempt. Callers that need at-most-once delivery must
// layer their own attempt marker on top.
//
// Worker and Scheduler consume narrow views of this interface (WorkerStore,
// SchedulerStore); the full surface exists for the Queue facade, the
// queuectl CLI, and alternative backends.
type Store interface {
	// AppendJob adds a new job to the active set and persists it
	AppendJob(ctx context.Context, job *Job) error

	// ClaimJobs atomically selects up to limit jobs eligible at now
	// (pending, or retry_scheduled past their due time), marks them
	// in_flight in memory, and returns copies. A claimed job cannot be
	// claimed again until an outcome is recorded for it.
	ClaimJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// MarkSent removes a delivered job from the active set and persists
	MarkSent(ctx context.Context, id uuid.UUID) error

	// ScheduleRetry records a failed attempt on a claimed job: increments
	// Attempts, stores the error and attempt time, sets the durable
	// retry-due time, moves the job to retry_scheduled, and persists.
	// Returns a copy of the updated job.
	ScheduleRetry(ctx context.Context, id uuid.UUID, attemptedAt, retryAt time.Time, errMsg string) (*Job, error)

	// MarkDead records a final failed attempt and quarantines the job:
	// increments Attempts, stores the error, moves the job from the active
	// set to the dead-letter set, and persists both. Returns a copy.
	MarkDead(ctx context.Context, id uuid.UUID, attemptedAt time.Time, errMsg string) (*Job, error)

	// Stats returns a snapshot of queue occupancy without side effects
	Stats(ctx context.Context) (Stats, error)

	// NextRetryAt returns the earliest due time among retry_scheduled
	// jobs, or false when none are waiting.
	NextRetryAt(ctx context.Context) (time.Time, bool, error)

	// DeadJobs returns copies of all quarantined jobs for inspection
	DeadJobs(ctx context.Context) ([]*Job, error)

	// RequeueDead moves a quarantined job back to the active set as
	// pending with a fresh attempt budget. Returns a copy.
	RequeueDead(ctx context.Context, id uuid.UUID) (*Job, error)

	// Clear drops all pending and retry_scheduled jobs without delivering
	// them and returns how many were dropped. In-flight jobs and the
	// dead-letter set are untouched.
	Clear(ctx context.Context) (int, error)

	// Close releases any resources held by the store
	Close() error
}
