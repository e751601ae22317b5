package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store entirely in memory. Nothing survives a
// process restart, which makes it suitable for tests and throwaway
// development setups only.
type MemoryStore struct {
	mu     sync.Mutex
	order  []uuid.UUID // enqueue order of the active set
	active map[uuid.UUID]*Job
	dead   map[uuid.UUID]*Job
	closed bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[uuid.UUID]*Job),
		dead:   make(map[uuid.UUID]*Job),
	}
}

// Close marks the store closed; subsequent operations fail with ErrStoreClosed
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return nil
}

// AppendJob implements Store
func (ms *MemoryStore) AppendJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrJobNotFound
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrStoreClosed
	}

	if _, exists := ms.active[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}

	ms.active[job.ID] = job.clone()
	ms.order = append(ms.order, job.ID)
	return nil
}

// ClaimJobs implements Store
func (ms *MemoryStore) ClaimJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, ErrStoreClosed
	}

	var claimed []*Job
	for _, id := range ms.order {
		if len(claimed) >= limit {
			break
		}
		job := ms.active[id]
		if !job.Eligible(now) {
			continue
		}
		job.Status = StatusInFlight
		claimed = append(claimed, job.clone())
	}
	return claimed, nil
}

// MarkSent implements Store
func (ms *MemoryStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrStoreClosed
	}

	job, exists := ms.active[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusInFlight {
		return fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	ms.remove(id)
	return nil
}

// ScheduleRetry implements Store
func (ms *MemoryStore) ScheduleRetry(ctx context.Context, id uuid.UUID, attemptedAt, retryAt time.Time, errMsg string) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, ErrStoreClosed
	}

	job, exists := ms.active[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusInFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	recordFailure(job, attemptedAt, errMsg)
	job.Status = StatusRetryScheduled
	job.NextAttemptAt = &retryAt
	return job.clone(), nil
}

// MarkDead implements Store
func (ms *MemoryStore) MarkDead(ctx context.Context, id uuid.UUID, attemptedAt time.Time, errMsg string) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, ErrStoreClosed
	}

	job, exists := ms.active[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusInFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	recordFailure(job, attemptedAt, errMsg)
	job.Status = StatusDead
	job.NextAttemptAt = nil

	ms.remove(id)
	ms.dead[id] = job
	return job.clone(), nil
}

// Stats implements Store
func (ms *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return Stats{}, ErrStoreClosed
	}

	stats := Stats{QueueLength: len(ms.active), Dead: len(ms.dead)}
	for _, job := range ms.active {
		switch job.Status {
		case StatusPending:
			stats.Pending++
		case StatusInFlight:
			stats.InFlight++
		case StatusRetryScheduled:
			stats.Retrying++
		}
	}
	return stats, nil
}

// NextRetryAt implements Store
func (ms *MemoryStore) NextRetryAt(ctx context.Context) (time.Time, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return time.Time{}, false, ErrStoreClosed
	}

	var earliest time.Time
	found := false
	for _, job := range ms.active {
		if job.Status != StatusRetryScheduled || job.NextAttemptAt == nil {
			continue
		}
		if !found || job.NextAttemptAt.Before(earliest) {
			earliest = *job.NextAttemptAt
			found = true
		}
	}
	return earliest, found, nil
}

// DeadJobs implements Store
func (ms *MemoryStore) DeadJobs(ctx context.Context) ([]*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, ErrStoreClosed
	}

	jobs := make([]*Job, 0, len(ms.dead))
	for _, job := range ms.dead {
		jobs = append(jobs, job.clone())
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// RequeueDead implements Store
func (ms *MemoryStore) RequeueDead(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil, ErrStoreClosed
	}

	job, exists := ms.dead[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	resetForRequeue(job)
	delete(ms.dead, id)
	ms.active[id] = job
	ms.order = append(ms.order, id)
	return job.clone(), nil
}

// Clear implements Store
func (ms *MemoryStore) Clear(ctx context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return 0, ErrStoreClosed
	}

	dropped := 0
	for _, id := range slices.Clone(ms.order) {
		job := ms.active[id]
		if job.Status == StatusInFlight {
			continue
		}
		ms.remove(id)
		dropped++
	}
	return dropped, nil
}

// remove deletes a job from the active set and its order index.
// Callers must hold the mutex.
func (ms *MemoryStore) remove(id uuid.UUID) {
	delete(ms.active, id)
	ms.order = slices.DeleteFunc(ms.order, func(other uuid.UUID) bool {
		return other == id
	})
}

// recordFailure applies the shared bookkeeping of a completed failed
// attempt to a job.
func recordFailure(job *Job, attemptedAt time.Time, errMsg string) {
	job.Attempts++
	at := attemptedAt
	job.LastAttemptAt = &at
	msg := errMsg
	job.LastError = &msg
}

// resetForRequeue readmits a quarantined job with a fresh attempt budget.
// The last error stays on the record until the next attempt overwrites it.
func resetForRequeue(job *Job) {
	job.Status = StatusPending
	job.Attempts = 0
	job.NextAttemptAt = nil
}
