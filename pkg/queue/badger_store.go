package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Badger key prefixes
const (
	badgerKeyPrefixJob  = "job:"
	badgerKeyPrefixDead = "dead:"
)

// BadgerStoreOption is a functional option for configuring a BadgerStore
type BadgerStoreOption func(*badgerStoreOptions)

type badgerStoreOptions struct {
	logger *slog.Logger
}

// WithBadgerStoreLogger sets the logger for the badger store
func WithBadgerStoreLogger(logger *slog.Logger) BadgerStoreOption {
	return func(o *badgerStoreOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// BadgerStore implements Store on an embedded BadgerDB database. Jobs live
// under "job:" keys and dead letters under "dead:" keys, both as JSON
// values; every transition is one durable transaction. Claims are tracked
// in memory only, so a crash mid-attempt reloads claimed jobs as pending.
// All mutations are serialized under a mutex, which keeps writes free of
// transaction conflicts.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	mu      sync.Mutex
	claimed map[uuid.UUID]struct{}
}

// OpenBadgerStore opens (creating if needed) a badger-backed store at path
func OpenBadgerStore(path string, opts ...BadgerStoreOption) (*BadgerStore, error) {
	options := &badgerStoreOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	badgerOpts := badger.DefaultOptions(path)
	badgerOpts.Logger = nil // badger's own logger interface is too chatty for queue use

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}

	return &BadgerStore{
		db:      db,
		logger:  options.logger,
		claimed: make(map[uuid.UUID]struct{}),
	}, nil
}

// Close implements Store
func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}

func badgerJobKey(id uuid.UUID) []byte {
	return []byte(badgerKeyPrefixJob + id.String())
}

func badgerDeadKey(id uuid.UUID) []byte {
	return []byte(badgerKeyPrefixDead + id.String())
}

// AppendJob implements Store
func (bs *BadgerStore) AppendJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrJobNotFound
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	return bs.db.Update(func(txn *badger.Txn) error {
		key := badgerJobKey(job.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
		}
		return txn.Set(key, data)
	})
}

// ClaimJobs implements Store. The claim lives in memory only.
func (bs *BadgerStore) ClaimJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	jobs, err := bs.scanJobs()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	var claimed []*Job
	for _, job := range jobs {
		if len(claimed) >= limit {
			break
		}
		if _, inFlight := bs.claimed[job.ID]; inFlight {
			continue
		}
		if !job.Eligible(now) {
			continue
		}
		bs.claimed[job.ID] = struct{}{}
		job.Status = StatusInFlight
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// MarkSent implements Store
func (bs *BadgerStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if _, inFlight := bs.claimed[id]; !inFlight {
		return fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	err := bs.db.Update(func(txn *badger.Txn) error {
		key := badgerJobKey(id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, id)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	delete(bs.claimed, id)
	return nil
}

// ScheduleRetry implements Store
func (bs *BadgerStore) ScheduleRetry(ctx context.Context, id uuid.UUID, attemptedAt, retryAt time.Time, errMsg string) (*Job, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if _, inFlight := bs.claimed[id]; !inFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	var updated *Job
	err := bs.db.Update(func(txn *badger.Txn) error {
		job, err := bs.getJob(txn, badgerJobKey(id))
		if err != nil {
			return err
		}

		recordFailure(job, attemptedAt, errMsg)
		job.Status = StatusRetryScheduled
		job.NextAttemptAt = &retryAt

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", id, err)
		}
		if err := txn.Set(badgerJobKey(id), data); err != nil {
			return err
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	delete(bs.claimed, id)
	return updated, nil
}

// MarkDead implements Store
func (bs *BadgerStore) MarkDead(ctx context.Context, id uuid.UUID, attemptedAt time.Time, errMsg string) (*Job, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if _, inFlight := bs.claimed[id]; !inFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	var dead *Job
	err := bs.db.Update(func(txn *badger.Txn) error {
		job, err := bs.getJob(txn, badgerJobKey(id))
		if err != nil {
			return err
		}

		recordFailure(job, attemptedAt, errMsg)
		job.Status = StatusDead
		job.NextAttemptAt = nil

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", id, err)
		}
		if err := txn.Set(badgerDeadKey(id), data); err != nil {
			return err
		}
		if err := txn.Delete(badgerJobKey(id)); err != nil {
			return err
		}
		dead = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	delete(bs.claimed, id)
	return dead, nil
}

// Stats implements Store
func (bs *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	jobs, err := bs.scanJobs()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{QueueLength: len(jobs), InFlight: len(bs.claimed)}
	for _, job := range jobs {
		if _, inFlight := bs.claimed[job.ID]; inFlight {
			continue
		}
		switch job.Status {
		case StatusRetryScheduled:
			stats.Retrying++
		default:
			stats.Pending++
		}
	}

	err = bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerKeyPrefixDead)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stats.Dead++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// NextRetryAt implements Store
func (bs *BadgerStore) NextRetryAt(ctx context.Context) (time.Time, bool, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	jobs, err := bs.scanJobs()
	if err != nil {
		return time.Time{}, false, err
	}

	var earliest time.Time
	found := false
	for _, job := range jobs {
		if _, inFlight := bs.claimed[job.ID]; inFlight {
			continue
		}
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
func (bs *BadgerStore) DeadJobs(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerKeyPrefixDead)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var job Job
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				bs.logger.Warn("skipping corrupt dead-letter record",
					slog.String("key", string(it.Item().Key())),
					slog.Any("error", err))
				continue
			}
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// RequeueDead implements Store
func (bs *BadgerStore) RequeueDead(ctx context.Context, id uuid.UUID) (*Job, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	var requeued *Job
	err := bs.db.Update(func(txn *badger.Txn) error {
		job, err := bs.getJob(txn, badgerDeadKey(id))
		if err != nil {
			return err
		}

		resetForRequeue(job)
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", id, err)
		}
		if err := txn.Set(badgerJobKey(id), data); err != nil {
			return err
		}
		if err := txn.Delete(badgerDeadKey(id)); err != nil {
			return err
		}
		requeued = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requeued, nil
}

// Clear implements Store
func (bs *BadgerStore) Clear(ctx context.Context) (int, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	jobs, err := bs.scanJobs()
	if err != nil {
		return 0, err
	}

	dropped := 0
	err = bs.db.Update(func(txn *badger.Txn) error {
		for _, job := range jobs {
			if _, inFlight := bs.claimed[job.ID]; inFlight {
				continue
			}
			if err := txn.Delete(badgerJobKey(job.ID)); err != nil {
				return err
			}
			dropped++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dropped, nil
}

// scanJobs reads every active job from the database. Corrupt records are
// skipped with a warning instead of failing the scan. Persisted in_flight
// statuses normalize to pending; the claim map is the only authority on
// who is in flight.
func (bs *BadgerStore) scanJobs() ([]*Job, error) {
	var jobs []*Job
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerKeyPrefixJob)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var job Job
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				bs.logger.Warn("skipping corrupt job record",
					slog.String("key", string(it.Item().Key())),
					slog.Any("error", err))
				continue
			}
			if job.Status == StatusInFlight {
				job.Status = StatusPending
			}
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// getJob reads and decodes one job record inside a transaction
func (bs *BadgerStore) getJob(txn *badger.Txn, key []byte) (*Job, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, string(key))
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &job)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", string(key), err)
	}
	return &job, nil
}
