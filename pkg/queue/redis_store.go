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

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for a redis-backed store
type RedisConfig struct {
	ConnectionURL  string        `env:"QUEUE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix      string        `env:"QUEUE_REDIS_PREFIX" envDefault:"notify"`
	RetryAttempts  int           `env:"QUEUE_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"QUEUE_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"QUEUE_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Redis store errors
var (
	ErrRedisURLInvalid = errors.New("failed to parse redis connection URL")
	ErrRedisNotReady   = errors.New("redis is not ready")
)

// RedisStoreOption is a functional option for configuring a RedisStore
type RedisStoreOption func(*redisStoreOptions)

type redisStoreOptions struct {
	prefix string
	logger *slog.Logger
}

// WithRedisKeyPrefix sets the key prefix for the store's hashes
func WithRedisKeyPrefix(prefix string) RedisStoreOption {
	return func(o *redisStoreOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithRedisStoreLogger sets the logger for the redis store
func WithRedisStoreLogger(logger *slog.Logger) RedisStoreOption {
	return func(o *redisStoreOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// RedisStore implements Store on two redis hashes: "<prefix>:active" and
// "<prefix>:dead", one JSON-encoded field per job. Every transition is one
// hash write, so persisted state always reflects the last recorded
// transition. Claims are tracked in memory only; a crash mid-attempt
// reloads claimed jobs as pending.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	mu      sync.Mutex
	claimed map[uuid.UUID]struct{}
}

// NewRedisStore wraps an existing redis client
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreNil
	}

	options := &redisStoreOptions{prefix: "notify", logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return &RedisStore{
		client:  client,
		prefix:  options.prefix,
		logger:  options.logger,
		claimed: make(map[uuid.UUID]struct{}),
	}, nil
}

// OpenRedisStore dials redis with bounded ping retries and wraps the
// resulting client.
func OpenRedisStore(ctx context.Context, cfg RedisConfig, opts ...RedisStoreOption) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	connOpt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrRedisURLInvalid, err)
	}

	for range cfg.RetryAttempts {
		client := redis.NewClient(connOpt)
		if err := client.Ping(ctx).Err(); err == nil {
			if cfg.KeyPrefix != "" {
				opts = append([]RedisStoreOption{WithRedisKeyPrefix(cfg.KeyPrefix)}, opts...)
			}
			return NewRedisStore(client, opts...)
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrRedisNotReady
}

// Close implements Store
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func (rs *RedisStore) activeKey() string { return rs.prefix + ":active" }
func (rs *RedisStore) deadKey() string   { return rs.prefix + ":dead" }

// AppendJob implements Store
func (rs *RedisStore) AppendJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrJobNotFound
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	exists, err := rs.client.HExists(ctx, rs.activeKey(), job.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("failed to check job %s: %w", job.ID, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}

	return rs.writeJob(ctx, rs.activeKey(), job)
}

// ClaimJobs implements Store. The claim lives in memory only.
func (rs *RedisStore) ClaimJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	jobs, err := rs.scanJobs(ctx, rs.activeKey())
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
		if _, inFlight := rs.claimed[job.ID]; inFlight {
			continue
		}
		if !job.Eligible(now) {
			continue
		}
		rs.claimed[job.ID] = struct{}{}
		job.Status = StatusInFlight
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// MarkSent implements Store
func (rs *RedisStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, inFlight := rs.claimed[id]; !inFlight {
		return fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	removed, err := rs.client.HDel(ctx, rs.activeKey(), id.String()).Result()
	if err != nil {
		return fmt.Errorf("failed to remove job %s: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	delete(rs.claimed, id)
	return nil
}

// ScheduleRetry implements Store
func (rs *RedisStore) ScheduleRetry(ctx context.Context, id uuid.UUID, attemptedAt, retryAt time.Time, errMsg string) (*Job, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, inFlight := rs.claimed[id]; !inFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	job, err := rs.readJob(ctx, rs.activeKey(), id)
	if err != nil {
		return nil, err
	}

	recordFailure(job, attemptedAt, errMsg)
	job.Status = StatusRetryScheduled
	job.NextAttemptAt = &retryAt

	if err := rs.writeJob(ctx, rs.activeKey(), job); err != nil {
		return nil, err
	}

	delete(rs.claimed, id)
	return job, nil
}

// MarkDead implements Store. The dead-letter record is written before the
// active record is removed, so an interruption in between leaves the job
// quarantined rather than lost.
func (rs *RedisStore) MarkDead(ctx context.Context, id uuid.UUID, attemptedAt time.Time, errMsg string) (*Job, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, inFlight := rs.claimed[id]; !inFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	job, err := rs.readJob(ctx, rs.activeKey(), id)
	if err != nil {
		return nil, err
	}

	recordFailure(job, attemptedAt, errMsg)
	job.Status = StatusDead
	job.NextAttemptAt = nil

	if err := rs.writeJob(ctx, rs.deadKey(), job); err != nil {
		return nil, err
	}
	if err := rs.client.HDel(ctx, rs.activeKey(), id.String()).Err(); err != nil {
		return nil, fmt.Errorf("failed to remove job %s from active set: %w", id, err)
	}

	delete(rs.claimed, id)
	return job, nil
}

// Stats implements Store
func (rs *RedisStore) Stats(ctx context.Context) (Stats, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	jobs, err := rs.scanJobs(ctx, rs.activeKey())
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{QueueLength: len(jobs), InFlight: len(rs.claimed)}
	for _, job := range jobs {
		if _, inFlight := rs.claimed[job.ID]; inFlight {
			continue
		}
		switch job.Status {
		case StatusRetryScheduled:
			stats.Retrying++
		default:
			stats.Pending++
		}
	}

	dead, err := rs.client.HLen(ctx, rs.deadKey()).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count dead letters: %w", err)
	}
	stats.Dead = int(dead)
	return stats, nil
}

// NextRetryAt implements Store
func (rs *RedisStore) NextRetryAt(ctx context.Context) (time.Time, bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	jobs, err := rs.scanJobs(ctx, rs.activeKey())
	if err != nil {
		return time.Time{}, false, err
	}

	var earliest time.Time
	found := false
	for _, job := range jobs {
		if _, inFlight := rs.claimed[job.ID]; inFlight {
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
func (rs *RedisStore) DeadJobs(ctx context.Context) ([]*Job, error) {
	jobs, err := rs.scanJobs(ctx, rs.deadKey())
	if err != nil {
		return nil, err
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// RequeueDead implements Store
func (rs *RedisStore) RequeueDead(ctx context.Context, id uuid.UUID) (*Job, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	job, err := rs.readJob(ctx, rs.deadKey(), id)
	if err != nil {
		return nil, err
	}

	resetForRequeue(job)
	if err := rs.writeJob(ctx, rs.activeKey(), job); err != nil {
		return nil, err
	}
	if err := rs.client.HDel(ctx, rs.deadKey(), id.String()).Err(); err != nil {
		return nil, fmt.Errorf("failed to remove dead letter %s: %w", id, err)
	}
	return job, nil
}

// Clear implements Store
func (rs *RedisStore) Clear(ctx context.Context) (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	jobs, err := rs.scanJobs(ctx, rs.activeKey())
	if err != nil {
		return 0, err
	}

	var fields []string
	for _, job := range jobs {
		if _, inFlight := rs.claimed[job.ID]; inFlight {
			continue
		}
		fields = append(fields, job.ID.String())
	}
	if len(fields) == 0 {
		return 0, nil
	}

	if err := rs.client.HDel(ctx, rs.activeKey(), fields...).Err(); err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}
	return len(fields), nil
}

// writeJob encodes a job into the given hash
func (rs *RedisStore) writeJob(ctx context.Context, key string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := rs.client.HSet(ctx, key, job.ID.String(), data).Err(); err != nil {
		return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
	}
	return nil
}

// readJob decodes one job from the given hash
func (rs *RedisStore) readJob(ctx context.Context, key string, id uuid.UUID) (*Job, error) {
	data, err := rs.client.HGet(ctx, key, id.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// scanJobs reads every job in the given hash. Corrupt fields are skipped
// with a warning. Persisted in_flight statuses normalize to pending.
func (rs *RedisStore) scanJobs(ctx context.Context, key string) ([]*Job, error) {
	fields, err := rs.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", key, err)
	}

	jobs := make([]*Job, 0, len(fields))
	for field, data := range fields {
		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			rs.logger.Warn("skipping corrupt job record",
				slog.String("key", key),
				slog.String("field", field),
				slog.Any("error", err))
			continue
		}
		if job.Status == StatusInFlight {
			job.Status = StatusPending
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
