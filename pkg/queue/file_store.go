package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	queueFileName = "queue.json"
	deadDirName   = "dead"
)

// FileStoreOption is a functional option for configuring a FileStore
type FileStoreOption func(*fileStoreOptions)

type fileStoreOptions struct {
	logger *slog.Logger
}

// WithFileStoreLogger sets the logger for the file store
func WithFileStoreLogger(logger *slog.Logger) FileStoreOption {
	return func(o *fileStoreOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// FileStore implements Store on top of a directory:
//
//	<dir>/queue.json  ordered JSON array of active jobs, fully rewritten
//	                  (temp file + rename) on every persisted mutation
//	<dir>/dead/       one pretty-printed JSON file per quarantined job,
//	                  never deleted by the queue itself
//
// The in-memory sets are authoritative; the files mirror them. A corrupt
// queue.json or dead-letter file is renamed aside with a warning and the
// affected set starts empty, so corruption degrades the store instead of
// preventing startup. Claims are memory-only: jobs serialize as pending
// while in flight, and any persisted in_flight status from older files
// normalizes back to pending on load.
type FileStore struct {
	mu        sync.Mutex
	dir       string
	queuePath string
	deadDir   string
	logger    *slog.Logger

	order     []uuid.UUID
	active    map[uuid.UUID]*Job
	dead      map[uuid.UUID]*Job
	deadFiles map[uuid.UUID]string
	closed    bool
}

// OpenFileStore opens (creating if needed) a file-backed store rooted at dir
// and loads both persisted sets.
func OpenFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	options := &fileStoreOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	deadDir := filepath.Join(dir, deadDirName)
	if err := os.MkdirAll(deadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}

	fs := &FileStore{
		dir:       dir,
		queuePath: filepath.Join(dir, queueFileName),
		deadDir:   deadDir,
		logger:    options.logger,
		active:    make(map[uuid.UUID]*Job),
		dead:      make(map[uuid.UUID]*Job),
		deadFiles: make(map[uuid.UUID]string),
	}

	if err := fs.loadDead(); err != nil {
		return nil, err
	}
	if err := fs.loadActive(); err != nil {
		return nil, err
	}

	fs.logger.Debug("file store opened",
		slog.String("dir", dir),
		slog.Int("active", len(fs.active)),
		slog.Int("dead", len(fs.dead)))

	return fs, nil
}

// loadActive reads queue.json into the active set. A missing file means an
// empty queue; an unparsable file is renamed aside and the queue starts
// empty rather than refusing to boot.
func (fs *FileStore) loadActive() error {
	data, err := os.ReadFile(fs.queuePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fs.queuePath, err)
	}

	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		corrupt := fs.queuePath + ".corrupt"
		fs.logger.Warn("persisted queue is corrupt, starting with an empty active set",
			slog.String("file", fs.queuePath),
			slog.String("moved_to", corrupt),
			slog.Any("error", err))
		if renameErr := os.Rename(fs.queuePath, corrupt); renameErr != nil {
			fs.logger.Warn("failed to move corrupt queue file aside", slog.Any("error", renameErr))
		}
		return nil
	}

	for _, job := range jobs {
		if job == nil {
			continue
		}
		// A job present in both sets keeps its quarantined copy: the
		// dead-letter file is written before the active set is rewritten,
		// so the dead record is the later truth after a crash in between.
		if _, quarantined := fs.dead[job.ID]; quarantined {
			continue
		}
		// Claims do not survive a restart.
		if job.Status == StatusInFlight {
			job.Status = StatusPending
		}
		fs.active[job.ID] = job
		fs.order = append(fs.order, job.ID)
	}
	return nil
}

// loadDead reads every JSON file under dead/. Unparsable entries are
// renamed aside and skipped.
func (fs *FileStore) loadDead() error {
	entries, err := os.ReadDir(fs.deadDir)
	if err != nil {
		return fmt.Errorf("failed to read dead-letter directory %s: %w", fs.deadDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(fs.deadDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read dead-letter file %s: %w", path, err)
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			fs.logger.Warn("skipping corrupt dead-letter file",
				slog.String("file", path),
				slog.Any("error", err))
			if renameErr := os.Rename(path, path+".corrupt"); renameErr != nil {
				fs.logger.Warn("failed to move corrupt dead-letter file aside", slog.Any("error", renameErr))
			}
			continue
		}
		job.Status = StatusDead
		fs.dead[job.ID] = &job
		fs.deadFiles[job.ID] = path
	}
	return nil
}

// persistActive rewrites queue.json from the current active set via a temp
// file and an atomic rename. In-flight jobs serialize as pending because
// claims are not durable state. Callers must hold the mutex.
func (fs *FileStore) persistActive() error {
	jobs := make([]*Job, 0, len(fs.order))
	for _, id := range fs.order {
		job := fs.active[id].clone()
		if job.Status == StatusInFlight {
			job.Status = StatusPending
		}
		jobs = append(jobs, job)
	}

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode active set: %w", err)
	}

	tmp, err := os.CreateTemp(fs.dir, queueFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp queue file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp queue file: %w", err)
	}
	if err := os.Rename(tmpName, fs.queuePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace queue file: %w", err)
	}
	return nil
}

// persistDead writes a single quarantined job to its own file under dead/
// and returns the path. Callers must hold the mutex.
func (fs *FileStore) persistDead(job *Job, failedAt time.Time) (string, error) {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode dead-letter job %s: %w", job.ID, err)
	}
	name := fmt.Sprintf("%s_%s.json", failedAt.UTC().Format("20060102T150405"), job.ID)
	path := filepath.Join(fs.deadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write dead-letter file %s: %w", path, err)
	}
	return path, nil
}

// Close implements Store
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.closed = true
	return nil
}

// AppendJob implements Store
func (fs *FileStore) AppendJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrJobNotFound
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return ErrStoreClosed
	}

	if _, exists := fs.active[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}

	fs.active[job.ID] = job.clone()
	fs.order = append(fs.order, job.ID)

	if err := fs.persistActive(); err != nil {
		fs.removeActive(job.ID)
		return err
	}
	return nil
}

// ClaimJobs implements Store. The claim itself is not persisted.
func (fs *FileStore) ClaimJobs(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil, ErrStoreClosed
	}

	var claimed []*Job
	for _, id := range fs.order {
		if len(claimed) >= limit {
			break
		}
		job := fs.active[id]
		if !job.Eligible(now) {
			continue
		}
		job.Status = StatusInFlight
		claimed = append(claimed, job.clone())
	}
	return claimed, nil
}

// MarkSent implements Store
func (fs *FileStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return ErrStoreClosed
	}

	job, exists := fs.active[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusInFlight {
		return fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	idx := fs.removeActive(id)
	if err := fs.persistActive(); err != nil {
		fs.restoreActive(job, idx)
		return err
	}
	return nil
}

// ScheduleRetry implements Store
func (fs *FileStore) ScheduleRetry(ctx context.Context, id uuid.UUID, attemptedAt, retryAt time.Time, errMsg string) (*Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil, ErrStoreClosed
	}

	job, exists := fs.active[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusInFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	before := job.clone()
	recordFailure(job, attemptedAt, errMsg)
	job.Status = StatusRetryScheduled
	job.NextAttemptAt = &retryAt

	if err := fs.persistActive(); err != nil {
		fs.active[id] = before
		return nil, err
	}
	return job.clone(), nil
}

// MarkDead implements Store. The dead-letter file is written before the
// active set is rewritten so a crash between the two writes leaves the job
// quarantined, never lost.
func (fs *FileStore) MarkDead(ctx context.Context, id uuid.UUID, attemptedAt time.Time, errMsg string) (*Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil, ErrStoreClosed
	}

	job, exists := fs.active[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status != StatusInFlight {
		return nil, fmt.Errorf("%w: %s", ErrJobNotClaimed, id)
	}

	before := job.clone()
	recordFailure(job, attemptedAt, errMsg)
	job.Status = StatusDead
	job.NextAttemptAt = nil

	path, err := fs.persistDead(job, attemptedAt)
	if err != nil {
		fs.active[id] = before
		return nil, err
	}

	idx := fs.removeActive(id)
	if err := fs.persistActive(); err != nil {
		os.Remove(path)
		fs.restoreActive(before, idx)
		return nil, err
	}

	fs.dead[id] = job
	fs.deadFiles[id] = path
	return job.clone(), nil
}

// Stats implements Store
func (fs *FileStore) Stats(ctx context.Context) (Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return Stats{}, ErrStoreClosed
	}

	stats := Stats{QueueLength: len(fs.active), Dead: len(fs.dead)}
	for _, job := range fs.active {
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
func (fs *FileStore) NextRetryAt(ctx context.Context) (time.Time, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return time.Time{}, false, ErrStoreClosed
	}

	var earliest time.Time
	found := false
	for _, job := range fs.active {
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
func (fs *FileStore) DeadJobs(ctx context.Context) ([]*Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil, ErrStoreClosed
	}

	jobs := make([]*Job, 0, len(fs.dead))
	for _, job := range fs.dead {
		jobs = append(jobs, job.clone())
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// RequeueDead implements Store. The job is readmitted to the active set
// first; only a fully persisted readmission removes the dead-letter file,
// so an interrupted requeue leaves the job quarantined rather than lost.
func (fs *FileStore) RequeueDead(ctx context.Context, id uuid.UUID) (*Job, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return nil, ErrStoreClosed
	}

	job, exists := fs.dead[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	requeued := job.clone()
	resetForRequeue(requeued)
	fs.active[id] = requeued
	fs.order = append(fs.order, id)

	if err := fs.persistActive(); err != nil {
		fs.removeActive(id)
		return nil, err
	}

	path := fs.deadFiles[id]
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fs.removeActive(id)
		if persistErr := fs.persistActive(); persistErr != nil {
			fs.logger.Error("failed to undo requeue after dead-letter removal failure",
				slog.String("job_id", id.String()),
				slog.Any("error", persistErr))
		}
		return nil, fmt.Errorf("failed to remove dead-letter file %s: %w", path, err)
	}

	delete(fs.dead, id)
	delete(fs.deadFiles, id)
	return requeued.clone(), nil
}

// Clear implements Store
func (fs *FileStore) Clear(ctx context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return 0, ErrStoreClosed
	}

	prevOrder := slices.Clone(fs.order)
	prevActive := make(map[uuid.UUID]*Job, len(fs.active))
	for id, job := range fs.active {
		prevActive[id] = job
	}

	dropped := 0
	for _, id := range prevOrder {
		if fs.active[id].Status == StatusInFlight {
			continue
		}
		fs.removeActive(id)
		dropped++
	}
	if dropped == 0 {
		return 0, nil
	}

	if err := fs.persistActive(); err != nil {
		fs.order = prevOrder
		fs.active = prevActive
		return 0, err
	}
	return dropped, nil
}

// removeActive deletes a job from the active set and returns its previous
// position in the order index. Callers must hold the mutex.
func (fs *FileStore) removeActive(id uuid.UUID) int {
	idx := slices.Index(fs.order, id)
	delete(fs.active, id)
	fs.order = slices.DeleteFunc(fs.order, func(other uuid.UUID) bool {
		return other == id
	})
	return idx
}

// restoreActive reinserts a job at its previous position after a failed
// persist. Callers must hold the mutex.
func (fs *FileStore) restoreActive(job *Job, idx int) {
	fs.active[job.ID] = job
	if idx < 0 || idx > len(fs.order) {
		idx = len(fs.order)
	}
	fs.order = slices.Insert(fs.order, idx, job.ID)
}
