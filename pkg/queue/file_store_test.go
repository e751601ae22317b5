package queue_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niklasbrock/leoshare-notify/pkg/queue"
)

func openFileStore(t *testing.T, dir string) *queue.FileStore {
	t.Helper()
	store, err := queue.OpenFileStore(dir, queue.WithFileStoreLogger(discardLogger()))
	require.NoError(t, err)
	return store
}

func TestFileStore_Durability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("jobs survive a restart", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		job := newTestJob("approval_request", "owner@example.com")
		require.NoError(t, store.AppendJob(ctx, job))
		require.NoError(t, store.Close())

		reopened := openFileStore(t, dir)
		defer reopened.Close()

		claimed, err := reopened.ClaimJobs(ctx, time.Now().UTC(), 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, job.ID, claimed[0].ID)
		assert.Equal(t, job.Recipient, claimed[0].Recipient)
		assert.Zero(t, claimed[0].Attempts)
	})

	t.Run("claims do not survive a restart", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		job := newTestJob("k", "r@example.com")
		require.NoError(t, store.AppendJob(ctx, job))

		claimed, err := store.ClaimJobs(ctx, time.Now().UTC(), 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		require.NoError(t, store.Close())

		// The crashed-mid-attempt job reloads as pending.
		reopened := openFileStore(t, dir)
		defer reopened.Close()

		stats, err := reopened.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Pending)
		assert.Zero(t, stats.InFlight)
	})

	t.Run("retry schedule survives a restart", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		job := newTestJob("k", "r@example.com")
		require.NoError(t, store.AppendJob(ctx, job))

		now := time.Now().UTC()
		retryAt := now.Add(time.Hour)
		_, err := store.ClaimJobs(ctx, now, 1)
		require.NoError(t, err)
		_, err = store.ScheduleRetry(ctx, job.ID, now, retryAt, "transport down")
		require.NoError(t, err)
		require.NoError(t, store.Close())

		reopened := openFileStore(t, dir)
		defer reopened.Close()

		next, ok, err := reopened.NextRetryAt(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.WithinDuration(t, retryAt, next, time.Second)

		// Still mid-backoff: not claimable before the persisted due time.
		claimed, err := reopened.ClaimJobs(ctx, now, 1)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		stats, err := reopened.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Retrying)
	})

	t.Run("dead letters survive a restart", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		job := newTestJob("k", "r@example.com")
		require.NoError(t, store.AppendJob(ctx, job))

		now := time.Now().UTC()
		_, err := store.ClaimJobs(ctx, now, 1)
		require.NoError(t, err)
		_, err = store.MarkDead(ctx, job.ID, now, "boom")
		require.NoError(t, err)
		require.NoError(t, store.Close())

		reopened := openFileStore(t, dir)
		defer reopened.Close()

		letters, err := reopened.DeadJobs(ctx)
		require.NoError(t, err)
		require.Len(t, letters, 1)
		assert.Equal(t, job.ID, letters[0].ID)
	})
}

func TestFileStore_PersistedLayout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("active set is an ordered JSON array", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		defer store.Close()

		first := newTestJob("k", "a@example.com")
		second := newTestJob("k", "b@example.com")
		require.NoError(t, store.AppendJob(ctx, first))
		require.NoError(t, store.AppendJob(ctx, second))

		data, err := os.ReadFile(filepath.Join(dir, "queue.json"))
		require.NoError(t, err)

		var jobs []*queue.Job
		require.NoError(t, json.Unmarshal(data, &jobs))
		require.Len(t, jobs, 2)
		assert.Equal(t, first.ID, jobs[0].ID)
		assert.Equal(t, second.ID, jobs[1].ID)
	})

	t.Run("in-flight jobs serialize as pending", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		defer store.Close()

		job := newTestJob("k", "a@example.com")
		require.NoError(t, store.AppendJob(ctx, job))
		_, err := store.ClaimJobs(ctx, time.Now().UTC(), 1)
		require.NoError(t, err)

		// Another persisted mutation while the claim is held.
		require.NoError(t, store.AppendJob(ctx, newTestJob("k", "b@example.com")))

		data, err := os.ReadFile(filepath.Join(dir, "queue.json"))
		require.NoError(t, err)

		var jobs []*queue.Job
		require.NoError(t, json.Unmarshal(data, &jobs))
		for _, j := range jobs {
			assert.Equal(t, queue.StatusPending, j.Status)
		}
	})

	t.Run("each dead letter gets its own file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		defer store.Close()

		now := time.Now().UTC()
		for range 2 {
			job := newTestJob("k", "r@example.com")
			require.NoError(t, store.AppendJob(ctx, job))
			_, err := store.ClaimJobs(ctx, now, 1)
			require.NoError(t, err)
			_, err = store.MarkDead(ctx, job.ID, now, "boom")
			require.NoError(t, err)
		}

		entries, err := os.ReadDir(filepath.Join(dir, "dead"))
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestFileStore_CorruptionTolerance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("corrupt queue file starts an empty active set", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		require.NoError(t, store.AppendJob(ctx, newTestJob("k", "r@example.com")))
		require.NoError(t, store.Close())

		require.NoError(t, os.WriteFile(filepath.Join(dir, "queue.json"), []byte("{not json"), 0o644))

		reopened := openFileStore(t, dir)
		defer reopened.Close()

		stats, err := reopened.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.QueueLength)

		// The corrupt file is kept aside for inspection.
		_, err = os.Stat(filepath.Join(dir, "queue.json.corrupt"))
		assert.NoError(t, err)

		// The store keeps working after the degraded load.
		require.NoError(t, reopened.AppendJob(ctx, newTestJob("k", "r@example.com")))
	})

	t.Run("corrupt dead-letter file is skipped", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		job := newTestJob("k", "r@example.com")
		require.NoError(t, store.AppendJob(ctx, job))
		now := time.Now().UTC()
		_, err := store.ClaimJobs(ctx, now, 1)
		require.NoError(t, err)
		_, err = store.MarkDead(ctx, job.ID, now, "boom")
		require.NoError(t, err)
		require.NoError(t, store.Close())

		require.NoError(t, os.WriteFile(filepath.Join(dir, "dead", "garbage.json"), []byte("?!"), 0o644))

		reopened := openFileStore(t, dir)
		defer reopened.Close()

		letters, err := reopened.DeadJobs(ctx)
		require.NoError(t, err)
		assert.Len(t, letters, 1)
	})

	t.Run("job present in both sets resolves to the dead copy", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		store := openFileStore(t, dir)
		job := newTestJob("k", "r@example.com")
		require.NoError(t, store.AppendJob(ctx, job))
		now := time.Now().UTC()
		_, err := store.ClaimJobs(ctx, now, 1)
		require.NoError(t, err)
		dead, err := store.MarkDead(ctx, job.ID, now, "boom")
		require.NoError(t, err)
		require.NoError(t, store.Close())

		// Simulate a crash between the dead-letter write and the active
		// rewrite: put the job back into queue.json by hand.
		data, err := json.Marshal([]*queue.Job{dead})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "queue.json"), data, 0o644))

		reopened := openFileStore(t, dir)
		defer reopened.Close()

		stats, err := reopened.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.QueueLength)
		assert.Equal(t, 1, stats.Dead)
	})
}
