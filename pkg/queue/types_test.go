package queue_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Niklasbrock/leoshare-notify/pkg/queue"
)

func TestJob_Eligible(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("pending is always eligible", func(t *testing.T) {
		t.Parallel()

		job := &queue.Job{Status: queue.StatusPending}
		assert.True(t, job.Eligible(now))
	})

	t.Run("retry_scheduled waits out its due time", func(t *testing.T) {
		t.Parallel()

		future := now.Add(time.Minute)
		job := &queue.Job{Status: queue.StatusRetryScheduled, NextAttemptAt: &future}
		assert.False(t, job.Eligible(now))
		assert.True(t, job.Eligible(future))
		assert.True(t, job.Eligible(future.Add(time.Second)))
	})

	t.Run("retry_scheduled without a due time is eligible immediately", func(t *testing.T) {
		t.Parallel()

		job := &queue.Job{Status: queue.StatusRetryScheduled}
		assert.True(t, job.Eligible(now))
	})

	t.Run("terminal and in-flight statuses are never eligible", func(t *testing.T) {
		t.Parallel()

		for _, status := range []queue.Status{queue.StatusInFlight, queue.StatusSent, queue.StatusDead} {
			job := &queue.Job{Status: status}
			assert.False(t, job.Eligible(now), "status %s", status)
		}
	})
}

func TestJob_Message(t *testing.T) {
	t.Parallel()

	job := &queue.Job{
		ID:        uuid.New(),
		Kind:      "upload_receipt",
		Recipient: "owner@example.com",
		Subject:   "Upload complete",
		Body:      "Your file was uploaded.",
		Metadata:  map[string]string{"file_id": "42"},
	}

	msg := job.Message()
	assert.Equal(t, "upload_receipt", msg.Kind)
	assert.Equal(t, "owner@example.com", msg.Recipient)
	assert.Equal(t, "Upload complete", msg.Subject)
	assert.Equal(t, "Your file was uploaded.", msg.Body)
	assert.Equal(t, map[string]string{"file_id": "42"}, msg.Metadata)
}
