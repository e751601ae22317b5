package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Niklasbrock/leoshare-notify/pkg/queue"
)

func TestRetryPolicy_Decide(t *testing.T) {
	t.Parallel()

	t.Run("exponential growth below the cap", func(t *testing.T) {
		t.Parallel()

		policy := queue.DefaultRetryPolicy()

		first := policy.Decide(1)
		second := policy.Decide(2)

		assert.Equal(t, queue.ActionRetry, first.Action)
		assert.Equal(t, 5*time.Second, first.Delay)
		assert.Equal(t, queue.ActionRetry, second.Action)
		assert.Equal(t, 10*time.Second, second.Delay)
		assert.Less(t, first.Delay, second.Delay)
	})

	t.Run("quarantine at the attempt budget", func(t *testing.T) {
		t.Parallel()

		policy := queue.DefaultRetryPolicy()

		assert.Equal(t, queue.ActionQuarantine, policy.Decide(3).Action)
		assert.Equal(t, queue.ActionQuarantine, policy.Decide(4).Action)
		assert.Equal(t, queue.ActionQuarantine, policy.Decide(100).Action)
	})

	t.Run("delay never exceeds the ceiling", func(t *testing.T) {
		t.Parallel()

		policy := queue.RetryPolicy{
			MaxAttempts: 20,
			BaseDelay:   5 * time.Second,
			MaxDelay:    300 * time.Second,
		}

		for attempts := 1; attempts < 20; attempts++ {
			decision := policy.Decide(attempts)
			assert.Equal(t, queue.ActionRetry, decision.Action)
			assert.LessOrEqual(t, decision.Delay, 300*time.Second)
		}
		assert.Equal(t, 300*time.Second, policy.Decide(10).Delay)
	})

	t.Run("deterministic for the same attempt count", func(t *testing.T) {
		t.Parallel()

		policy := queue.DefaultRetryPolicy()
		for range 10 {
			assert.Equal(t, policy.Decide(2), policy.Decide(2))
		}
	})

	t.Run("zero value behaves like the default policy", func(t *testing.T) {
		t.Parallel()

		var policy queue.RetryPolicy

		assert.Equal(t, queue.DefaultRetryPolicy().Decide(1), policy.Decide(1))
		assert.Equal(t, queue.DefaultRetryPolicy().Decide(3), policy.Decide(3))
	})

	t.Run("attempt counts below one are treated as the first attempt", func(t *testing.T) {
		t.Parallel()

		policy := queue.DefaultRetryPolicy()
		assert.Equal(t, policy.Decide(1), policy.Decide(0))
		assert.Equal(t, policy.Decide(1), policy.Decide(-5))
	})
}
