package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niklasbrock/leoshare-notify/pkg/config"
	"github.com/Niklasbrock/leoshare-notify/pkg/queue"
)

func TestConfig(t *testing.T) {
	t.Run("defaults from environment parsing", func(t *testing.T) {
		var cfg queue.Config
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "./data/queue", cfg.Dir)
		assert.Equal(t, 3, cfg.MaxConcurrent)
		assert.Equal(t, 60*time.Second, cfg.SendTimeout)
		assert.Equal(t, 30*time.Second, cfg.WakeInterval)
		assert.Equal(t, 2*time.Second, cfg.BatchPause)
		assert.Equal(t, 3, cfg.MaxAttempts)
		assert.Equal(t, 5*time.Second, cfg.RetryBaseDelay)
		assert.Equal(t, 300*time.Second, cfg.RetryMaxDelay)
	})

	t.Run("retry policy conversion", func(t *testing.T) {
		cfg := queue.Config{
			MaxAttempts:    5,
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  time.Minute,
		}
		policy := cfg.RetryPolicy()
		assert.Equal(t, 5, policy.MaxAttempts)
		assert.Equal(t, time.Second, policy.BaseDelay)
		assert.Equal(t, time.Minute, policy.MaxDelay)
	})

	t.Run("options build a working queue", func(t *testing.T) {
		cfg := queue.Config{
			MaxConcurrent:  2,
			SendTimeout:    time.Second,
			WakeInterval:   time.Second,
			BatchPause:     time.Millisecond,
			MaxAttempts:    2,
			RetryBaseDelay: time.Millisecond,
			RetryMaxDelay:  time.Second,
		}

		opts := append(cfg.Options(), queue.WithLogger(discardLogger()))
		q, err := queue.New(queue.NewMemoryStore(), okSender(), opts...)
		require.NoError(t, err)
		assert.NotNil(t, q)
	})
}
