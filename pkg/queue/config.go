package queue

import "time"

// Config holds the environment-driven configuration for the delivery queue
type Config struct {
	Dir            string        `env:"QUEUE_DIR" envDefault:"./data/queue"`
	MaxConcurrent  int           `env:"QUEUE_MAX_CONCURRENT" envDefault:"3"`
	SendTimeout    time.Duration `env:"QUEUE_SEND_TIMEOUT" envDefault:"60s"`
	WakeInterval   time.Duration `env:"QUEUE_WAKE_INTERVAL" envDefault:"30s"`
	BatchPause     time.Duration `env:"QUEUE_BATCH_PAUSE" envDefault:"2s"`
	MaxAttempts    int           `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"QUEUE_RETRY_BASE_DELAY" envDefault:"5s"`
	RetryMaxDelay  time.Duration `env:"QUEUE_RETRY_MAX_DELAY" envDefault:"300s"`
}

// RetryPolicy converts the retry knobs into a policy value
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
	}
}

// Options converts the configuration into queue options
func (c Config) Options() []Option {
	return []Option{
		WithRetryPolicy(c.RetryPolicy()),
		WithWorkerOptions(
			WithMaxConcurrent(c.MaxConcurrent),
			WithSendTimeout(c.SendTimeout),
		),
		WithSchedulerOptions(
			WithWakeInterval(c.WakeInterval),
			WithBatchPause(c.BatchPause),
		),
	}
}
