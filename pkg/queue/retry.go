package queue

import (
	"math"
	"time"
)

// Retry policy defaults
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 5 * time.Second
	DefaultMaxDelay    = 300 * time.Second
)

// Action is the retry policy's verdict for a failed job
type Action string

const (
	// ActionRetry schedules another delivery attempt after Decision.Delay
	ActionRetry Action = "retry"
	// ActionQuarantine moves the job to the dead-letter set
	ActionQuarantine Action = "quarantine"
)

// Decision is the outcome of consulting the retry policy after a failed attempt
type Decision struct {
	Action Action
	Delay  time.Duration
}

// RetryPolicy maps a completed attempt count onto a retry-or-quarantine
// decision with an exponential backoff delay. It is a pure value: given the
// same attempt count it always returns the same decision, so it can be unit
// tested without time or I/O. The zero value behaves like DefaultRetryPolicy.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the standard policy: three attempts with
// 5s/10s backoff capped at five minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Decide returns the decision for a job that has completed the given number
// of delivery attempts. Attempt counts at or beyond MaxAttempts quarantine;
// anything below retries after min(BaseDelay * 2^(attempts-1), MaxDelay).
func (p RetryPolicy) Decide(attempts int) Decision {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	if attempts >= maxAttempts {
		return Decision{Action: ActionQuarantine}
	}

	if attempts < 1 {
		attempts = 1
	}

	delay := float64(base) * math.Pow(2, float64(attempts-1))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	return Decision{Action: ActionRetry, Delay: time.Duration(delay)}
}
