package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the delivery status of a job
type Status string

const (
	StatusPending        Status = "pending"
	StatusInFlight       Status = "in_flight"
	StatusRetryScheduled Status = "retry_scheduled"
	StatusSent           Status = "sent"
	StatusDead           Status = "dead"
)

// Message is the opaque payload handed to a Sender.
// The queue never interprets these fields; Kind is used for logging only.
type Message struct {
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Job represents one unit of queued notification work
type Job struct {
	ID            uuid.UUID         `json:"id"`
	Kind          string            `json:"kind"`
	Recipient     string            `json:"recipient"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Status        Status            `json:"status"`
	Attempts      int               `json:"attempts"`
	CreatedAt     time.Time         `json:"created_at"`
	LastAttemptAt *time.Time        `json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time        `json:"next_attempt_at,omitempty"`
	LastError     *string           `json:"last_error,omitempty"`
}

// Message returns the payload of the job as handed to the Sender.
func (j *Job) Message() Message {
	return Message{
		Kind:      j.Kind,
		Recipient: j.Recipient,
		Subject:   j.Subject,
		Body:      j.Body,
		Metadata:  j.Metadata,
	}
}

// Eligible reports whether the job may be claimed for an attempt at the
// given instant: pending jobs always, retry-scheduled jobs once their
// persisted due time has passed.
func (j *Job) Eligible(now time.Time) bool {
	switch j.Status {
	case StatusPending:
		return true
	case StatusRetryScheduled:
		return j.NextAttemptAt == nil || !j.NextAttemptAt.After(now)
	default:
		return false
	}
}

// clone returns a deep copy so callers cannot mutate stored state.
func (j *Job) clone() *Job {
	c := *j
	if j.Metadata != nil {
		c.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			c.Metadata[k] = v
		}
	}
	if j.LastAttemptAt != nil {
		t := *j.LastAttemptAt
		c.LastAttemptAt = &t
	}
	if j.NextAttemptAt != nil {
		t := *j.NextAttemptAt
		c.NextAttemptAt = &t
	}
	if j.LastError != nil {
		s := *j.LastError
		c.LastError = &s
	}
	return &c
}

// Stats is a read-only snapshot of queue occupancy
type Stats struct {
	QueueLength int `json:"queue_length"` // total jobs in the active set
	Pending     int `json:"pending"`
	InFlight    int `json:"in_flight"`
	Retrying    int `json:"retrying"` // retry_scheduled jobs waiting out their backoff
	Dead        int `json:"dead"`     // quarantined jobs in the dead-letter set
}
