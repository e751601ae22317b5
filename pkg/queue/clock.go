package queue

import "time"

// Clock abstracts the current time so scheduling logic can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by the wall clock, in UTC.
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
