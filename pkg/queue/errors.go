package queue

import "errors"

// Common errors
var (
	// ErrStoreNil is returned when a nil store is provided
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrSenderNil is returned when a nil sender is provided
	ErrSenderNil = errors.New("sender cannot be nil")

	// ErrWorkerNil is returned when a nil batch processor is provided
	ErrWorkerNil = errors.New("worker cannot be nil")

	// ErrEmptyRecipient is returned when enqueueing a message without a recipient
	ErrEmptyRecipient = errors.New("message recipient cannot be empty")

	// ErrJobNotFound is returned when the referenced job does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when appending a job whose ID is already present
	ErrJobExists = errors.New("job already exists")

	// ErrJobNotClaimed is returned when recording an outcome for a job that is not in flight
	ErrJobNotClaimed = errors.New("job is not in flight")

	// ErrAlreadyStarted is returned when starting a component twice
	ErrAlreadyStarted = errors.New("already started")

	// ErrStoreClosed is returned when operating on a closed store
	ErrStoreClosed = errors.New("store is closed")
)
