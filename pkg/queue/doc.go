// Package queue provides a durable background delivery queue for
// notification messages: work is persisted before the producer's call
// returns, delivered with bounded concurrency, retried with exponential
// backoff, and quarantined to a dead-letter set when the attempt budget
// runs out.
//
// The package is organised around a few small components:
//
//   - Queue      — the facade producers call (Enqueue, Stats, Clear, ...)
//   - Store      — the durable home of the active and dead-letter sets
//   - Worker     — claims eligible jobs and drives them through a Sender
//   - Scheduler  — decides when the worker runs (wake, periodic tick, retry timer)
//   - RetryPolicy — pure attempts → retry-or-quarantine mapping
//
// Worker and Scheduler depend only on narrow store views (WorkerStore,
// SchedulerStore), so the queue can be backed by any of the provided
// stores — FileStore, MemoryStore, BadgerStore, RedisStore — or a custom
// implementation of the Store interface.
//
// # Usage
//
//	store, err := queue.OpenFileStore("./data/queue")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	q, err := queue.New(store, sender)
//	if err != nil {
//	    return err
//	}
//
//	if err := q.Start(ctx); err != nil {
//	    return err
//	}
//	defer q.Stop()
//
//	id, err := q.Enqueue(ctx, queue.Message{
//	    Kind:      "approval_request",
//	    Recipient: "owner@example.com",
//	    Subject:   "Access requested",
//	    Body:      "Someone asked for access to your share.",
//	})
//
// Enqueue returns once the job is durably recorded; delivery happens in
// the background. Producers never learn delivery outcomes — those are
// visible to operators via Stats, DeadLetters, and the queuectl CLI.
//
// # Crash semantics
//
// Claims are not persisted. A process crash mid-attempt reloads the
// affected job as pending, which can cause at most one duplicate attempt
// per crash. Notifications are treated as idempotent; callers needing
// at-most-once delivery must add their own attempt marker.
//
// # Error Handling
//
// Package-level sentinel errors (ErrEmptyRecipient, ErrJobNotFound, ...)
// signal invariant violations and can be checked with errors.Is.
package queue
