package queue

import "context"

// Sender is the external capability that attempts delivery of a message.
// Implementations must honor context cancellation and deadlines; the worker
// imposes a per-attempt timeout on every call. A nil return means the
// message was delivered; any error counts as a failed attempt.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a plain function to the Sender interface
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements Sender
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
