// Package email provides queue.Sender implementations for delivering
// queued notifications as transactional email.
//
// # Architecture
//
// Every sender implements the queue.Sender interface, so the delivery
// transport can be swapped without touching the queue. Currently available:
//   - PostmarkSender for production delivery through Postmark
//   - DevSender for local development (saves notifications to disk)
//
// NewSenderFromConfig picks the implementation from environment-driven
// configuration, which is how the daemon wires itself up at startup.
//
// # Usage
//
// Production delivery with Postmark:
//
//	cfg := email.Config{
//	    PostmarkServerToken:  "your-server-token",
//	    PostmarkAccountToken: "your-account-token",
//	    SenderEmail:          "noreply@example.com",
//	}
//
//	sender, err := email.NewPostmarkSender(cfg)
//	if err != nil {
//	    // Handle configuration error
//	}
//
//	err = sender.Send(ctx, queue.Message{
//	    Kind:      "upload_receipt",
//	    Recipient: "user@example.com",
//	    Subject:   "Your file was uploaded",
//	    Body:      "The upload finished successfully.",
//	})
//
// Development mode saves notifications locally:
//
//	devSender := email.NewDevSender("./email-output")
//	err := devSender.Send(ctx, msg)
//	// Creates timestamped .txt and .json files in ./email-output/
//
// # Error Handling
//
// The package uses sentinel errors for consistent error checking:
//   - ErrInvalidConfig: configuration is incomplete or malformed
//   - ErrSendFailed: the transport rejected or failed the delivery
//   - ErrNotConfigured: no transport was configured at all
//
// Send errors are retryable from the queue's point of view: a failed
// delivery stays on the retry schedule until the attempt budget runs out.
package email
