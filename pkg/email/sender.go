package email

import (
	"context"
	"fmt"

	"github.com/Niklasbrock/leoshare-notify/pkg/queue"
)

// NewSenderFromConfig picks a sender implementation from configuration.
//
// DevDir takes precedence so a development environment never sends real
// email by accident. With Postmark tokens present a real transport is
// built; otherwise every send fails with ErrNotConfigured, which keeps
// enqueued notifications in the retry cycle until the operator fixes
// the configuration.
func NewSenderFromConfig(cfg Config) (queue.Sender, error) {
	if cfg.DevDir != "" {
		return NewDevSender(cfg.DevDir), nil
	}
	if cfg.PostmarkServerToken != "" || cfg.PostmarkAccountToken != "" {
		return NewPostmarkSender(cfg)
	}
	return unconfiguredSender{}, nil
}

type unconfiguredSender struct{}

func (unconfiguredSender) Send(ctx context.Context, msg queue.Message) error {
	return fmt.Errorf("%w: no Postmark tokens and no EMAIL_DEV_DIR set", ErrNotConfigured)
}
