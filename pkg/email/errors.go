package email

import "errors"

var (
	ErrNotConfigured = errors.New("email.errors.not_configured")
	ErrSendFailed    = errors.New("email.errors.send_failed")
	ErrInvalidConfig = errors.New("email.errors.invalid_config")
)
