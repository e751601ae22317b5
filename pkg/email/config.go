package email

// Config holds delivery transport configuration.
// Both Postmark tokens are optional so development environments can run
// without a real email account; when DevDir is set, outbound notifications
// are written to disk instead of being sent.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL"`
	ReplyToEmail         string `env:"REPLY_TO_EMAIL"`
	DevDir               string `env:"EMAIL_DEV_DIR"`
}
