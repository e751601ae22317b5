package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Niklasbrock/leoshare-notify/pkg/queue"
)

// DevSender implements queue.Sender for local development.
// It saves each notification as a text and JSON file pair in a directory
// instead of sending it through an email service.
type DevSender struct {
	dir string
}

// NewDevSender creates a development sender that saves notifications to disk.
// The directory will be created on the first send if it doesn't exist.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir}
}

// devMetadata contains the notification data saved to JSON (excluding the body).
type devMetadata struct {
	Timestamp string `json:"timestamp"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Kind      string `json:"kind,omitempty"`
}

// Send saves the notification body and its metadata to the configured directory.
func (d *DevSender) Send(ctx context.Context, msg queue.Message) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrSendFailed, err)
	}

	now := time.Now()
	timestamp := now.Format("2006_01_02_150405")

	identifier := msg.Kind
	if identifier == "" {
		identifier = msg.Subject
	}
	baseFilename := fmt.Sprintf("%s_%s", timestamp, sanitizeFilename(identifier))

	bodyPath := filepath.Join(d.dir, baseFilename+".txt")
	if err := os.WriteFile(bodyPath, []byte(msg.Body), 0644); err != nil {
		return fmt.Errorf("%w: failed to write body file: %v", ErrSendFailed, err)
	}

	metadata := devMetadata{
		Timestamp: now.Format(time.RFC3339),
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Kind:      msg.Kind,
	}
	jsonData, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %v", ErrSendFailed, err)
	}
	jsonPath := filepath.Join(d.dir, baseFilename+".json")
	if err := os.WriteFile(jsonPath, jsonData, 0644); err != nil {
		return fmt.Errorf("%w: failed to write JSON file: %v", ErrSendFailed, err)
	}

	return nil
}

// sanitizeRegex matches characters that are not alphanumeric, dash, underscore, or dot.
var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename converts a string into a safe filename.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "notification"
	}
	return strings.ToLower(s)
}
