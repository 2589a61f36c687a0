// internal/workers/dossier/send-dossier-email/config.go
package senddossieremail

import (
	"fmt"
	"time"
)

type Config struct {
	Timeout    time.Duration
	SMSEnabled bool
	// MaxAttachmentBytes stays under the SES raw message limit once base64 encoded.
	MaxAttachmentBytes int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            30 * time.Second,
		MaxAttachmentBytes: 7 << 20,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("max_attachment_bytes must be positive")
	}
	return nil
}
