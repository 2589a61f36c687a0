// internal/workers/dossier/send-dossier-email/models.go
package senddossieremail

import "time"

type Input struct {
	DocumentKey string `json:"documentKey"`
	Filename    string `json:"filename,omitempty"`
	Reference   string `json:"reference,omitempty"`
	To          string `json:"to"`
	Phone       string `json:"phone,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body,omitempty"`
}

type Output struct {
	Success      bool      `json:"success"`
	MessageID    string    `json:"messageId"`
	SMSMessageID string    `json:"smsMessageId,omitempty"`
	SMSWarning   string    `json:"smsWarning,omitempty"`
	SentAt       time.Time `json:"sentAt"`
}
