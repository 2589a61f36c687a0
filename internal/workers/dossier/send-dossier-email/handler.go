// internal/workers/dossier/send-dossier-email/handler.go
package senddossieremail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dossier-workers/internal/common/aws"
	"dossier-workers/internal/common/camunda"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/observability"
	"dossier-workers/internal/models"
	"dossier-workers/internal/storage"
)

const (
	TaskType = "send-dossier-email"
)

var (
	ErrNotificationFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

type DocumentSource interface {
	Document(ctx context.Context, key string) (*storage.Document, error)
}

type EmailSender interface {
	SendWithAttachments(ctx context.Context, email aws.Email) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Handler struct {
	config    *Config
	documents DocumentSource
	email     EmailSender
	sms       SMSSender
	reporter  *camunda.JobReporter
	logger    logger.Logger
}

// NewHandler builds the worker. sms may be nil.
func NewHandler(config *Config, documents DocumentSource, email EmailSender, sms SMSSender, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		documents: documents,
		email:     email,
		sms:       sms,
		reporter:  camunda.NewJobReporter(TaskType, obs, log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.reporter.Fail(context.Background(), client, job, fmt.Errorf("%w: parse input: %v", models.ErrDossierInvalid, err), start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.reporter.Fail(context.Background(), client, job, err, start)
		return
	}
	h.reporter.Complete(context.Background(), client, job, output, start)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	doc, err := h.documents.Document(ctx, input.DocumentKey)
	if err != nil {
		return nil, err
	}
	if len(doc.Data) > h.config.MaxAttachmentBytes {
		return nil, fmt.Errorf("%w: attachment is %d bytes, limit %d", ErrNotificationFailed, len(doc.Data), h.config.MaxAttachmentBytes)
	}

	filename := input.Filename
	if filename == "" {
		filename = doc.Filename
	}
	reference := input.Reference
	if reference == "" {
		reference = strings.TrimSuffix(filename, ".pdf")
	}

	messageID, err := h.email.SendWithAttachments(ctx, aws.Email{
		To:      []string{input.To},
		Subject: orDefault(input.Subject, "Votre dossier de déclaration préalable "+reference),
		Body: orDefault(input.Body, fmt.Sprintf(
			"Bonjour,\n\nVeuillez trouver ci-joint le document %s.\n\nCordialement.", filename)),
		Attachments: []aws.Attachment{{
			Filename:    filename,
			ContentType: orDefault(doc.ContentType, "application/pdf"),
			Data:        doc.Data,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: email: %v", ErrNotificationFailed, err)
	}

	out := &Output{Success: true, MessageID: messageID, SentAt: time.Now().UTC()}

	if input.Phone != "" && h.config.SMSEnabled && h.sms != nil {
		smsID, err := h.sms.SendSMS(ctx, input.Phone,
			fmt.Sprintf("Votre dossier %s vous a été envoyé par e-mail à %s.", reference, input.To))
		if err != nil {
			// The email went out; a retry would send it twice.
			h.logger.Warn("sms not sent", map[string]interface{}{
				"reference": reference,
				"error":     err.Error(),
			})
			out.SMSWarning = err.Error()
		} else {
			out.SMSMessageID = smsID
		}
	}

	h.logger.Info("dossier sent", map[string]interface{}{
		"reference": reference,
		"messageId": messageID,
		"sms":       out.SMSMessageID != "",
	})
	return out, nil
}

func validateInput(input *Input) error {
	if strings.TrimSpace(input.DocumentKey) == "" {
		return fmt.Errorf("%w: documentKey is required", models.ErrDossierInvalid)
	}
	if _, err := mail.ParseAddress(input.To); err != nil {
		return fmt.Errorf("%w: invalid recipient %q", models.ErrDossierInvalid, input.To)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
