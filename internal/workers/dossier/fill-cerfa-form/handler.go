// internal/workers/dossier/fill-cerfa-form/handler.go
package fillcerfaform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dossier-workers/internal/common/camunda"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/observability"
	"dossier-workers/internal/dossier"
	"dossier-workers/internal/models"
)

const (
	TaskType = "fill-cerfa-form"
)

type FormGenerator interface {
	GenerateCerfa(ctx context.Context, d *models.Dossier) (*dossier.Stored, error)
}

type Handler struct {
	config   *Config
	service  FormGenerator
	reporter *camunda.JobReporter
	logger   logger.Logger
}

func NewHandler(config *Config, service FormGenerator, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		service:  service,
		reporter: camunda.NewJobReporter(TaskType, obs, log),
		logger:   log,
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
	d, err := dossier.Decode(input.Dossier)
	if err != nil {
		return nil, err
	}

	stored, err := h.service.GenerateCerfa(ctx, d)
	if err != nil {
		return nil, err
	}

	skipped := stored.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return &Output{
		DocumentKey:   stored.DocumentKey,
		Filename:      stored.Filename,
		Bytes:         stored.Bytes,
		SkippedFields: skipped,
	}, nil
}
