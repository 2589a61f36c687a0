// internal/workers/dossier/generate-dossier-pdf/handler.go
package generatedossierpdf

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
	TaskType = "generate-dossier-pdf"
)

// Generator is the part of the dossier service this worker needs.
type Generator interface {
	Generate(ctx context.Context, d *models.Dossier, opts models.RenderOptions, fetchMaps bool) (*dossier.Stored, error)
}

type Handler struct {
	config   *Config
	service  Generator
	reporter *camunda.JobReporter
	logger   logger.Logger
}

func NewHandler(config *Config, service Generator, obs *observability.Observability, log logger.Logger) *Handler {
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

	stored, err := h.service.Generate(ctx, d, input.Options, input.fetchMaps())
	if err != nil {
		return nil, err
	}

	h.logger.Info("dossier generated", map[string]interface{}{
		"reference":   d.Reference,
		"documentKey": stored.DocumentKey,
		"pages":       stored.PageCount,
		"degraded":    len(stored.Degraded),
	})

	return &Output{
		DocumentKey: stored.DocumentKey,
		Filename:    stored.Filename,
		PageCount:   stored.PageCount,
		Bytes:       stored.Bytes,
		Degraded:    stored.Degraded,
	}, nil
}
