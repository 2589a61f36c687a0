// internal/workers/dossier/describe-photos/handler.go
package describephotos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dossier-workers/internal/common/camunda"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/observability"
	"dossier-workers/internal/dossier"
	"dossier-workers/internal/models"
	"dossier-workers/internal/vision"
)

const (
	TaskType = "describe-photos"
)

type Describer interface {
	Describe(ctx context.Context, req vision.Request) (*vision.Description, string, error)
}

type Handler struct {
	config   *Config
	vision   Describer
	reporter *camunda.JobReporter
	logger   logger.Logger
}

func NewHandler(config *Config, describer Describer, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		vision:   describer,
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

// Execute sends every photo pair to the model. A reply that cannot be
// decoded completes with empty fields and a warning so the user can fill
// the notice by hand.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	d, err := dossier.Decode(input.Dossier)
	if err != nil {
		return nil, err
	}

	before, after := h.photos(d)
	if len(before)+len(after) == 0 {
		return nil, fmt.Errorf("%w: no photos to describe", models.ErrDossierInvalid)
	}

	prompt := input.Prompt
	if prompt == "" {
		prompt = vision.DefaultPrompt(d)
	}

	desc, raw, err := h.vision.Describe(ctx, vision.Request{
		Model:       input.Model,
		Prompt:      prompt,
		Temperature: input.Temperature,
		MaxTokens:   input.MaxTokens,
		Before:      before,
		After:       after,
	})
	if errors.Is(err, vision.ErrOutputInvalid) {
		h.logger.Warn("model output could not be parsed", map[string]interface{}{
			"reference": d.Reference,
			"error":     err.Error(),
		})
		return &Output{
			FilledKeys: []string{},
			Photos:     len(before) + len(after),
			Warning:    err.Error(),
			RawOutput:  raw,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	keys := desc.FilledKeys()
	if keys == nil {
		keys = []string{}
	}
	h.logger.Info("photos described", map[string]interface{}{
		"reference": d.Reference,
		"filled":    len(keys),
		"extra":     len(desc.Extra),
	})

	return &Output{
		Notice:     desc.Notice,
		Aspect:     desc.Aspect,
		Extra:      desc.Extra,
		FilledKeys: keys,
		Photos:     len(before) + len(after),
	}, nil
}

// photos collects the non-empty before and after images, keeping pairs
// together, up to MaxPhotos.
func (h *Handler) photos(d *models.Dossier) (before, after []models.ImageRef) {
	limit := h.config.MaxPhotos
	for _, pair := range d.PhotoPairs {
		if limit > 0 && len(before)+len(after) >= limit {
			break
		}
		if ref := pair.Before(); !ref.Empty() {
			before = append(before, ref)
		}
		if ref := pair.After(); !ref.Empty() {
			after = append(after, ref)
		}
	}
	return before, after
}
