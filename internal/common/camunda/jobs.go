package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "dossier-workers/internal/common/errors"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/metrics"
	"dossier-workers/internal/common/observability"
)

// JobReporter answers a job and records how it went.
type JobReporter struct {
	taskType string
	errors   *apperrors.ErrorHandler
	obs      *observability.Observability
	log      logger.Logger
}

// NewJobReporter builds a reporter. obs may be nil.
func NewJobReporter(taskType string, obs *observability.Observability, log logger.Logger) *JobReporter {
	return &JobReporter{
		taskType: taskType,
		errors:   apperrors.NewErrorHandler(log),
		obs:      obs,
		log:      log,
	}
}

// Complete sends the output variables.
func (r *JobReporter) Complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, started time.Time) {
	elapsed := time.Since(started)
	metrics.RecordJob(r.taskType, "", elapsed)
	r.obs.RecordJob(ctx, r.taskType, "completed", elapsed)

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		r.log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	r.log.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"durationMs": elapsed.Milliseconds(),
	})
}

// Fail classifies err, then retries the job or throws the matching BPMN error.
func (r *JobReporter) Fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, started time.Time) {
	elapsed := time.Since(started)
	code := string(apperrors.Classify(err).Code)
	metrics.RecordJob(r.taskType, code, elapsed)
	r.obs.RecordJob(ctx, r.taskType, "failed", elapsed)

	r.errors.HandleJobError(ctx, client, job, err)
}
