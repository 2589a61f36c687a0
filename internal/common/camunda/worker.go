package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"dossier-workers/internal/common/config"
	"dossier-workers/internal/common/logger"
)

// JobWorkerProvider is satisfied by zbc.Client.
type JobWorkerProvider interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

var _ JobWorkerProvider = zbc.Client(nil)

// StartWorker opens a job worker for taskType, or returns nil when the worker is disabled.
func StartWorker(client JobWorkerProvider, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jw
}
