// internal/common/metrics/metrics.go
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	DossierPDFPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dossier_pdf_pages",
			Help:    "Page count of rendered dossiers",
			Buckets: []float64{3, 5, 8, 12, 20, 40},
		},
	)

	DossierPDFBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dossier_pdf_bytes",
			Help:    "Size of rendered documents in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
		},
	)

	DossierDegradedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dossier_degraded_items_total",
			Help: "Images, maps and pages replaced by a caption or placeholder",
		},
		[]string{"kind"},
	)

	MapFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "map_fetch_duration_seconds",
			Help: "Duration of a single WMS GetMap request",
		},
		[]string{"purpose"},
	)
)

// ObserveDocument records the size of a rendered document and its degraded items,
// each formatted as "kind: detail".
func ObserveDocument(pages, size int, degraded []string) {
	DossierPDFPages.Observe(float64(pages))
	DossierPDFBytes.Observe(float64(size))
	for _, item := range degraded {
		kind, _, _ := strings.Cut(item, ":")
		DossierDegradedItems.WithLabelValues(kind).Inc()
	}
}

// RecordJob counts a finished job. An empty errorCode marks success.
func RecordJob(taskType, errorCode string, duration time.Duration) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(duration.Seconds())
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
