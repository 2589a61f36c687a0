package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDocument(t *testing.T) {
	beforeImage := testutil.ToFloat64(DossierDegradedItems.WithLabelValues("image"))
	beforePage := testutil.ToFloat64(DossierDegradedItems.WithLabelValues("page"))

	ObserveDocument(6, 120000, []string{"image: ÉTAT EXISTANT (Avant)", "page: DP1", "image: Plan en coupe"})

	assert.Equal(t, beforeImage+2, testutil.ToFloat64(DossierDegradedItems.WithLabelValues("image")))
	assert.Equal(t, beforePage+1, testutil.ToFloat64(DossierDegradedItems.WithLabelValues("page")))
}

func TestRecordJob(t *testing.T) {
	completed := testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues("unit-task"))
	failed := testutil.ToFloat64(WorkerJobsFailed.WithLabelValues("unit-task", "STORAGE_FAILED"))

	RecordJob("unit-task", "", 20*time.Millisecond)
	RecordJob("unit-task", "STORAGE_FAILED", time.Millisecond)

	assert.Equal(t, completed+1, testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues("unit-task")))
	assert.Equal(t, failed+1, testutil.ToFloat64(WorkerJobsFailed.WithLabelValues("unit-task", "STORAGE_FAILED")))
}
