package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/internal/usecase"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ usecase.PipelineObserver = (*Metrics)(nil)

func TestMetrics_StageFinished(t *testing.T) {
	m := New()

	m.StageFinished(domain.StageExtract, false, nil, time.Second)
	m.StageFinished(domain.StageClean, false, errors.New("boom"), time.Second)
	m.StageFinished(domain.StageClean, true, nil, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("extract", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("clean", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("clean", "skipped")))
}

func TestMetrics_Reports(t *testing.T) {
	m := New()

	m.Extracted(domain.ExtractReport{Pages: 3, Records: 250})
	m.Cleaned(domain.CleaningReport{
		DroppedIncomplete: 40,
		DroppedOutliers:   5,
		Imputed:           map[domain.NutrientColumn]int{domain.ColumnFiber: 12},
		OutputRecords:     205,
	})
	m.Engineered(domain.FeatureReport{HealthRisk: map[domain.RiskLevel]int{domain.RiskHigh: 30}})
	m.Loaded(domain.LoadResult{Products: 205, Nutrients: 205, DerivedMetrics: 205})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.pagesFetched))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.recordsExtracted))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.recordsDropped.WithLabelValues("incomplete")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.valuesImputed.WithLabelValues("fiber_value")))
	assert.Equal(t, 205.0, testutil.ToFloat64(m.recordsCleaned))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.healthRisk.WithLabelValues("High Risk")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.healthRisk.WithLabelValues("Low Risk")))
	assert.Equal(t, 205.0, testutil.ToFloat64(m.rowsLoaded.WithLabelValues("derived_metrics")))
}

func TestMetrics_RunFinished(t *testing.T) {
	m := New()
	start := time.Now()

	m.RunFinished(domain.RunReport{StartedAt: start, FinishedAt: start.Add(2 * time.Second), SuccessRate: 1})
	m.RunFinished(domain.RunReport{StartedAt: start, FinishedAt: start, SuccessRate: 0.5, Errors: []string{"load: locked"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("error")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.lastRunSuccess))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Extracted(domain.ExtractReport{Pages: 1, Records: 100})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chococrunch_records_extracted 100")
}
