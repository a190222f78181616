package metrics

import (
	"net/http"
	"time"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chococrunch"

// Metrics exports pipeline outcomes as prometheus collectors on its own registry
type Metrics struct {
	registry *prometheus.Registry

	stageDuration    *prometheus.HistogramVec
	stageRuns        *prometheus.CounterVec
	pagesFetched     prometheus.Counter
	recordsExtracted prometheus.Gauge
	recordsDropped   *prometheus.GaugeVec
	valuesImputed    *prometheus.GaugeVec
	recordsCleaned   prometheus.Gauge
	healthRisk       *prometheus.GaugeVec
	rowsLoaded       *prometheus.GaugeVec
	runs             *prometheus.CounterVec
	lastRunSuccess   prometheus.Gauge
	lastRunDuration  prometheus.Gauge
}

// New creates and registers the pipeline collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 180, 600},
		}, []string{"stage"}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by outcome",
		}, []string{"stage", "status"}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_pages_fetched_total",
			Help:      "Catalog pages requested during extraction",
		}),
		recordsExtracted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_extracted",
			Help:      "Records in the last raw snapshot",
		}),
		recordsDropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_dropped",
			Help:      "Records removed by the last cleaning pass, by reason",
		}, []string{"reason"}),
		valuesImputed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "values_imputed",
			Help:      "Values filled with the column median by the last cleaning pass",
		}, []string{"column"}),
		recordsCleaned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_cleaned",
			Help:      "Records in the last cleaned snapshot",
		}),
		healthRisk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_by_health_risk",
			Help:      "Engineered records per health risk level",
		}, []string{"level"}),
		rowsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_loaded",
			Help:      "Rows written by the last load, by table",
		}, []string{"table"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"status"}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_rate",
			Help:      "Fraction of requested stages completed by the last run",
		}),
		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stageDuration,
		m.stageRuns,
		m.pagesFetched,
		m.recordsExtracted,
		m.recordsDropped,
		m.valuesImputed,
		m.recordsCleaned,
		m.healthRisk,
		m.rowsLoaded,
		m.runs,
		m.lastRunSuccess,
		m.lastRunDuration,
	)

	return m
}

// Registry returns the registry holding the pipeline collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StageFinished records a stage outcome
func (m *Metrics) StageFinished(stage domain.Stage, skipped bool, err error, duration time.Duration) {
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case skipped:
		status = "skipped"
	}
	m.stageRuns.WithLabelValues(string(stage), status).Inc()
	if !skipped {
		m.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
	}
}

// Extracted records an extraction report
func (m *Metrics) Extracted(report domain.ExtractReport) {
	m.pagesFetched.Add(float64(report.Pages))
	m.recordsExtracted.Set(float64(report.Records))
}

// Cleaned records a cleaning report
func (m *Metrics) Cleaned(report domain.CleaningReport) {
	m.recordsDropped.WithLabelValues("unidentified").Set(float64(report.DroppedUnidentified))
	m.recordsDropped.WithLabelValues("duplicate").Set(float64(report.DroppedDuplicates))
	m.recordsDropped.WithLabelValues("incomplete").Set(float64(report.DroppedIncomplete))
	m.recordsDropped.WithLabelValues("outlier").Set(float64(report.DroppedOutliers))

	m.valuesImputed.Reset()
	for col, n := range report.Imputed {
		m.valuesImputed.WithLabelValues(string(col)).Set(float64(n))
	}
	m.recordsCleaned.Set(float64(report.OutputRecords))
}

// Engineered records the derived field distribution
func (m *Metrics) Engineered(report domain.FeatureReport) {
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskModerate, domain.RiskHigh} {
		m.healthRisk.WithLabelValues(string(level)).Set(float64(report.HealthRisk[level]))
	}
}

// Loaded records row counts per table
func (m *Metrics) Loaded(result domain.LoadResult) {
	m.rowsLoaded.WithLabelValues("product_info").Set(float64(result.Products))
	m.rowsLoaded.WithLabelValues("nutrient_info").Set(float64(result.Nutrients))
	m.rowsLoaded.WithLabelValues("derived_metrics").Set(float64(result.DerivedMetrics))
}

// RunFinished records the run outcome
func (m *Metrics) RunFinished(report domain.RunReport) {
	status := "success"
	if len(report.Errors) > 0 {
		status = "error"
	}
	m.runs.WithLabelValues(status).Inc()
	m.lastRunSuccess.Set(report.SuccessRate)
	m.lastRunDuration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
}
