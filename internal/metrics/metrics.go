package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// sourceFetchTotal tracks fetch attempts by source and outcome
	sourceFetchTotal *prometheus.CounterVec

	// sourceIOCsTotal tracks raw records contributed by each source
	sourceIOCsTotal *prometheus.CounterVec

	// sourceFetchDuration tracks latency of a single feed download
	sourceFetchDuration *prometheus.HistogramVec

	// pipelineRecords holds the record count left after each stage of the last run
	pipelineRecords *prometheus.GaugeVec
)

// InitMetrics registers all Prometheus metrics for the aggregation pipeline.
// Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		sourceFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iocagg_source_fetch_total",
				Help: "Total number of feed fetches by source and status",
			},
			[]string{"source", "status"},
		)

		sourceIOCsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iocagg_source_iocs_total",
				Help: "Total number of raw IOCs returned by each source",
			},
			[]string{"source"},
		)

		sourceFetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iocagg_source_fetch_duration_seconds",
				Help:    "Duration of feed downloads in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"source"},
		)

		pipelineRecords = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iocagg_pipeline_records",
				Help: "Records remaining after each pipeline stage of the last run",
			},
			[]string{"stage"},
		)
	})
}

// RecordSourceFetch records one feed fetch.
// status: "success", "error"
func RecordSourceFetch(source, status string, count int, duration time.Duration) {
	if sourceFetchTotal != nil {
		sourceFetchTotal.WithLabelValues(source, status).Inc()
	}
	if sourceIOCsTotal != nil && count > 0 {
		sourceIOCsTotal.WithLabelValues(source).Add(float64(count))
	}
	if sourceFetchDuration != nil {
		sourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// RecordStage records how many records survived a stage.
// stage: "fetched", "deduped", "filtered", "limited"
func RecordStage(stage string, count int) {
	if pipelineRecords != nil {
		pipelineRecords.WithLabelValues(stage).Set(float64(count))
	}
}
