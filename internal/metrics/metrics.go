// Package metrics exposes Prometheus collectors for the catalog pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal      *prometheus.CounterVec
	fetchRetriesTotal       prometheus.Counter
	fetchDurationSeconds    prometheus.Histogram
	rateLimitWaitSeconds    prometheus.Histogram
	pagesTotal              prometheus.Counter
	recordsTotal            *prometheus.CounterVec
	runsTotal               *prometheus.CounterVec
	runDurationSeconds      prometheus.Histogram
	artifactBytesTotal      *prometheus.CounterVec
	normalizeOutliersTotal  *prometheus.CounterVec
	normalizeNullCellsTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_requests_total",
				Help: "Total page fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_fetch_retries_total",
				Help: "Total retries issued after transient fetch failures.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_fetch_duration_seconds",
				Help:    "Histogram of single page request latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_rate_limit_wait_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		pagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_pages_total",
				Help: "Total number of pages fetched successfully.",
			},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_records_total",
				Help: "Records seen per pipeline stage (fetched, cleaned, dropped, duplicate).",
			},
			[]string{"stage"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_runs_total",
				Help: "Total pipeline runs, labeled by final status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_run_duration_seconds",
				Help:    "Wall time per pipeline run.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		artifactBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_artifact_bytes_total",
				Help: "Bytes written per artifact kind.",
			},
			[]string{"kind"},
		)

		normalizeOutliersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_normalize_outliers_total",
				Help: "Numeric values nulled for being outside their plausible range, per column.",
			},
			[]string{"column"},
		)

		normalizeNullCellsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_normalize_null_cells_total",
				Help: "Cells left null in the cleaned table, per column.",
			},
			[]string{"column"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one page request attempt.
func ObserveFetch(outcome string, duration time.Duration) {
	Init()
	fetchRequestsTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRetry counts a retry.
func ObserveRetry() {
	Init()
	fetchRetriesTotal.Inc()
}

// ObserveRateLimitWait records the duration of a rate limit wait.
func ObserveRateLimitWait(duration time.Duration) {
	Init()
	rateLimitWaitSeconds.Observe(duration.Seconds())
}

// ObservePage counts a successfully fetched page.
func ObservePage() {
	Init()
	pagesTotal.Inc()
}

// AddRecords adds n records to the given stage counter.
func AddRecords(stage string, n int) {
	Init()
	if n > 0 {
		recordsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveRun records a finished run.
func ObserveRun(status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// AddArtifactBytes counts bytes written for an artifact kind.
func AddArtifactBytes(kind string, n int64) {
	Init()
	if n > 0 {
		artifactBytesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// AddOutliers counts values nulled as outliers in column.
func AddOutliers(column string, n int) {
	Init()
	if n > 0 {
		normalizeOutliersTotal.WithLabelValues(column).Add(float64(n))
	}
}

// AddNullCells counts null cells left in column.
func AddNullCells(column string, n int) {
	Init()
	if n > 0 {
		normalizeNullCellsTotal.WithLabelValues(column).Add(float64(n))
	}
}
