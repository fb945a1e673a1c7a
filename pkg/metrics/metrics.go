package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RunsTotal           *prometheus.CounterVec
	RunInProgress       prometheus.Gauge
	ListingsExtracted   *prometheus.CounterVec
	SourceFailures      *prometheus.CounterVec
	PlatesTotal         *prometheus.CounterVec
	ValuationsTotal     *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuation_runs_total",
			Help: "Total number of pipeline runs.",
		},
		[]string{"status"}, // completed, failed
	)

	RunInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "valuation_run_in_progress",
			Help: "1 while a pipeline run is executing.",
		},
	)

	ListingsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_extracted_total",
			Help: "Listings accepted by the extractor.",
		},
		[]string{"source"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_failures_total",
			Help: "Sources that contributed no records because they could not be fetched or parsed.",
		},
		[]string{"source", "error_type"},
	)

	PlatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plate_checks_total",
			Help: "Plate recognition outcomes.",
		},
		[]string{"result"}, // detected, not_detected
	)

	ValuationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "valuations_total",
			Help: "Valuation outcomes per listing.",
		},
		[]string{"status"}, // valued, failed, error, skipped
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"stage"},
	)
}
