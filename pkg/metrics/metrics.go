package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Chat related metrics
	ChatReplies       *prometheus.CounterVec
	GenerationLatency *prometheus.HistogramVec
	GenerationErrors  *prometheus.CounterVec
	MatchScore        prometheus.Histogram

	// Analysis metrics
	AnalysisRuns    *prometheus.CounterVec
	AnalysisLatency *prometheus.HistogramVec
	AlertsSent      *prometheus.CounterVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec

	// Ingest worker metrics
	IngestProcessed prometheus.Counter
	IngestFailed    prometheus.Counter
	IngestRetries   prometheus.Counter
}

// NewMetrics creates all application metrics and registers them with reg,
// or with the default registry when reg is nil.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChatReplies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chat_replies_total",
			Help:      "Total number of chat replies by prompt kind and outcome",
		}, []string{"kind", "outcome"}),
		GenerationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generation_duration_seconds",
			Help:      "Duration of text generation calls",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		GenerationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generation_errors_total",
			Help:      "Total number of failed text generation calls",
		}, []string{"provider", "class"}),
		MatchScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "match_score",
			Help:      "Score of the best catalog match per exercise request",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		AnalysisRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_runs_total",
			Help:      "Total number of analyzer script runs",
		}, []string{"kind", "status"}),
		AnalysisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of analyzer script runs",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_sent_total",
			Help:      "Total number of critical alert notifications",
		}, []string{"status"}),

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operations_total",
			Help:      "Total number of record store operations",
		}, []string{"backend", "operation", "status"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of record store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "operation"}),

		IngestProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ingest_records_processed_total",
			Help:      "Total number of ingested health records",
		}),
		IngestFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ingest_records_failed_total",
			Help:      "Total number of health records the ingest worker dropped",
		}),
		IngestRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ingest_retry_attempts_total",
			Help:      "Total number of store retries in the ingest worker",
		}),
	}
}

// New returns metrics bound to a private registry. Used by tests and tools
// that must not touch the default registry.
func New(namespace string) *Metrics {
	return NewMetrics(namespace, "", prometheus.NewRegistry())
}
