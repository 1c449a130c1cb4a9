// Package metrics exposes Prometheus instrumentation for pipeline runs and
// media downloads.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_posts_pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal state",
		},
		[]string{"state"}, // "succeeded", "failed"
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "channel_posts_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PipelineMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_posts_pipeline_messages_total",
			Help: "Messages seen by the pipeline per stage",
		},
		[]string{"stage"}, // "fetched", "retained", "persisted"
	)

	PostsPersisted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "channel_posts_persisted_posts",
			Help: "Number of posts in the last persisted collection",
		},
	)

	// Media Metrics
	MediaFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_posts_media_fetches_total",
			Help: "Media download attempts by kind and result",
		},
		[]string{"kind", "result"}, // result: "success", "failure", "rejected"
	)

	MediaFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channel_posts_media_fetch_duration_seconds",
			Help:    "Duration of media downloads in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_posts_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordMediaFetch records one media download attempt.
func RecordMediaFetch(kind, result string, duration time.Duration) {
	MediaFetches.WithLabelValues(kind, result).Inc()
	MediaFetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRun records a finished pipeline run.
func RecordRun(state string, duration time.Duration, fetched, retained, persisted int) {
	PipelineRuns.WithLabelValues(state).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
	PipelineMessages.WithLabelValues("fetched").Add(float64(fetched))
	PipelineMessages.WithLabelValues("retained").Add(float64(retained))
	PipelineMessages.WithLabelValues("persisted").Add(float64(persisted))
	if state == "succeeded" {
		PostsPersisted.Set(float64(persisted))
	}
}
