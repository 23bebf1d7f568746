// Package metrics exposes Prometheus instrumentation for the recommendation
// pipeline, its caches, and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_pipeline_runs_total",
			Help: "Total pipeline invocations by outcome",
		},
		[]string{"outcome"}, // "success", "cached", "no_face", "invalid_image", "error"
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodtune_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"}, // "locate", "classify", "recommend", "total"
	)

	EmotionsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_emotions_detected_total",
			Help: "Detected emotions after the confidence gate",
		},
		[]string{"emotion", "overridden"},
	)

	// Recommendation
	HistoryResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_playback_history_resets_total",
			Help: "Times the playback history of an emotion was cleared",
		},
		[]string{"emotion", "reason"}, // reason: "exhausted", "catalog_changed"
	)

	CatalogFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_catalog_fallbacks_total",
			Help: "Recommendations drawn from the whole catalog because no mood matched",
		},
		[]string{"emotion"},
	)

	// Caches
	ArtifactLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_artifact_loads_total",
			Help: "Artifact load attempts by artifact and outcome",
		},
		[]string{"artifact", "outcome"},
	)

	ArtifactLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodtune_artifact_load_duration_seconds",
			Help:    "Time spent loading artifacts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"artifact"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_cache_lookups_total",
			Help: "Cache lookups by cache namespace and result",
		},
		[]string{"cache", "result"}, // result: "hit", "miss", "error"
	)

	// Model server
	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_model_requests_total",
			Help: "Requests sent to the emotion model server",
		},
		[]string{"endpoint", "status"},
	)

	ModelBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodtune_model_breaker_state",
			Help: "Model server circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodtune_http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodtune_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, start time.Time) {
	PipelineDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordCacheLookup increments the lookup counter for a cache namespace.
func RecordCacheLookup(cache string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
