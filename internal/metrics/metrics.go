// Package metrics exposes Prometheus collectors for the citation archive checker.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded by ObserveLookup.
const (
	OutcomeFound     = "found"
	OutcomeNotFound  = "not_found"
	OutcomeHTTPError = "http_error"
	OutcomeMalformed = "malformed"
	OutcomeFallback  = "fallback"
	OutcomeInvalid   = "invalid_request"
)

var (
	archiveLookupsTotal         *prometheus.CounterVec
	archiveAttemptsTotal        *prometheus.CounterVec
	archiveBackoffSeconds       prometheus.Histogram
	archiveCheckpointsTotal     prometheus.Counter
	archiveItemsProcessed       prometheus.Counter
	archiveItemsPending         prometheus.Gauge
	wikipediaRequestsTotal      *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	wikipediaRateLimitDelaySecs prometheus.Histogram

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		archiveLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citearchive_lookups_total",
				Help: "Total number of citations resolved, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		archiveAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citearchive_lookup_attempts_total",
				Help: "Total availability API attempts, labeled by result.",
			},
			[]string{"result"},
		)

		archiveBackoffSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "citearchive_backoff_seconds",
				Help:    "Histogram of backoff delays between availability API attempts.",
				Buckets: []float64{1, 5, 10, 20, 40, 80},
			},
		)

		archiveCheckpointsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "citearchive_checkpoints_total",
				Help: "Total number of output store flushes to stable storage.",
			},
		)

		archiveItemsProcessed = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "citearchive_items_processed_total",
				Help: "Total number of work items appended to the output store.",
			},
		)

		archiveItemsPending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "citearchive_items_pending",
				Help: "Number of work items still pending in the current run.",
			},
		)

		wikipediaRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citearchive_wikipedia_requests_total",
				Help: "Total Wikipedia API requests, labeled by action and code.",
			},
			[]string{"action", "code"},
		)

		wikipediaRateLimitDelaySecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "citearchive_wikipedia_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit waits before Wikipedia API requests.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveLookup counts one resolved citation.
func ObserveLookup(outcome string) {
	Init()
	archiveLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAttempt counts one availability API attempt.
func ObserveAttempt(err error) {
	Init()
	result := "ok"
	if err != nil {
		result = "transient_error"
	}
	archiveAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveBackoff records a backoff delay.
func ObserveBackoff(delay time.Duration) {
	Init()
	archiveBackoffSeconds.Observe(delay.Seconds())
}

// ObserveCheckpoint counts a flush of the output store to stable storage.
func ObserveCheckpoint() {
	Init()
	archiveCheckpointsTotal.Inc()
}

// ObserveProcessed counts an appended result and updates the pending gauge.
func ObserveProcessed(remaining int) {
	Init()
	archiveItemsProcessed.Inc()
	archiveItemsPending.Set(float64(remaining))
}

// SetPending sets the number of pending work items.
func SetPending(n int) {
	Init()
	archiveItemsPending.Set(float64(n))
}

// ObserveWikipediaRequest counts a Wikipedia API request.
func ObserveWikipediaRequest(action string, code int) {
	Init()
	wikipediaRequestsTotal.WithLabelValues(action, strconv.Itoa(code)).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	wikipediaRateLimitDelaySecs.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
