// Package metrics exposes Prometheus collectors for the collection service.
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
	jobsTotal              *prometheus.CounterVec
	scrapeDurationSeconds  *prometheus.HistogramVec
	fetchAttemptsTotal     *prometheus.CounterVec
	retriesDispatchedTotal prometheus.Counter
	activeWorkers          prometheus.Gauge
	httpRequestsTotal      *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_total",
				Help: "Total number of jobs finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_duration_seconds",
				Help:    "Histogram of extraction durations, labeled by source type.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_fetch_attempts_total",
				Help: "Total HTTP fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		retriesDispatchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_retries_dispatched_total",
				Help: "Total delayed re-dispatches after infrastructure failures.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveScrape records the duration of one extraction for a source type.
func ObserveScrape(source string, duration time.Duration) {
	if scrapeDurationSeconds != nil {
		scrapeDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// ObserveFetchAttempt increments the fetch attempt counter.
func ObserveFetchAttempt(outcome string) {
	if fetchAttemptsTotal != nil {
		fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRetryDispatched increments the delayed re-dispatch counter.
func ObserveRetryDispatched() {
	if retriesDispatchedTotal != nil {
		retriesDispatchedTotal.Inc()
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveHTTPRequest increments the API request counter.
func ObserveHTTPRequest(method, code string) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, code).Inc()
	}
}
