// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchRequestsTotal          *prometheus.CounterVec
	searchRequestDurationSeconds prometheus.Histogram
	harvesterPagesTotal          prometheus.Counter
	harvesterHitsTotal           prometheus.Counter
	harvestRunsTotal             *prometheus.CounterVec
	harvestDurationSeconds       prometheus.Histogram
	exportsServedTotal           *prometheus.CounterVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_search_requests_total",
				Help: "Total upstream search requests, labeled by status code.",
			},
			[]string{"code"},
		)

		searchRequestDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_search_request_duration_seconds",
				Help:    "Histogram of upstream search request latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		harvesterPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Total result pages consumed by the harvest loop.",
			},
		)

		harvesterHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_hits_total",
				Help: "Total listing records harvested.",
			},
		)

		harvestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Total harvest runs, labeled by final status.",
			},
			[]string{"status"},
		)

		harvestDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Histogram of end-to-end harvest run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		exportsServedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_exports_served_total",
				Help: "Total export downloads served, labeled by format.",
			},
			[]string{"format"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearchRequest records one upstream search request. A zero code means
// the request never produced a response.
func ObserveSearchRequest(code int, duration time.Duration) {
	if searchRequestsTotal == nil {
		return
	}
	label := "none"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	searchRequestsTotal.WithLabelValues(label).Inc()
	searchRequestDurationSeconds.Observe(duration.Seconds())
}

// ObservePage records one consumed result page and its hit count.
func ObservePage(hits int) {
	if harvesterPagesTotal == nil {
		return
	}
	harvesterPagesTotal.Inc()
	harvesterHitsTotal.Add(float64(hits))
}

// ObserveHarvest records a finished harvest run.
func ObserveHarvest(status string, duration time.Duration) {
	if harvestRunsTotal == nil {
		return
	}
	harvestRunsTotal.WithLabelValues(status).Inc()
	harvestDurationSeconds.Observe(duration.Seconds())
}

// ObserveExport counts a served export download.
func ObserveExport(format string) {
	if exportsServedTotal == nil {
		return
	}
	exportsServedTotal.WithLabelValues(format).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
