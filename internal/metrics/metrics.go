package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// FetchPages counts gallery page fetches by source and outcome
	FetchPages *prometheus.CounterVec
	// FetchedImages counts images returned by gallery page fetches
	FetchedImages *prometheus.CounterVec
	// UploadOutcomes counts Commons upload attempts by outcome
	UploadOutcomes *prometheus.CounterVec
	// UploadDuration tracks the duration of a single Commons upload
	UploadDuration prometheus.Histogram
	// ProxyFallbacks counts image proxy requests that served the placeholder
	ProxyFallbacks prometheus.Counter
	// AuthFlows counts authorization flow completions by provider and outcome
	AuthFlows *prometheus.CounterVec
	// LimiterAcquires counts upload slot acquisition attempts by status
	LimiterAcquires *prometheus.CounterVec
	// SessionsPurged counts expired sessions removed by the purger
	SessionsPurged prometheus.Counter
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		FetchPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_pages_total",
				Help:      "Total number of gallery page fetches",
			},
			[]string{"source", "status"},
		),
		FetchedImages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetched_images_total",
				Help:      "Total number of images returned by page fetches",
			},
			[]string{"source"},
		),
		UploadOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_outcomes_total",
				Help:      "Total number of Commons upload attempts",
			},
			[]string{"outcome"},
		),
		UploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Duration of a single Commons upload",
				Buckets:   []float64{0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
		),
		ProxyFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_fallbacks_total",
				Help:      "Total number of proxy requests served the placeholder image",
			},
		),
		AuthFlows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_flows_total",
				Help:      "Total number of completed authorization flows",
			},
			[]string{"provider", "outcome"},
		),
		LimiterAcquires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "limiter_acquires_total",
				Help:      "Total number of upload slot acquisition attempts",
			},
			[]string{"status"},
		),
		SessionsPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_purged_total",
				Help:      "Total number of expired sessions removed",
			},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.FetchPages,
		m.FetchedImages,
		m.UploadOutcomes,
		m.UploadDuration,
		m.ProxyFallbacks,
		m.AuthFlows,
		m.LimiterAcquires,
		m.SessionsPurged,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordFetchPage records a gallery page fetch
func (m *Metrics) RecordFetchPage(source, status string, images int) {
	m.FetchPages.WithLabelValues(source, status).Inc()
	if images > 0 {
		m.FetchedImages.WithLabelValues(source).Add(float64(images))
	}
}

// RecordUpload records one Commons upload attempt
func (m *Metrics) RecordUpload(outcome string, durationSeconds float64) {
	m.UploadOutcomes.WithLabelValues(outcome).Inc()
	m.UploadDuration.Observe(durationSeconds)
}

// RecordProxyFallback records a proxy request that fell back to the placeholder
func (m *Metrics) RecordProxyFallback() {
	m.ProxyFallbacks.Inc()
}

// RecordAuthFlow records a completed authorization flow
func (m *Metrics) RecordAuthFlow(provider, outcome string) {
	m.AuthFlows.WithLabelValues(provider, outcome).Inc()
}

// RecordLimiterAcquire records an upload slot acquisition attempt
func (m *Metrics) RecordLimiterAcquire(status string) {
	m.LimiterAcquires.WithLabelValues(status).Inc()
}

// RecordSessionPurge records one purge run
func (m *Metrics) RecordSessionPurge(purged int64, duration time.Duration) {
	if purged > 0 {
		m.SessionsPurged.Add(float64(purged))
	}
}
