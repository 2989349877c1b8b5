// Package monitoring exports span and HTTP activity as Prometheus metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// Span metrics
	SpansTotal   *prometheus.CounterVec
	SpanDuration *prometheus.HistogramVec
	SpanErrors   *prometheus.CounterVec
	SpansActive  prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector registered in the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector registered in the given
// registry. Used in tests to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		SpansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "velox_spans_total",
				Help: "Total number of finished spans",
			},
			[]string{"operation", "status"},
		),
		SpanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "velox_span_duration_seconds",
				Help:    "Span duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		SpanErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "velox_span_errors_total",
				Help: "Total number of spans finished in error",
			},
			[]string{"operation"},
		),
		SpansActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "velox_spans_active",
				Help: "Number of currently open spans",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "velox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "velox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "velox_ws_connections",
				Help: "Number of active WebSocket stream subscribers",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "velox_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordSpan records one finished span. Implements tracing.Monitor.
func (m *Metrics) RecordSpan(operation, status string, duration time.Duration) {
	m.SpansTotal.WithLabelValues(operation, status).Inc()
	m.SpanDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if status == "error" {
		m.SpanErrors.WithLabelValues(operation).Inc()
	}
}

// SetActiveSpans updates the open-span gauge. Implements tracing.Monitor.
func (m *Metrics) SetActiveSpans(n int) {
	m.SpansActive.Set(float64(n))
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncWSConnections increments the stream subscriber gauge.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements the stream subscriber gauge.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
