// Package monitoring exposes Prometheus metrics for the script engine and
// its HTTP surface.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each Metrics owns its registry so
// tests can create instances freely.
type Metrics struct {
	registry *prometheus.Registry

	// Script engine metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	WorkerRestarts    prometheus.Counter
	TestOutcomes      *prometheus.CounterVec

	// Outbound dispatch metrics
	DispatchesTotal *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// New creates a metrics set backed by a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "script_executions_total",
			Help: "Script executions by phase and outcome",
		}, []string{"phase", "outcome"}),

		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "script_execution_duration_seconds",
			Help:    "Script execution duration by phase",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"phase"}),

		WorkerRestarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "script_worker_restarts_total",
			Help: "Worker respawns after a crash",
		}),

		TestOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "script_test_outcomes_total",
			Help: "pm.test outcomes by result",
		}, []string{"result"}),

		DispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "request_dispatches_total",
			Help: "Outbound HTTP dispatches by outcome",
		}, []string{"outcome"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration by method and path",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Active WebSocket connections",
		}),

		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "WebSocket messages by type",
		}, []string{"type"}),
	}
}

// Handler returns the /metrics endpoint handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordExecution records one script execution.
func (m *Metrics) RecordExecution(phase, outcome string, duration time.Duration) {
	m.ExecutionsTotal.WithLabelValues(phase, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordWorkerRestart records a worker respawn.
func (m *Metrics) RecordWorkerRestart() {
	m.WorkerRestarts.Inc()
}

// RecordTests records pm.test outcomes.
func (m *Metrics) RecordTests(passed, failed int) {
	if passed > 0 {
		m.TestOutcomes.WithLabelValues("passed").Add(float64(passed))
	}
	if failed > 0 {
		m.TestOutcomes.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordDispatch records one outbound HTTP dispatch.
func (m *Metrics) RecordDispatch(outcome string) {
	m.DispatchesTotal.WithLabelValues(outcome).Inc()
}

// HTTPMiddleware returns a gin middleware recording request metrics.
func (m *Metrics) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
