// Package observability exposes the server's Prometheus metrics.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter

	roundTotal    *prometheus.CounterVec
	roundDuration *prometheus.HistogramVec
	deltasTotal   *prometheus.CounterVec

	toolInvocationTotal    *prometheus.CounterVec
	toolInvocationDuration *prometheus.HistogramVec

	permissionRequestsTotal   prometheus.Counter
	permissionResolutionTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeConnections: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "chat_active_connections",
					Help: "Current open WebSocket connections.",
				},
			),
			connectionsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chat_connections_total",
					Help: "Total accepted WebSocket connections.",
				},
			),
			roundTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_rounds_total",
					Help: "Total provider rounds by provider and status.",
				},
				[]string{"provider", "status"},
			),
			roundDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chat_round_duration_seconds",
					Help:    "Provider round duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			deltasTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_stream_deltas_total",
					Help: "Total streamed deltas forwarded to clients by channel.",
				},
				[]string{"channel"},
			),
			toolInvocationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_tool_invocations_total",
					Help: "Total tool invocations by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolInvocationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chat_tool_invocation_duration_seconds",
					Help:    "Tool invocation duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			permissionRequestsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chat_permission_requests_total",
					Help: "Total tool permission requests sent to clients.",
				},
			),
			permissionResolutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_permission_resolutions_total",
					Help: "Total permission resolutions by selection.",
				},
				[]string{"selection"},
			),
		}

		prometheus.MustRegister(
			m.activeConnections,
			m.connectionsTotal,
			m.roundTotal,
			m.roundDuration,
			m.deltasTotal,
			m.toolInvocationTotal,
			m.toolInvocationDuration,
			m.permissionRequestsTotal,
			m.permissionResolutionTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordConnectionOpened tracks a newly accepted connection.
func RecordConnectionOpened() {
	m := getMetrics()
	m.connectionsTotal.Inc()
	m.activeConnections.Inc()
}

// RecordConnectionClosed tracks a closed connection.
func RecordConnectionClosed() {
	getMetrics().activeConnections.Dec()
}

// RecordRound tracks one provider round.
func RecordRound(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.roundTotal.WithLabelValues(provider, status).Inc()
	m.roundDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordDelta tracks one streamed delta forwarded to a client.
func RecordDelta(channel string) {
	getMetrics().deltasTotal.WithLabelValues(channel).Inc()
}

// RecordToolInvocation tracks one tool invocation.
func RecordToolInvocation(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolInvocationTotal.WithLabelValues(tool, status).Inc()
	m.toolInvocationDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordPermissionRequest tracks one permission request sent to a client.
func RecordPermissionRequest() {
	getMetrics().permissionRequestsTotal.Inc()
}

// RecordPermissionResolution tracks one permission resolution.
func RecordPermissionResolution(selection string) {
	getMetrics().permissionResolutionTotal.WithLabelValues(selection).Inc()
}
