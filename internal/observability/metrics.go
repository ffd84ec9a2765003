// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Checkmate application metrics.
type Metrics struct {
	AuthOperations *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	SessionsReaped prometheus.Counter
}

// NewMetrics creates the application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkmate_auth_operations_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkmate_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkmate_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SessionsReaped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "checkmate_sessions_reaped_total",
				Help: "Total number of expired sessions purged from storage",
			},
		),
	}

	reg.MustRegister(m.AuthOperations, m.HTTPRequests, m.HTTPDuration, m.SessionsReaped)
	return m
}

// RecordAuthOutcome counts one auth operation.
func (m *Metrics) RecordAuthOutcome(operation, outcome string) {
	m.AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveHTTPRequest records a finished HTTP request. route is the matched
// pattern, never the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordSessionsReaped adds n purged sessions.
func (m *Metrics) RecordSessionsReaped(n int64) {
	if n > 0 {
		m.SessionsReaped.Add(float64(n))
	}
}
