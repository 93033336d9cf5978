package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder is the narrow surface the client core reports to.
type MetricsRecorder interface {
	RecordAPIRequest(method string, status int, duration time.Duration)
	RecordAPIRetry(method string)
	RecordSessionTransition(state string)
	RecordConsoleError(code string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordAPIRequest(string, int, time.Duration) {}
func (NopMetrics) RecordAPIRetry(string)                       {}
func (NopMetrics) RecordSessionTransition(string)              {}
func (NopMetrics) RecordConsoleError(string)                   {}

// Metrics collects prometheus series for the API client and session.
type Metrics struct {
	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	apiRetries    *prometheus.CounterVec
	sessionStates *prometheus.CounterVec
	consoleErrors *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concerttix_api_requests_total",
			Help: "API requests by method and status code (0 = no response).",
		}, []string{"method", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concerttix_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		apiRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concerttix_api_retries_total",
			Help: "Retried idempotent API requests.",
		}, []string{"method"}),
		sessionStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concerttix_session_transitions_total",
			Help: "Session state transitions by target state.",
		}, []string{"state"}),
		consoleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concerttix_console_errors_total",
			Help: "Console responses rendered as errors, by code.",
		}, []string{"code"}),
	}

	reg.MustRegister(m.apiRequests, m.apiLatency, m.apiRetries, m.sessionStates, m.consoleErrors)
	return m
}

// RecordAPIRequest counts one API round trip.
func (m *Metrics) RecordAPIRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAPIRetry counts a retry attempt.
func (m *Metrics) RecordAPIRetry(method string) {
	if m == nil {
		return
	}
	m.apiRetries.WithLabelValues(method).Inc()
}

// RecordSessionTransition counts a session settling into state.
func (m *Metrics) RecordSessionTransition(state string) {
	if m == nil {
		return
	}
	m.sessionStates.WithLabelValues(state).Inc()
}

// RecordConsoleError counts an error response from the console.
func (m *Metrics) RecordConsoleError(code string) {
	if m == nil {
		return
	}
	m.consoleErrors.WithLabelValues(code).Inc()
}
