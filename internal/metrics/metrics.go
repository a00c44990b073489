// Package metrics defines the Prometheus counters Adminity exports on /metrics.
//
// Every recording method is safe on a nil *Metrics, so handlers and tests
// can leave metrics unset.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Adminity.
type Metrics struct {
	GateDecisions  *prometheus.CounterVec
	LoginAttempts  *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	WebhookJobs    *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminity_gate_decisions_total",
				Help: "Access gate decisions by session state and action taken",
			},
			[]string{"state", "action"},
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminity_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"result"},
		),
		DecodeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminity_session_decode_failures_total",
				Help: "Session cookies that failed verification, by reason",
			},
			[]string{"reason"},
		),
		WebhookJobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminity_webhook_jobs_total",
				Help: "Document processing webhook jobs by outcome",
			},
			[]string{"result"},
		),
	}
}

// GateDecision records one access gate decision.
func (m *Metrics) GateDecision(state, action string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(state, action).Inc()
}

// LoginAttempt records a login outcome (success, invalid_fields, captcha,
// rate_limited, invalid_credentials, error, sso_success, sso_failed).
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// DecodeFailure records a rejected session cookie.
func (m *Metrics) DecodeFailure(reason string) {
	if m == nil {
		return
	}
	m.DecodeFailures.WithLabelValues(reason).Inc()
}

// WebhookJob records a webhook job outcome (enqueued, rejected, delivered, failed, bad_payload).
func (m *Metrics) WebhookJob(result string) {
	if m == nil {
		return
	}
	m.WebhookJobs.WithLabelValues(result).Inc()
}
