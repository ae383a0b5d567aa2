// Package metrics defines the Prometheus counters exported by the server.
//
// Naming follows Prometheus conventions: a gatekeeper_ prefix and a _total
// suffix for counters. Counters live on their own registry so tests can
// create isolated instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"

	OutcomeAllowed         = "allowed"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
)

type Metrics struct {
	registry *prometheus.Registry

	// LoginsTotal counts login attempts by result.
	LoginsTotal *prometheus.CounterVec
	// RegistrationsTotal counts registration attempts by result.
	RegistrationsTotal *prometheus.CounterVec
	// GuardDecisionsTotal counts authorization guard decisions by outcome.
	GuardDecisionsTotal *prometheus.CounterVec
	// NotificationsTotal counts notification deliveries by outcome.
	NotificationsTotal *prometheus.CounterVec
}

// New creates the counters on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_logins_total",
				Help: "Total login attempts by result.",
			},
			[]string{"result"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_registrations_total",
				Help: "Total registration attempts by result.",
			},
			[]string{"result"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_guard_decisions_total",
				Help: "Total authorization guard decisions by outcome.",
			},
			[]string{"outcome"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_notifications_total",
				Help: "Total notification deliveries by outcome.",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.GuardDecisionsTotal,
		m.NotificationsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveLogin(result string) {
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRegistration(result string) {
	m.RegistrationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGuardDecision(outcome string) {
	m.GuardDecisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveNotification(outcome string) {
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
