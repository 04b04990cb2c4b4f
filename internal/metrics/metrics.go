package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration flow counters, exposed on /metrics.
var (
	RegistrationsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akvora",
		Name:      "registrations_submitted_total",
		Help:      "Registrations submitted, by event type and initial status.",
	}, []string{"event_type", "status"})

	RegistrationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akvora",
		Name:      "registration_transitions_total",
		Help:      "Admin status transitions applied to registrations.",
	}, []string{"from", "to"})

	CertificatesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "akvora",
		Name:      "certificates_issued_total",
		Help:      "Certificates issued for approved registrations.",
	})

	WSClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "akvora",
		Name:      "ws_clients",
		Help:      "Connected websocket clients by channel class.",
	}, []string{"class"})

	EmailJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "akvora",
		Name:      "email_jobs_total",
		Help:      "Email jobs processed by the worker, by outcome.",
	}, []string{"outcome"})
)
