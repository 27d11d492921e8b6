// Package metrics exposes vault counters to prometheus.
//
// Labels never carry household IDs, principal IDs or anything derived
// from key material.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hearth"

// Redemption outcomes.
const (
	OutcomeOK               = "ok"
	OutcomeNotFound         = "not_found"
	OutcomeExpired          = "expired"
	OutcomeExhausted        = "exhausted"
	OutcomeIdentityMismatch = "identity_mismatch"
	OutcomeTampered         = "tampered"
	OutcomeError            = "error"
)

// Metrics holds the vault's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	SessionsOpened     *prometheus.CounterVec
	SessionsActive     prometheus.Gauge
	InvitesCreated     prometheus.Counter
	InviteRedemptions  *prometheus.CounterVec
	AccessDenied       prometheus.Counter
	DecryptionFailures prometheus.Counter
	StateSaves         prometheus.Counter
}

// New creates a Metrics with its own registry, including process and Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Household sessions opened, by how the key was obtained.",
		}, []string{"via"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Household sessions currently holding a content key.",
		}),
		InvitesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invites_created_total",
			Help:      "Invites issued.",
		}),
		InviteRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invite_redemptions_total",
			Help:      "Invite redemption attempts, by outcome.",
		}, []string{"outcome"}),
		AccessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Failed attempts to unwrap a member key.",
		}),
		DecryptionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_decryption_failures_total",
			Help:      "Household documents that failed authentication or decoding.",
		}),
		StateSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_saves_total",
			Help:      "Encrypted household documents written.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SessionsOpened,
		m.SessionsActive,
		m.InvitesCreated,
		m.InviteRedemptions,
		m.AccessDenied,
		m.DecryptionFailures,
		m.StateSaves,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
