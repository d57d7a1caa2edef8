// Package metrics counts what the session layer does. A nil *Collector is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "booking_session"

// Renewal outcomes
const (
	OutcomeSuccess        = "success"
	OutcomeNoSession      = "no_session"
	OutcomeInvalidSession = "invalid_session"
	OutcomeTransient      = "transient"
)

type Collector struct {
	renewals        *prometheus.CounterVec
	renewalsJoined  prometheus.Counter
	requestsReplay  prometheus.Counter
	tokensRotated   prometheus.Counter
	sessionsCleared prometheus.Counter
}

// New creates the collector and registers it with reg. A nil reg leaves it unregistered.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewals_total",
			Help:      "Refresh endpoint calls by outcome.",
		}, []string{"outcome"}),
		renewalsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewals_joined_total",
			Help:      "Callers that waited on a renewal already in flight instead of starting one.",
		}),
		requestsReplay: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_replayed_total",
			Help:      "Requests re-issued after a renewal.",
		}),
		tokensRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_rotated_total",
			Help:      "Tokens adopted from ordinary API responses.",
		}),
		sessionsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cleared_total",
			Help:      "Full session cleanups.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.renewals, c.renewalsJoined, c.requestsReplay, c.tokensRotated, c.sessionsCleared)
	}
	return c
}

func (c *Collector) RenewalFinished(outcome string) {
	if c == nil {
		return
	}
	c.renewals.WithLabelValues(outcome).Inc()
}

func (c *Collector) RenewalJoined() {
	if c == nil {
		return
	}
	c.renewalsJoined.Inc()
}

func (c *Collector) RequestReplayed() {
	if c == nil {
		return
	}
	c.requestsReplay.Inc()
}

func (c *Collector) TokenRotated() {
	if c == nil {
		return
	}
	c.tokensRotated.Inc()
}

func (c *Collector) SessionCleared() {
	if c == nil {
		return
	}
	c.sessionsCleared.Inc()
}

// Renewals returns the counter for outcome, for tests and debug pages.
func (c *Collector) Renewals(outcome string) prometheus.Counter {
	return c.renewals.WithLabelValues(outcome)
}

func (c *Collector) Joined() prometheus.Counter   { return c.renewalsJoined }
func (c *Collector) Replayed() prometheus.Counter { return c.requestsReplay }
func (c *Collector) Rotated() prometheus.Counter  { return c.tokensRotated }
func (c *Collector) Cleared() prometheus.Counter  { return c.sessionsCleared }
