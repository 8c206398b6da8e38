// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts credential events. A nil *Metrics records nothing.
type Metrics struct {
	Logins           *prometheus.CounterVec
	ResetRequests    *prometheus.CounterVec
	ResetRedemptions *prometheus.CounterVec
	DegradedWrites   prometheus.Counter
}

// NewMetrics creates and registers the credential metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpms_auth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		ResetRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpms_auth_reset_requests_total",
				Help: "Total number of password reset code requests by outcome",
			},
			[]string{"outcome"},
		),
		ResetRedemptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpms_auth_reset_redemptions_total",
				Help: "Total number of password reset code redemptions by outcome",
			},
			[]string{"outcome"},
		),
		DegradedWrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hpms_auth_degraded_writes_total",
				Help: "Total number of user writes that reached memory but not the database",
			},
		),
	}

	reg.MustRegister(m.Logins, m.ResetRequests, m.ResetRedemptions, m.DegradedWrites)
	return m
}

func (m *Metrics) login(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) resetRequest(outcome string) {
	if m != nil {
		m.ResetRequests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) resetRedemption(outcome string) {
	if m != nil {
		m.ResetRedemptions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) degradedWrite() {
	if m != nil {
		m.DegradedWrites.Inc()
	}
}
