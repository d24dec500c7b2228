// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/credkeep/credkeep/internal/auth"
)

// Metrics holds the credential lifecycle counters. It implements
// auth.MetricsRecorder.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	MailFailuresTotal *prometheus.CounterVec
	TokensPurgedTotal prometheus.Counter
}

// NewMetrics creates and registers the credkeep counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credkeep_auth_operations_total",
				Help: "Total number of credential operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		MailFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credkeep_mail_failures_total",
				Help: "Total number of failed verification email sends by mail policy",
			},
			[]string{"policy"},
		),
		TokensPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "credkeep_tokens_purged_total",
				Help: "Total number of expired verification tokens deleted",
			},
		),
	}

	reg.MustRegister(m.OperationsTotal)
	reg.MustRegister(m.MailFailuresTotal)
	reg.MustRegister(m.TokensPurgedTotal)

	return m
}

// RecordOperation implements auth.MetricsRecorder.
func (m *Metrics) RecordOperation(operation, outcome string) {
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordMailFailure implements auth.MetricsRecorder.
func (m *Metrics) RecordMailFailure(policy auth.MailPolicy) {
	m.MailFailuresTotal.WithLabelValues(string(policy)).Inc()
}

// RecordTokensPurged implements auth.MetricsRecorder.
func (m *Metrics) RecordTokensPurged(n int64) {
	if n > 0 {
		m.TokensPurgedTotal.Add(float64(n))
	}
}

var _ auth.MetricsRecorder = (*Metrics)(nil)
