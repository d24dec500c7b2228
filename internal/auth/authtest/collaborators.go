// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/credkeep/credkeep/internal/auth"
)

// SentMail is one recorded verification email.
type SentMail struct {
	Address string
	Link    string
}

// RecordingMailer records sends and can be told to fail.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []SentMail
	err  error
}

// FailWith makes every later send return err. A nil err clears it.
func (m *RecordingMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SendVerificationEmail implements auth.Mailer. Failed sends are not recorded.
func (m *RecordingMailer) SendVerificationEmail(_ context.Context, address, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, SentMail{Address: address, Link: link})
	return nil
}

// Sent returns a copy of the recorded sends.
func (m *RecordingMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// SequenceTokens hands out tokens from a fixed list, then falls back.
type SequenceTokens struct {
	mu       sync.Mutex
	values   []string
	fallback auth.TokenGenerator
	calls    int
}

// NewSequenceTokens returns values in order. Once exhausted it generates random tokens.
func NewSequenceTokens(values ...string) *SequenceTokens {
	return &SequenceTokens{values: values, fallback: auth.NewRandomTokenGenerator()}
}

// Generate implements auth.TokenGenerator.
func (g *SequenceTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.values) == 0 {
		return g.fallback.Generate()
	}
	next := g.values[0]
	g.values = g.values[1:]
	return next, nil
}

// Calls returns how many tokens were requested.
func (g *SequenceTokens) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// RecordingMetrics counts every event reported by the service.
type RecordingMetrics struct {
	mu           sync.Mutex
	operations   map[string]int
	mailFailures map[auth.MailPolicy]int
	purged       int64
}

// NewRecordingMetrics creates an empty recorder.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		operations:   make(map[string]int),
		mailFailures: make(map[auth.MailPolicy]int),
	}
}

// RecordOperation implements auth.MetricsRecorder.
func (r *RecordingMetrics) RecordOperation(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[operation+"/"+outcome]++
}

// RecordMailFailure implements auth.MetricsRecorder.
func (r *RecordingMetrics) RecordMailFailure(policy auth.MailPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mailFailures[policy]++
}

// RecordTokensPurged implements auth.MetricsRecorder.
func (r *RecordingMetrics) RecordTokensPurged(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged += n
}

// Operations returns the count recorded for operation and outcome.
func (r *RecordingMetrics) Operations(operation, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operations[operation+"/"+outcome]
}

// MailFailures returns the failure count for a policy.
func (r *RecordingMetrics) MailFailures(policy auth.MailPolicy) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mailFailures[policy]
}

// Purged returns the total of purged tokens.
func (r *RecordingMetrics) Purged() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purged
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock fixed at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Verify interfaces are satisfied.
var (
	_ auth.Mailer          = (*RecordingMailer)(nil)
	_ auth.TokenGenerator  = (*SequenceTokens)(nil)
	_ auth.MetricsRecorder = (*RecordingMetrics)(nil)
)
