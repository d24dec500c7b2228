// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

// Operation names reported to a MetricsRecorder.
const (
	OpSignUp  = "signup"
	OpSignIn  = "signin"
	OpVerify  = "verify"
	OpResend  = "resend"
	OpCleanup = "cleanup"
)

// Outcome labels reported to a MetricsRecorder.
const (
	OutcomeSuccess      = "success"
	OutcomeConflict     = "conflict"
	OutcomeRejected     = "rejected"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// MetricsRecorder receives credential lifecycle events.
type MetricsRecorder interface {
	RecordOperation(operation, outcome string)
	RecordMailFailure(policy MailPolicy)
	RecordTokensPurged(n int64)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, string) {}
func (noopMetrics) RecordMailFailure(MailPolicy)   {}
func (noopMetrics) RecordTokensPurged(int64)       {}

// outcomeOf maps an operation result to its outcome label.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch KindOf(err) {
	case KindConflict:
		return OutcomeConflict
	case KindBadRequest:
		return OutcomeRejected
	case KindUnauthorized:
		return OutcomeUnauthorized
	default:
		return OutcomeError
	}
}
