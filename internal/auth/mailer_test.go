// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credkeep/credkeep/internal/auth"
	"github.com/credkeep/credkeep/pkg/errutil"
)

func TestParseMailPolicy(t *testing.T) {
	for in, want := range map[string]auth.MailPolicy{
		"":               auth.MailInTransaction,
		"in_transaction": auth.MailInTransaction,
		"after_commit":   auth.MailAfterCommit,
	} {
		got, err := auth.ParseMailPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := auth.ParseMailPolicy("outbox")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_MAIL_POLICY")
	errutil.AssertErrorContext(t, err, "policy", "outbox")
}

func TestVerificationLink(t *testing.T) {
	assert.Equal(t,
		"https://app.example.com/verify-email?token=abc123",
		auth.VerificationLink("https://app.example.com", "abc123"))
	assert.Equal(t,
		"http://localhost:3000/verify-email?token=a%2Bb%26c",
		auth.VerificationLink("http://localhost:3000", "a+b&c"))
}
