// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error whose deepest code is code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code())
}

// AssertErrorContext asserts that err carries key with the given value
// anywhere in its wrapping chain.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key, "context keys of %v", err) {
		assert.Equal(t, value, ctx[key], "context key %q", key)
	}
}

// AssertCallerError asserts that err is a caller-facing error: it carries
// code and its message is exactly message, the text an HTTP client receives.
func AssertCallerError(t *testing.T, err error, code, message string) {
	t.Helper()
	AssertErrorCode(t, err, code)
	assert.Equal(t, message, err.Error(), "caller-facing message")
}

func requireOops(t *testing.T, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	return oopsErr
}
