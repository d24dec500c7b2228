// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package main

import (
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credkeep/credkeep/pkg/errutil"
)

func TestCleanup_DeletesExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	env.pool.ExpectExec(`DELETE FROM verification_tokens WHERE expires_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	output, err := execute(t, env.deps, "cleanup", dbFlag)
	require.NoError(t, err)

	assert.Contains(t, output, "Deleted 3 expired verification tokens")
	assert.NoError(t, env.pool.ExpectationsWereMet())
}

func TestCleanup_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.pool.ExpectExec(`DELETE FROM verification_tokens`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(errBoom)

	_, err := execute(t, env.deps, "cleanup", dbFlag)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOKEN_DELETE_EXPIRED_FAILED")
}

func TestCleanup_IgnoresServeOnlySettings(t *testing.T) {
	env := newTestEnv(t)
	env.pool.ExpectExec(`DELETE FROM verification_tokens`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	_, err := execute(t, env.deps, "cleanup", dbFlag, "--env=production")
	assert.NoError(t, err, "no jwt secret is needed to clean up")
}
