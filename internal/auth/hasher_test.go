// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/credkeep/credkeep/internal/auth"
	"github.com/credkeep/credkeep/pkg/errutil"
)

func TestHashPassword(t *testing.T) {
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost)

	t.Run("produces bcrypt hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.ErrorIs(t, err, auth.ErrEmptyPassword)
		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})

	t.Run("rejects password over 72 bytes", func(t *testing.T) {
		_, err := hasher.Hash(strings.Repeat("x", 73))
		require.ErrorIs(t, err, auth.ErrPasswordTooLong)
		errutil.AssertErrorCode(t, err, "AUTH_PASSWORD_TOO_LONG")
	})

	t.Run("accepts exactly 72 bytes", func(t *testing.T) {
		_, err := hasher.Hash(strings.Repeat("x", 72))
		require.NoError(t, err)
	})
}

func TestDefaultHasherCost(t *testing.T) {
	hash, err := auth.NewBcryptHasher().Hash("password123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, 12, cost)
}

func TestNewBcryptHasherWithCost_OutOfRange(t *testing.T) {
	hash, err := auth.NewBcryptHasherWithCost(2).Hash("password123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, auth.BcryptCost, cost)
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewBcryptHasherWithCost(bcrypt.MinCost)

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails without error", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hash from another cost still verifies", func(t *testing.T) {
		raw, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost+1)
		require.NoError(t, err)

		ok, err := hasher.Verify("pw", string(raw))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("invalid hash format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "not-a-valid-hash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
	})
}
