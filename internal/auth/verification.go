// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// VerificationToken is a single-use, time-bounded proof of email control.
type VerificationToken struct {
	ID        ulid.ULID
	Token     string
	AccountID ulid.ULID
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// NewVerificationToken creates an unused token for accountID.
// expiresAt is fixed here and never changes afterwards.
func NewVerificationToken(token string, accountID ulid.ULID, expiresAt time.Time) (*VerificationToken, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_INVALID_VALUE").Errorf("token cannot be empty")
	}
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &VerificationToken{
		ID:        ulid.Make(),
		Token:     token,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt reports whether the token is past its expiry at now.
func (t *VerificationToken) IsExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// VerificationTokenRepository manages verification token persistence.
type VerificationTokenRepository interface {
	// Create stores a new unused token.
	// Returns ErrTokenCollision if the token string already exists.
	Create(ctx context.Context, token *VerificationToken) error

	// FindActiveByToken returns the token row only while used = false.
	// Expired rows are still returned. Returns ErrNotFound otherwise.
	FindActiveByToken(ctx context.Context, token string) (*VerificationToken, error)

	// MarkUsed flips used to true only if it is still false.
	// Returns false when another caller already consumed the token.
	MarkUsed(ctx context.Context, id ulid.ULID) (bool, error)

	// InvalidateAllUnusedForAccount marks every unused token of the account as used.
	InvalidateAllUnusedForAccount(ctx context.Context, accountID ulid.ULID) (int64, error)

	// DeleteExpired removes tokens with expires_at < now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
