// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account is a registered identity with email/password credentials.
type Account struct {
	ID              ulid.ULID
	Email           string
	PasswordHash    string
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAccount creates an unverified Account. The email is stored exactly as given.
func NewAccount(email, passwordHash string) (*Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Summary returns the minimal view handed out after sign-in.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID.String(), Email: a.Email}
}

// AccountSummary is the account shape returned alongside a session token.
type AccountSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the account shape returned to an authenticated caller.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account.
	// Returns ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, account *Account) error

	// GetByEmail retrieves an account by exact email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if the account does not exist.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// MarkVerified flips email_verified and stamps email_verified_at.
	// Only an unverified account transitions; otherwise ErrNotFound is returned.
	MarkVerified(ctx context.Context, id ulid.ULID, at time.Time) error
}
