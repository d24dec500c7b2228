// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/credkeep/credkeep/internal/auth"
)

const tokenValueConstraint = "verification_tokens_token_key"

// TokenRepository implements auth.VerificationTokenRepository using PostgreSQL.
type TokenRepository struct {
	db querier
}

// NewTokenRepository creates a pool-bound TokenRepository.
func NewTokenRepository(pool Pool) *TokenRepository {
	return &TokenRepository{db: pool}
}

// Create stores a new unused token.
func (r *TokenRepository) Create(ctx context.Context, token *auth.VerificationToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO verification_tokens (id, token, account_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.Token,
		token.AccountID.String(),
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
	)
	if isUniqueViolation(err, tokenValueConstraint) {
		return oops.Code("TOKEN_COLLISION").
			With("account_id", token.AccountID.String()).
			Wrap(auth.ErrTokenCollision)
	}
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert verification token").
			With("account_id", token.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// FindActiveByToken returns the unused row for token, expired or not.
func (r *TokenRepository) FindActiveByToken(ctx context.Context, token string) (*auth.VerificationToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, token, account_id, expires_at, used, created_at
		FROM verification_tokens
		WHERE token = $1 AND used = FALSE
	`, token)

	var (
		idStr, accountIDStr string
		record              auth.VerificationToken
	)
	err := row.Scan(&idStr, &record.Token, &accountIDStr, &record.ExpiresAt, &record.Used, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_FIND_FAILED").With("operation", "find active token").Wrap(err)
	}

	if record.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("TOKEN_FIND_FAILED").With("operation", "parse token id").With("token_id", idStr).Wrap(err)
	}
	if record.AccountID, err = ulid.Parse(accountIDStr); err != nil {
		return nil, oops.Code("TOKEN_FIND_FAILED").With("operation", "parse account id").With("account_id", accountIDStr).Wrap(err)
	}
	return &record, nil
}

// MarkUsed flips used only while it is still false. The row-count check is
// what lets exactly one of several concurrent verifications win.
func (r *TokenRepository) MarkUsed(ctx context.Context, id ulid.ULID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE verification_tokens SET used = TRUE
		WHERE id = $1 AND used = FALSE
	`, id.String())
	if err != nil {
		return false, oops.Code("TOKEN_MARK_USED_FAILED").With("token_id", id.String()).Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

// InvalidateAllUnusedForAccount marks every unused token of the account used.
func (r *TokenRepository) InvalidateAllUnusedForAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE verification_tokens SET used = TRUE
		WHERE account_id = $1 AND used = FALSE
	`, accountID.String())
	if err != nil {
		return 0, oops.Code("TOKEN_INVALIDATE_FAILED").With("account_id", accountID.String()).Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes every token with expires_at before now.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM verification_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.VerificationTokenRepository = (*TokenRepository)(nil)
