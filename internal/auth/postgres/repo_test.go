// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credkeep/credkeep/internal/auth"
	"github.com/credkeep/credkeep/internal/auth/postgres"
	"github.com/credkeep/credkeep/pkg/errutil"
)

var accountCols = []string{
	"id", "email", "password_hash", "email_verified", "email_verified_at", "created_at", "updated_at",
}

var tokenCols = []string{"id", "token", "account_id", "expires_at", "used", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	account, err := auth.NewAccount("a@x.io", "$2a$12$hash")
	require.NoError(t, err)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		check     func(t *testing.T, err error)
	}{
		{
			name: "inserts account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(account.ID.String(), "a@x.io", "$2a$12$hash", false, account.EmailVerifiedAt,
						pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "duplicate email maps to ErrEmailTaken",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(uniqueViolation("accounts_email_key"))
			},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, auth.ErrEmailTaken)
				errutil.AssertErrorCode(t, err, "ACCOUNT_EMAIL_TAKEN")
			},
		},
		{
			name: "other unique violation is a plain failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(uniqueViolation("accounts_pkey"))
			},
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.NotErrorIs(t, err, auth.ErrEmailTaken)
				errutil.AssertErrorCode(t, err, "ACCOUNT_CREATE_FAILED")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			err := postgres.NewAccountRepository(mock).Create(ctx, account)
			tt.check(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	verifiedAt := created.Add(time.Hour)

	t.Run("scans the row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM accounts WHERE email = \$1`).
			WithArgs("a@x.io").
			WillReturnRows(pgxmock.NewRows(accountCols).
				AddRow(id.String(), "a@x.io", "hash", true, &verifiedAt, created, verifiedAt))

		account, err := postgres.NewAccountRepository(mock).GetByEmail(ctx, "a@x.io")
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
		assert.Equal(t, "a@x.io", account.Email)
		assert.True(t, account.EmailVerified)
		require.NotNil(t, account.EmailVerifiedAt)
		assert.Equal(t, verifiedAt, *account.EmailVerifiedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM accounts WHERE email = \$1`).
			WithArgs("nobody@x.io").
			WillReturnError(pgx.ErrNoRows)

		_, err := postgres.NewAccountRepository(mock).GetByEmail(ctx, "nobody@x.io")
		require.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure keeps its code", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM accounts WHERE email = \$1`).
			WithArgs("a@x.io").
			WillReturnError(errors.New("connection reset"))

		_, err := postgres.NewAccountRepository(mock).GetByEmail(ctx, "a@x.io")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ACCOUNT_GET_BY_EMAIL_FAILED")
	})

	t.Run("corrupt id is reported", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM accounts WHERE email = \$1`).
			WithArgs("a@x.io").
			WillReturnRows(pgxmock.NewRows(accountCols).
				AddRow("not-a-ulid", "a@x.io", "hash", false, (*time.Time)(nil), created, created))

		_, err := postgres.NewAccountRepository(mock).GetByEmail(ctx, "a@x.io")
		require.Error(t, err)
		errutil.AssertErrorContext(t, err, "account_id", "not-a-ulid")
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	mock := newMock(t)
	mock.ExpectQuery(`FROM accounts WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnError(pgx.ErrNoRows)

	_, err := postgres.NewAccountRepository(mock).GetByID(ctx, id)
	require.ErrorIs(t, err, auth.ErrNotFound)
	errutil.AssertErrorContext(t, err, "account_id", id.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_MarkVerified(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		result   pgconn.CommandTag
		execErr  error
		wantErr  error
		wantCode string
	}{
		{name: "transitions unverified account", result: pgxmock.NewResult("UPDATE", 1)},
		{name: "already verified or missing", result: pgxmock.NewResult("UPDATE", 0), wantErr: auth.ErrNotFound},
		{name: "update failure", execErr: errors.New("deadlock"), wantCode: "ACCOUNT_MARK_VERIFIED_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			exp := mock.ExpectExec(`(?s)UPDATE accounts\s+SET email_verified = TRUE.*WHERE id = \$1 AND email_verified = FALSE`).
				WithArgs(id.String(), at)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := postgres.NewAccountRepository(mock).MarkVerified(ctx, id, at)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantCode != "":
				errutil.AssertErrorCode(t, err, tt.wantCode)
			default:
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTokenRepository_Create(t *testing.T) {
	ctx := context.Background()
	token, err := auth.NewVerificationToken("abc", ulid.Make(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	t.Run("inserts token", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO verification_tokens`).
			WithArgs(token.ID.String(), "abc", token.AccountID.String(), token.ExpiresAt, false, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, postgres.NewTokenRepository(mock).Create(ctx, token))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate token maps to ErrTokenCollision", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO verification_tokens`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(uniqueViolation("verification_tokens_token_key"))

		err := postgres.NewTokenRepository(mock).Create(ctx, token)
		require.ErrorIs(t, err, auth.ErrTokenCollision)
		errutil.AssertErrorCode(t, err, "TOKEN_COLLISION")
	})
}

func TestTokenRepository_FindActiveByToken(t *testing.T) {
	ctx := context.Background()
	id, accountID := ulid.Make(), ulid.Make()
	expired := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("returns unused row even when expired", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM verification_tokens\s+WHERE token = \$1 AND used = FALSE`).
			WithArgs("abc").
			WillReturnRows(pgxmock.NewRows(tokenCols).
				AddRow(id.String(), "abc", accountID.String(), expired, false, expired.Add(-time.Hour)))

		record, err := postgres.NewTokenRepository(mock).FindActiveByToken(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, id, record.ID)
		assert.Equal(t, accountID, record.AccountID)
		assert.Equal(t, expired, record.ExpiresAt)
		assert.False(t, record.Used)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("used or unknown token is ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM verification_tokens`).
			WithArgs("abc").
			WillReturnError(pgx.ErrNoRows)

		_, err := postgres.NewTokenRepository(mock).FindActiveByToken(ctx, "abc")
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestTokenRepository_MarkUsed(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	for name, tc := range map[string]struct {
		affected int64
		want     bool
	}{
		"first caller wins":         {affected: 1, want: true},
		"later caller sees no rows": {affected: 0, want: false},
	} {
		t.Run(name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectExec(`UPDATE verification_tokens SET used = TRUE\s+WHERE id = \$1 AND used = FALSE`).
				WithArgs(id.String()).
				WillReturnResult(pgxmock.NewResult("UPDATE", tc.affected))

			marked, err := postgres.NewTokenRepository(mock).MarkUsed(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tc.want, marked)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTokenRepository_InvalidateAllUnusedForAccount(t *testing.T) {
	ctx := context.Background()
	accountID := ulid.Make()

	mock := newMock(t)
	mock.ExpectExec(`UPDATE verification_tokens SET used = TRUE\s+WHERE account_id = \$1 AND used = FALSE`).
		WithArgs(accountID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := postgres.NewTokenRepository(mock).InvalidateAllUnusedForAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("deletes by strict expiry", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM verification_tokens WHERE expires_at < \$1`).
			WithArgs(now).
			WillReturnResult(pgxmock.NewResult("DELETE", 5))

		n, err := postgres.NewTokenRepository(mock).DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure is coded", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM verification_tokens`).
			WithArgs(now).
			WillReturnError(errors.New("timeout"))

		_, err := postgres.NewTokenRepository(mock).DeleteExpired(ctx, now)
		errutil.AssertErrorCode(t, err, "TOKEN_DELETE_EXPIRED_FAILED")
	})
}
