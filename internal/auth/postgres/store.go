// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

// Package postgres implements the credential store on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/credkeep/credkeep/internal/auth"
)

// querier abstracts query execution for both a pool and a pgx.Tx, so the
// same repository code runs inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements auth.Store over a connection pool.
type Store struct {
	pool Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool Pool) *Store {
	return &Store{pool: pool}
}

// Accounts returns a pool-bound AccountRepository.
func (s *Store) Accounts() auth.AccountRepository {
	return &AccountRepository{db: s.pool}
}

// Tokens returns a pool-bound VerificationTokenRepository.
func (s *Store) Tokens() auth.VerificationTokenRepository {
	return &TokenRepository{db: s.pool}
}

// InTx begins a transaction and hands fn repositories bound to it.
// A nil return commits. An error or panic rolls back; a panic is re-raised.
func (s *Store) InTx(ctx context.Context, fn auth.TxFunc) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// The caller's ctx may already be cancelled; rollback must still run.
		_ = tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // the fn error takes precedence
	}()

	if err := fn(ctx, txRepositories{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	committed = true
	return nil
}

type txRepositories struct {
	tx pgx.Tx
}

func (r txRepositories) Accounts() auth.AccountRepository {
	return &AccountRepository{db: r.tx}
}

func (r txRepositories) Tokens() auth.VerificationTokenRepository {
	return &TokenRepository{db: r.tx}
}

// isUniqueViolation reports whether err is a unique_violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}

// Verify interfaces are satisfied.
var (
	_ auth.Store        = (*Store)(nil)
	_ auth.Repositories = txRepositories{}
)
