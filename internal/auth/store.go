// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import "context"

// Repositories is the narrow persistence view used by the service.
// It behaves identically over a connection pool and over a transaction.
type Repositories interface {
	Accounts() AccountRepository
	Tokens() VerificationTokenRepository
}

// TxFunc performs writes against a transaction-scoped Repositories.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store is Repositories plus a transaction boundary.
type Store interface {
	Repositories

	// InTx runs fn inside a single transaction. A nil return commits;
	// an error or panic rolls back. The error from fn is returned unchanged.
	InTx(ctx context.Context, fn TxFunc) error
}
