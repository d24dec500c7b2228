// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

// Package authtest provides in-memory collaborators for credential tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/credkeep/credkeep/internal/auth"
)

// Store operation names accepted by MemoryStore.FailOn.
const (
	OpAccountCreate     = "accounts.create"
	OpAccountGetByEmail = "accounts.get_by_email"
	OpAccountGetByID    = "accounts.get_by_id"
	OpAccountVerify     = "accounts.mark_verified"
	OpTokenCreate       = "tokens.create"
	OpTokenFind         = "tokens.find_active"
	OpTokenMarkUsed     = "tokens.mark_used"
	OpTokenInvalidate   = "tokens.invalidate"
	OpTokenDelete       = "tokens.delete_expired"
	OpCommit            = "tx.commit"
)

type state struct {
	accounts map[ulid.ULID]auth.Account
	byEmail  map[string]ulid.ULID
	tokens   map[ulid.ULID]auth.VerificationToken
	byToken  map[string]ulid.ULID
}

func newState() state {
	return state{
		accounts: make(map[ulid.ULID]auth.Account),
		byEmail:  make(map[string]ulid.ULID),
		tokens:   make(map[ulid.ULID]auth.VerificationToken),
		byToken:  make(map[string]ulid.ULID),
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.byEmail {
		out.byEmail[k] = v
	}
	for k, v := range s.tokens {
		out.tokens[k] = v
	}
	for k, v := range s.byToken {
		out.byToken[k] = v
	}
	return out
}

// MemoryStore is an auth.Store held in maps. Transactions are serialized
// and roll back to a snapshot, so it behaves like a serializable database.
type MemoryStore struct {
	mu    sync.Mutex
	state state
	fail  map[string]error

	commits   int
	rollbacks int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newState(), fail: make(map[string]error)}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// Accounts implements auth.Repositories outside any transaction.
func (m *MemoryStore) Accounts() auth.AccountRepository {
	return &accountRepo{store: m, lock: true}
}

// Tokens implements auth.Repositories outside any transaction.
func (m *MemoryStore) Tokens() auth.VerificationTokenRepository {
	return &tokenRepo{store: m, lock: true}
}

// InTx implements auth.Store.
func (m *MemoryStore) InTx(ctx context.Context, fn auth.TxFunc) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	committed := false
	defer func() {
		if !committed {
			m.state = snapshot
			m.rollbacks++
		}
	}()

	if err := fn(ctx, txRepos{store: m}); err != nil {
		return err
	}
	if err := m.fail[OpCommit]; err != nil {
		return err
	}
	committed = true
	m.commits++
	return nil
}

// Commits returns the number of committed transactions.
func (m *MemoryStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Rollbacks returns the number of rolled back transactions.
func (m *MemoryStore) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

// SeedAccount stores a copy of account directly.
func (m *MemoryStore) SeedAccount(account *auth.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.accounts[account.ID] = *account
	m.state.byEmail[account.Email] = account.ID
}

// SeedToken stores a copy of token directly.
func (m *MemoryStore) SeedToken(token *auth.VerificationToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.tokens[token.ID] = *token
	m.state.byToken[token.Token] = token.ID
}

// Account returns a copy of the account with the given email.
func (m *MemoryStore) Account(email string) (auth.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.state.byEmail[email]
	if !ok {
		return auth.Account{}, false
	}
	return m.state.accounts[id], true
}

// AccountCount returns the number of stored accounts.
func (m *MemoryStore) AccountCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.accounts)
}

// TokensFor returns copies of every token of an account, in no order.
func (m *MemoryStore) TokensFor(accountID ulid.ULID) []auth.VerificationToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auth.VerificationToken
	for _, t := range m.state.tokens {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

// Token returns a copy of the token with the given value.
func (m *MemoryStore) Token(value string) (auth.VerificationToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.state.byToken[value]
	if !ok {
		return auth.VerificationToken{}, false
	}
	return m.state.tokens[id], true
}

type txRepos struct {
	store *MemoryStore
}

func (r txRepos) Accounts() auth.AccountRepository {
	return &accountRepo{store: r.store}
}

func (r txRepos) Tokens() auth.VerificationTokenRepository {
	return &tokenRepo{store: r.store}
}

// guard takes the store lock for pool-bound repos; tx-bound repos already hold it.
func guard(m *MemoryStore, lock bool) func() {
	if !lock {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type accountRepo struct {
	store *MemoryStore
	lock  bool
}

func (r *accountRepo) Create(_ context.Context, account *auth.Account) error {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpAccountCreate]; err != nil {
		return err
	}
	if _, taken := r.store.state.byEmail[account.Email]; taken {
		return auth.ErrEmailTaken
	}
	r.store.state.accounts[account.ID] = *account
	r.store.state.byEmail[account.Email] = account.ID
	return nil
}

func (r *accountRepo) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpAccountGetByEmail]; err != nil {
		return nil, err
	}
	id, ok := r.store.state.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	account := r.store.state.accounts[id]
	return &account, nil
}

func (r *accountRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpAccountGetByID]; err != nil {
		return nil, err
	}
	account, ok := r.store.state.accounts[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &account, nil
}

func (r *accountRepo) MarkVerified(_ context.Context, id ulid.ULID, at time.Time) error {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpAccountVerify]; err != nil {
		return err
	}
	account, ok := r.store.state.accounts[id]
	if !ok || account.EmailVerified {
		return auth.ErrNotFound
	}
	account.EmailVerified = true
	account.EmailVerifiedAt = &at
	account.UpdatedAt = at
	r.store.state.accounts[id] = account
	return nil
}

type tokenRepo struct {
	store *MemoryStore
	lock  bool
}

func (r *tokenRepo) Create(_ context.Context, token *auth.VerificationToken) error {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpTokenCreate]; err != nil {
		return err
	}
	if _, taken := r.store.state.byToken[token.Token]; taken {
		return auth.ErrTokenCollision
	}
	r.store.state.tokens[token.ID] = *token
	r.store.state.byToken[token.Token] = token.ID
	return nil
}

func (r *tokenRepo) FindActiveByToken(_ context.Context, value string) (*auth.VerificationToken, error) {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpTokenFind]; err != nil {
		return nil, err
	}
	id, ok := r.store.state.byToken[value]
	if !ok {
		return nil, auth.ErrNotFound
	}
	token := r.store.state.tokens[id]
	if token.Used {
		return nil, auth.ErrNotFound
	}
	return &token, nil
}

func (r *tokenRepo) MarkUsed(_ context.Context, id ulid.ULID) (bool, error) {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpTokenMarkUsed]; err != nil {
		return false, err
	}
	token, ok := r.store.state.tokens[id]
	if !ok || token.Used {
		return false, nil
	}
	token.Used = true
	r.store.state.tokens[id] = token
	return true, nil
}

func (r *tokenRepo) InvalidateAllUnusedForAccount(_ context.Context, accountID ulid.ULID) (int64, error) {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpTokenInvalidate]; err != nil {
		return 0, err
	}
	var n int64
	for id, token := range r.store.state.tokens {
		if token.AccountID == accountID && !token.Used {
			token.Used = true
			r.store.state.tokens[id] = token
			n++
		}
	}
	return n, nil
}

func (r *tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	defer guard(r.store, r.lock)()
	if err := r.store.fail[OpTokenDelete]; err != nil {
		return 0, err
	}
	var n int64
	for id, token := range r.store.state.tokens {
		if token.ExpiresAt.Before(now) {
			delete(r.store.state.tokens, id)
			delete(r.store.state.byToken, token.Token)
			n++
		}
	}
	return n, nil
}

// Verify interfaces are satisfied.
var (
	_ auth.Store                       = (*MemoryStore)(nil)
	_ auth.AccountRepository           = (*accountRepo)(nil)
	_ auth.VerificationTokenRepository = (*tokenRepo)(nil)
)
