// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/credkeep/credkeep/pkg/errutil"
)

// User-visible messages.
const (
	MsgSignUpSuccess   = "Registration successful. Please check your email to verify your account."
	MsgResendSuccess   = "If an account with that email exists and is not yet verified, a new verification email has been sent."
	MsgVerifySuccess   = "Email verified successfully. You can now sign in."
	MsgTokenRequired   = "Verification token is required."
	MsgInvalidLink     = "Invalid or expired verification link."
	MsgExpiredLink     = "Verification link has expired."
	MsgEmailTaken      = "User with this email already exists"
	MsgEmailUnverified = "Please verify your email before signing in. Check your inbox for the verification link."
	MsgBadCredentials  = "invalid email or password"
)

// maxTokenAttempts bounds how often a colliding token is regenerated.
const maxTokenAttempts = 3

// timingPassword feeds the dummy hash used when an email is unknown.
const timingPassword = "credkeep-timing-equaliser"

// Message is the generic response body of sign-up, verify and resend.
type Message struct {
	Message string `json:"message"`
}

// SignInResult is returned on successful sign-in.
type SignInResult struct {
	AccessToken string         `json:"access_token"`
	User        AccountSummary `json:"user"`
}

// Config holds the policy knobs of a CredentialService.
type Config struct {
	// VerificationTTL is added to the creation time to get expires_at.
	// Zero means DefaultVerificationTTL.
	VerificationTTL time.Duration
	// FrontendURL is the base of the emailed verification link.
	FrontendURL string
	// MailPolicy places the verification send inside or after the transaction.
	MailPolicy MailPolicy
}

// Deps are the collaborators of a CredentialService. Metrics, Logger and
// Clock are optional.
type Deps struct {
	Store   Store
	Hasher  PasswordHasher
	Tokens  TokenGenerator
	Mailer  Mailer
	Signer  SessionSigner
	Metrics MetricsRecorder
	Logger  *slog.Logger
	Clock   func() time.Time
}

// CredentialService orchestrates sign-up, sign-in, verification, resend and
// cleanup. It owns the transaction boundaries and the expiry policy.
type CredentialService struct {
	store   Store
	hasher  PasswordHasher
	tokens  TokenGenerator
	mailer  Mailer
	signer  SessionSigner
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
	cfg     Config

	dummyHashOnce sync.Once
	dummyHash     string
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(deps Deps, cfg Config) (*CredentialService, error) {
	if deps.Store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("store is required")
	}
	if deps.Hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	}
	if deps.Tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("token generator is required")
	}
	if deps.Mailer == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("mailer is required")
	}
	if deps.Signer == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("session signer is required")
	}

	if cfg.VerificationTTL < 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("verification_ttl", cfg.VerificationTTL).
			Errorf("verification ttl cannot be negative")
	}
	if cfg.VerificationTTL == 0 {
		cfg.VerificationTTL = DefaultVerificationTTL
	}
	if cfg.MailPolicy == "" {
		cfg.MailPolicy = MailInTransaction
	}
	if _, err := ParseMailPolicy(string(cfg.MailPolicy)); err != nil {
		return nil, err
	}

	svc := &CredentialService{
		store:   deps.Store,
		hasher:  deps.Hasher,
		tokens:  deps.Tokens,
		mailer:  deps.Mailer,
		signer:  deps.Signer,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     deps.Clock,
		cfg:     cfg,
	}
	if svc.metrics == nil {
		svc.metrics = noopMetrics{}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// SignUp creates an account and its first verification token atomically and
// sends the verification email according to the mail policy.
func (s *CredentialService) SignUp(ctx context.Context, email, password string) (_ *Message, err error) {
	defer func() { s.metrics.RecordOperation(OpSignUp, outcomeOf(err)) }()

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrEmptyPassword) || errors.Is(err, ErrPasswordTooLong) {
			return nil, badRequestError("password is not acceptable")
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "hash password").Wrap(err)
	}

	var (
		account *Account
		link    string
	)
	err = s.withFreshToken(ctx, func(token string) error {
		link = VerificationLink(s.cfg.FrontendURL, token)
		expiresAt := s.now().Add(s.cfg.VerificationTTL)

		return s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
			created, err := NewAccount(email, passwordHash)
			if err != nil {
				return err
			}
			if err := repos.Accounts().Create(ctx, created); err != nil {
				return err
			}

			record, err := NewVerificationToken(token, created.ID, expiresAt)
			if err != nil {
				return err
			}
			if err := repos.Tokens().Create(ctx, record); err != nil {
				return err
			}

			if s.cfg.MailPolicy == MailInTransaction {
				if err := s.mailer.SendVerificationEmail(ctx, created.Email, link); err != nil {
					return fmt.Errorf("%w: %w", ErrMailDelivery, err)
				}
			}
			account = created
			return nil
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return nil, conflictError(MsgEmailTaken)
		case errors.Is(err, ErrMailDelivery):
			s.metrics.RecordMailFailure(s.cfg.MailPolicy)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "create account").Wrap(err)
	}

	s.logger.InfoContext(ctx, "account created", "account_id", account.ID.String())

	if s.cfg.MailPolicy == MailAfterCommit {
		s.sendAfterCommit(ctx, account, link)
	}
	return &Message{Message: MsgSignUpSuccess}, nil
}

// ValidateUser checks a password against the stored hash. Unknown emails and
// wrong passwords produce the same Unauthorized error; only the log tells them apart.
func (s *CredentialService) ValidateUser(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_SIGNIN_FAILED").With("operation", "get account by email").Wrap(err)
		}
		// Keep the response time in line with a real comparison.
		_, _ = s.hasher.Verify(password, s.timingHash()) //nolint:errcheck // result is discarded
		s.logger.DebugContext(ctx, "sign-in rejected", "reason", "unknown email")
		return nil, unauthorizedError(MsgBadCredentials)
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "sign-in rejected", "reason", "password mismatch", "account_id", account.ID.String())
		return nil, unauthorizedError(MsgBadCredentials)
	}
	return account, nil
}

// SignIn issues a session token for an account whose password was already checked.
func (s *CredentialService) SignIn(ctx context.Context, account *Account) (_ *SignInResult, err error) {
	defer func() { s.metrics.RecordOperation(OpSignIn, outcomeOf(err)) }()

	if account == nil {
		return nil, unauthorizedError(MsgBadCredentials)
	}
	if !account.EmailVerified {
		return nil, unauthorizedError(MsgEmailUnverified)
	}

	token, err := s.signer.Sign(SessionClaims{Subject: account.ID.String(), Email: account.Email})
	if err != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "sign session token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return &SignInResult{AccessToken: token, User: account.Summary()}, nil
}

// Authenticate runs ValidateUser then SignIn.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*SignInResult, error) {
	account, err := s.ValidateUser(ctx, email, password)
	if err != nil {
		s.metrics.RecordOperation(OpSignIn, outcomeOf(err))
		return nil, err
	}
	return s.SignIn(ctx, account)
}

// VerifyEmail consumes a verification token and marks its account verified.
// The conditional token update decides which of several concurrent callers wins.
func (s *CredentialService) VerifyEmail(ctx context.Context, token string) (_ *Message, err error) {
	defer func() { s.metrics.RecordOperation(OpVerify, outcomeOf(err)) }()

	if strings.TrimSpace(token) == "" {
		return nil, badRequestError(MsgTokenRequired)
	}

	var accountID ulid.ULID
	err = s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		record, err := repos.Tokens().FindActiveByToken(ctx, token)
		if errors.Is(err, ErrNotFound) {
			return badRequestError(MsgInvalidLink)
		}
		if err != nil {
			return oops.With("operation", "find verification token").Wrap(err)
		}

		now := s.now()
		if record.IsExpiredAt(now) {
			return badRequestError(MsgExpiredLink)
		}

		marked, err := repos.Tokens().MarkUsed(ctx, record.ID)
		if err != nil {
			return oops.With("operation", "mark token used").With("token_id", record.ID.String()).Wrap(err)
		}
		if !marked {
			return badRequestError(MsgInvalidLink)
		}

		if err := repos.Accounts().MarkVerified(ctx, record.AccountID, now); err != nil {
			if errors.Is(err, ErrNotFound) {
				return badRequestError(MsgInvalidLink)
			}
			return oops.With("operation", "mark account verified").With("account_id", record.AccountID.String()).Wrap(err)
		}
		accountID = record.AccountID
		return nil
	})
	if err != nil {
		if KindOf(err) == KindBadRequest {
			return nil, err
		}
		return nil, oops.Code("AUTH_VERIFY_FAILED").Wrap(err)
	}

	s.logger.InfoContext(ctx, "email verified", "account_id", accountID.String())
	return &Message{Message: MsgVerifySuccess}, nil
}

// GetProfile returns the profile of the session subject.
func (s *CredentialService) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	id, err := ulid.Parse(accountID)
	if err != nil {
		return nil, unauthorizedError("Unauthorized")
	}

	account, err := s.store.Accounts().GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, unauthorizedError("Unauthorized")
	}
	if err != nil {
		return nil, oops.Code("AUTH_PROFILE_FAILED").With("account_id", accountID).Wrap(err)
	}
	return &Profile{
		ID:            account.ID.String(),
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
	}, nil
}

// ResendVerificationEmail retires unused tokens and issues a new one for an
// unverified account. The response is identical whether or not the account
// exists or is already verified.
func (s *CredentialService) ResendVerificationEmail(ctx context.Context, email string) (_ *Message, err error) {
	defer func() { s.metrics.RecordOperation(OpResend, outcomeOf(err)) }()

	generic := &Message{Message: MsgResendSuccess}

	account, err := s.store.Accounts().GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return generic, nil
	}
	if err != nil {
		return nil, oops.Code("AUTH_RESEND_FAILED").With("operation", "get account by email").Wrap(err)
	}
	if account.EmailVerified {
		return generic, nil
	}

	var link string
	err = s.withFreshToken(ctx, func(token string) error {
		link = VerificationLink(s.cfg.FrontendURL, token)
		expiresAt := s.now().Add(s.cfg.VerificationTTL)

		return s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
			retired, err := repos.Tokens().InvalidateAllUnusedForAccount(ctx, account.ID)
			if err != nil {
				return err
			}

			record, err := NewVerificationToken(token, account.ID, expiresAt)
			if err != nil {
				return err
			}
			if err := repos.Tokens().Create(ctx, record); err != nil {
				return err
			}

			if s.cfg.MailPolicy == MailInTransaction {
				if err := s.mailer.SendVerificationEmail(ctx, account.Email, link); err != nil {
					return fmt.Errorf("%w: %w", ErrMailDelivery, err)
				}
			}
			s.logger.DebugContext(ctx, "verification tokens retired",
				"account_id", account.ID.String(),
				"count", retired)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrMailDelivery) {
			s.metrics.RecordMailFailure(s.cfg.MailPolicy)
		}
		return nil, oops.Code("AUTH_RESEND_FAILED").
			With("operation", "reissue verification token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	if s.cfg.MailPolicy == MailAfterCommit {
		s.sendAfterCommit(ctx, account, link)
	}
	return generic, nil
}

// CleanupExpiredTokens deletes every token whose expiry has passed.
func (s *CredentialService) CleanupExpiredTokens(ctx context.Context) (_ int64, err error) {
	defer func() { s.metrics.RecordOperation(OpCleanup, outcomeOf(err)) }()

	deleted, err := s.store.Tokens().DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("AUTH_CLEANUP_FAILED").Wrap(err)
	}
	s.metrics.RecordTokensPurged(deleted)
	return deleted, nil
}

// withFreshToken calls fn with a newly generated token, regenerating it when
// the store reports a collision.
func (s *CredentialService) withFreshToken(ctx context.Context, fn func(token string) error) error {
	backoff := retry.WithMaxRetries(maxTokenAttempts-1, retry.NewConstant(time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error { //nolint:wrapcheck // errors from fn are already wrapped
		token, err := s.tokens.Generate()
		if err != nil {
			return oops.With("operation", "generate verification token").Wrap(err)
		}
		if err := fn(token); err != nil {
			if errors.Is(err, ErrTokenCollision) {
				s.logger.WarnContext(ctx, "verification token collision, regenerating")
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}

// sendAfterCommit delivers the email outside the transaction. Failures are
// recorded but never surface to the caller.
func (s *CredentialService) sendAfterCommit(ctx context.Context, account *Account, link string) {
	if err := s.mailer.SendVerificationEmail(ctx, account.Email, link); err != nil {
		s.metrics.RecordMailFailure(s.cfg.MailPolicy)
		errutil.LogError(s.logger, "verification email not delivered",
			oops.With("account_id", account.ID.String()).Wrap(err))
	}
}

func (s *CredentialService) timingHash() string {
	s.dummyHashOnce.Do(func() {
		hash, err := s.hasher.Hash(timingPassword)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
