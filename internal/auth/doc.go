// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

// Package auth implements the credential and email-verification lifecycle.
//
// # Domain Types
//
// Domain types should be created through their constructors:
//   - NewAccount - creates an unverified Account with a fresh ULID
//   - NewVerificationToken - creates an unused VerificationToken bound to an account
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Persistence
//
// Store exposes the narrow Repositories view over a top-level connection and,
// through InTx, over an active transaction. Callers never see Begin/Commit.
//
// # Services
//
//   - CredentialService - sign-up, sign-in, email verification, resend, cleanup
//   - Sweeper - periodic removal of expired verification tokens
package auth
