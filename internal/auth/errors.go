// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by AccountRepository.Create when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrTokenCollision is returned by VerificationTokenRepository.Create when the
// token string already exists.
var ErrTokenCollision = errors.New("verification token collision")

// ErrMailDelivery marks a failed verification email send.
var ErrMailDelivery = errors.New("verification email delivery failed")

// Error codes for the caller-facing taxonomy.
const (
	CodeConflict     = "AUTH_CONFLICT"
	CodeBadRequest   = "AUTH_BAD_REQUEST"
	CodeUnauthorized = "AUTH_UNAUTHORIZED"
)

// Kind classifies an error for adapters that translate it into a response.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindConflict
	KindBadRequest
	KindUnauthorized
)

// String returns a lower-case name for the kind.
func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// KindOf reports the Kind of err. Errors without one of the taxonomy codes are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	switch oopsErr.Code() {
	case CodeConflict:
		return KindConflict
	case CodeBadRequest:
		return KindBadRequest
	case CodeUnauthorized:
		return KindUnauthorized
	default:
		return KindInternal
	}
}

func conflictError(msg string) error {
	return oops.Code(CodeConflict).Errorf("%s", msg)
}

func badRequestError(msg string) error {
	return oops.Code(CodeBadRequest).Errorf("%s", msg)
}

func unauthorizedError(msg string) error {
	return oops.Code(CodeUnauthorized).Errorf("%s", msg)
}
