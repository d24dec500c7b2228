// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// SessionClaims is the fixed payload of a session token.
type SessionClaims struct {
	Subject string
	Email   string
}

// SessionSigner issues opaque bearer tokens for a signed-in account.
type SessionSigner interface {
	Sign(claims SessionClaims) (string, error)
}

// SessionVerifier validates bearer tokens issued by a SessionSigner.
type SessionVerifier interface {
	Verify(token string) (SessionClaims, error)
}

type jwtClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTSigner signs and verifies HS256 session tokens.
type JWTSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTSigner creates a JWTSigner. ttl bounds the lifetime of issued tokens.
func NewJWTSigner(secret string, ttl time.Duration) (*JWTSigner, error) {
	if secret == "" {
		return nil, oops.Code("JWT_SECRET_EMPTY").Errorf("jwt secret cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("JWT_TTL_INVALID").With("ttl", ttl).Errorf("jwt ttl must be positive")
	}
	return &JWTSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign issues a token carrying {sub, email}.
func (s *JWTSigner) Sign(claims SessionClaims) (string, error) {
	if claims.Subject == "" {
		return "", oops.Code("JWT_SUBJECT_EMPTY").Errorf("session subject cannot be empty")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email: claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", oops.Code("JWT_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify parses a token and returns its claims.
func (s *JWTSigner) Verify(token string) (SessionClaims, error) {
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return SessionClaims{}, oops.Code(CodeUnauthorized).Wrapf(err, "invalid session token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return SessionClaims{}, unauthorizedError("invalid session token")
	}
	return SessionClaims{Subject: claims.Subject, Email: claims.Email}, nil
}

var (
	_ SessionSigner   = (*JWTSigner)(nil)
	_ SessionVerifier = (*JWTSigner)(nil)
)
