// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/samber/oops"
)

// VerificationTokenBytes is the entropy of a verification token.
// 32 bytes = 64 hex chars, safe as a URL query value without escaping.
const VerificationTokenBytes = 32

// TokenGenerator produces unguessable single-use identifiers.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokenGenerator reads token bytes from a cryptographic source.
type RandomTokenGenerator struct {
	source io.Reader
}

// NewRandomTokenGenerator creates a generator backed by crypto/rand.
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{source: rand.Reader}
}

// NewRandomTokenGeneratorFrom creates a generator reading from source.
func NewRandomTokenGeneratorFrom(source io.Reader) *RandomTokenGenerator {
	return &RandomTokenGenerator{source: source}
}

// Generate returns a new hex-encoded token.
func (g *RandomTokenGenerator) Generate() (string, error) {
	buf := make([]byte, VerificationTokenBytes)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
