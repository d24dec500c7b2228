// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import "time"

// SetSignerClock replaces the clock of a JWTSigner.
func SetSignerClock(s *JWTSigner, now func() time.Time) {
	s.now = now
}
