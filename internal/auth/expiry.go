// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// DefaultVerificationTTL applies when an expiry string cannot be parsed.
const DefaultVerificationTTL = 24 * time.Hour

var expiryPattern = regexp.MustCompile(`^(\d+)([dhms])$`)

var expiryUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"h": time.Hour,
	"m": time.Minute,
	"s": time.Second,
}

// ParseExpiry converts "<integer><unit>" (unit one of d, h, m, s) into a duration.
// Anything else, including values that overflow, yields DefaultVerificationTTL.
// It never fails: a malformed setting must not block startup.
func ParseExpiry(value string) time.Duration {
	match := expiryPattern.FindStringSubmatch(value)
	if match == nil {
		return DefaultVerificationTTL
	}

	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return DefaultVerificationTTL
	}

	unit := expiryUnits[match[2]]
	if n > math.MaxInt64/int64(unit) {
		return DefaultVerificationTTL
	}
	return time.Duration(n) * unit
}
