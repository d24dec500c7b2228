// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/credkeep/credkeep/pkg/errutil"
)

// TokenCleaner removes expired verification tokens.
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// Sweeper periodically runs token cleanup. Cleanup has no correctness role,
// so a failed sweep is logged and the next tick tries again.
type Sweeper struct {
	cleaner  TokenCleaner
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A nil logger uses slog.Default().
func NewSweeper(cleaner TokenCleaner, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cleaner: cleaner, interval: interval, logger: logger}
}

// Run sweeps once immediately and then every interval until ctx is done.
// A non-positive interval disables the loop.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.InfoContext(ctx, "token sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.cleaner.CleanupExpiredTokens(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		errutil.LogError(s.logger, "token sweep failed", err)
		return
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "expired verification tokens removed", "count", deleted)
	}
}
