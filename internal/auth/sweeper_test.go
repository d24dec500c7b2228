// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/credkeep/credkeep/internal/auth"
)

type countingCleaner struct {
	mu    sync.Mutex
	calls int
	err   error
	swept chan struct{}
}

func newCountingCleaner(err error) *countingCleaner {
	return &countingCleaner{err: err, swept: make(chan struct{}, 16)}
}

func (c *countingCleaner) CleanupExpiredTokens(context.Context) (int64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	select {
	case c.swept <- struct{}{}:
	default:
	}
	if c.err != nil {
		return 0, c.err
	}
	return 3, nil
}

func (c *countingCleaner) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitSweeps(t *testing.T, c *countingCleaner, n int) {
	t.Helper()
	for range n {
		select {
		case <-c.swept:
		case <-time.After(2 * time.Second):
			t.Fatalf("sweeper did not run %d times", n)
		}
	}
}

func TestSweeper_RunsImmediatelyAndOnEveryTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	cleaner := newCountingCleaner(nil)
	var logs syncBuffer
	sweeper := auth.NewSweeper(cleaner, 10*time.Millisecond, slog.New(slog.NewJSONHandler(&logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	waitSweeps(t, cleaner, 3)
	cancel()
	<-done

	assert.GreaterOrEqual(t, cleaner.Calls(), 3)
	assert.Contains(t, logs.String(), "expired verification tokens removed")
}

func TestSweeper_LogsFailuresAndKeepsGoing(t *testing.T) {
	defer goleak.VerifyNone(t)

	cleaner := newCountingCleaner(errors.New("database is down"))
	var logs syncBuffer
	sweeper := auth.NewSweeper(cleaner, 10*time.Millisecond, slog.New(slog.NewJSONHandler(&logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	waitSweeps(t, cleaner, 2)
	cancel()
	<-done

	assert.Contains(t, logs.String(), "token sweep failed")
	assert.Contains(t, logs.String(), "database is down")
}

func TestSweeper_NonPositiveIntervalDisables(t *testing.T) {
	cleaner := newCountingCleaner(nil)
	sweeper := auth.NewSweeper(cleaner, 0, nil)

	sweeper.Run(context.Background())
	require.Zero(t, cleaner.Calls())
}
