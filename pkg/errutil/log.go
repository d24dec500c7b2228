// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

// Package errutil holds oops-aware helpers for logging and tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Attrs flattens err into slog key/value pairs. oops errors contribute their
// code and context; anything else contributes only its message.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs err at error level with its structured context.
// Extra key/value pairs are appended after the error attributes.
func LogError(logger *slog.Logger, msg string, err error, extra ...any) {
	LogErrorContext(context.Background(), logger, msg, err, extra...)
}

// LogErrorContext is LogError with a context, so trace ids reach the handler.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	logger.ErrorContext(ctx, msg, append(Attrs(err), extra...)...)
}
