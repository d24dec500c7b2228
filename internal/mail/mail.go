// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

// Package mail delivers verification emails over SMTP or to a console.
package mail

import (
	"io"
	"log/slog"

	"github.com/credkeep/credkeep/internal/auth"
)

// New returns an SMTPMailer when cfg.Host is set and a ConsoleMailer writing
// to console otherwise.
func New(cfg SMTPConfig, console io.Writer, logger *slog.Logger) (auth.Mailer, error) {
	if cfg.Host == "" {
		return NewConsoleMailer(console, cfg.ExpiresIn, logger), nil
	}
	m, err := NewSMTPMailer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return m, nil
}
