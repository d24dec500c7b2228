// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package mail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/credkeep/credkeep/internal/auth"
)

// ConsoleMailer writes verification emails to a writer instead of sending them.
// It stands in for SMTP in development; the link goes to the writer, never to the log.
type ConsoleMailer struct {
	mu        sync.Mutex
	w         io.Writer
	expiresIn time.Duration
	logger    *slog.Logger
}

// NewConsoleMailer creates a ConsoleMailer writing to w.
func NewConsoleMailer(w io.Writer, expiresIn time.Duration, logger *slog.Logger) *ConsoleMailer {
	if logger == nil {
		logger = slog.Default()
	}
	if expiresIn <= 0 {
		expiresIn = auth.DefaultVerificationTTL
	}
	return &ConsoleMailer{w: w, expiresIn: expiresIn, logger: logger}
}

// SendVerificationEmail implements auth.Mailer.
func (m *ConsoleMailer) SendVerificationEmail(ctx context.Context, address, link string) error {
	body, err := RenderVerification(link, m.expiresIn)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, err = fmt.Fprintf(m.w, "To: %s\nSubject: %s\n\n%s\n", address, VerificationSubject, body.Text)
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("mailer", "console").Wrap(err)
	}
	m.logger.WarnContext(ctx, "smtp not configured, verification email written to console")
	return nil
}

var _ auth.Mailer = (*ConsoleMailer)(nil)
