// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/textproto"
	"regexp"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"gopkg.in/gomail.v2"

	"github.com/credkeep/credkeep/internal/auth"
)

// DefaultFrom is the sender used when no from address is configured.
const DefaultFrom = "noreply@credkeep.local"

// implicitTLSPort is the SMTPS port; every other port upgrades with STARTTLS.
const implicitTLSPort = 465

// SMTPConfig configures an SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// ExpiresIn is shown in the email body.
	ExpiresIn time.Duration
	// Attempts bounds delivery tries for transient failures. Zero means 3.
	Attempts uint64
	// Backoff is the first wait between tries. Zero means one second.
	Backoff time.Duration
}

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends verification emails through an SMTP relay.
type SMTPMailer struct {
	sender    sender
	from      string
	expiresIn time.Duration
	attempts  uint64
	backoff   time.Duration
	logger    *slog.Logger
}

// NewSMTPMailer creates an SMTPMailer. TLS 1.2 is the minimum accepted
// version and the server certificate is always verified.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port is out of range")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.Port == implicitTLSPort
	dialer.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	return newSMTPMailer(dialer, cfg, logger), nil
}

func newSMTPMailer(s sender, cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &SMTPMailer{
		sender:    s,
		from:      cfg.From,
		expiresIn: cfg.ExpiresIn,
		attempts:  cfg.Attempts,
		backoff:   cfg.Backoff,
		logger:    logger,
	}
	if m.from == "" {
		m.from = DefaultFrom
	}
	if m.expiresIn <= 0 {
		m.expiresIn = auth.DefaultVerificationTTL
	}
	if m.attempts == 0 {
		m.attempts = 3
	}
	if m.backoff <= 0 {
		m.backoff = time.Second
	}
	return m
}

// SendVerificationEmail implements auth.Mailer.
func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, address, link string) error {
	body, err := RenderVerification(link, m.expiresIn)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", address)
	msg.SetHeader("Subject", VerificationSubject)
	msg.SetBody("text/plain", body.Text)
	msg.AddAlternative("text/html", body.HTML)

	backoff := retry.WithMaxRetries(m.attempts-1, retry.NewExponential(m.backoff))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := m.sender.DialAndSend(msg); err != nil {
			if isTransient(err) {
				m.logger.WarnContext(ctx, "smtp delivery failed, retrying", "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}

// flattenedReply finds an SMTP reply code in an error that gomail has
// formatted with %v, such as "gomail: could not send email 1: 421 busy".
var flattenedReply = regexp.MustCompile(`(?:^|: )([2-5])\d\d[ -]`)

// isTransient reports whether another attempt may succeed: network errors and
// SMTP 4xx replies qualify, 5xx replies and everything else do not.
func isTransient(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code >= 400 && proto.Code < 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if match := flattenedReply.FindStringSubmatch(err.Error()); match != nil {
		return match[1] == "4"
	}
	return false
}

var _ auth.Mailer = (*SMTPMailer)(nil)
