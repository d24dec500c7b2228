// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package auth

import (
	"context"
	"net/url"

	"github.com/samber/oops"
)

// Mailer delivers verification emails.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, address, link string) error
}

// MailPolicy decides whether the verification send is part of the transaction.
type MailPolicy string

const (
	// MailInTransaction sends before commit; a send failure rolls back the
	// account and token, so no unreachable account is ever created.
	MailInTransaction MailPolicy = "in_transaction"

	// MailAfterCommit sends once the rows are committed; a send failure is
	// logged and the caller still succeeds. The user recovers through resend.
	MailAfterCommit MailPolicy = "after_commit"
)

// ParseMailPolicy validates a configured policy name.
func ParseMailPolicy(value string) (MailPolicy, error) {
	switch MailPolicy(value) {
	case MailInTransaction, MailAfterCommit:
		return MailPolicy(value), nil
	case "":
		return MailInTransaction, nil
	default:
		return "", oops.Code("AUTH_INVALID_MAIL_POLICY").
			With("policy", value).
			Errorf("mail policy must be %q or %q", MailInTransaction, MailAfterCommit)
	}
}

// VerificationLink builds {baseURL}/verify-email?token={token}.
func VerificationLink(baseURL, token string) string {
	return baseURL + "/verify-email?token=" + url.QueryEscape(token)
}
