// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	texttemplate "text/template"
	"time"

	"github.com/samber/oops"
)

// VerificationSubject is the subject line of the verification email.
const VerificationSubject = "Verify your email - Credkeep"

var verificationHTML = htmltemplate.Must(htmltemplate.New("verification.html").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"></head>
  <body style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
    <h2>Verify your email</h2>
    <p>Thanks for signing up. Please verify your email by clicking the link below:</p>
    <p><a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background: #2563eb; color: white; text-decoration: none; border-radius: 6px;">Verify email</a></p>
    <p>Or copy this link: <br/><a href="{{.Link}}">{{.Link}}</a></p>
    <p>This link expires in {{.ExpiresIn}}.</p>
    <p>If you didn't create an account, you can ignore this email.</p>
  </body>
</html>
`))

var verificationText = texttemplate.Must(texttemplate.New("verification.txt").Parse(`Verify your email

Thanks for signing up. Open the link below to verify your email:

{{.Link}}

This link expires in {{.ExpiresIn}}.
If you didn't create an account, you can ignore this email.
`))

// VerificationBody is the rendered verification email.
type VerificationBody struct {
	HTML string
	Text string
}

type verificationData struct {
	Link      string
	ExpiresIn string
}

// RenderVerification renders both parts of the verification email.
func RenderVerification(link string, expiresIn time.Duration) (VerificationBody, error) {
	data := verificationData{Link: link, ExpiresIn: HumanDuration(expiresIn)}

	var html, text bytes.Buffer
	if err := verificationHTML.Execute(&html, data); err != nil {
		return VerificationBody{}, oops.Code("MAIL_RENDER_FAILED").With("part", "html").Wrap(err)
	}
	if err := verificationText.Execute(&text, data); err != nil {
		return VerificationBody{}, oops.Code("MAIL_RENDER_FAILED").With("part", "text").Wrap(err)
	}
	return VerificationBody{HTML: html.String(), Text: text.String()}, nil
}

// HumanDuration spells a whole-unit duration the way the email shows it,
// e.g. "24 hours", "7 days", "1 minute". One day reads as "24 hours".
func HumanDuration(d time.Duration) string {
	if d == 24*time.Hour {
		return "24 hours"
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
		{time.Second, "second"},
	}
	for _, u := range units {
		if d >= u.size && d%u.size == 0 {
			n := int64(d / u.size)
			if n == 1 {
				return "1 " + u.name
			}
			return strconv.FormatInt(n, 10) + " " + u.name + "s"
		}
	}
	return d.String()
}
