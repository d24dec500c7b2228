// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

//go:build integration

package credentials_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/credkeep/credkeep/internal/auth"
)

const password = "correct-horse-battery"

// call sends a JSON request to the API and decodes the JSON reply.
func (s *stack) call(method, path string, body any, bearer string) (int, map[string]any) {
	var payload bytes.Buffer
	if body != nil {
		ExpectWithOffset(1, json.NewEncoder(&payload).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequestWithContext(env.ctx, method, s.server.URL+path, &payload)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.server.Client().Do(req)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	out := map[string]any{}
	ExpectWithOffset(1, json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return resp.StatusCode, out
}

func (s *stack) signUp(email string) {
	status, body := s.call(http.MethodPost, "/auth/sign-up", map[string]string{"email": email, "password": password}, "")
	ExpectWithOffset(1, status).To(Equal(http.StatusCreated), "body: %v", body)
}

var _ = Describe("Credential lifecycle", func() {
	var s *stack

	BeforeEach(func() {
		s = newStack(auth.MailInTransaction)
	})

	It("signs up, verifies, signs in and reads the profile", func() {
		email := uniqueEmail("happy")
		s.signUp(email)

		Expect(s.mailer.Sent()).To(HaveLen(1))
		Expect(s.mailer.Sent()[0].Address).To(Equal(email))

		status, body := s.call(http.MethodPost, "/auth/sign-in", map[string]string{"email": email, "password": password}, "")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body["message"]).To(Equal(auth.MsgEmailUnverified))

		status, body = s.call(http.MethodGet, "/auth/verify-email?token="+url.QueryEscape(s.lastToken()), nil, "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["message"]).To(Equal(auth.MsgVerifySuccess))

		status, body = s.call(http.MethodPost, "/auth/sign-in", map[string]string{"email": email, "password": password}, "")
		Expect(status).To(Equal(http.StatusCreated))
		token, ok := body["access_token"].(string)
		Expect(ok).To(BeTrue())
		Expect(body["user"]).To(HaveKeyWithValue("email", email))

		status, body = s.call(http.MethodGet, "/auth/profile", nil, token)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("email", email))
		Expect(body).To(HaveKeyWithValue("emailVerified", true))

		Expect(countRows(`SELECT COUNT(*) FROM accounts WHERE email = $1 AND email_verified_at IS NOT NULL`, email)).To(Equal(1))
		Expect(s.metrics.Operations(auth.OpVerify, auth.OutcomeSuccess)).To(Equal(1))
	})

	It("rejects a duplicate email without sending another link", func() {
		email := uniqueEmail("dup")
		s.signUp(email)

		status, body := s.call(http.MethodPost, "/auth/sign-up", map[string]string{"email": email, "password": password}, "")
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body["message"]).To(Equal(auth.MsgEmailTaken))
		Expect(s.mailer.Sent()).To(HaveLen(1))
		Expect(countRows(`SELECT COUNT(*) FROM accounts WHERE email = $1`, email)).To(Equal(1))
	})

	It("refuses to reuse a consumed token", func() {
		email := uniqueEmail("reuse")
		s.signUp(email)
		token := s.lastToken()

		status, _ := s.call(http.MethodPost, "/auth/verify-email", map[string]string{"token": token}, "")
		Expect(status).To(Equal(http.StatusCreated))

		status, body := s.call(http.MethodPost, "/auth/verify-email", map[string]string{"token": token}, "")
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body["message"]).To(Equal(auth.MsgInvalidLink))
	})

	It("reports an expired link", func() {
		email := uniqueEmail("expired")
		s.signUp(email)
		token := s.lastToken()

		s.clock.Advance(25 * time.Hour)

		status, body := s.call(http.MethodPost, "/auth/verify-email", map[string]string{"token": token}, "")
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body["message"]).To(Equal(auth.MsgExpiredLink))
		Expect(countRows(`SELECT COUNT(*) FROM accounts WHERE email = $1 AND email_verified`, email)).To(Equal(0))
	})

	It("retires old tokens on resend", func() {
		email := uniqueEmail("resend")
		s.signUp(email)
		first := s.lastToken()

		status, body := s.call(http.MethodPost, "/auth/resend-verification-email", map[string]string{"email": email}, "")
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body["message"]).To(Equal(auth.MsgResendSuccess))
		Expect(s.mailer.Sent()).To(HaveLen(2))
		second := s.lastToken()
		Expect(second).NotTo(Equal(first))

		status, body = s.call(http.MethodPost, "/auth/verify-email", map[string]string{"token": first}, "")
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body["message"]).To(Equal(auth.MsgInvalidLink))

		status, _ = s.call(http.MethodPost, "/auth/verify-email", map[string]string{"token": second}, "")
		Expect(status).To(Equal(http.StatusCreated))
	})

	It("answers resend identically for unknown and verified emails", func() {
		email := uniqueEmail("verified")
		s.signUp(email)
		status, _ := s.call(http.MethodPost, "/auth/verify-email", map[string]string{"token": s.lastToken()}, "")
		Expect(status).To(Equal(http.StatusCreated))

		for _, target := range []string{email, uniqueEmail("nobody")} {
			status, body := s.call(http.MethodPost, "/auth/resend-verification-email", map[string]string{"email": target}, "")
			Expect(status).To(Equal(http.StatusCreated))
			Expect(body["message"]).To(Equal(auth.MsgResendSuccess))
		}
		Expect(s.mailer.Sent()).To(HaveLen(1))
	})

	It("lets exactly one concurrent verification win", func() {
		email := uniqueEmail("race")
		s.signUp(email)
		token := s.lastToken()

		const callers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			failures  []error
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := s.svc.VerifyEmail(env.ctx, token)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
					return
				}
				failures = append(failures, err)
			}()
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(failures).To(HaveLen(callers - 1))
		for _, err := range failures {
			Expect(auth.KindOf(err)).To(Equal(auth.KindBadRequest), "error: %v", err)
		}
	})

	It("deletes only expired tokens during cleanup", func() {
		stale := uniqueEmail("stale")
		s.signUp(stale)

		s.clock.Advance(25 * time.Hour)
		fresh := uniqueEmail("fresh")
		s.signUp(fresh)

		deleted, err := s.svc.CleanupExpiredTokens(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeNumerically(">=", 1))
		Expect(s.metrics.Purged()).To(Equal(deleted))

		Expect(countRows(`SELECT COUNT(*) FROM verification_tokens t JOIN accounts a ON a.id = t.account_id WHERE a.email = $1`, stale)).To(Equal(0))
		Expect(countRows(`SELECT COUNT(*) FROM verification_tokens t JOIN accounts a ON a.id = t.account_id WHERE a.email = $1`, fresh)).To(Equal(1))
	})
})

var _ = Describe("Mail policy", func() {
	It("rolls the account back when an in-transaction send fails", func() {
		s := newStack(auth.MailInTransaction)
		s.mailer.FailWith(errors.New("smtp unavailable"))
		email := uniqueEmail("rollback")

		status, body := s.call(http.MethodPost, "/auth/sign-up", map[string]string{"email": email, "password": password}, "")
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body["message"]).To(Equal("Internal server error"))

		Expect(countRows(`SELECT COUNT(*) FROM accounts WHERE email = $1`, email)).To(Equal(0))
		Expect(s.metrics.MailFailures(auth.MailInTransaction)).To(Equal(1))

		s.mailer.FailWith(nil)
		s.signUp(email)
	})

	It("keeps the account when an after-commit send fails", func() {
		s := newStack(auth.MailAfterCommit)
		s.mailer.FailWith(errors.New("smtp unavailable"))
		email := uniqueEmail("aftercommit")

		s.signUp(email)

		Expect(countRows(`SELECT COUNT(*) FROM accounts WHERE email = $1`, email)).To(Equal(1))
		Expect(s.metrics.MailFailures(auth.MailAfterCommit)).To(Equal(1))

		s.mailer.FailWith(nil)
		status, _ := s.call(http.MethodPost, "/auth/resend-verification-email", map[string]string{"email": email}, "")
		Expect(status).To(Equal(http.StatusCreated))
		Expect(s.mailer.Sent()).To(HaveLen(1))
	})
})
