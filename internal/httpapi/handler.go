// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

// Package httpapi exposes the credential service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/credkeep/credkeep/internal/auth"
)

// CredentialAPI is the part of auth.CredentialService the handlers call.
type CredentialAPI interface {
	SignUp(ctx context.Context, email, password string) (*auth.Message, error)
	Authenticate(ctx context.Context, email, password string) (*auth.SignInResult, error)
	VerifyEmail(ctx context.Context, token string) (*auth.Message, error)
	ResendVerificationEmail(ctx context.Context, email string) (*auth.Message, error)
	GetProfile(ctx context.Context, accountID string) (*auth.Profile, error)
}

// Handler serves the /auth routes.
type Handler struct {
	svc      CredentialAPI
	verifier auth.SessionVerifier
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default().
func NewHandler(svc CredentialAPI, verifier auth.SessionVerifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:      svc,
		verifier: verifier,
		validate: newValidator(),
		logger:   logger,
	}
}

// Routes builds the router with request-id, real-ip, logging and panic
// recovery middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-up", h.SignUp)
		r.Post("/sign-in", h.SignIn)
		r.Get("/verify-email", h.VerifyEmailQuery)
		r.Post("/verify-email", h.VerifyEmailBody)
		r.Post("/resend-verification-email", h.ResendVerification)

		r.Group(func(r chi.Router) {
			r.Use(requireSession(h.verifier, h.logger))
			r.Get("/profile", h.Profile)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, h.logger, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, h.logger, "Method Not Allowed", http.StatusMethodNotAllowed)
	})
	return r
}

// SignUp handles POST /auth/sign-up.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.bind(w, r, &req) {
		return
	}

	msg, err := h.svc.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, msg, http.StatusCreated)
}

// SignIn handles POST /auth/sign-in. Missing credentials are rejected like
// wrong ones.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, h.logger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, result, http.StatusCreated)
}

// VerifyEmailQuery handles GET /auth/verify-email?token=.
func (h *Handler) VerifyEmailQuery(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, r.URL.Query().Get("token"), http.StatusOK)
}

// VerifyEmailBody handles POST /auth/verify-email.
func (h *Handler) VerifyEmailBody(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}
	h.verify(w, r, req.Token, http.StatusCreated)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request, token string, status int) {
	msg, err := h.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, msg, status)
}

// ResendVerification handles POST /auth/resend-verification-email.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !h.bind(w, r, &req) {
		return
	}

	msg, err := h.svc.ResendVerificationEmail(r.Context(), req.Email)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, msg, http.StatusCreated)
}

// Profile handles GET /auth/profile for the session subject.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := SessionFromContext(r.Context())
	if !ok {
		respondError(w, h.logger, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.svc.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, profile, http.StatusOK)
}

// bind decodes and validates dst, answering 400 itself on failure.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		respondError(w, h.logger, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, h.logger, validationMessages(err), http.StatusBadRequest)
		return false
	}
	return true
}
