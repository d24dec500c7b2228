// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/credkeep/credkeep/internal/auth"
	"github.com/credkeep/credkeep/pkg/errutil"
)

// msgInternal replaces the detail of every unclassified failure.
const msgInternal = "Internal server error"

// ErrorResponse is the body of every non-2xx response. Message is a string,
// or a list of strings for payload validation failures.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error"`
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, logger *slog.Logger, message any, status int) {
	respondJSON(w, logger, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	}, status)
}

// statusOf maps a service error onto an HTTP status.
func statusOf(err error) int {
	switch auth.KindOf(err) {
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindBadRequest:
		return http.StatusBadRequest
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its classified status. Internal
// failures are logged and answered with a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err,
			"method", r.Method, "path", r.URL.Path)
		respondError(w, logger, msgInternal, status)
		return
	}
	respondError(w, logger, err.Error(), status)
}
