// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/internal/auth"
	"github.com/checkmate-auth/checkmate/pkg/errutil"
)

// Client-facing messages. Nothing derived from internal errors is ever
// written to a response except oops public messages.
const (
	msgInternal           = "internal server error"
	msgUnauthorized       = "unauthorized"
	msgInvalidCredentials = "invalid username or password"
	msgInvalidRequest     = "invalid request"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best effort, the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="checkmate"`)
	writeError(w, http.StatusUnauthorized, msgUnauthorized)
}

// writeServiceError maps a service error onto a status code. Internal
// failures become an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// An internal error may carry a domain sentinel in its cause chain.
	case errors.Is(err, auth.ErrInternal):
		writeError(w, http.StatusInternalServerError, msgInternal)
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, oops.GetPublic(err, msgInvalidRequest))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrNotFound):
		writeUnauthorized(w)
	default:
		errutil.LogErrorContext(r.Context(), s.logger, "unclassified request error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func usernameTakenMessage(username string) string {
	return fmt.Sprintf("user '%s' already exists", username)
}
