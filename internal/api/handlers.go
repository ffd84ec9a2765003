// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/checkmate-auth/checkmate/internal/auth"
)

type credentialsRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type usernameResponse struct {
	Username string `json:"username"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	User usernameResponse `json:"user"`
}

// decodeCredentials reads a {username, password} body. Both fields must be
// present; emptiness is left to the service.
func decodeCredentials(r *http.Request) (username, password, msg string) {
	var req credentialsRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return "", "", "request body too large"
		case errors.Is(err, io.EOF):
			return "", "", "request body is empty"
		default:
			return "", "", "invalid JSON body"
		}
	}
	if dec.More() {
		return "", "", "request body must contain a single JSON object"
	}
	if req.Username == nil {
		return "", "", "missing field: username"
	}
	if req.Password == nil {
		return "", "", "missing field: password"
	}
	return *req.Username, *req.Password, ""
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "pong")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, msg := decodeCredentials(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := s.service.Register(r.Context(), username, password); err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, usernameTakenMessage(username))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usernameResponse{Username: username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, msg := decodeCredentials(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	token, err := s.service.Login(r.Context(), username, password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{Token: token.WireString()})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	username, err := s.service.Profile(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{User: usernameResponse{Username: username}})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// authMiddleware has already validated the header.
	token, err := auth.ExtractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := s.service.Revoke(r.Context(), token); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
