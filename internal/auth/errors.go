// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Store-level sentinels.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert collides with a unique key.
	ErrAlreadyExists = errors.New("already exists")
)

// Service-level sentinels. Errors returned by Service and Authenticator wrap
// exactly one of these, so callers classify with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInternal           = errors.New("internal error")
)

// Codec and hasher sentinels.
var (
	ErrInvalidToken     = errors.New("invalid session token")
	ErrMalformedHash    = errors.New("malformed password hash")
	ErrPasswordMismatch = errors.New("password mismatch")
	ErrEmptyPassword    = errors.New("password cannot be empty")
)

// internalError wraps cause so that it matches both ErrInternal and cause.
// The cause stays available to server-side logging; the HTTP layer only
// ever sees the ErrInternal classification.
func internalError(operation string, cause error) error {
	return oops.Code("AUTH_INTERNAL").
		With("operation", operation).
		Wrap(errors.Join(ErrInternal, cause))
}
