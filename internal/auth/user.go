// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package auth

import (
	"context"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MaxUsernameLength is the maximum username length in runes.
const MaxUsernameLength = 64

// User is a registered account. Users are immutable after registration.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ValidateUsername checks a username. Usernames are case-sensitive and may
// contain any printable unicode characters.
func ValidateUsername(username string) error {
	if username == "" {
		return invalidUsername("username cannot be empty")
	}
	if !utf8.ValidString(username) {
		return invalidUsername("username must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(username); n > MaxUsernameLength {
		msg := fmt.Sprintf("username must be at most %d characters", MaxUsernameLength)
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Public(msg).
			Wrapf(ErrInvalidInput, "%s", msg)
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return invalidUsername("username cannot contain control characters")
		}
	}
	return nil
}

func invalidUsername(msg string) error {
	return oops.Code("AUTH_INVALID_USERNAME").Public(msg).Wrapf(ErrInvalidInput, "%s", msg)
}

// UserRepository manages user persistence.
type UserRepository interface {
	// InsertUser stores a new user and returns its ID.
	// Returns ErrAlreadyExists if the username is taken.
	InsertUser(ctx context.Context, username, passwordHash string) (uuid.UUID, error)

	// FetchUserByUsername retrieves a user by exact username.
	// Returns ErrNotFound if no user has that username.
	FetchUserByUsername(ctx context.Context, username string) (*User, error)

	// FetchUserByID retrieves a user by ID.
	// Returns ErrNotFound if the user does not exist.
	FetchUserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// CredentialStore is the persistence the auth service depends on.
type CredentialStore interface {
	UserRepository
	SessionRepository
}
