// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// SessionTTL is how long a session stays valid after login.
const SessionTTL = 7 * 24 * time.Hour

const redacted = "[REDACTED]"

// SessionToken is an opaque bearer credential.
//
// Every formatting path (fmt verbs, slog) prints a placeholder. The secret is
// only reachable through StorageKey and WireString.
type SessionToken struct {
	secret [SessionTokenLength]byte
}

// NewSessionToken generates a fresh random token.
func NewSessionToken() (SessionToken, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{secret: secret}, nil
}

// ParseSessionToken parses the wire form of a token.
func ParseSessionToken(s string) (SessionToken, error) {
	secret, err := DecodeHex(s)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{secret: secret}, nil
}

// SessionTokenFromStorageKey rebuilds a token from the bytes returned by
// StorageKey.
func SessionTokenFromStorageKey(key []byte) (SessionToken, error) {
	var t SessionToken
	if len(key) != SessionTokenLength {
		return t, oops.Code("TOKEN_INVALID").
			With("length", len(key)).
			Wrap(ErrInvalidToken)
	}
	copy(t.secret[:], key)
	return t, nil
}

// StorageKey returns a copy of the raw token bytes used as the persistence key.
func (t SessionToken) StorageKey() []byte {
	key := make([]byte, SessionTokenLength)
	copy(key, t.secret[:])
	return key
}

// WireString returns the lowercase hex form handed to clients.
func (t SessionToken) WireString() string {
	return EncodeHex(t.secret)
}

// Equal reports whether both tokens hold the same bytes, in constant time.
func (t SessionToken) Equal(other SessionToken) bool {
	return subtle.ConstantTimeCompare(t.secret[:], other.secret[:]) == 1
}

// String implements fmt.Stringer.
func (t SessionToken) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (t SessionToken) GoString() string { return "auth.SessionToken{" + redacted + "}" }

// Format implements fmt.Formatter so that %x, %v, %+v and friends stay redacted.
func (t SessionToken) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = fmt.Fprint(f, t.GoString())
		return
	}
	_, _ = fmt.Fprint(f, redacted)
}

// LogValue implements slog.LogValuer.
func (t SessionToken) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Session binds a token to a user until ValidUntil.
type Session struct {
	UserID     uuid.UUID
	ValidUntil time.Time
}

// IsExpiredAt reports whether the session is no longer valid at now.
// A session expiring exactly at now is expired.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return !s.ValidUntil.After(now)
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// InsertSession stores a session for token.
	InsertSession(ctx context.Context, token SessionToken, userID uuid.UUID, validUntil time.Time) error

	// FetchSession retrieves the session bound to token.
	// Returns ErrNotFound if no such session exists.
	FetchSession(ctx context.Context, token SessionToken) (*Session, error)

	// DeleteSession removes the session bound to token.
	// Deleting an absent session is not an error.
	DeleteSession(ctx context.Context, token SessionToken) error
}
