// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultResolveTimeout bounds a single token resolution.
const DefaultResolveTimeout = 2 * time.Second

// ExtractBearerToken parses an Authorization header value of the form
// "Bearer <token>". The scheme is matched case-insensitively.
func ExtractBearerToken(header string) (SessionToken, error) {
	if header == "" {
		return SessionToken{}, unauthorized("missing authorization header")
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return SessionToken{}, unauthorized("unsupported authorization scheme")
	}
	token, err := ParseSessionToken(value)
	if err != nil {
		return SessionToken{}, unauthorized("malformed token")
	}
	return token, nil
}

// TokenResolver maps a token to the user it authenticates.
type TokenResolver interface {
	Resolve(ctx context.Context, token SessionToken) (uuid.UUID, error)
}

// Authenticator turns Authorization header values into user IDs.
type Authenticator struct {
	resolver TokenResolver
	timeout  time.Duration
}

// NewAuthenticator creates an Authenticator. A non-positive timeout selects
// DefaultResolveTimeout.
func NewAuthenticator(resolver TokenResolver, timeout time.Duration) (*Authenticator, error) {
	if resolver == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token resolver is required")
	}
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Authenticator{resolver: resolver, timeout: timeout}, nil
}

// Authenticate resolves the bearer token in header. Errors wrap either
// ErrUnauthorized or ErrInternal. Resolution is a single bounded call.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (uuid.UUID, error) {
	token, err := ExtractBearerToken(header)
	if err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	userID, err := a.resolver.Resolve(ctx, token)
	if errors.Is(err, ErrUnauthenticated) {
		return uuid.Nil, unauthorized("session not found or expired")
	}
	if err != nil {
		if errors.Is(err, ErrInternal) {
			return uuid.Nil, err
		}
		return uuid.Nil, internalError("resolve session", err)
	}
	return userID, nil
}

func unauthorized(reason string) error {
	return oops.Code("AUTH_UNAUTHORIZED").With("reason", reason).Wrap(ErrUnauthorized)
}
