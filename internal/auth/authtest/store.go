// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

// Package authtest provides test helpers for the auth package.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/internal/auth"
)

// MemoryStore is an in-memory auth.CredentialStore safe for concurrent use.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]auth.User
	byUsername map[string]uuid.UUID
	sessions   map[auth.SessionToken]auth.Session
	clock      func() time.Time

	// FailWith, when set, is returned by every operation.
	FailWith error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[uuid.UUID]auth.User),
		byUsername: make(map[string]uuid.UUID),
		sessions:   make(map[auth.SessionToken]auth.Session),
		clock:      time.Now,
	}
}

// InsertUser stores a user.
func (s *MemoryStore) InsertUser(_ context.Context, username, passwordHash string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return uuid.Nil, s.FailWith
	}
	if _, ok := s.byUsername[username]; ok {
		return uuid.Nil, oops.Code("USER_ALREADY_EXISTS").With("username", username).Wrap(auth.ErrAlreadyExists)
	}
	id := uuid.New()
	s.users[id] = auth.User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: s.clock()}
	s.byUsername[username] = id
	return id, nil
}

// FetchUserByUsername looks a user up by username.
func (s *MemoryStore) FetchUserByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	id, ok := s.byUsername[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	u := s.users[id]
	return &u, nil
}

// FetchUserByID looks a user up by ID.
func (s *MemoryStore) FetchUserByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	u, ok := s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &u, nil
}

// InsertSession stores a session.
func (s *MemoryStore) InsertSession(_ context.Context, token auth.SessionToken, userID uuid.UUID, validUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.sessions[token] = auth.Session{UserID: userID, ValidUntil: validUntil}
	return nil
}

// FetchSession returns the session bound to token.
func (s *MemoryStore) FetchSession(_ context.Context, token auth.SessionToken) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	sess, ok := s.sessions[token]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &sess, nil
}

// DeleteSession removes the session bound to token, if any.
func (s *MemoryStore) DeleteSession(_ context.Context, token auth.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	delete(s.sessions, token)
	return nil
}

// HasSession reports whether a session for token is stored.
func (s *MemoryStore) HasSession(token auth.SessionToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[token]
	return ok
}

// UserCount returns the number of stored users.
func (s *MemoryStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// FastHasher returns an argon2id hasher with minimal cost for tests.
func FastHasher() *auth.Argon2idHasher {
	h, err := auth.NewArgon2idHasherWithParams(auth.HasherParams{Memory: 64, Time: 1, Threads: 1})
	if err != nil {
		panic(err)
	}
	return h
}

var _ auth.CredentialStore = (*MemoryStore)(nil)
