// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

// Package redis implements auth.SessionRepository on Redis. Each session is
// a hash under prefix+token whose key expires when the session does, so
// expired sessions need no reaper.
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "checkmate:session:"

const (
	fieldUserID     = "user_id"
	fieldValidUntil = "valid_until"
)

// SessionStore implements auth.SessionRepository using Redis.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a SessionStore. An empty prefix selects
// DefaultKeyPrefix.
func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

// key builds the storage key. The raw token bytes follow the prefix; Redis
// keys are binary safe.
func (s *SessionStore) key(token auth.SessionToken) string {
	return s.prefix + string(token.StorageKey())
}

// InsertSession stores the session and sets the key to expire at validUntil.
func (s *SessionStore) InsertSession(ctx context.Context, token auth.SessionToken, userID uuid.UUID, validUntil time.Time) error {
	key := s.key(token)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, userID.String(),
			fieldValidUntil, strconv.FormatInt(validUntil.UnixNano(), 10),
		)
		pipe.PExpireAt(ctx, key, validUntil)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_INSERT_FAILED").
			With("operation", "redis insert session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// FetchSession retrieves the session bound to token.
func (s *SessionStore) FetchSession(ctx context.Context, token auth.SessionToken) (*auth.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key(token)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_FETCH_FAILED").
			With("operation", "redis fetch session").
			Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}

	userID, err := uuid.Parse(fields[fieldUserID])
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").
			With("field", fieldUserID).
			Wrap(err)
	}
	nanos, err := strconv.ParseInt(fields[fieldValidUntil], 10, 64)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").
			With("field", fieldValidUntil).
			Wrap(err)
	}
	return &auth.Session{UserID: userID, ValidUntil: time.Unix(0, nanos).UTC()}, nil
}

// DeleteSession removes the session bound to token. Deleting an absent
// session succeeds.
func (s *SessionStore) DeleteSession(ctx context.Context, token auth.SessionToken) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "redis delete session").
			Wrap(err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_PING_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.SessionRepository = (*SessionStore)(nil)
