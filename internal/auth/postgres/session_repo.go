// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
// Tokens are stored as raw 32 byte BYTEA keys.
type SessionRepository struct {
	pool Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// InsertSession stores a session.
func (r *SessionRepository) InsertSession(ctx context.Context, token auth.SessionToken, userID uuid.UUID, validUntil time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, valid_until)
		VALUES ($1, $2, $3)
	`, token.StorageKey(), userID, validUntil)
	if err != nil {
		return oops.Code("SESSION_INSERT_FAILED").
			With("operation", "insert session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// FetchSession retrieves the session bound to token.
func (r *SessionRepository) FetchSession(ctx context.Context, token auth.SessionToken) (*auth.Session, error) {
	var s auth.Session
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, valid_until
		FROM sessions
		WHERE token = $1
	`, token.StorageKey()).Scan(&s.UserID, &s.ValidUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_FETCH_FAILED").
			With("operation", "fetch session").
			Wrap(err)
	}
	return &s, nil
}

// DeleteSession removes the session bound to token. Deleting an absent
// session succeeds, which keeps concurrent expiry cleanup race-free.
func (r *SessionRepository) DeleteSession(ctx context.Context, token auth.SessionToken) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token.StorageKey())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteExpiredSessions removes every session whose validity ended at or
// before now and returns how many were removed.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE valid_until <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
