// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/internal/auth"
)

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// InsertUser stores a new user under a fresh v4 UUID. Username uniqueness is
// enforced by the users_username_key constraint, so concurrent inserts of the
// same name cannot both succeed.
func (r *UserRepository) InsertUser(ctx context.Context, username, passwordHash string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash)
		VALUES ($1, $2, $3)
	`, id, username, passwordHash)
	if isUniqueViolation(err) {
		return uuid.Nil, oops.Code("USER_ALREADY_EXISTS").
			With("username", username).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return uuid.Nil, oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return id, nil
}

// FetchUserByUsername retrieves a user by exact, case-sensitive username.
func (r *UserRepository) FetchUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FETCH_BY_USERNAME_FAILED").
			With("operation", "fetch user by username").
			Wrap(err)
	}
	return user, nil
}

// FetchUserByID retrieves a user by ID.
func (r *UserRepository) FetchUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FETCH_BY_ID_FAILED").
			With("operation", "fetch user by id").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers classify pgx.ErrNoRows
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ auth.UserRepository = (*UserRepository)(nil)
