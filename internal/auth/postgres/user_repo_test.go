// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmate-auth/checkmate/internal/auth"
	"github.com/checkmate-auth/checkmate/pkg/errutil"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestUserRepository_InsertUser(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "inserts user",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), "jozin", "$argon2id$hash").
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "unique violation is already exists",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), "jozin", "$argon2id$hash").
					WillReturnError(&pgconn.PgError{
						Code:           pgerrcode.UniqueViolation,
						ConstraintName: "users_username_key",
					})
			},
			wantErr:  auth.ErrAlreadyExists,
			wantCode: "USER_ALREADY_EXISTS",
		},
		{
			name: "other database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), "jozin", "$argon2id$hash").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "USER_INSERT_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			tt.setupMock(mock)

			id, err := NewUserRepository(mock).InsertUser(ctx, "jozin", "$argon2id$hash")
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, id)
				assert.Equal(t, uuid.Version(4), id.Version())
				return
			}
			require.Error(t, err)
			assert.Equal(t, uuid.Nil, id)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NotErrorIs(t, err, auth.ErrAlreadyExists)
			}
		})
	}
}

func TestUserRepository_FetchUserByUsername(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	createdAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT id, username, password_hash, created_at\s+FROM users\s+WHERE username = \$1`).
			WithArgs("jóźin").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
				AddRow(id, "jóźin", "$argon2id$hash", createdAt))

		user, err := NewUserRepository(mock).FetchUserByUsername(ctx, "jóźin")
		require.NoError(t, err)
		assert.Equal(t, &auth.User{ID: id, Username: "jóźin", PasswordHash: "$argon2id$hash", CreatedAt: createdAt}, user)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM users`).
			WithArgs("nobody").
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}))

		_, err := NewUserRepository(mock).FetchUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`FROM users`).
			WithArgs("jozin").
			WillReturnError(errors.New("connection refused"))

		_, err := NewUserRepository(mock).FetchUserByUsername(ctx, "jozin")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_FETCH_BY_USERNAME_FAILED")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestUserRepository_FetchUserByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
				AddRow(id, "jozin", "$argon2id$hash", time.Now()))

		user, err := NewUserRepository(mock).FetchUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "jozin", user.Username)
		assert.Equal(t, id, user.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "created_at"}))

		_, err := NewUserRepository(mock).FetchUserByID(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorContext(t, err, "user_id", id.String())
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(id).
			WillReturnError(errors.New("timeout"))

		_, err := NewUserRepository(mock).FetchUserByID(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_FETCH_BY_ID_FAILED")
	})
}
