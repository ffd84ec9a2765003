// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

// Package auth implements user registration, password login and bearer
// session resolution.
//
// # Credentials
//
// Passwords are hashed with argon2id and stored as PHC strings. Session
// tokens are 32 random bytes, handed to clients as 64 lowercase hex
// characters and persisted as raw bytes. A SessionToken never prints its
// secret through fmt or slog.
//
// # Errors
//
// Every error returned by Service and Authenticator wraps one of the
// service sentinels (ErrInvalidInput, ErrUsernameTaken,
// ErrInvalidCredentials, ErrUnauthenticated, ErrUnauthorized, ErrNotFound,
// ErrInternal). Callers classify with errors.Is. Storage and hashing
// failures surface as ErrInternal with the cause attached for logging.
//
// # Storage
//
// Service depends on UserRepository and SessionRepository. Implementations
// live in the postgres and redis subpackages; authtest provides an
// in-memory store for tests.
package auth
