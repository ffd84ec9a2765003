// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/pkg/errutil"
)

// expiredDeleteTimeout bounds the background removal of an expired session.
const expiredDeleteTimeout = 5 * time.Second

// dummyPasswordHash is verified against when a username is unknown so that
// unknown users and wrong passwords take the same time.
// It is not a credential: no password hashes to an all-zero key.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Operation names reported to the Recorder.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpResolve  = "resolve"
	OpRevoke   = "revoke"
	OpProfile  = "profile"
)

// Recorder receives the outcome of every service operation.
type Recorder interface {
	RecordAuthOutcome(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthOutcome(string, string) {}

// Service provides registration, login and session resolution.
type Service struct {
	users     UserRepository
	sessions  SessionRepository
	hasher    PasswordHasher
	logger    *slog.Logger
	now       func() time.Time
	recorder  Recorder
	dummyHash string

	hashSlots chan struct{}
	pending   sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			return oops.Code("AUTH_INVALID_CONFIG").Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return oops.Code("AUTH_INVALID_CONFIG").Errorf("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// WithMaxConcurrentHashes bounds how many hash or verify calls run at once.
// Zero selects runtime.NumCPU().
func WithMaxConcurrentHashes(n int) Option {
	return func(s *Service) error {
		if n < 0 {
			return oops.Code("AUTH_INVALID_CONFIG").With("max_concurrent_hashes", n).Errorf("must not be negative")
		}
		if n == 0 {
			n = runtime.NumCPU()
		}
		s.hashSlots = make(chan struct{}, n)
		return nil
	}
}

// WithRecorder reports operation outcomes, typically to metrics.
func WithRecorder(r Recorder) Option {
	return func(s *Service) error {
		if r == nil {
			return oops.Code("AUTH_INVALID_CONFIG").Errorf("recorder cannot be nil")
		}
		s.recorder = r
		return nil
	}
}

// NewService creates a Service. All three dependencies are required.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &Service{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		logger:    slog.Default(),
		now:       time.Now,
		recorder:  noopRecorder{},
		dummyHash: dummyPasswordHash,
		hashSlots: make(chan struct{}, runtime.NumCPU()),
	}
	if d, ok := hasher.(interface{ DummyHash() string }); ok {
		s.dummyHash = d.DummyHash()
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register creates a user and returns its ID.
func (s *Service) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	id, err := s.register(ctx, username, password)
	s.record(OpRegister, err)
	return id, err
}

func (s *Service) register(ctx context.Context, username, password string) (uuid.UUID, error) {
	if err := ValidateUsername(username); err != nil {
		return uuid.Nil, err
	}
	if password == "" {
		return uuid.Nil, oops.Code("AUTH_EMPTY_PASSWORD").Public("password cannot be empty").Wrapf(ErrInvalidInput, "password cannot be empty")
	}

	var hash string
	err := s.withHashSlot(ctx, func() error {
		var hashErr error
		hash, hashErr = s.hasher.Hash(password)
		return hashErr
	})
	if err != nil {
		s.logInternal(ctx, "password hashing failed", err)
		return uuid.Nil, internalError("hash password", err)
	}

	id, err := s.users.InsertUser(ctx, username, hash)
	if errors.Is(err, ErrAlreadyExists) {
		return uuid.Nil, oops.Code("AUTH_USERNAME_TAKEN").
			With("username", username).
			Wrap(ErrUsernameTaken)
	}
	if err != nil {
		s.logInternal(ctx, "insert user failed", err)
		return uuid.Nil, internalError("insert user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", id.String())
	return id, nil
}

// Login verifies credentials and issues a session token valid for SessionTTL.
// Unknown usernames and wrong passwords are reported identically.
//
// The user lookup and the session insert are separate store calls, not one
// transaction. A user deleted in between leaves an orphan insert that the
// foreign key rejects as an internal error.
func (s *Service) Login(ctx context.Context, username, password string) (SessionToken, error) {
	token, err := s.login(ctx, username, password)
	s.record(OpLogin, err)
	return token, err
}

func (s *Service) login(ctx context.Context, username, password string) (SessionToken, error) {
	user, lookupErr := s.users.FetchUserByUsername(ctx, username)
	userExists := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		s.logInternal(ctx, "fetch user failed", lookupErr)
		return SessionToken{}, internalError("fetch user by username", lookupErr)
	}

	targetHash := s.dummyHash
	if userExists {
		targetHash = user.PasswordHash
	}

	// Always verify so both branches cost one hash.
	verifyErr := s.withHashSlot(ctx, func() error {
		return s.hasher.Verify(password, targetHash)
	})

	if errors.Is(verifyErr, ErrPasswordMismatch) || (verifyErr == nil && !userExists) {
		return SessionToken{}, invalidCredentials()
	}
	if verifyErr != nil {
		// A malformed stored hash is a data problem, never a wrong password.
		s.logInternal(ctx, "password verification failed", verifyErr, "user_id", userIDAttr(user))
		return SessionToken{}, internalError("verify password", verifyErr)
	}

	token, err := NewSessionToken()
	if err != nil {
		s.logInternal(ctx, "session token generation failed", err)
		return SessionToken{}, internalError("generate session token", err)
	}

	validUntil := s.now().Add(SessionTTL)
	if err := s.sessions.InsertSession(ctx, token, user.ID, validUntil); err != nil {
		s.logInternal(ctx, "insert session failed", err, "user_id", user.ID.String())
		return SessionToken{}, internalError("insert session", err)
	}

	s.logger.InfoContext(ctx, "session issued",
		"user_id", user.ID.String(),
		"valid_until", validUntil,
	)
	return token, nil
}

// Resolve returns the user bound to token. An expired session is removed in
// the background and reported as unauthenticated.
func (s *Service) Resolve(ctx context.Context, token SessionToken) (uuid.UUID, error) {
	id, err := s.resolve(ctx, token)
	s.record(OpResolve, err)
	return id, err
}

func (s *Service) resolve(ctx context.Context, token SessionToken) (uuid.UUID, error) {
	session, err := s.sessions.FetchSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, oops.Code("AUTH_UNAUTHENTICATED").
			With("reason", "unknown session").
			Wrap(ErrUnauthenticated)
	}
	if err != nil {
		s.logInternal(ctx, "fetch session failed", err)
		return uuid.Nil, internalError("fetch session", err)
	}

	if session.IsExpiredAt(s.now()) {
		s.deleteExpired(ctx, token, session.UserID)
		return uuid.Nil, oops.Code("AUTH_UNAUTHENTICATED").
			With("reason", "session expired").
			Wrap(ErrUnauthenticated)
	}

	return session.UserID, nil
}

// deleteExpired removes an expired session without holding up the caller.
// Failures are logged and otherwise ignored.
func (s *Service) deleteExpired(ctx context.Context, token SessionToken, userID uuid.UUID) {
	bg := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(bg, expiredDeleteTimeout)
		defer cancel()
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session",
				"user_id", userID.String(),
				"error", err,
			)
			return
		}
		s.logger.DebugContext(ctx, "expired session deleted", "user_id", userID.String())
	}()
}

// Revoke deletes the session bound to token. Revoking an unknown token succeeds.
func (s *Service) Revoke(ctx context.Context, token SessionToken) error {
	err := s.sessions.DeleteSession(ctx, token)
	if err != nil {
		s.logInternal(ctx, "delete session failed", err)
		err = internalError("delete session", err)
	}
	s.record(OpRevoke, err)
	return err
}

// Profile returns the username of userID.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.FetchUserByID(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		err = oops.Code("AUTH_USER_NOT_FOUND").With("user_id", userID.String()).Wrap(ErrNotFound)
	case err != nil:
		s.logInternal(ctx, "fetch user failed", err, "user_id", userID.String())
		err = internalError("fetch user by id", err)
	}
	s.record(OpProfile, err)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// Wait blocks until background session deletions have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// withHashSlot runs fn while holding one of the hashing slots.
func (s *Service) withHashSlot(ctx context.Context, fn func() error) error {
	select {
	case s.hashSlots <- struct{}{}:
	case <-ctx.Done():
		return oops.Code("AUTH_HASH_SLOT_CANCELLED").Wrap(ctx.Err())
	}
	defer func() { <-s.hashSlots }()
	return fn()
}

func (s *Service) logInternal(ctx context.Context, msg string, err error, attrs ...any) {
	errutil.LogErrorContext(ctx, s.logger, msg, err, attrs...)
}

func (s *Service) record(operation string, err error) {
	s.recorder.RecordAuthOutcome(operation, Outcome(err))
}

// Outcome classifies err into a short label suitable for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUsernameTaken):
		return "username_taken"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

func userIDAttr(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID.String()
}
