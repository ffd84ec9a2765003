// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

// Package api exposes the auth service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/internal/auth"
	"github.com/checkmate-auth/checkmate/pkg/errutil"
)

// DefaultReadHeaderTimeout is used when Deps.ReadHeaderTimeout is zero.
const DefaultReadHeaderTimeout = 10 * time.Second

// AuthService is the part of auth.Service the handlers call.
type AuthService interface {
	Register(ctx context.Context, username, password string) (uuid.UUID, error)
	Login(ctx context.Context, username, password string) (auth.SessionToken, error)
	Profile(ctx context.Context, userID uuid.UUID) (string, error)
	Revoke(ctx context.Context, token auth.SessionToken) error
}

// Authenticator resolves an Authorization header to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (uuid.UUID, error)
}

// RequestObserver records finished requests, typically as metrics.
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Service       AuthService
	Authenticator Authenticator
	Logger        *slog.Logger

	// Metrics is optional.
	Metrics RequestObserver

	// CORSOrigins are glob patterns such as "https://*.example.com".
	// Empty disables CORS headers.
	CORSOrigins []string

	Addr              string
	ReadHeaderTimeout time.Duration
}

// Server is the public HTTP API.
type Server struct {
	service  AuthService
	authn    Authenticator
	logger   *slog.Logger
	metrics  RequestObserver
	origins  []glob.Glob
	addr     string
	handler  http.Handler
	listener net.Listener

	httpServer        *http.Server
	readHeaderTimeout time.Duration
	running           atomic.Bool
}

// New creates a Server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("auth service is required")
	}
	if deps.Authenticator == nil {
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("authenticator is required")
	}
	if deps.Logger == nil {
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("logger is required")
	}

	origins := make([]glob.Glob, 0, len(deps.CORSOrigins))
	for _, pattern := range deps.CORSOrigins {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.Code("API_INVALID_CORS_ORIGIN").With("pattern", pattern).Wrap(err)
		}
		origins = append(origins, g)
	}

	timeout := deps.ReadHeaderTimeout
	if timeout <= 0 {
		timeout = DefaultReadHeaderTimeout
	}

	s := &Server{
		service:           deps.Service,
		authn:             deps.Authenticator,
		logger:            deps.Logger,
		metrics:           deps.Metrics,
		origins:           origins,
		addr:              deps.Addr,
		readHeaderTimeout: timeout,
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving on the configured address. The returned channel
// receives a serve error, if any, and is closed once the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("API_ALREADY_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errutil.LogError(s.logger, "api server error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Shutdown drains in-flight requests. Shutting down a stopped server is a
// no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("API_SHUTDOWN_FAILED").Wrap(err)
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
