// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls pool creation.
type ConnectOptions struct {
	URL      string
	MaxConns int32
	// Attempts is the total number of connection attempts, at least 1.
	Attempts uint64
	// Backoff is the first retry delay; later delays double.
	Backoff time.Duration
	Logger  *slog.Logger
}

// Connect opens a pool and waits until the database answers a ping,
// retrying with exponential backoff. A malformed URL fails immediately.
func Connect(ctx context.Context, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		// The parse error may echo the URL, password included.
		return nil, oops.Code("DB_INVALID_URL").Errorf("database url is not a valid connection string")
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := max(opts.Attempts, 1)
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var pool *pgxpool.Pool
	var attempt uint64
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return oops.Code("DB_POOL_FAILED").Wrap(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"max_attempts", attempts,
				"host", cfg.ConnConfig.Host,
				"error", err.Error(),
			)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}

	logger.InfoContext(ctx, "database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)
	return pool, nil
}
