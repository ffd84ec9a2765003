// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/pkg/errutil"
)

// DefaultReapInterval is how often expired sessions are purged.
const DefaultReapInterval = 10 * time.Minute

// ExpiredSessionDeleter removes sessions that are no longer valid.
type ExpiredSessionDeleter interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionReaper periodically purges expired sessions that were never
// resolved again and so never got cleaned up lazily.
type SessionReaper struct {
	sessions ExpiredSessionDeleter
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onReap   func(n int64)
}

// NewSessionReaper creates a SessionReaper. A non-positive interval selects
// DefaultReapInterval.
func NewSessionReaper(sessions ExpiredSessionDeleter, interval time.Duration, logger *slog.Logger) (*SessionReaper, error) {
	if sessions == nil {
		return nil, oops.Code("REAPER_INVALID_CONFIG").Errorf("session deleter is required")
	}
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionReaper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// OnReap registers fn to be called with the count of every successful pass.
func (r *SessionReaper) OnReap(fn func(n int64)) {
	r.onReap = fn
}

// ReapOnce deletes expired sessions once.
func (r *SessionReaper) ReapOnce(ctx context.Context) (int64, error) {
	n, err := r.sessions.DeleteExpiredSessions(ctx, r.now())
	if err != nil {
		return 0, err
	}
	if r.onReap != nil {
		r.onReap(n)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "expired sessions purged", "count", n)
	}
	return n, nil
}

// Run reaps on every tick until ctx is cancelled. Failed passes are logged
// and retried on the next tick.
func (r *SessionReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil && ctx.Err() == nil {
				errutil.LogErrorContext(ctx, r.logger, "session reap failed", err)
			}
		}
	}
}
