// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/checkmate-auth/checkmate/internal/api"
	"github.com/checkmate-auth/checkmate/internal/auth"
	"github.com/checkmate-auth/checkmate/internal/auth/postgres"
	authredis "github.com/checkmate-auth/checkmate/internal/auth/redis"
	"github.com/checkmate-auth/checkmate/internal/config"
	"github.com/checkmate-auth/checkmate/internal/logging"
	"github.com/checkmate-auth/checkmate/internal/observability"
	"github.com/checkmate-auth/checkmate/internal/store"
	"github.com/checkmate-auth/checkmate/pkg/errutil"
)

const serviceName = "checkmate"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication HTTP API",
		Long: `Run the public HTTP API together with the metrics and health
endpoints. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, nil)
		},
	}

	config.BindFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the service until ctx is cancelled or a listener
// fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := deps.ConfigLoader(config.LoadOptions{
		Path:   configFile,
		Flags:  cmd.Flags(),
		Getenv: deps.Getenv,
	})
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  deps.LogWriter,
	})
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}

	logger.InfoContext(ctx, "starting checkmate",
		"addr", cfg.Server.Addr,
		"sessions_backend", cfg.Sessions.Backend,
		"metrics_addr", cfg.Metrics.Addr,
	)

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(ctx, deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, store.ConnectOptions{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		Attempts: cfg.Database.ConnectAttempts,
		Backoff:  cfg.Database.ConnectBackoff,
		Logger:   logger,
	})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	users := postgres.NewUserRepository(pool)
	readiness := []observability.ReadinessChecker{pool.Ping}

	var (
		sessions auth.SessionRepository
		reaper   *postgres.SessionReaper
	)
	switch cfg.Sessions.Backend {
	case config.BackendRedis:
		client := deps.RedisClientFactory(cfg.Redis)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err.Error())
			}
		}()
		redisSessions := authredis.NewSessionStore(client, cfg.Redis.KeyPrefix)
		sessions = redisSessions
		readiness = append(readiness, redisSessions.Ping)
	default:
		pgSessions := postgres.NewSessionRepository(pool)
		sessions = pgSessions
		if cfg.Sessions.ReapInterval > 0 {
			reaper, err = postgres.NewSessionReaper(pgSessions, cfg.Sessions.ReapInterval, logger)
			if err != nil {
				return err
			}
		}
	}

	hasher, err := auth.NewArgon2idHasherWithParams(cfg.HasherParams())
	if err != nil {
		return oops.With("operation", "create password hasher").Wrap(err)
	}

	var obs *observability.Server
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr, observability.AllReady(readiness...), logger)
		obsErrCh, err = obs.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer stopObservability(obs, cfg, logger)
	}

	svcOpts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithMaxConcurrentHashes(cfg.Hasher.MaxConcurrent),
	}
	if obs != nil {
		svcOpts = append(svcOpts, auth.WithRecorder(obs.Metrics()))
	}
	svc, err := auth.NewService(users, sessions, hasher, svcOpts...)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}
	// Background expired-session deletions finish before the pool closes.
	defer svc.Wait()

	authn, err := auth.NewAuthenticator(svc, cfg.Sessions.ResolveTimeout)
	if err != nil {
		return err
	}

	apiDeps := api.Deps{
		Service:           svc,
		Authenticator:     authn,
		Logger:            logger,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	if obs != nil {
		apiDeps.Metrics = obs.Metrics()
	}
	server, err := api.New(apiDeps)
	if err != nil {
		return err
	}
	apiErrCh, err := server.Start()
	if err != nil {
		return oops.With("operation", "start api server").Wrap(err)
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if reaper != nil {
		if obs != nil {
			reaper.OnReap(obs.Metrics().RecordSessionsReaped)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			reaper.Run(reaperCtx)
		}()
	}

	if deps.Started != nil {
		metricsAddr := ""
		if obs != nil {
			metricsAddr = obs.Addr()
		}
		deps.Started(server.Addr(), metricsAddr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErrCh:
		runErr = listenerFailed("api", err)
	case err := <-obsErrCh:
		runErr = listenerFailed("observability", err)
	}

	stopReaper()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "api shutdown failed", err)
		runErr = errors.Join(runErr, err)
	}

	logger.Info("checkmate stopped")
	return runErr
}

func autoMigrate(ctx context.Context, deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			errutil.LogError(logger, "failed to close migrator", err)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.InfoContext(ctx, "database migrations applied")
	return nil
}

func stopObservability(obs *observability.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		errutil.LogError(logger, "observability shutdown failed", err)
	}
}

func listenerFailed(name string, err error) error {
	if err == nil {
		err = errors.New("listener stopped unexpectedly")
	}
	return oops.Code("SERVER_FAILED").With("server", name).Wrap(err)
}
