// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package main

import (
	"context"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/checkmate-auth/checkmate/internal/auth/postgres"
	"github.com/checkmate-auth/checkmate/internal/config"
	"github.com/checkmate-auth/checkmate/internal/store"
)

// DBPool is the part of *pgxpool.Pool the serve command uses.
type DBPool interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// SchemaMigrator is the part of *store.Migrator the commands use.
type SchemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader builds the configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// PoolFactory connects to PostgreSQL.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, opts store.ConnectOptions) (DBPool, error)

	// MigratorFactory opens the schema migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (SchemaMigrator, error)

	// RedisClientFactory creates the Redis client for the redis backend.
	// Default: newRedisClient
	RedisClientFactory func(cfg config.RedisConfig) redis.UniversalClient

	// LogWriter receives structured logs.
	// Default: os.Stderr
	LogWriter io.Writer

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string

	// Started, when set, is called once every listener is up.
	Started func(apiAddr, metricsAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, opts store.ConnectOptions) (DBPool, error) {
			return store.Connect(ctx, opts)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = defaultMigratorFactory
	}
	if out.RedisClientFactory == nil {
		out.RedisClientFactory = newRedisClient
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	return &out
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// ConfigLoader builds the configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// MigratorFactory opens the schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (SchemaMigrator, error)

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = defaultMigratorFactory
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	return &out
}

func defaultMigratorFactory(databaseURL string) (SchemaMigrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
