// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

// Package config loads and validates Checkmate configuration.
//
// Values are layered: built-in defaults, then the YAML file, then command
// line flags the user actually set. DATABASE_URL overrides database.url.
package config

import (
	"time"

	"github.com/samber/oops"

	"github.com/checkmate-auth/checkmate/internal/auth"
	"github.com/checkmate-auth/checkmate/internal/logging"
)

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" json:"server,omitempty" jsonschema:"description=Public HTTP API"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty" jsonschema:"description=PostgreSQL connection"`
	Sessions SessionsConfig `koanf:"sessions" json:"sessions,omitempty" jsonschema:"description=Session storage"`
	Redis    RedisConfig    `koanf:"redis" json:"redis,omitempty" jsonschema:"description=Redis session store"`
	Hasher   HasherConfig   `koanf:"hasher" json:"hasher,omitempty" jsonschema:"description=argon2id cost parameters"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Addr              string        `koanf:"addr" json:"addr,omitempty"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" json:"read_header_timeout,omitempty"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty"`
	CORSOrigins       []string      `koanf:"cors_origins" json:"cors_origins,omitempty" jsonschema:"description=Allowed origin glob patterns"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" json:"url,omitempty"`
	MaxConns        int32         `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=1"`
	ConnectAttempts uint64        `koanf:"connect_attempts" json:"connect_attempts,omitempty" jsonschema:"minimum=1"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff" json:"connect_backoff,omitempty"`
	AutoMigrate     bool          `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// SessionsConfig selects and tunes session storage.
type SessionsConfig struct {
	Backend        string        `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=postgres,enum=redis"`
	ResolveTimeout time.Duration `koanf:"resolve_timeout" json:"resolve_timeout,omitempty"`
	ReapInterval   time.Duration `koanf:"reap_interval" json:"reap_interval,omitempty"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr      string `koanf:"addr" json:"addr,omitempty"`
	Password  string `koanf:"password" json:"password,omitempty"`
	DB        int    `koanf:"db" json:"db,omitempty" jsonschema:"minimum=0"`
	KeyPrefix string `koanf:"key_prefix" json:"key_prefix,omitempty"`
}

// HasherConfig holds argon2id parameters and the hashing concurrency bound.
type HasherConfig struct {
	MemoryKiB     uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" jsonschema:"minimum=8"`
	Iterations    uint32 `koanf:"iterations" json:"iterations,omitempty" jsonschema:"minimum=1"`
	Parallelism   uint8  `koanf:"parallelism" json:"parallelism,omitempty" jsonschema:"minimum=1"`
	MaxConcurrent int    `koanf:"max_concurrent" json:"max_concurrent,omitempty" jsonschema:"minimum=0"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
		},
		Sessions: SessionsConfig{
			Backend:        BackendPostgres,
			ResolveTimeout: auth.DefaultResolveTimeout,
			ReapInterval:   10 * time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "checkmate:session:",
		},
		Hasher: HasherConfig{
			MemoryKiB:   auth.DefaultArgon2Memory,
			Iterations:  auth.DefaultArgon2Time,
			Parallelism: auth.DefaultArgon2Threads,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// HasherParams returns the argon2id parameters.
func (c *Config) HasherParams() auth.HasherParams {
	return auth.HasherParams{
		Memory:  c.Hasher.MemoryKiB,
		Time:    c.Hasher.Iterations,
		Threads: c.Hasher.Parallelism,
	}
}

// Validate checks semantic rules the schema cannot express.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", "is required")
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		return invalid("server.read_header_timeout", "must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "must be positive")
	}
	if c.Database.URL == "" {
		return invalid("database.url", "is required (set DATABASE_URL or database.url)")
	}
	if c.Database.MaxConns < 1 {
		return invalid("database.max_conns", "must be at least 1")
	}
	if c.Database.ConnectAttempts < 1 {
		return invalid("database.connect_attempts", "must be at least 1")
	}
	if c.Database.ConnectBackoff <= 0 {
		return invalid("database.connect_backoff", "must be positive")
	}

	switch c.Sessions.Backend {
	case BackendPostgres:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return invalid("redis.addr", "is required when sessions.backend is redis")
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "sessions.backend").
			With("value", c.Sessions.Backend).
			Errorf("sessions.backend must be %q or %q", BackendPostgres, BackendRedis)
	}
	if c.Sessions.ResolveTimeout <= 0 {
		return invalid("sessions.resolve_timeout", "must be positive")
	}
	if c.Sessions.ReapInterval < 0 {
		return invalid("sessions.reap_interval", "must not be negative")
	}

	if err := c.HasherParams().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "hasher").Wrap(err)
	}
	if c.Hasher.MaxConcurrent < 0 {
		return invalid("hasher.max_concurrent", "must not be negative")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			With("value", c.Log.Format).
			Errorf("log.format must be 'json' or 'text'")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	return nil
}

func invalid(key, reason string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, reason)
}
