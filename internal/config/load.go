// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/checkmate-auth/checkmate/internal/xdg"
)

// DatabaseURLEnv overrides database.url when set.
const DatabaseURLEnv = "DATABASE_URL"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"addr":             "server.addr",
	"metrics-addr":     "metrics.addr",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"sessions-backend": "sessions.backend",
	"auto-migrate":     "database.auto_migrate",
}

// BindFlags registers the flags that override configuration keys. Their
// defaults mirror Default so that --help is accurate.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("addr", d.Server.Addr, "public HTTP listen address")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("sessions-backend", d.Sessions.Backend, "session store (postgres or redis)")
	flags.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// Path is an explicit configuration file. It must exist when set.
	Path string

	// Flags holds flags registered by BindFlags. Only flags the user
	// changed take effect.
	Flags *pflag.FlagSet

	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// DefaultPath locates the optional default file. Defaults to
	// xdg.ConfigFile.
	DefaultPath func() (string, error)
}

// Load builds and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.DefaultPath == nil {
		opts.DefaultPath = xdg.ConfigFile
	}

	k := koanf.New(".")

	path, err := resolvePath(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}

	if url := opts.Getenv(DatabaseURLEnv); url != "" {
		cfg.Database.URL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePath returns the file to read, or "" when only defaults apply.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.Path != "" {
		return opts.Path, nil
	}
	path, err := opts.DefaultPath()
	if err != nil {
		// No home directory means no default file.
		return "", nil //nolint:nilerr // the default file is optional
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return path, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateYAML(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
