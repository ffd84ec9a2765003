// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/checkmate-auth/checkmate/internal/config"
	"github.com/checkmate-auth/checkmate/internal/store"
)

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect the PostgreSQL schema. Without a
subcommand all pending migrations are applied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})
	cmd.AddCommand(newMigrateDownCmd(deps))
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateStatus(cmd, deps)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Long: `Record <version> as the current schema version and clear the dirty
flag. Use only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateForce(cmd, deps, args[0])
		},
	})
	return cmd
}

func newMigrateDownCmd(deps *MigrateDeps) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m SchemaMigrator) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return err
					}
				} else {
					cmd.Println("Rolling back one migration...")
					if err := m.Steps(-1); err != nil {
						return err
					}
				}
				cmd.Println("Rollback completed")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration (drops all users and sessions)")
	return cmd
}

func runMigrateUp(cmd *cobra.Command, deps *MigrateDeps) error {
	return withMigrator(cmd, deps, func(m SchemaMigrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, deps *MigrateDeps) error {
	return withMigrator(cmd, deps, func(m SchemaMigrator) error {
		status, err := m.Status()
		if err != nil {
			return err
		}

		current := "none"
		if status.Current > 0 {
			current = strconv.FormatUint(uint64(status.Current), 10)
			name, err := store.MigrationName(status.Current)
			if err != nil {
				return err
			}
			if name != "" {
				current += " (" + name + ")"
			}
		}
		cmd.Printf("Current version: %s\n", current)
		if status.Dirty {
			cmd.Println("Schema is DIRTY: repair it, then run 'checkmate migrate force <version>'")
		}
		cmd.Printf("Applied: %d\n", len(status.Applied))
		cmd.Printf("Pending: %d\n", len(status.Pending))
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, deps *MigrateDeps, arg string) error {
	version, err := parseForceVersion(arg)
	if err != nil {
		return err
	}
	return withMigrator(cmd, deps, func(m SchemaMigrator) error {
		if err := m.Force(version); err != nil {
			return err
		}
		cmd.Printf("Schema version forced to %d\n", version)
		return nil
	})
}

// withMigrator loads configuration, opens the migrator, runs fn and closes
// the migrator again.
func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(SchemaMigrator) error) (err error) {
	deps = deps.withDefaults()

	cfg, err := deps.ConfigLoader(config.LoadOptions{
		Path:   configFile,
		Getenv: deps.Getenv,
	})
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}

	cmd.Println("Connecting to database...")
	migrator, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := fn(migrator); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	return nil
}

// parseForceVersion parses the force argument as a non-negative integer.
func parseForceVersion(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	version, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("version", version).Errorf("version must be non-negative")
	}
	return version, nil
}
