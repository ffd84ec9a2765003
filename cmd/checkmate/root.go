// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Checkmate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the checkmate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkmate",
		Short: "Checkmate - username/password authentication with bearer sessions",
		Long: `Checkmate registers users, verifies passwords with argon2id and issues
opaque bearer session tokens backed by PostgreSQL or Redis.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/checkmate/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
