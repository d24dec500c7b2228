// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/credkeep/credkeep/internal/config"
	"github.com/credkeep/credkeep/internal/logging"
)

// serviceName tags every log record.
const serviceName = "credkeep"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the credkeep CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credkeep",
		Short: "Credkeep - email/password credentials with email verification",
		Long: `Credkeep registers accounts with email and password, verifies email
ownership through single-use links, and issues session tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewCleanupCmd(deps))

	return cmd
}

// loadConfig layers the config file, environment and the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// commandLogger returns deps.Logger, or installs a default logger writing
// to the command's stderr.
func commandLogger(cmd *cobra.Command, cfg *config.Config, deps *Deps) *slog.Logger {
	if deps.Logger != nil {
		return deps.Logger
	}
	logger := logging.Setup(serviceName, version, cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return logger
}
