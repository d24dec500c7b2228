// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package main

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/credkeep/credkeep/internal/auth/postgres"
)

// NewCleanupCmd creates the cleanup subcommand.
func NewCleanupCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired verification tokens once",
		Long: `Delete every verification token whose expiry has passed. Used tokens
are kept until they expire too.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd, deps)
		},
	}
}

// runCleanup runs one sweep through the credential store directly, so it
// needs no JWT or SMTP settings.
func runCleanup(cmd *cobra.Command, deps *Deps) error {
	deps = withDefaults(deps)
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	logger := commandLogger(cmd, cfg, deps)

	db, err := deps.DatabaseFactory(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer db.Close()

	deleted, err := postgres.NewStore(db).Tokens().DeleteExpired(ctx, time.Now())
	if err != nil {
		return oops.Code("CLEANUP_FAILED").Wrap(err)
	}

	logger.Info("expired verification tokens removed", "count", deleted)
	cmd.Printf("Deleted %d expired verification tokens\n", deleted)
	return nil
}
