// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credkeep Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/credkeep/credkeep/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its up, down and status children.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, revert or inspect the embedded PostgreSQL schema migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, deps, migrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, deps, migrateUp)
		},
	})

	var confirmed bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert all migrations (drops every account and token)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return oops.Code("MIGRATION_DOWN_UNCONFIRMED").
					Errorf("migrate down drops all credential data; rerun with --yes")
			}
			return runMigrate(cmd, deps, migrateDown)
		},
	}
	down.Flags().BoolVar(&confirmed, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, deps, migrateStatus)
		},
	})

	return cmd
}

type migrateAction func(cmd *cobra.Command, m Migrator) error

func runMigrate(cmd *cobra.Command, deps *Deps, action migrateAction) error {
	deps = withDefaults(deps)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	logger := commandLogger(cmd, cfg, deps)

	migrator, err := deps.MigratorFactory(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	return action(cmd, migrator)
}

func migrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("direction", "up").Wrap(err)
	}
	return printStatus(cmd, m)
}

func migrateDown(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Reverting migrations...")
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("direction", "down").Wrap(err)
	}
	return printStatus(cmd, m)
}

func migrateStatus(cmd *cobra.Command, m Migrator) error {
	return printStatus(cmd, m)
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	status, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}
	cmd.Print(formatStatus(status))
	return nil
}

// formatStatus renders one line per migration plus the current version.
func formatStatus(status store.Status) string {
	out := fmt.Sprintf("Schema version: %d", status.Version)
	if status.Dirty {
		out += " (dirty)"
	}
	out += "\n"

	for _, v := range status.Applied {
		out += fmt.Sprintf("  [applied] %s\n", migrationLabel(v))
	}
	for _, v := range status.Pending {
		out += fmt.Sprintf("  [pending] %s\n", migrationLabel(v))
	}
	return out
}

func migrationLabel(version uint) string {
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		return fmt.Sprintf("%06d", version)
	}
	return name
}
