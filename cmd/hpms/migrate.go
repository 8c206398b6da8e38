// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hpms/hpms/internal/store"
)

// newMigrateCmd creates the migrate command and its subcommands. Bare
// "migrate" applies all pending migrations.
func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations.`,
		Args:  cobra.NoArgs,
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

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return oops.Code("FLAG_INVALID").Wrap(err)
			}
			return runMigrateDown(cmd, deps, all)
		},
	}
	down.Flags().Bool("all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateVersion(cmd, deps)
		},
	})

	return cmd
}

func openMigrator(cmd *cobra.Command, deps *Deps) (Migrator, error) {
	cfg, _, err := loadRuntime(cmd)
	if err != nil {
		return nil, err
	}
	if err := requireDatabase(cfg); err != nil {
		return nil, err
	}
	m, err := deps.migratorFactory()(cfg.Database.URL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	return m, nil
}

func runMigrateUp(cmd *cobra.Command, deps *Deps) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return printVersion(cmd, m, "Migrations completed successfully")
}

func runMigrateDown(cmd *cobra.Command, deps *Deps, all bool) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	if all {
		cmd.Println("Rolling back all migrations...")
		err = m.Down()
	} else {
		cmd.Println("Rolling back one migration...")
		err = m.Steps(-1)
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").With("all", all).Wrap(err)
	}
	return printVersion(cmd, m, "Rollback completed successfully")
}

func runMigrateVersion(cmd *cobra.Command, deps *Deps) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)
	return printVersion(cmd, m, "")
}

func printVersion(cmd *cobra.Command, m Migrator, headline string) error {
	if headline != "" {
		cmd.Println(headline)
	}
	v, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	pending, err := m.Pending()
	if err != nil {
		return oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}

	cmd.Printf("Schema version: %s\n", describeVersion(v))
	if dirty {
		cmd.Println("Warning: schema is dirty; a migration failed part way")
	}
	cmd.Printf("Pending migrations: %d\n", len(pending))
	return nil
}

func describeVersion(v uint) string {
	if v == 0 {
		return "0 (empty)"
	}
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return strconv.FormatUint(uint64(v), 10)
	}
	return name
}

func closeMigrator(cmd *cobra.Command, m Migrator) {
	if err := m.Close(); err != nil {
		cmd.PrintErrf("Warning: closing migrator: %v\n", err)
	}
}
