// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hpms/hpms/internal/auth/postgres"
	"github.com/hpms/hpms/internal/store"
)

func newStatusCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database and schema status",
		Long: `Check that the database answers, report the schema version and pending
migrations, and count the stored accounts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				cmd.Println("Database: not configured (in-memory store only)")
				return nil
			}

			pool, err := deps.poolFactory()(cmd.Context(), cfg.Database.URL, store.OpenOptions{
				Attempts: 1,
				Logger:   logger,
			})
			if err != nil {
				cmd.Println("Database: unreachable")
				return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
			}
			defer pool.Close()
			cmd.Println("Database: reachable")

			m, err := deps.migratorFactory()(cfg.Database.URL)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
			}
			defer closeMigrator(cmd, m)
			if err := printVersion(cmd, m, ""); err != nil {
				return err
			}

			users, err := postgres.NewUserRepository(pool).List(cmd.Context())
			if err != nil {
				return oops.Code("STATUS_FAILED").With("operation", "count accounts").Wrap(err)
			}
			cmd.Printf("Accounts: %d\n", len(users))
			return nil
		},
	}
}
