// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/hpms/hpms/internal/config"
)

// NewRootCmd creates the root command for the hpms CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&Deps{})
}

func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hpms",
		Short: "HPMS - hospital credential and access control",
		Long: `hpms manages staff and patient credentials for the hospital system:
salted argon2id password storage, admin-gated registration, and
email-verified password reset backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newSeedAdminCmd(deps))
	cmd.AddCommand(newMigratePasswordsCmd(deps))
	cmd.AddCommand(newResetPasswordCmd(deps))
	cmd.AddCommand(newRequestResetCmd(deps))
	cmd.AddCommand(newRedeemResetCmd(deps))
	cmd.AddCommand(newStatusCmd(deps))
	cmd.AddCommand(newServeCmd(deps))

	return cmd
}
