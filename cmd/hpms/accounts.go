// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hpms/hpms/internal/auth"
)

func newSeedAdminCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the bootstrap admin account",
		Long: `Create the "admin" account with the default password unless it already
exists. An existing admin is never modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.auth.SeedAdmin(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.persisted(); err != nil {
				return err
			}
			if !res.Created {
				cmd.Printf("Admin account %q already exists\n", res.Username)
				return nil
			}
			cmd.Printf("Admin account created: %s / %s\n", res.Username, auth.DefaultAdminPassword)
			cmd.Println("Change this password after the first login.")
			return nil
		},
	}
}

func newMigratePasswordsCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-passwords",
		Short: "Assign passwords to accounts that have none",
		Long: `Assign a password to every non-admin account without a stored digest.
Legacy display passwords are reused; other accounts get a random password.
The assigned passwords are printed once and are not stored in plaintext.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			assigned, err := a.auth.MigratePasswordsIfMissing(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.persisted(); err != nil {
				return err
			}
			if len(assigned) == 0 {
				cmd.Println("All accounts already have passwords")
				return nil
			}

			names := make([]string, 0, len(assigned))
			for name := range assigned {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = io.WriteString(w, "USERNAME\tPASSWORD\n")
			for _, name := range names {
				_, _ = io.WriteString(w, name+"\t"+assigned[name]+"\n")
			}
			if err := w.Flush(); err != nil {
				return oops.Code("OUTPUT_FAILED").Wrap(err)
			}
			cmd.Println("Hand these passwords to their owners now; they will not be shown again.")
			return nil
		},
	}
}

func newResetPasswordCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <username>",
		Short: "Assign a random password to an account",
		Long: `Assign a new random password to the account and print it once. This is
the administrator path; users reset their own password with request-reset
and redeem-reset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			password, err := a.auth.ResetPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if password == "" {
				return oops.Code(auth.CodeUnknownUser).With("username", args[0]).Wrap(auth.ErrUnknownUser)
			}
			if err := a.persisted(); err != nil {
				return err
			}
			cmd.Printf("New password for %s: %s\n", args[0], password)
			return nil
		},
	}
}

func newRequestResetCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "request-reset <username> <email>",
		Short: "Email a password reset code",
		Long: `Email a six-digit reset code to the account's address of record. The code
expires after one hour and replaces any code issued earlier. The same
message is printed whether or not the account exists.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.resets.RequestPasswordReset(cmd.Context(), args[0], args[1])
			if err != nil {
				return oops.With("message", auth.UserMessage(err)).Wrap(err)
			}
			cmd.Println(res.Message)
			return nil
		},
	}
}

func newRedeemResetCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem-reset <username> <code>",
		Short: "Set a new password with a reset code",
		Long: `Redeem a reset code and set a new password. The new password is read
from the first line of standard input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.resets.ResetPasswordWithCode(cmd.Context(), args[0], args[1], password); err != nil {
				return oops.With("message", auth.UserMessage(err)).Wrap(err)
			}
			cmd.Println("Password reset successfully")
			return nil
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("INPUT_FAILED").With("operation", "read password").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// persisted fails when a write only reached the in-memory store, which a
// one-shot command would lose on exit.
func (a *app) persisted() error {
	pending := a.store.PendingWrites()
	if len(pending) == 0 {
		return nil
	}
	return oops.Code(auth.CodePersistenceDegraded).
		With("usernames", pending).
		Wrapf(auth.ErrPersistenceDegraded, "database write failed; changes were not saved")
}
