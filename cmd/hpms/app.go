// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hpms/hpms/internal/auth"
	"github.com/hpms/hpms/internal/auth/postgres"
	"github.com/hpms/hpms/internal/config"
	"github.com/hpms/hpms/internal/logging"
	"github.com/hpms/hpms/internal/mail"
	"github.com/hpms/hpms/internal/store"
)

// loadRuntime reads the configuration and builds the process logger.
func loadRuntime(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "hpms",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

func requireDatabase(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database url is required (--%s, DATABASE_URL or database.url)", config.FlagDatabaseURL)
	}
	return nil
}

// app holds the credential services wired for one process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   DBPool
	store  *auth.CredentialStore
	auth   *auth.Service
	// resets is nil without a database.
	resets *auth.PasswordResetService
}

// openApp loads the configuration and wires a database-backed app.
func openApp(cmd *cobra.Command, deps *Deps) (*app, error) {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return nil, err
	}
	if err := requireDatabase(cfg); err != nil {
		return nil, err
	}
	a := &app{}
	if err := a.open(cmd.Context(), cfg, logger, deps, nil); err != nil {
		return nil, err
	}
	return a, nil
}

// open wires the store and services. An empty database URL gives a
// memory-only app with no reset flow.
func (a *app) open(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Deps, metrics *auth.Metrics) error {
	a.cfg, a.logger = cfg, logger
	hasher := deps.hasherFactory()(cfg.Argon2)
	opts := []auth.Option{auth.WithLogger(logger), auth.WithMetrics(metrics)}
	storeOpts := []auth.StoreOption{auth.WithStoreLogger(logger), auth.WithStoreMetrics(metrics)}

	if cfg.Database.URL == "" {
		logger.WarnContext(ctx, "no database configured, using in-memory store only")
		a.store = auth.NewCredentialStore(nil, storeOpts...)
		svc, err := auth.NewAuthService(a.store, hasher, opts...)
		if err != nil {
			return oops.Code("APP_INIT_FAILED").Wrap(err)
		}
		a.auth = svc
		return nil
	}

	pool, err := deps.poolFactory()(ctx, cfg.Database.URL, store.OpenOptions{
		Attempts: cfg.Database.ConnectAttempts,
		Backoff:  cfg.Database.ConnectBackoff,
		Logger:   logger,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	a.pool = pool
	a.store = auth.NewCredentialStore(postgres.NewUserRepository(pool), storeOpts...)

	directory := postgres.NewContactDirectory(pool)
	resetMailer := deps.mailerFactory()(cfg.SMTP, logger)
	var noticeMailer auth.Mailer = mail.NewLogMailer(logger)
	if cfg.SMTP.Configured() {
		noticeMailer = resetMailer
	}
	opts = append(opts, auth.WithAuditRecorder(postgres.NewAuditLog(pool)))

	a.auth, err = auth.NewAuthService(a.store, hasher, append(opts, auth.WithNotifier(directory, noticeMailer))...)
	if err != nil {
		a.Close()
		return oops.Code("APP_INIT_FAILED").Wrap(err)
	}
	a.resets, err = auth.NewPasswordResetService(
		a.store,
		postgres.NewResetCodeLedger(pool),
		postgres.NewTransactor(pool),
		hasher,
		directory,
		resetMailer,
		opts...,
	)
	if err != nil {
		a.Close()
		return oops.Code("APP_INIT_FAILED").Wrap(err)
	}
	return nil
}

// ready pings the database when one is configured.
func (a *app) ready(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping(ctx)
}

func (a *app) pendingWrites() int {
	if a.store == nil {
		return 0
	}
	return len(a.store.PendingWrites())
}

// Close releases the database pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
