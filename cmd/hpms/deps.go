// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/hpms/hpms/internal/auth"
	"github.com/hpms/hpms/internal/auth/postgres"
	"github.com/hpms/hpms/internal/config"
	"github.com/hpms/hpms/internal/mail"
	"github.com/hpms/hpms/internal/observability"
	"github.com/hpms/hpms/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory opens the database pool.
	// Default: store.Open
	PoolFactory func(ctx context.Context, url string, opts store.OpenOptions) (DBPool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// MailerFactory creates the mailer used for reset codes.
	// Default: mail.NewSMTPMailer
	MailerFactory func(cfg config.SMTP, logger *slog.Logger) auth.Mailer

	// HasherFactory creates the password hasher.
	// Default: auth.NewArgon2idHasherWithParams
	HasherFactory func(cfg config.Argon2) auth.PasswordHasher

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(opts observability.Options) ObservabilityServer
}

// DBPool wraps the methods used from *pgxpool.Pool.
type DBPool interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Pending() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *auth.Metrics
}

func (d *Deps) poolFactory() func(ctx context.Context, url string, opts store.OpenOptions) (DBPool, error) {
	if d.PoolFactory != nil {
		return d.PoolFactory
	}
	return func(ctx context.Context, url string, opts store.OpenOptions) (DBPool, error) {
		pool, err := store.Open(ctx, url, opts)
		if err != nil {
			return nil, err
		}
		return pool, nil
	}
}

func (d *Deps) migratorFactory() func(url string) (Migrator, error) {
	if d.MigratorFactory != nil {
		return d.MigratorFactory
	}
	return func(url string) (Migrator, error) {
		m, err := store.NewMigrator(url)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func (d *Deps) mailerFactory() func(cfg config.SMTP, logger *slog.Logger) auth.Mailer {
	if d.MailerFactory != nil {
		return d.MailerFactory
	}
	return func(cfg config.SMTP, logger *slog.Logger) auth.Mailer {
		return mail.NewSMTPMailer(mail.Settings{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
			StartTLS: cfg.StartTLS,
		}, logger)
	}
}

func (d *Deps) hasherFactory() func(cfg config.Argon2) auth.PasswordHasher {
	if d.HasherFactory != nil {
		return d.HasherFactory
	}
	return func(cfg config.Argon2) auth.PasswordHasher {
		return auth.NewArgon2idHasherWithParams(auth.Argon2Params{
			Time:    cfg.Time,
			Memory:  cfg.MemoryKiB,
			Threads: cfg.Threads,
		})
	}
}

func (d *Deps) observabilityServerFactory() func(opts observability.Options) ObservabilityServer {
	if d.ObservabilityServerFactory != nil {
		return d.ObservabilityServerFactory
	}
	return func(opts observability.Options) ObservabilityServer {
		return observability.NewServer(opts)
	}
}
