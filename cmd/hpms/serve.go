// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hpms/hpms/internal/config"
	"github.com/hpms/hpms/internal/observability"
	"github.com/hpms/hpms/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the credential store and serve metrics and health checks",
		Long: `Load the credential store and serve /metrics, /healthz/liveness and
/healthz/readiness until interrupted. Readiness pings the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps)
		},
	}
}

func runServe(cmd *cobra.Command, deps *Deps) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("metrics address is required (--%s, HPMS_METRICS_ADDR or metrics.addr)", config.FlagMetricsAddr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	srv := deps.observabilityServerFactory()(observability.Options{
		Addr:          cfg.Metrics.Addr,
		Ready:         a.ready,
		PendingWrites: a.pendingWrites,
		Logger:        logger,
	})
	if err := a.open(ctx, cfg, logger, deps, srv.Metrics()); err != nil {
		return err
	}
	defer a.Close()

	if n, err := a.store.Load(ctx); err != nil {
		errutil.LogWarn(ctx, logger, "could not load users, reading through on demand", err)
	} else {
		logger.InfoContext(ctx, "credential store loaded", "users", n, "relational", a.store.Relational())
	}

	errCh, err := srv.Start()
	if err != nil {
		return err
	}
	cmd.Printf("Serving metrics and health checks on %s\n", srv.Addr())

	var runErr error
	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutting down")
	case serveErr, ok := <-errCh:
		if ok && serveErr != nil {
			runErr = oops.Code("SERVE_FAILED").Wrap(serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if len(a.store.PendingWrites()) > 0 {
		flushed, err := a.store.Reconcile(shutdownCtx)
		if err != nil {
			errutil.LogWarn(shutdownCtx, logger, "pending writes not reconciled before exit", err, "flushed", flushed)
		}
	}
	if err := srv.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
