// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpms/hpms/pkg/errutil"
)

// Option configures the auth services.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	metrics   *Metrics
	audit     AuditRecorder
	mailer    Mailer
	directory EmailDirectory
	now       func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the service metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithAuditRecorder records security events. Recording is best effort.
func WithAuditRecorder(r AuditRecorder) Option {
	return func(o *options) {
		o.audit = r
	}
}

// WithNotifier enables account notices sent to the email of record.
func WithNotifier(directory EmailDirectory, mailer Mailer) Option {
	return func(o *options) {
		o.directory = directory
		o.mailer = mailer
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o *options) record(ctx context.Context, actor, action, target, detail string) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Record(ctx, NewAuditEvent(actor, action, target, detail)); err != nil {
		errutil.LogWarn(ctx, o.logger, "audit record failed", err, "action", action, "target", target)
	}
}
