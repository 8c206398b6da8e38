// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/hpms/hpms/internal/auth"
)

// LogMailer implements auth.Mailer by logging the recipient and subject.
// Bodies are never logged because they carry reset codes.
type LogMailer struct {
	logger *slog.Logger
}

var _ auth.Mailer = (*LogMailer)(nil)

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendEmail logs the message envelope.
func (m *LogMailer) SendEmail(ctx context.Context, to, subject, _ string) error {
	m.logger.WarnContext(ctx, "smtp not configured, email not delivered", "to", to, "subject", subject)
	return nil
}
