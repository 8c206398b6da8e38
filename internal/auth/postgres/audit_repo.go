// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/hpms/hpms/internal/auth"
)

// AuditLog implements auth.AuditRecorder on the audit_log table.
type AuditLog struct {
	pool Pool
}

var _ auth.AuditRecorder = (*AuditLog)(nil)

// NewAuditLog creates a new AuditLog.
func NewAuditLog(pool Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

// Record appends event to the audit log.
func (a *AuditLog) Record(ctx context.Context, event auth.AuditEvent) error {
	_, err := conn(ctx, a.pool).Exec(ctx, `
		INSERT INTO audit_log (id, actor, action, target, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID.String(), event.Actor, event.Action, event.Target, event.Detail, event.CreatedAt)
	if err != nil {
		return oops.Code("AUDIT_RECORD_FAILED").
			With("action", event.Action).
			With("target", event.Target).
			Wrap(err)
	}
	return nil
}
