// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Audit actions.
const (
	ActionLogin                 = "LOGIN"
	ActionLogout                = "LOGOUT"
	ActionRegister              = "REGISTER"
	ActionCreatePatientAccount  = "CREATE_PATIENT_ACCOUNT"
	ActionChangePassword        = "CHANGE_PASSWORD"
	ActionResetPassword         = "RESET_PASSWORD"
	ActionSetStatus             = "SET_STATUS"
	ActionPasswordResetRequest  = "PASSWORD_RESET_REQUEST"
	ActionPasswordResetComplete = "PASSWORD_RESET_COMPLETE"
)

// AuditEvent records a security-relevant action on a user.
type AuditEvent struct {
	ID        ulid.ULID
	Actor     string
	Action    string
	Target    string
	Detail    string
	CreatedAt time.Time
}

// NewAuditEvent stamps a new event with an ID and the current time.
func NewAuditEvent(actor, action, target, detail string) AuditEvent {
	return AuditEvent{
		ID:        ulid.Make(),
		Actor:     actor,
		Action:    action,
		Target:    target,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
}

// AuditRecorder stores audit events.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
}
