// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Failure kinds reported by the credential services. Services wrap these with
// an oops code and context; callers match them with errors.Is.
var (
	ErrMissingUsername      = errors.New("missing username")
	ErrMissingEmail         = errors.New("missing email")
	ErrMissingParameters    = errors.New("missing parameters")
	ErrInvalidParameters    = errors.New("invalid parameters")
	ErrUnknownUser          = errors.New("unknown user")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account is deactivated")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUsernameExists       = errors.New("username exists")
	ErrIncorrectPassword    = errors.New("current password incorrect")
	ErrPasswordTooShort     = errors.New("new password too short")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired reset code")
	ErrCodeExpired          = errors.New("reset code has expired")
	ErrEmailDeliveryFailed  = errors.New("email delivery failed")
	ErrPersistenceDegraded  = errors.New("persistence degraded")
	ErrDatabase             = errors.New("database error")
)

// Error codes attached to wrapped failures.
const (
	CodeMissingUsername      = "AUTH_MISSING_USERNAME"
	CodeMissingEmail         = "AUTH_MISSING_EMAIL"
	CodeMissingParameters    = "AUTH_MISSING_PARAMETERS"
	CodeInvalidParameters    = "AUTH_INVALID_PARAMETERS"
	CodeUnknownUser          = "AUTH_UNKNOWN_USER"
	CodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	CodeAccountDeactivated   = "AUTH_ACCOUNT_DEACTIVATED"
	CodeUnauthorized         = "AUTH_UNAUTHORIZED"
	CodeUsernameExists       = "AUTH_USERNAME_EXISTS"
	CodeIncorrectPassword    = "AUTH_INCORRECT_PASSWORD"
	CodePasswordTooShort     = "AUTH_PASSWORD_TOO_SHORT"
	CodeInvalidRole          = "AUTH_INVALID_ROLE"
	CodeInvalidOrExpiredCode = "RESET_CODE_INVALID"
	CodeCodeExpired          = "RESET_CODE_EXPIRED"
	CodeEmailDeliveryFailed  = "RESET_EMAIL_FAILED"
	CodePersistenceDegraded  = "AUTH_PERSISTENCE_DEGRADED"
	CodeDatabase             = "AUTH_DATABASE_ERROR"
)
