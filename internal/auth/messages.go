// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import "errors"

// GenericFailureMessage is shown for errors without a specific message.
const GenericFailureMessage = "Error: The operation could not be completed"

var userMessages = []struct {
	kind    error
	message string
}{
	{ErrMissingUsername, "Error: Username required"},
	{ErrMissingEmail, "Error: Email required"},
	{ErrMissingParameters, "Error: Missing parameters"},
	{ErrInvalidParameters, "Error: Invalid parameters. Password must be at least 6 characters"},
	{ErrUnknownUser, "Error: Unknown user"},
	{ErrInvalidCredentials, "Error: Invalid credentials"},
	{ErrAccountDeactivated, "Error: Account is deactivated. Please contact administrator."},
	{ErrUnauthorized, "Error: Only admin can perform this action"},
	{ErrUsernameExists, "Error: Username exists"},
	{ErrIncorrectPassword, "Error: Current password incorrect"},
	{ErrPasswordTooShort, "Error: New password too short"},
	{ErrInvalidRole, "Error: Unknown role"},
	{ErrInvalidOrExpiredCode, "Error: Invalid or expired reset code"},
	{ErrCodeExpired, "Error: Reset code has expired. Please request a new one"},
	{ErrEmailDeliveryFailed, "Error: Failed to send email. Please contact administrator"},
	{ErrDatabase, "Error: Database unavailable. Please try again later"},
}

// UserMessage returns the message to show a user for err. It never includes
// internal detail such as SQL errors or which check failed during login.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.kind) {
			return m.message
		}
	}
	return GenericFailureMessage
}
