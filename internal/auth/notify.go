// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"bytes"
	"context"
	"html/template"

	"github.com/samber/oops"
)

// Mailer delivers HTML email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// EmailDirectory resolves the email address of record for a username.
type EmailDirectory interface {
	// LookupEmail returns the address or ErrNotFound.
	LookupEmail(ctx context.Context, username string) (string, error)
}

// Email subjects.
const (
	ResetCodeSubject      = "HPMS Password Reset Request"
	AccountCreatedSubject = "Your HPMS Account Has Been Created"
)

var resetCodeTemplate = template.Must(template.New("reset_code").Parse(`<html><body style="font-family: Arial, sans-serif;">
<h2>Password Reset Request</h2>
<p>Hello {{.Username}},</p>
<p>We received a request to reset the password for your HPMS account.</p>
<p>Your password reset code is:</p>
<p style="font-size: 24px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
<p>This code expires in {{.Minutes}} minutes. If you did not request a reset, you can ignore this email.</p>
</body></html>`))

var accountCreatedTemplate = template.Must(template.New("account_created").Parse(`<html><body style="font-family: Arial, sans-serif;">
<h2>Welcome to HPMS</h2>
<p>Hello {{.Username}},</p>
<p>An administrator created an HPMS account for you with the role <strong>{{.Role}}</strong>.</p>
<p>Your administrator will give you your initial password. Change it after your first login.</p>
</body></html>`))

func renderResetCodeEmail(username, code string) (string, error) {
	var buf bytes.Buffer
	err := resetCodeTemplate.Execute(&buf, struct {
		Username string
		Code     string
		Minutes  int
	}{username, code, int(ResetCodeExpiry.Minutes())})
	if err != nil {
		return "", oops.Code("EMAIL_RENDER_FAILED").With("template", "reset_code").Wrap(err)
	}
	return buf.String(), nil
}

func renderAccountCreatedEmail(username string, role Role) (string, error) {
	var buf bytes.Buffer
	err := accountCreatedTemplate.Execute(&buf, struct {
		Username string
		Role     Role
	}{username, role})
	if err != nil {
		return "", oops.Code("EMAIL_RENDER_FAILED").With("template", "account_created").Wrap(err)
	}
	return buf.String(), nil
}
