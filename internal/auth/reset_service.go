// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/hpms/hpms/pkg/errutil"
)

// Reset request messages shown to the requester.
const (
	// ResetGenericMessage is returned whenever the username or email does not
	// match an account, so callers cannot discover accounts.
	ResetGenericMessage = "If an account exists with this email, a reset code has been sent"
	ResetSentMessage    = "Password reset code sent to your email"
)

// ResetOutcome classifies a successful reset request.
type ResetOutcome string

// Reset request outcomes.
const (
	ResetOutcomeSent    ResetOutcome = "sent"
	ResetOutcomeGeneric ResetOutcome = "generic"
)

// ResetRequestResult is returned by RequestPasswordReset.
type ResetRequestResult struct {
	Outcome ResetOutcome
	Message string
}

// PasswordResetService runs the two-step, email-verified reset flow.
type PasswordResetService struct {
	store     *CredentialStore
	ledger    ResetCodeLedger
	tx        Transactor
	hasher    PasswordHasher
	directory EmailDirectory
	mailer    Mailer
	options
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	store *CredentialStore,
	ledger ResetCodeLedger,
	tx Transactor,
	hasher PasswordHasher,
	directory EmailDirectory,
	mailer Mailer,
	opts ...Option,
) (*PasswordResetService, error) {
	switch {
	case store == nil:
		return nil, oops.Errorf("credential store is required")
	case ledger == nil:
		return nil, oops.Errorf("reset code ledger is required")
	case tx == nil:
		return nil, oops.Errorf("transactor is required")
	case hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case directory == nil:
		return nil, oops.Errorf("email directory is required")
	case mailer == nil:
		return nil, oops.Errorf("mailer is required")
	}
	return &PasswordResetService{
		store:     store,
		ledger:    ledger,
		tx:        tx,
		hasher:    hasher,
		directory: directory,
		mailer:    mailer,
		options:   newOptions(opts),
	}, nil
}

// RequestPasswordReset issues a fresh code for username and emails it to the
// address of record. Earlier unused codes are invalidated in the same
// transaction that stores the new one. If email delivery fails the error is
// ErrEmailDeliveryFailed and the new code remains redeemable.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, username, email string) (result *ResetRequestResult, err error) {
	ctx, span := startSpan(ctx, "auth.RequestPasswordReset", username)
	defer func() { endSpan(span, err) }()

	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" {
		return nil, oops.Code(CodeMissingUsername).With("operation", "request reset").Wrap(ErrMissingUsername)
	}
	if email == "" {
		return nil, oops.Code(CodeMissingEmail).With("operation", "request reset").Wrap(ErrMissingEmail)
	}

	recordEmail, err := s.directory.LookupEmail(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.resetRequest("generic")
			return genericResetResult(), nil
		}
		s.metrics.resetRequest("error")
		return nil, oops.Code(CodeDatabase).
			With("operation", "lookup email").
			Wrap(fmt.Errorf("%w: %w", ErrDatabase, err))
	}
	if !strings.EqualFold(strings.TrimSpace(recordEmail), email) {
		s.metrics.resetRequest("generic")
		return genericResetResult(), nil
	}

	code, err := GenerateResetCode()
	if err != nil {
		return nil, err
	}
	req, err := NewResetRequest(username, code, recordEmail, s.now())
	if err != nil {
		return nil, err
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.ledger.InvalidateActive(ctx, username); err != nil {
			return err
		}
		return s.ledger.Create(ctx, req)
	})
	if err != nil {
		s.metrics.resetRequest("error")
		return nil, oops.Code(CodeDatabase).
			With("operation", "store reset code").
			With("username", username).
			Wrap(fmt.Errorf("%w: %w", ErrDatabase, err))
	}

	body, err := renderResetCodeEmail(username, code)
	if err == nil {
		err = s.mailer.SendEmail(ctx, recordEmail, ResetCodeSubject, body)
	}
	if err != nil {
		s.metrics.resetRequest("delivery_failed")
		errutil.LogWarn(ctx, s.logger, "reset code not delivered", err, "username", username)
		return nil, oops.Code(CodeEmailDeliveryFailed).
			With("username", username).
			Wrap(fmt.Errorf("%w: %w", ErrEmailDeliveryFailed, err))
	}

	s.metrics.resetRequest("sent")
	s.record(ctx, username, ActionPasswordResetRequest, username, "reset code sent")
	s.logger.InfoContext(ctx, "reset code issued", "username", username, "request_id", req.ID)
	return &ResetRequestResult{Outcome: ResetOutcomeSent, Message: ResetSentMessage}, nil
}

// ResetPasswordWithCode redeems a code and sets newPassword. Consuming the
// code and writing the password happen in one transaction.
func (s *PasswordResetService) ResetPasswordWithCode(ctx context.Context, username, code, newPassword string) (err error) {
	ctx, span := startSpan(ctx, "auth.ResetPasswordWithCode", username)
	defer func() { endSpan(span, err) }()

	username, code = strings.TrimSpace(username), strings.TrimSpace(code)
	if username == "" || code == "" || strings.TrimSpace(newPassword) == "" || tooShort(newPassword) {
		s.metrics.resetRedemption("invalid_parameters")
		return oops.Code(CodeInvalidParameters).
			With("min_length", MinPasswordLength).
			Wrap(ErrInvalidParameters)
	}

	req, err := s.ledger.FindActive(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.resetRedemption("invalid_code")
			return invalidCode(username)
		}
		return oops.Code(CodeDatabase).
			With("operation", "find reset code").
			Wrap(fmt.Errorf("%w: %w", ErrDatabase, err))
	}
	if !req.Matches(code) {
		s.metrics.resetRedemption("invalid_code")
		return invalidCode(username)
	}
	if req.IsExpiredAt(s.now()) {
		s.metrics.resetRedemption("expired")
		return oops.Code(CodeCodeExpired).
			With("username", username).
			With("expires_at", req.ExpiresAt).
			Wrap(ErrCodeExpired)
	}

	u, ok := s.store.Find(ctx, username)
	if !ok {
		return oops.Code(CodeUnknownUser).With("username", username).Wrap(ErrUnknownUser)
	}
	salt, digest, err := deriveCredential(s.hasher, newPassword)
	if err != nil {
		return oops.With("operation", "reset password").Wrap(err)
	}
	u.SetCredential(salt, digest)

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.ledger.MarkUsed(ctx, req.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidCode(username)
			}
			return err
		}
		return s.store.Persist(ctx, u)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredCode) {
			s.metrics.resetRedemption("invalid_code")
			return err
		}
		s.metrics.resetRedemption("error")
		if errors.Is(err, ErrDatabase) {
			return err
		}
		return oops.Code(CodeDatabase).
			With("operation", "redeem reset code").
			With("username", username).
			Wrap(fmt.Errorf("%w: %w", ErrDatabase, err))
	}
	s.store.Remember(u)

	s.metrics.resetRedemption("success")
	s.record(ctx, username, ActionPasswordResetComplete, username, "password reset via code")
	s.logger.InfoContext(ctx, "password reset with code", "username", username, "request_id", req.ID)
	return nil
}

func genericResetResult() *ResetRequestResult {
	return &ResetRequestResult{Outcome: ResetOutcomeGeneric, Message: ResetGenericMessage}
}

func invalidCode(username string) error {
	return oops.Code(CodeInvalidOrExpiredCode).With("username", username).Wrap(ErrInvalidOrExpiredCode)
}
