// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/hpms/hpms/pkg/errutil"
)

// Bootstrap administrator.
const (
	AdminUsername = "admin"
	//nolint:gosec // G101: documented bootstrap password, changed after first login
	DefaultAdminPassword = "admin123"
)

// AccountResult describes a successful account write.
type AccountResult struct {
	Username string
	Role     Role
	// Created is false when an existing record was updated or a degraded
	// write left the relational state unknown.
	Created bool
	// Degraded is true when the write only reached the in-memory store.
	Degraded bool
}

// Service provides login, registration and password management.
type Service struct {
	store  *CredentialStore
	hasher PasswordHasher
	options

	dummyOnce   sync.Once
	dummySalt   string
	dummyDigest string
}

// NewAuthService creates a new Service.
func NewAuthService(store *CredentialStore, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Service{
		store:   store,
		hasher:  hasher,
		options: newOptions(opts),
	}, nil
}

// SeedAdmin creates the admin account with DefaultAdminPassword unless it
// already exists. It never overwrites an existing admin.
func (s *Service) SeedAdmin(ctx context.Context) (result *AccountResult, err error) {
	ctx, span := startSpan(ctx, "auth.SeedAdmin", AdminUsername)
	defer func() { endSpan(span, err) }()

	if s.store.Exists(ctx, AdminUsername) {
		return &AccountResult{Username: AdminUsername, Role: RoleAdmin}, nil
	}

	u, err := s.newUser(AdminUsername, RoleAdmin, DefaultAdminPassword)
	if err != nil {
		return nil, oops.With("operation", "seed admin").Wrap(err)
	}
	res, err := s.store.Create(ctx, u)
	if errors.Is(err, ErrUsernameExists) {
		return &AccountResult{Username: AdminUsername, Role: RoleAdmin}, nil
	}
	if err != nil {
		return nil, oops.With("operation", "seed admin").Wrap(err)
	}

	s.logger.InfoContext(ctx, "admin account seeded", "username", AdminUsername, "degraded", res.Degraded)
	return &AccountResult{Username: AdminUsername, Role: RoleAdmin, Created: true, Degraded: res.Degraded}, nil
}

// Login authenticates username and binds it to sess.
//
// Unknown users and wrong passwords fail with the same ErrInvalidCredentials
// and both run one hash verification. Deactivated accounts are rejected
// before the password is checked.
func (s *Service) Login(ctx context.Context, sess *Session, username, password string) (principal Principal, err error) {
	ctx, span := startSpan(ctx, "auth.Login", username)
	defer func() { endSpan(span, err) }()

	if sess == nil {
		return Principal{}, oops.Errorf("session is required")
	}
	if strings.TrimSpace(username) == "" {
		s.metrics.login("missing_username")
		return Principal{}, oops.Code(CodeMissingUsername).With("operation", "login").Wrap(ErrMissingUsername)
	}

	u, found := s.store.Find(ctx, username)
	if found && !u.IsActive() {
		s.metrics.login("deactivated")
		return Principal{}, oops.Code(CodeAccountDeactivated).
			With("operation", "login").
			With("username", username).
			Wrap(ErrAccountDeactivated)
	}

	if !found || !u.HasPassword() || !s.verify(ctx, u, password) {
		if !found || !u.HasPassword() {
			s.verifyDummy(password)
		}
		s.metrics.login("invalid_credentials")
		return Principal{}, oops.Code(CodeInvalidCredentials).With("operation", "login").Wrap(ErrInvalidCredentials)
	}

	principal = Principal{Username: u.Username, Role: u.Role}
	sess.set(principal)
	s.metrics.login("success")
	s.record(ctx, u.Username, ActionLogin, u.Username, "")
	s.logger.InfoContext(ctx, "login succeeded", "username", u.Username, "role", string(u.Role))
	return principal, nil
}

// Logout clears sess and returns the principal that was logged in, if any.
func (s *Service) Logout(ctx context.Context, sess *Session) (Principal, bool) {
	if sess == nil {
		return Principal{}, false
	}
	p, ok := sess.clear()
	if ok {
		s.record(ctx, p.Username, ActionLogout, p.Username, "")
	}
	return p, ok
}

// Register creates a new active account. Only an admin session may register.
func (s *Service) Register(ctx context.Context, sess *Session, username, password, role string) (result *AccountResult, err error) {
	ctx, span := startSpan(ctx, "auth.Register", username)
	defer func() { endSpan(span, err) }()

	admin, ok := sess.Current()
	if !ok || !admin.IsAdmin() {
		return nil, oops.Code(CodeUnauthorized).With("operation", "register").Wrap(ErrUnauthorized)
	}
	if blank(username, password, role) {
		return nil, oops.Code(CodeMissingParameters).With("operation", "register").Wrap(ErrMissingParameters)
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	if s.store.Exists(ctx, username) {
		return nil, oops.Code(CodeUsernameExists).With("username", username).Wrap(ErrUsernameExists)
	}

	u, err := s.newUser(username, r, password)
	if err != nil {
		return nil, oops.With("operation", "register").Wrap(err)
	}
	res, err := s.store.Create(ctx, u)
	if err != nil {
		return nil, err
	}

	s.record(ctx, admin.Username, ActionRegister, username, string(r))
	s.notifyAccountCreated(ctx, username, r)
	return &AccountResult{Username: username, Role: r, Created: true, Degraded: res.Degraded}, nil
}

// CreatePatientAccount creates or overwrites a PATIENT account. It needs no
// session. An existing account keeps its status.
func (s *Service) CreatePatientAccount(ctx context.Context, username, password string) (result *AccountResult, err error) {
	ctx, span := startSpan(ctx, "auth.CreatePatientAccount", username)
	defer func() { endSpan(span, err) }()

	if blank(username, password) {
		return nil, oops.Code(CodeMissingParameters).With("operation", "create patient account").Wrap(ErrMissingParameters)
	}

	u, err := s.newUser(username, RolePatient, password)
	if err != nil {
		return nil, oops.With("operation", "create patient account").Wrap(err)
	}
	if existing, ok := s.store.Find(ctx, username); ok {
		u.Status = existing.Status
	}
	res, err := s.store.Upsert(ctx, u)
	if err != nil {
		return nil, oops.With("operation", "create patient account").Wrap(err)
	}

	s.record(ctx, username, ActionCreatePatientAccount, username, "")
	return &AccountResult{Username: username, Role: RolePatient, Created: res.Created, Degraded: res.Degraded}, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) (result *AccountResult, err error) {
	ctx, span := startSpan(ctx, "auth.ChangePassword", username)
	defer func() { endSpan(span, err) }()

	if blank(username, oldPassword, newPassword) {
		return nil, oops.Code(CodeMissingParameters).With("operation", "change password").Wrap(ErrMissingParameters)
	}
	u, ok := s.store.Find(ctx, username)
	if !ok {
		return nil, oops.Code(CodeUnknownUser).With("username", username).Wrap(ErrUnknownUser)
	}
	if !u.HasPassword() || !s.verify(ctx, u, oldPassword) {
		return nil, oops.Code(CodeIncorrectPassword).With("username", username).Wrap(ErrIncorrectPassword)
	}
	if tooShort(newPassword) {
		return nil, oops.Code(CodePasswordTooShort).With("min_length", MinPasswordLength).Wrap(ErrPasswordTooShort)
	}
	return s.replacePassword(ctx, u, newPassword, ActionChangePassword)
}

// ChangePasswordNoOld replaces the password without checking the current
// one. Callers must have authorized the change.
func (s *Service) ChangePasswordNoOld(ctx context.Context, username, newPassword string) (result *AccountResult, err error) {
	ctx, span := startSpan(ctx, "auth.ChangePasswordNoOld", username)
	defer func() { endSpan(span, err) }()

	if blank(username, newPassword) {
		return nil, oops.Code(CodeMissingParameters).With("operation", "change password").Wrap(ErrMissingParameters)
	}
	u, ok := s.store.Find(ctx, username)
	if !ok {
		return nil, oops.Code(CodeUnknownUser).With("username", username).Wrap(ErrUnknownUser)
	}
	if tooShort(newPassword) {
		return nil, oops.Code(CodePasswordTooShort).With("min_length", MinPasswordLength).Wrap(ErrPasswordTooShort)
	}
	return s.replacePassword(ctx, u, newPassword, ActionChangePassword)
}

// ResetPassword assigns a random password and returns it. The plaintext is
// not kept anywhere; the caller shows it once. A blank or unknown username
// yields ("", nil).
func (s *Service) ResetPassword(ctx context.Context, username string) (password string, err error) {
	ctx, span := startSpan(ctx, "auth.ResetPassword", username)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(username) == "" {
		return "", nil
	}
	u, ok := s.store.Find(ctx, username)
	if !ok {
		return "", nil
	}

	password, err = GeneratePassword(GeneratedPasswordLength)
	if err != nil {
		return "", err
	}
	if _, err := s.replacePassword(ctx, u, password, ActionResetPassword); err != nil {
		return "", err
	}
	return password, nil
}

// VerifyCredentials reports whether password matches the stored digest. It
// does not look at account status.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) bool {
	u, ok := s.store.Find(ctx, username)
	if !ok || !u.HasPassword() {
		s.verifyDummy(password)
		return false
	}
	return s.verify(ctx, u, password)
}

// MigratePasswordsIfMissing assigns a password to every non-admin user with
// no digest, reusing a legacy display password when present. It returns the
// assigned plaintexts by username for one-time hand-off.
func (s *Service) MigratePasswordsIfMissing(ctx context.Context) (assigned map[string]string, err error) {
	ctx, span := startSpan(ctx, "auth.MigratePasswordsIfMissing", "")
	defer func() { endSpan(span, err) }()

	if _, loadErr := s.store.Load(ctx); loadErr != nil {
		errutil.LogWarn(ctx, s.logger, "password migration using in-memory users only", loadErr)
	}

	assigned = make(map[string]string)
	for _, u := range s.store.Users() {
		if u.IsAdmin() || u.HasPassword() {
			continue
		}
		password := u.DisplayPassword
		if password == "" {
			if password, err = GeneratePassword(GeneratedPasswordLength); err != nil {
				return assigned, err
			}
		}
		if _, err := s.replacePassword(ctx, u, password, ActionResetPassword); err != nil {
			return assigned, err
		}
		assigned[u.Username] = password
	}

	if len(assigned) > 0 {
		s.logger.InfoContext(ctx, "assigned passwords to legacy accounts", "count", len(assigned))
	}
	return assigned, nil
}

// SetAccountStatus activates or deactivates an account. Only an admin
// session may change status, and an admin cannot deactivate itself.
func (s *Service) SetAccountStatus(ctx context.Context, sess *Session, username string, status Status) (result *AccountResult, err error) {
	ctx, span := startSpan(ctx, "auth.SetAccountStatus", username)
	defer func() { endSpan(span, err) }()

	admin, ok := sess.Current()
	if !ok || !admin.IsAdmin() {
		return nil, oops.Code(CodeUnauthorized).With("operation", "set account status").Wrap(ErrUnauthorized)
	}
	if blank(username) {
		return nil, oops.Code(CodeMissingParameters).With("operation", "set account status").Wrap(ErrMissingParameters)
	}
	if status != StatusActive && status != StatusDeactivated {
		return nil, oops.Code(CodeInvalidParameters).With("status", string(status)).Wrap(ErrInvalidParameters)
	}
	if status == StatusDeactivated && username == admin.Username {
		return nil, oops.Code(CodeInvalidParameters).
			With("username", username).
			Wrapf(ErrInvalidParameters, "cannot deactivate the current session's account")
	}

	u, ok := s.store.Find(ctx, username)
	if !ok {
		return nil, oops.Code(CodeUnknownUser).With("username", username).Wrap(ErrUnknownUser)
	}
	u.Status = status
	res, err := s.store.Upsert(ctx, u)
	if err != nil {
		return nil, oops.With("operation", "set account status").Wrap(err)
	}

	s.record(ctx, admin.Username, ActionSetStatus, username, string(status))
	return &AccountResult{Username: username, Role: u.Role, Degraded: res.Degraded}, nil
}

func (s *Service) newUser(username string, role Role, password string) (*User, error) {
	salt, digest, err := s.derive(password)
	if err != nil {
		return nil, err
	}
	return NewUser(username, role, salt, digest)
}

func (s *Service) replacePassword(ctx context.Context, u *User, password, action string) (*AccountResult, error) {
	salt, digest, err := s.derive(password)
	if err != nil {
		return nil, oops.With("operation", strings.ToLower(action)).With("username", u.Username).Wrap(err)
	}
	u.SetCredential(salt, digest)
	res, err := s.store.Upsert(ctx, u)
	if err != nil {
		return nil, oops.With("operation", strings.ToLower(action)).Wrap(err)
	}

	s.record(ctx, u.Username, action, u.Username, "")
	return &AccountResult{Username: u.Username, Role: u.Role, Degraded: res.Degraded}, nil
}

// derive generates a fresh salt and the digest of password under it.
func (s *Service) derive(password string) (salt, digest string, err error) {
	return deriveCredential(s.hasher, password)
}

func deriveCredential(hasher PasswordHasher, password string) (salt, digest string, err error) {
	salt, err = hasher.GenerateSalt()
	if err != nil {
		return "", "", err
	}
	digest, err = hasher.Hash(password, salt)
	if err != nil {
		return "", "", err
	}
	return salt, digest, nil
}

func (s *Service) verify(ctx context.Context, u *User, password string) bool {
	ok, err := s.hasher.Verify(password, u.Salt, u.PasswordHash)
	if err != nil {
		if password != "" {
			errutil.LogWarn(ctx, s.logger, "stored credential could not be verified", err, "username", u.Username)
		}
		return false
	}
	return ok
}

// verifyDummy runs one verification against a throwaway digest so unknown
// users cost the same as wrong passwords.
func (s *Service) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		salt, digest, err := s.derive("hpms-unmatchable-placeholder")
		if err == nil {
			s.dummySalt, s.dummyDigest = salt, digest
		}
	})
	if s.dummyDigest == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummySalt, s.dummyDigest) //nolint:errcheck // result is discarded
}

func (s *Service) notifyAccountCreated(ctx context.Context, username string, role Role) {
	if s.mailer == nil || s.directory == nil {
		return
	}
	email, err := s.directory.LookupEmail(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogWarn(ctx, s.logger, "account notice skipped: email lookup failed", err, "username", username)
		}
		return
	}
	body, err := renderAccountCreatedEmail(username, role)
	if err != nil {
		errutil.LogWarn(ctx, s.logger, "account notice skipped", err, "username", username)
		return
	}
	if err := s.mailer.SendEmail(ctx, email, AccountCreatedSubject, body); err != nil {
		errutil.LogWarn(ctx, s.logger, "account notice not delivered", err, "username", username)
	}
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
