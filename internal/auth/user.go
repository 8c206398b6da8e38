// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// Role is the access role of a user.
type Role string

// Known roles.
const (
	RoleAdmin     Role = "ADMIN"
	RoleDoctor    Role = "DOCTOR"
	RoleNurse     Role = "NURSE"
	RoleStaff     Role = "STAFF"
	RoleFrontDesk Role = "FRONT_DESK"
	RolePatient   Role = "PATIENT"
)

var knownRoles = map[Role]struct{}{
	RoleAdmin:     {},
	RoleDoctor:    {},
	RoleNurse:     {},
	RoleStaff:     {},
	RoleFrontDesk: {},
	RolePatient:   {},
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownRoles[r]; !ok {
		return "", oops.Code(CodeInvalidRole).With("role", s).Wrap(ErrInvalidRole)
	}
	return r, nil
}

// Status is the lifecycle state of an account.
type Status string

// Account statuses.
const (
	StatusActive      Status = "ACTIVE"
	StatusDeactivated Status = "DEACTIVATED"
)

// ParseStatus parses a status name case-insensitively. Empty means active.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case "", StatusActive:
		return StatusActive, nil
	case StatusDeactivated:
		return StatusDeactivated, nil
	default:
		return "", oops.Code(CodeInvalidParameters).With("status", s).Wrap(ErrInvalidParameters)
	}
}

// User is a credential record.
type User struct {
	Username     string
	PasswordHash string
	Salt         string
	Role         Role
	Status       Status
	// DisplayPassword is a plaintext mirror found on legacy rows. It is only
	// read by password migration and cleared on every password write.
	DisplayPassword string
}

// NewUser creates a validated active User.
func NewUser(username string, role Role, salt, passwordHash string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, oops.Code(CodeMissingUsername).Wrap(ErrMissingUsername)
	}
	if _, ok := knownRoles[role]; !ok {
		return nil, oops.Code(CodeInvalidRole).With("role", string(role)).Wrap(ErrInvalidRole)
	}
	if salt == "" || passwordHash == "" {
		return nil, oops.Code("USER_INVALID_CREDENTIAL").Errorf("salt and password hash are required")
	}
	return &User{
		Username:     username,
		PasswordHash: passwordHash,
		Salt:         salt,
		Role:         role,
		Status:       StatusActive,
	}, nil
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u.Status != StatusDeactivated
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPassword reports whether a digest has been assigned.
func (u *User) HasPassword() bool {
	return u.PasswordHash != "" && u.Salt != ""
}

// SetCredential replaces salt and digest together and drops any plaintext mirror.
func (u *User) SetCredential(salt, passwordHash string) {
	u.Salt = salt
	u.PasswordHash = passwordHash
	u.DisplayPassword = ""
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UserRepository is the relational side of the CredentialStore.
type UserRepository interface {
	// Get returns the user or ErrNotFound.
	Get(ctx context.Context, username string) (*User, error)

	// Exists reports whether a row for username exists.
	Exists(ctx context.Context, username string) (bool, error)

	// Create inserts a new user. Returns ErrUsernameExists on conflict.
	Create(ctx context.Context, user *User) error

	// Upsert inserts or replaces a user and reports whether a row was created.
	Upsert(ctx context.Context, user *User) (created bool, err error)

	// List returns every user ordered by username.
	List(ctx context.Context) ([]*User, error)
}
