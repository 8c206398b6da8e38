// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Reset code configuration.
const (
	ResetCodeDigits = 6
	ResetCodeExpiry = time.Hour
)

var resetCodeSpan = big.NewInt(900000)

// ResetRequest is one issued reset code.
type ResetRequest struct {
	ID        int64
	Username  string
	Code      string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// NewResetRequest creates a validated ResetRequest that expires
// ResetCodeExpiry after now.
func NewResetRequest(username, code, email string, now time.Time) (*ResetRequest, error) {
	if strings.TrimSpace(username) == "" {
		return nil, oops.Code(CodeMissingUsername).Wrap(ErrMissingUsername)
	}
	if !isResetCode(code) {
		return nil, oops.Code("RESET_CODE_MALFORMED").Errorf("reset code must be %d digits", ResetCodeDigits)
	}
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code(CodeMissingEmail).Wrap(ErrMissingEmail)
	}
	if now.IsZero() {
		return nil, oops.Code("RESET_INVALID_TIME").Errorf("creation time cannot be zero")
	}
	return &ResetRequest{
		Username:  username,
		Code:      code,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ResetCodeExpiry),
	}, nil
}

// IsExpiredAt reports whether the request has expired at t.
func (r *ResetRequest) IsExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// Matches compares code against the stored code in constant time.
func (r *ResetRequest) Matches(code string) bool {
	if code == "" || r.Code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(r.Code), []byte(code)) == 1
}

// GenerateResetCode returns a uniformly random code in [100000, 999999].
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpan)
	if err != nil {
		return "", oops.Code("RESET_CODE_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func isResetCode(code string) bool {
	if len(code) != ResetCodeDigits {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ResetCodeLedger persists reset requests. At most one unused request per
// username exists once InvalidateActive and Create have run together.
type ResetCodeLedger interface {
	// InvalidateActive marks every unused request for username as used.
	InvalidateActive(ctx context.Context, username string) (int64, error)

	// Create stores req and sets its ID.
	Create(ctx context.Context, req *ResetRequest) error

	// FindActive returns the most recent unused request for username, or ErrNotFound.
	FindActive(ctx context.Context, username string) (*ResetRequest, error)

	// MarkUsed consumes the request. Returns ErrNotFound if it was already used.
	MarkUsed(ctx context.Context, id int64) error
}

// Transactor runs fn inside a single relational transaction. Repositories
// called with the context passed to fn join that transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
