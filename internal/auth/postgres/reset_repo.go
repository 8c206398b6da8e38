// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/hpms/hpms/internal/auth"
)

// ResetCodeLedger implements auth.ResetCodeLedger on the password_resets table.
type ResetCodeLedger struct {
	pool Pool
}

var _ auth.ResetCodeLedger = (*ResetCodeLedger)(nil)

// NewResetCodeLedger creates a new ResetCodeLedger.
func NewResetCodeLedger(pool Pool) *ResetCodeLedger {
	return &ResetCodeLedger{pool: pool}
}

// InvalidateActive marks every unused code for username as used and returns
// how many were invalidated.
//
// It first takes a transaction-scoped advisory lock on username, so
// concurrent requests for one user run invalidate-then-insert one after the
// other and leave a single active code. Call it inside a transaction; the
// lock is held until commit or rollback.
func (l *ResetCodeLedger) InvalidateActive(ctx context.Context, username string) (int64, error) {
	db := conn(ctx, l.pool)
	if _, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, username); err != nil {
		return 0, oops.Code("RESET_INVALIDATE_FAILED").
			With("username", username).
			With("stage", "lock").
			Wrap(err)
	}
	tag, err := db.Exec(ctx,
		`UPDATE password_resets SET is_used = TRUE WHERE username = $1 AND is_used = FALSE`, username)
	if err != nil {
		return 0, oops.Code("RESET_INVALIDATE_FAILED").With("username", username).Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// Create stores req and sets req.ID.
func (l *ResetCodeLedger) Create(ctx context.Context, req *auth.ResetRequest) error {
	err := conn(ctx, l.pool).QueryRow(ctx, `
		INSERT INTO password_resets (username, reset_code, email, created_at, expires_at, is_used)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id
	`, req.Username, req.Code, req.Email, req.CreatedAt, req.ExpiresAt).Scan(&req.ID)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("username", req.Username).
			Wrap(err)
	}
	return nil
}

// FindActive returns the most recent unused request for username. Expired
// requests are still returned so the caller can report expiry.
func (l *ResetCodeLedger) FindActive(ctx context.Context, username string) (*auth.ResetRequest, error) {
	var req auth.ResetRequest
	err := conn(ctx, l.pool).QueryRow(ctx, `
		SELECT id, username, reset_code, email, created_at, expires_at, is_used
		FROM password_resets
		WHERE username = $1 AND is_used = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, username).Scan(&req.ID, &req.Username, &req.Code, &req.Email, &req.CreatedAt, &req.ExpiresAt, &req.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_FIND_FAILED").With("username", username).Wrap(err)
	}
	return &req, nil
}

// MarkUsed consumes the request. The update is conditional on the request
// still being unused, so of two concurrent redemptions only one succeeds.
func (l *ResetCodeLedger) MarkUsed(ctx context.Context, id int64) error {
	tag, err := conn(ctx, l.pool).Exec(ctx,
		`UPDATE password_resets SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, id)
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}
