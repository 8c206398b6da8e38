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

// ContactDirectory resolves email addresses of record from the patient and
// staff tables. A patient's contact field counts only when it holds an email
// address; otherwise the staff record is used.
type ContactDirectory struct {
	pool Pool
}

var _ auth.EmailDirectory = (*ContactDirectory)(nil)

// NewContactDirectory creates a new ContactDirectory.
func NewContactDirectory(pool Pool) *ContactDirectory {
	return &ContactDirectory{pool: pool}
}

// LookupEmail returns the email of record for username, or auth.ErrNotFound.
func (d *ContactDirectory) LookupEmail(ctx context.Context, username string) (string, error) {
	var email string
	err := conn(ctx, d.pool).QueryRow(ctx, `
		SELECT email FROM (
			SELECT contact AS email, 0 AS rank FROM patients
			WHERE id = $1 AND contact LIKE '%@%'
			UNION ALL
			SELECT email, 1 AS rank FROM staff
			WHERE id = $1 AND email IS NOT NULL AND email <> ''
		) AS candidates
		ORDER BY rank
		LIMIT 1
	`, username).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("CONTACT_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("CONTACT_LOOKUP_FAILED").With("username", username).Wrap(err)
	}
	return email, nil
}
