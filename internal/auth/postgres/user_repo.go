// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/hpms/hpms/internal/auth"
)

const userColumns = `username, COALESCE(password, ''), COALESCE(salt, ''), role, COALESCE(status, 'ACTIVE'), COALESCE(display_password, '')`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Pool
}

var _ auth.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Get retrieves a user by username.
func (r *UserRepository) Get(ctx context.Context, username string) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").With("username", username).Wrap(err)
	}
	return u, nil
}

// Exists reports whether a row for username exists.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_EXISTS_FAILED").With("username", username).Wrap(err)
	}
	return exists, nil
}

// Create inserts a new user. A duplicate username is reported as
// auth.ErrUsernameExists.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (username, password, salt, role, status, display_password)
		VALUES ($1, $2, $3, $4, $5, NULL)
	`, user.Username, nullable(user.PasswordHash), nullable(user.Salt), string(user.Role), statusOf(user))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code(auth.CodeUsernameExists).With("username", user.Username).Wrap(auth.ErrUsernameExists)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// Upsert inserts the user or replaces its credential, role and status. The
// legacy display_password column is cleared on every write. It reports
// whether a new row was inserted.
func (r *UserRepository) Upsert(ctx context.Context, user *auth.User) (bool, error) {
	var created bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (username, password, salt, role, status, display_password)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (username) DO UPDATE SET
			password = EXCLUDED.password,
			salt = EXCLUDED.salt,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			display_password = NULL
		RETURNING (xmax = 0)
	`, user.Username, nullable(user.PasswordHash), nullable(user.Salt), string(user.Role), statusOf(user)).Scan(&created)
	if err != nil {
		return false, oops.Code("USER_UPSERT_FAILED").
			With("operation", "upsert user").
			With("username", user.Username).
			Wrap(err)
	}
	return created, nil
}

// List returns every user ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "scan user").Wrap(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u            auth.User
		role, status string
	)
	if err := row.Scan(&u.Username, &u.PasswordHash, &u.Salt, &role, &status, &u.DisplayPassword); err != nil {
		return nil, err
	}
	parsedRole, err := auth.ParseRole(role)
	if err != nil {
		return nil, oops.With("username", u.Username).Wrap(err)
	}
	parsedStatus, err := auth.ParseStatus(status)
	if err != nil {
		return nil, oops.With("username", u.Username).Wrap(err)
	}
	u.Role = parsedRole
	u.Status = parsedStatus
	return &u, nil
}

func statusOf(u *auth.User) string {
	if u.Status == "" {
		return string(auth.StatusActive)
	}
	return string(u.Status)
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
