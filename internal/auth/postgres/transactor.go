// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/hpms/hpms/internal/auth"
)

// Transactor implements auth.Transactor using a connection pool.
// It stores the active pgx.Tx in context so that repository calls made by fn
// participate in the same transaction.
type Transactor struct {
	pool Pool
}

var _ auth.Transactor = (*Transactor)(nil)

// NewTransactor creates a Transactor backed by the given pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// If fn returns nil, the transaction is committed. Otherwise it is rolled
// back and fn's error is returned. A context that already carries a
// transaction is reused as is.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // fn error takes precedence
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}
