package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "educaid/pkg/domain-errors"
	txcontext "educaid/pkg/platform/tx"
)

const defaultCycleTxTimeout = 5 * time.Second

// cyclePostgresTx runs lifecycle transitions inside one database transaction.
// The *sql.Tx rides in the context so every store touched by fn writes
// through the same transaction.
type cyclePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newCyclePostgresTx(db *sql.DB) *cyclePostgresTx {
	return &cyclePostgresTx{db: db}
}

func (t *cyclePostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultCycleTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
