// Package tx carries a SQL transaction through context so every store
// touched during a lifecycle transition writes through the same transaction
// without the service layer threading *sql.Tx explicitly.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx binds the transaction into the context. Stores call From to join it;
// a nil tx leaves the context untouched so callers can pass through freely.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the ambient transaction, if one was bound by WithTx. Stores
// fall back to their plain DB handle when none is present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
