package service

import (
	"context"
	"sync"
	"time"

	dErrors "educaid/pkg/domain-errors"
)

// StoreTx provides the transactional boundary for cycle transitions. The
// Postgres runner binds a database transaction into the context; the memory
// runner serializes transitions and rolls participating stores back on error.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

const defaultTxTimeout = 5 * time.Second

// SnapshotRestorer is implemented by memory stores that participate in the
// in-memory transaction runner.
type SnapshotRestorer interface {
	Snapshot() any
	Restore(snapshot any)
}

// MemoryStoreTx serializes transitions under one mutex and restores every
// participating store when fn fails, so a mid-transaction failure observably
// rolls back.
type MemoryStoreTx struct {
	mu     sync.Mutex
	stores []SnapshotRestorer
}

// NewMemoryStoreTx constructs a runner over the participating memory stores.
func NewMemoryStoreTx(stores ...SnapshotRestorer) *MemoryStoreTx {
	return &MemoryStoreTx{stores: stores}
}

func (t *MemoryStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	snapshots := make([]any, len(t.stores))
	for i, store := range t.stores {
		snapshots[i] = store.Snapshot()
	}
	if err := fn(ctx); err != nil {
		for i, store := range t.stores {
			store.Restore(snapshots[i])
		}
		return err
	}
	return nil
}

// passthroughTx runs fn without any transactional boundary. Default when no
// runner is wired.
type passthroughTx struct{}

// NewPassthroughTx constructs a no-op transaction runner.
func NewPassthroughTx() StoreTx {
	return passthroughTx{}
}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}
