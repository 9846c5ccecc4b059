package slots

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists signup slots in PostgreSQL. Slot deactivation is a
// best-effort step outside the finalize transaction, so it always runs on the
// base connection.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed slot store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DeactivateAll(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE signup_slots
		SET is_active = FALSE, deactivated_at = $1
		WHERE is_active = TRUE`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate signup slots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate signup slots: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) AnyActive(ctx context.Context) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM signup_slots WHERE is_active = TRUE)`).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check active signup slots: %w", err)
	}
	return active, nil
}
