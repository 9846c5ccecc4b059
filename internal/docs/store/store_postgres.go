package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists documents in PostgreSQL. The copy-then-delete pair
// runs in its own short transaction: document archival is best-effort
// relative to the finalize transaction, but the move itself must not lose
// rows halfway.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ArchiveAll(ctx context.Context, academicYear, semester string, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("archive documents: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO document_archives (id, student_id, document_type, file_path, uploaded_at, academic_year, semester, archived_at)
		SELECT gen_random_uuid(), student_id, document_type, file_path, uploaded_at, $1, $2, $3
		FROM documents`, academicYear, semester, now)
	if err != nil {
		return 0, fmt.Errorf("copy documents to archive: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("copy documents to archive: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return 0, fmt.Errorf("clear live documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive documents: %w", err)
	}
	return int(n), nil
}

// CountLive returns the number of live documents.
func (s *PostgresStore) CountLive(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// CountArchived returns the number of archived documents.
func (s *PostgresStore) CountArchived(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_archives`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archived documents: %w", err)
	}
	return n, nil
}
