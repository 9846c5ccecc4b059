package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"educaid/internal/cycle/models"
	"educaid/pkg/platform/sentinel"
	txcontext "educaid/pkg/platform/tx"
)

// PostgresStore persists the snapshot ledger in PostgreSQL. A partial unique
// index on (academic_year, semester) WHERE finalized_at IS NOT NULL backs the
// one-finalized-row-per-period invariant at the storage layer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed snapshot store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const snapshotColumns = `id, academic_year, semester, distribution_date, total_students_count, location, notes, finalized_at`

func (s *PostgresStore) FindFinalized(ctx context.Context, academicYear string, semester models.Semester) (*models.DistributionSnapshot, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM distribution_snapshots
		WHERE academic_year = $1 AND semester = $2 AND finalized_at IS NOT NULL`,
		academicYear, semester)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find finalized snapshot: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) LatestFinalized(ctx context.Context) (*models.DistributionSnapshot, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM distribution_snapshots
		WHERE finalized_at IS NOT NULL
		ORDER BY distribution_date DESC
		LIMIT 1`)
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest finalized snapshot: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) FinalizedSemesters(ctx context.Context, academicYear string, after *time.Time) ([]models.Semester, error) {
	query := `
		SELECT DISTINCT semester
		FROM distribution_snapshots
		WHERE academic_year = $1 AND finalized_at IS NOT NULL`
	args := []any{academicYear}
	if after != nil {
		query += ` AND finalized_at > $2`
		args = append(args, *after)
	}
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list finalized semesters: %w", err)
	}
	defer rows.Close()
	var out []models.Semester
	for rows.Next() {
		var sem models.Semester
		if err := rows.Scan(&sem); err != nil {
			return nil, fmt.Errorf("scan semester: %w", err)
		}
		out = append(out, sem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate semesters: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListFinalized(ctx context.Context, limit int) ([]*models.DistributionSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM distribution_snapshots
		WHERE finalized_at IS NOT NULL
		ORDER BY finalized_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list finalized snapshots: %w", err)
	}
	defer rows.Close()
	var out []*models.DistributionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Finalize promotes the period's draft row or inserts a finalized row.
// Returns sentinel.ErrConflict when the period already has a finalized row.
func (s *PostgresStore) Finalize(ctx context.Context, snap *models.DistributionSnapshot, now time.Time) error {
	exec := s.execer(ctx)

	var exists bool
	err := exec.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM distribution_snapshots
			WHERE academic_year = $1 AND semester = $2 AND finalized_at IS NOT NULL
		)`, snap.AcademicYear, snap.Semester).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check finalized snapshot: %w", err)
	}
	if exists {
		return sentinel.ErrConflict
	}

	res, err := exec.ExecContext(ctx, `
		UPDATE distribution_snapshots
		SET distribution_date = $3, total_students_count = $4, location = $5, notes = $6, finalized_at = $7
		WHERE academic_year = $1 AND semester = $2 AND finalized_at IS NULL`,
		snap.AcademicYear, snap.Semester, snap.DistributionDate, snap.TotalStudents, snap.Location, snap.Notes, now)
	if err != nil {
		return fmt.Errorf("promote draft snapshot: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("promote draft snapshot: %w", err)
	}
	if updated > 0 {
		return nil
	}

	id := snap.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO distribution_snapshots (id, academic_year, semester, distribution_date, total_students_count, location, notes, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, snap.AcademicYear, snap.Semester, snap.DistributionDate, snap.TotalStudents, snap.Location, snap.Notes, now)
	if err != nil {
		return fmt.Errorf("insert finalized snapshot: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*models.DistributionSnapshot, error) {
	var snap models.DistributionSnapshot
	var finalizedAt sql.NullTime
	if err := row.Scan(
		&snap.ID, &snap.AcademicYear, &snap.Semester, &snap.DistributionDate,
		&snap.TotalStudents, &snap.Location, &snap.Notes, &finalizedAt,
	); err != nil {
		return nil, err
	}
	if finalizedAt.Valid {
		t := finalizedAt.Time
		snap.FinalizedAt = &t
	}
	return &snap, nil
}
