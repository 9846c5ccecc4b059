package academicyear

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"educaid/internal/cycle/models"
	"educaid/pkg/platform/sentinel"
	txcontext "educaid/pkg/platform/tx"
)

// PostgresStore persists the academic year registry in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed academic year store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *models.AcademicYearRecord) error {
	exec := s.execer(ctx)
	if rec.IsCurrent {
		if _, err := exec.ExecContext(ctx, `UPDATE academic_years SET is_current = FALSE WHERE is_current = TRUE`); err != nil {
			return fmt.Errorf("clear current academic year: %w", err)
		}
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO academic_years (year_code, is_current, year_levels_advanced, advanced_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (year_code) DO UPDATE
		SET is_current = EXCLUDED.is_current,
		    year_levels_advanced = EXCLUDED.year_levels_advanced,
		    advanced_at = EXCLUDED.advanced_at`,
		rec.YearCode, rec.IsCurrent, rec.YearLevelsAdvanced, rec.AdvancedAt)
	if err != nil {
		return fmt.Errorf("upsert academic year: %w", err)
	}
	return nil
}

func (s *PostgresStore) Current(ctx context.Context) (*models.AcademicYearRecord, error) {
	return s.scanOne(ctx, `
		SELECT year_code, is_current, year_levels_advanced, advanced_at
		FROM academic_years WHERE is_current = TRUE
		LIMIT 1`)
}

func (s *PostgresStore) Find(ctx context.Context, yearCode string) (*models.AcademicYearRecord, error) {
	return s.scanOne(ctx, `
		SELECT year_code, is_current, year_levels_advanced, advanced_at
		FROM academic_years WHERE year_code = $1`, yearCode)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, args ...any) (*models.AcademicYearRecord, error) {
	var rec models.AcademicYearRecord
	var advancedAt sql.NullTime
	err := s.execer(ctx).QueryRowContext(ctx, query, args...).Scan(
		&rec.YearCode, &rec.IsCurrent, &rec.YearLevelsAdvanced, &advancedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load academic year: %w", err)
	}
	if advancedAt.Valid {
		t := advancedAt.Time
		rec.AdvancedAt = &t
	}
	return &rec, nil
}
