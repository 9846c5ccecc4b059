// Package postgres opens the database handle and bootstraps the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects via the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		year_level TEXT NOT NULL DEFAULT '',
		status_academic_year TEXT NOT NULL DEFAULT '',
		is_graduating BOOLEAN NOT NULL DEFAULT FALSE,
		is_archived BOOLEAN NOT NULL DEFAULT FALSE,
		archive_reason TEXT NOT NULL DEFAULT '',
		needs_document_upload BOOLEAN NOT NULL DEFAULT FALSE,
		documents_to_reupload JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS student_status_history (
		id UUID PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		update_source TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS distribution_snapshots (
		id UUID PRIMARY KEY,
		academic_year TEXT NOT NULL,
		semester TEXT NOT NULL,
		distribution_date DATE NOT NULL,
		total_students_count INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		finalized_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS distribution_snapshots_period_finalized
		ON distribution_snapshots (academic_year, semester)
		WHERE finalized_at IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS academic_years (
		year_code TEXT PRIMARY KEY,
		is_current BOOLEAN NOT NULL DEFAULT FALSE,
		year_levels_advanced BOOLEAN NOT NULL DEFAULT FALSE,
		advanced_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS signup_slots (
		id UUID PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		deactivated_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		student_id TEXT NOT NULL,
		document_type TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS document_archives (
		id UUID PRIMARY KEY,
		student_id TEXT NOT NULL,
		document_type TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMPTZ NOT NULL,
		academic_year TEXT NOT NULL,
		semester TEXT NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables the service needs if they do not exist.
// Statements are idempotent so startup is safe to repeat.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
