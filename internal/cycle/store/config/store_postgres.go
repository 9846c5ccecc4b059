package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"educaid/internal/cycle/models"
	txcontext "educaid/pkg/platform/tx"
)

// Config table keys. The names are part of the persisted data shared with the
// legacy admin tooling and must not change.
const (
	keyStatus               = "distribution_status"
	keyAcademicYear         = "current_academic_year"
	keySemester             = "current_semester"
	keyUploadsEnabled       = "uploads_enabled"
	keyDocumentsDeadline    = "documents_deadline"
	keyStudentListFinalized = "student_list_finalized"
)

// PostgresStore persists the cycle configuration as rows of the config table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed config store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Load reads all config keys and assembles the configuration. Returns nil
// when no cycle has ever been started.
func (s *PostgresStore) Load(ctx context.Context) (*models.CycleConfig, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT key, value FROM config
		WHERE key IN ($1, $2, $3, $4, $5, $6)`,
		keyStatus, keyAcademicYear, keySemester, keyUploadsEnabled, keyDocumentsDeadline, keyStudentListFinalized)
	if err != nil {
		return nil, fmt.Errorf("load cycle config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config rows: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	cfg := &models.CycleConfig{
		Status:               models.Status(values[keyStatus]),
		AcademicYear:         values[keyAcademicYear],
		Semester:             models.Semester(values[keySemester]),
		UploadsEnabled:       values[keyUploadsEnabled] == "1",
		StudentListFinalized: values[keyStudentListFinalized] == "1",
	}
	if raw := values[keyDocumentsDeadline]; raw != "" {
		d, err := time.Parse(models.DeadlineLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("decode documents deadline %q: %w", raw, err)
		}
		cfg.DocumentsDeadline = &d
	}
	return cfg, nil
}

// Save upserts the full configuration, one key per row.
func (s *PostgresStore) Save(ctx context.Context, cfg *models.CycleConfig) error {
	deadline := ""
	if cfg.DocumentsDeadline != nil {
		deadline = cfg.DocumentsDeadline.Format(models.DeadlineLayout)
	}
	pairs := map[string]string{
		keyStatus:               string(cfg.Status),
		keyAcademicYear:         cfg.AcademicYear,
		keySemester:             string(cfg.Semester),
		keyUploadsEnabled:       boolValue(cfg.UploadsEnabled),
		keyDocumentsDeadline:    deadline,
		keyStudentListFinalized: boolValue(cfg.StudentListFinalized),
	}
	for k, v := range pairs {
		if err := s.upsert(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// SetStatus updates only the lifecycle status key.
func (s *PostgresStore) SetStatus(ctx context.Context, status models.Status) error {
	return s.upsert(ctx, keyStatus, string(status))
}

func (s *PostgresStore) upsert(ctx context.Context, key, value string) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO config (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("upsert config key %s: %w", key, err)
	}
	return nil
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
