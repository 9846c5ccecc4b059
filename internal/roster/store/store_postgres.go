package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"educaid/internal/roster/models"
	txcontext "educaid/pkg/platform/tx"
)

// PostgresStore persists the roster in PostgreSQL. Writes honor a transaction
// carried in the context so cycle transitions stay atomic.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed roster store.
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

func (s *PostgresStore) ListGraduating(ctx context.Context, targetYear string) ([]*models.Student, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, full_name, email, status, year_level, status_academic_year,
		       is_graduating, is_archived, archive_reason,
		       needs_document_upload, documents_to_reupload, updated_at
		FROM students
		WHERE is_graduating = TRUE
		  AND is_archived = FALSE
		  AND status IN ('applicant', 'active')
		  AND status_academic_year < $1
		ORDER BY id`, targetYear)
	if err != nil {
		return nil, fmt.Errorf("list graduating students: %w", err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

func (s *PostgresStore) Archive(ctx context.Context, id, reason string, now time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE students
		SET status = 'archived', is_archived = TRUE, archive_reason = $2, updated_at = $3
		WHERE id = $1`, id, reason, now)
	if err != nil {
		return fmt.Errorf("archive student: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendStatusHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO student_status_history (id, student_id, old_status, new_status, reason, update_source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.StudentID, entry.OldStatus, entry.NewStatus, entry.Reason, entry.UpdateSource, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

func (s *PostgresStore) FlagAllForReupload(ctx context.Context, docTypes []string, now time.Time) (int, error) {
	payload, err := json.Marshal(docTypes)
	if err != nil {
		return 0, fmt.Errorf("marshal document types: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE students
		SET needs_document_upload = TRUE, documents_to_reupload = $1, updated_at = $2
		WHERE is_archived = FALSE AND status IN ('applicant', 'active')`, payload, now)
	if err != nil {
		return 0, fmt.Errorf("flag students for reupload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("flag students for reupload: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status models.StudentStatus) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM students WHERE is_archived = FALSE AND status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count students by status: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListNotifiable(ctx context.Context) ([]*models.Student, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, full_name, email, status, year_level, status_academic_year,
		       is_graduating, is_archived, archive_reason,
		       needs_document_upload, documents_to_reupload, updated_at
		FROM students
		WHERE is_archived = FALSE AND status IN ('applicant', 'active') AND email <> ''
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notifiable students: %w", err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

func scanStudents(rows *sql.Rows) ([]*models.Student, error) {
	var out []*models.Student
	for rows.Next() {
		var st models.Student
		var docTypes []byte
		if err := rows.Scan(
			&st.ID, &st.FullName, &st.Email, &st.Status, &st.YearLevel, &st.StatusAcademicYear,
			&st.IsGraduating, &st.IsArchived, &st.ArchiveReason,
			&st.NeedsDocumentUpload, &docTypes, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if len(docTypes) > 0 {
			if err := json.Unmarshal(docTypes, &st.DocumentsToReupload); err != nil {
				return nil, fmt.Errorf("decode documents_to_reupload: %w", err)
			}
		}
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}
