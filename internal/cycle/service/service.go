// Package service orchestrates the distribution lifecycle: gated starts, the
// graduate-review pause, activation, and transactional finalization.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"educaid/internal/audit"
	cyclemetrics "educaid/internal/cycle/metrics"
	"educaid/internal/cycle/models"
	rostermodels "educaid/internal/roster/models"
	dErrors "educaid/pkg/domain-errors"
	"educaid/pkg/platform/sentinel"
	"educaid/pkg/requestcontext"
)

// ConfigStore persists the live cycle configuration singleton.
type ConfigStore interface {
	Load(ctx context.Context) (*models.CycleConfig, error)
	Save(ctx context.Context, cfg *models.CycleConfig) error
	SetStatus(ctx context.Context, status models.Status) error
}

// SnapshotStore persists the snapshot ledger of finalized periods.
type SnapshotStore interface {
	FindFinalized(ctx context.Context, academicYear string, semester models.Semester) (*models.DistributionSnapshot, error)
	LatestFinalized(ctx context.Context) (*models.DistributionSnapshot, error)
	FinalizedSemesters(ctx context.Context, academicYear string, after *time.Time) ([]models.Semester, error)
	ListFinalized(ctx context.Context, limit int) ([]*models.DistributionSnapshot, error)
	Finalize(ctx context.Context, snap *models.DistributionSnapshot, now time.Time) error
}

// AcademicYearStore reads the academic period registry. The controller never
// writes the advancement flag; only the external promotion feature does.
type AcademicYearStore interface {
	Find(ctx context.Context, yearCode string) (*models.AcademicYearRecord, error)
	Current(ctx context.Context) (*models.AcademicYearRecord, error)
	Upsert(ctx context.Context, rec *models.AcademicYearRecord) error
}

// PendingStore persists graduate-review tokens between the two phases of a
// paused start.
type PendingStore interface {
	Put(ctx context.Context, review *models.PendingReview) error
	Find(ctx context.Context, academicYear string, semester models.Semester) (*models.PendingReview, error)
	Delete(ctx context.Context, academicYear string, semester models.Semester) error
}

// RosterStore exposes the student roster operations cycle transitions need.
type RosterStore interface {
	ListGraduating(ctx context.Context, targetYear string) ([]*rostermodels.Student, error)
	Archive(ctx context.Context, id, reason string, now time.Time) error
	AppendStatusHistory(ctx context.Context, entry *rostermodels.StatusHistoryEntry) error
	FlagAllForReupload(ctx context.Context, docTypes []string, now time.Time) (int, error)
	CountByStatus(ctx context.Context, status rostermodels.StudentStatus) (int, error)
	ListNotifiable(ctx context.Context) ([]*rostermodels.Student, error)
}

// SlotStore retires signup slots when a cycle closes.
type SlotStore interface {
	DeactivateAll(ctx context.Context, now time.Time) (int, error)
	AnyActive(ctx context.Context) (bool, error)
}

// DocumentStore moves live documents into the per-period archive.
type DocumentStore interface {
	ArchiveAll(ctx context.Context, academicYear, semester string, now time.Time) (int, error)
	CountLive(ctx context.Context) (int, error)
	CountArchived(ctx context.Context) (int, error)
}

// Notifier announces an opened cycle. Returns the number of successful sends.
type Notifier interface {
	DistributionOpened(ctx context.Context, recipients []*rostermodels.Student, period string) int
}

const defaultPendingTTL = 30 * time.Minute

// Service is the lifecycle controller.
type Service struct {
	config    ConfigStore
	snapshots SnapshotStore
	years     AcademicYearStore
	pending   PendingStore
	roster    RosterStore
	slots     SlotStore
	docs      DocumentStore

	tx         StoreTx
	notifier   Notifier
	auditor    audit.Publisher
	metrics    *cyclemetrics.Metrics
	logger     *slog.Logger
	pendingTTL time.Duration
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *cyclemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithSlotStore(store SlotStore) Option {
	return func(s *Service) { s.slots = store }
}

func WithDocumentStore(store DocumentStore) Option {
	return func(s *Service) { s.docs = store }
}

func WithPendingTTL(ttl time.Duration) Option {
	return func(s *Service) { s.pendingTTL = ttl }
}

// New constructs the lifecycle controller.
func New(
	config ConfigStore,
	snapshots SnapshotStore,
	years AcademicYearStore,
	pending PendingStore,
	roster RosterStore,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		config:     config,
		snapshots:  snapshots,
		years:      years,
		pending:    pending,
		roster:     roster,
		logger:     logger,
		pendingTTL: defaultPendingTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewPassthroughTx()
	}
	return s
}

// ActivateDistribution forces the lifecycle status to active. The operation
// is deliberately permissive: it writes only the status key and carries no
// guards beyond persistence.
func (s *Service) ActivateDistribution(ctx context.Context) error {
	if err := s.config.SetStatus(ctx, models.StatusActive); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate distribution")
	}
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cycle configuration")
	}
	s.logger.InfoContext(ctx, "distribution activated",
		"request_id", requestcontext.RequestID(ctx))
	if cfg != nil {
		s.publishAudit(ctx, audit.ActionCycleActivated, cfg.AcademicYear, cfg.Semester, "")
	}
	return nil
}

// WorkflowStatus is the live view served to the admin dashboard.
type WorkflowStatus struct {
	Config              *models.CycleConfig
	CurrentYear         *models.AcademicYearRecord
	ActiveStudents      int
	ApplicantStudents   int
	AdvancementRequired bool
	SignupSlotsOpen     bool
	LiveDocuments       int
	ArchivedDocuments   int
	LastFinalized       *models.DistributionSnapshot
}

// Status reports the live configuration, the registry's current year, roster
// counts, document storage counts, and whether the configured year is blocked
// on year-level advancement.
func (s *Service) Status(ctx context.Context) (*WorkflowStatus, error) {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cycle configuration")
	}

	status := &WorkflowStatus{Config: cfg}
	if status.ActiveStudents, err = s.roster.CountByStatus(ctx, rostermodels.StudentActive); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count students")
	}
	if status.ApplicantStudents, err = s.roster.CountByStatus(ctx, rostermodels.StudentApplicant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count students")
	}

	current, err := s.years.Current(ctx)
	switch {
	case err == nil:
		status.CurrentYear = current
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load academic year registry")
	}

	if cfg.Configured() {
		blocked, err := s.advancementBlocked(ctx, cfg.AcademicYear)
		if err != nil {
			return nil, err
		}
		status.AdvancementRequired = blocked
	}

	if s.slots != nil {
		if status.SignupSlotsOpen, err = s.slots.AnyActive(ctx); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check signup slots")
		}
	}
	if s.docs != nil {
		if status.LiveDocuments, err = s.docs.CountLive(ctx); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count documents")
		}
		if status.ArchivedDocuments, err = s.docs.CountArchived(ctx); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count documents")
		}
	}

	latest, err := s.snapshots.LatestFinalized(ctx)
	switch {
	case err == nil:
		status.LastFinalized = latest
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot ledger")
	}
	return status, nil
}

// History lists finalized snapshots, newest first, capped at limit.
func (s *Service) History(ctx context.Context, limit int) ([]*models.DistributionSnapshot, error) {
	snaps, err := s.snapshots.ListFinalized(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load distribution history")
	}
	return snaps, nil
}

// PendingGraduates returns the graduate set a start for the target year would
// pause on, without starting anything.
func (s *Service) PendingGraduates(ctx context.Context, targetYear string) ([]*rostermodels.Student, error) {
	if err := models.ValidateAcademicYear(targetYear); err != nil {
		return nil, err
	}
	grads, err := s.roster.ListGraduating(ctx, targetYear)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list graduating students")
	}
	return grads, nil
}

// advancementBlocked reports whether the year has both semesters finalized
// without a year-level advancement since. When the advancement flag is set,
// only finalizations after advanced_at count, so a year can legitimately run
// again after the external promotion step.
func (s *Service) advancementBlocked(ctx context.Context, yearCode string) (bool, error) {
	rec, err := s.years.Find(ctx, yearCode)
	var cutoff *time.Time
	switch {
	case err == nil:
		if rec.YearLevelsAdvanced {
			cutoff = rec.AdvancedAt
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// No registry row: nothing recorded as advanced, count all finalizations.
	default:
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load academic year registry")
	}

	semesters, err := s.snapshots.FinalizedSemesters(ctx, yearCode, cutoff)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to inspect snapshot ledger")
	}
	return len(semesters) >= 2, nil
}

func (s *Service) publishAudit(ctx context.Context, action audit.Action, year string, semester models.Semester, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Publish(ctx, audit.Event{
		ID:           uuid.New(),
		Action:       action,
		AcademicYear: year,
		Semester:     string(semester),
		OperatorID:   requestcontext.OperatorID(ctx),
		RequestID:    requestcontext.RequestID(ctx),
		Detail:       detail,
		Timestamp:    requestcontext.Now(ctx),
	})
}

func (s *Service) rejectGuard(guard string) {
	if s.metrics != nil {
		s.metrics.RejectGuard(guard)
	}
}

func (s *Service) observeTransition(transition string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(transition, start)
	}
}
