package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"educaid/internal/audit"
	cyclemetrics "educaid/internal/cycle/metrics"
	"educaid/internal/cycle/models"
	academicyearstore "educaid/internal/cycle/store/academicyear"
	configstore "educaid/internal/cycle/store/config"
	pendingstore "educaid/internal/cycle/store/pending"
	slotstore "educaid/internal/cycle/store/slots"
	snapshotstore "educaid/internal/cycle/store/snapshot"
	docstore "educaid/internal/docs/store"
	"educaid/internal/notify"
	rostermodels "educaid/internal/roster/models"
	rosterstore "educaid/internal/roster/store"
	dErrors "educaid/pkg/domain-errors"
	"educaid/pkg/platform/sentinel"
	"educaid/pkg/requestcontext"
)

var testNow = time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)

// failingRoster makes the bulk re-upload update fail to exercise rollback.
type failingRoster struct {
	*rosterstore.MemoryStore
}

func (f *failingRoster) FlagAllForReupload(context.Context, []string, time.Time) (int, error) {
	return 0, errors.New("bulk update failed")
}

// failingConfig makes the critical config save fail to exercise rollback.
type failingConfig struct {
	*configstore.MemoryStore
	failSave bool
}

func (f *failingConfig) Save(ctx context.Context, cfg *models.CycleConfig) error {
	if f.failSave {
		return errors.New("config write failed")
	}
	return f.MemoryStore.Save(ctx, cfg)
}

type countingSender struct {
	sent int
}

func (s *countingSender) Send(context.Context, string, string, string) error {
	s.sent++
	return nil
}

type CycleServiceSuite struct {
	suite.Suite

	ctx       context.Context
	config    *configstore.MemoryStore
	snapshots *snapshotstore.MemoryStore
	years     *academicyearstore.MemoryStore
	pending   *pendingstore.MemoryStore
	roster    *rosterstore.MemoryStore
	slots     *slotstore.MemoryStore
	docs      *docstore.MemoryStore
	auditor   *audit.MemoryPublisher
	sender    *countingSender

	svc *Service
}

func TestCycleServiceSuite(t *testing.T) {
	suite.Run(t, new(CycleServiceSuite))
}

func (s *CycleServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), testNow)
	s.config = configstore.NewMemory()
	s.snapshots = snapshotstore.NewMemory()
	s.years = academicyearstore.NewMemory()
	s.pending = pendingstore.NewMemory()
	s.roster = rosterstore.NewMemory()
	s.slots = slotstore.NewMemory()
	s.docs = docstore.NewMemory()
	s.auditor = audit.NewMemory()
	s.sender = &countingSender{}
	s.svc = s.newService(s.config, s.roster)
}

func (s *CycleServiceSuite) newService(config ConfigStore, roster RosterStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx := NewMemoryStoreTx(s.config, s.snapshots, s.years, s.roster)
	return New(config, s.snapshots, s.years, s.pending, roster, logger,
		WithTx(tx),
		WithSlotStore(s.slots),
		WithDocumentStore(s.docs),
		WithAuditPublisher(s.auditor),
		WithMetrics(cyclemetrics.NewWith(prometheus.NewRegistry())),
		WithNotifier(notify.NewDispatcher(s.sender, logger, 2)),
	)
}

func (s *CycleServiceSuite) seedStudent(st *rostermodels.Student) {
	s.Require().NoError(s.roster.Put(s.ctx, st))
}

func (s *CycleServiceSuite) seedFinalized(year string, semester models.Semester, distribution, finalized time.Time) {
	s.Require().NoError(s.snapshots.Put(s.ctx, &models.DistributionSnapshot{
		AcademicYear:     year,
		Semester:         semester,
		DistributionDate: distribution,
		FinalizedAt:      &finalized,
	}))
}

func (s *CycleServiceSuite) seedConfig(year string, semester models.Semester, status models.Status) {
	s.Require().NoError(s.config.Save(s.ctx, &models.CycleConfig{
		Status:       status,
		AcademicYear: year,
		Semester:     semester,
	}))
}

func (s *CycleServiceSuite) startParams() StartParams {
	return StartParams{AcademicYear: "2025-2026", Semester: "1st Semester"}
}

func (s *CycleServiceSuite) TestStartValidation() {
	cases := []struct {
		name   string
		params StartParams
	}{
		{"empty year", StartParams{Semester: "1st Semester"}},
		{"malformed year", StartParams{AcademicYear: "2025/2026", Semester: "1st Semester"}},
		{"non consecutive year", StartParams{AcademicYear: "2025-2027", Semester: "1st Semester"}},
		{"missing semester", StartParams{AcademicYear: "2025-2026"}},
		{"unknown semester", StartParams{AcademicYear: "2025-2026", Semester: "summer"}},
		{"bad deadline", StartParams{AcademicYear: "2025-2026", Semester: "1st Semester", DocumentsDeadline: "31-12-2025"}},
		{"bad decision", StartParams{AcademicYear: "2025-2026", Semester: "1st Semester", GraduateDecision: "purge"}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.StartDistribution(s.ctx, tc.params)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *CycleServiceSuite) TestStartSucceedsAndFloodsReuploads() {
	// Previous year both semesters finalized and already advanced.
	s.seedConfig("2024-2025", models.SemesterSecond, models.StatusFinalized)
	s.seedFinalized("2024-2025", models.SemesterFirst,
		time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 11, 10, 12, 0, 0, 0, time.UTC))
	s.seedFinalized("2024-2025", models.SemesterSecond,
		time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))
	advancedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.years.Upsert(s.ctx, &models.AcademicYearRecord{
		YearCode: "2024-2025", IsCurrent: true, YearLevelsAdvanced: true, AdvancedAt: &advancedAt,
	}))

	s.seedStudent(&rostermodels.Student{ID: "s1", Email: "s1@example.org", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025"})
	s.seedStudent(&rostermodels.Student{ID: "s2", Status: rostermodels.StudentApplicant, StatusAcademicYear: "2024-2025"})
	s.seedStudent(&rostermodels.Student{ID: "s3", Status: rostermodels.StudentArchived, IsArchived: true, StatusAcademicYear: "2023-2024"})

	res, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.Require().NotNil(res.Started)
	s.Nil(res.Review)
	s.Equal(2, res.Started.FlaggedStudents)
	s.Equal(1, res.Started.NotificationsSent)

	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, cfg.Status)
	s.Equal("2025-2026", cfg.AcademicYear)
	s.Equal(models.SemesterFirst, cfg.Semester)
	s.True(cfg.UploadsEnabled)
	s.False(cfg.StudentListFinalized)

	for _, id := range []string{"s1", "s2"} {
		st, err := s.roster.Get(s.ctx, id)
		s.Require().NoError(err)
		s.True(st.NeedsDocumentUpload, id)
		s.Equal(models.DocumentTypeCodes, st.DocumentsToReupload, id)
	}
	archived, err := s.roster.Get(s.ctx, "s3")
	s.Require().NoError(err)
	s.False(archived.NeedsDocumentUpload)
}

func (s *CycleServiceSuite) TestStartRejectsFinalizedPeriod() {
	s.seedFinalized("2025-2026", models.SemesterFirst,
		time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC))
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2025-2026"})

	_, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// No state change: student untouched, config still absent.
	st, err := s.roster.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.False(st.NeedsDocumentUpload)
	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Nil(cfg)
}

func (s *CycleServiceSuite) TestAdvancementGate() {
	s.seedConfig("2024-2025", models.SemesterSecond, models.StatusFinalized)
	s.seedFinalized("2024-2025", models.SemesterFirst,
		time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 11, 10, 12, 0, 0, 0, time.UTC))
	s.seedFinalized("2024-2025", models.SemesterSecond,
		time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(s.years.Upsert(s.ctx, &models.AcademicYearRecord{
		YearCode: "2024-2025", IsCurrent: true,
	}))

	_, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	// Advancing the year levels unblocks the identical call.
	advancedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.years.Upsert(s.ctx, &models.AcademicYearRecord{
		YearCode: "2024-2025", IsCurrent: true, YearLevelsAdvanced: true, AdvancedAt: &advancedAt,
	}))

	res, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.NotNil(res.Started)
}

func (s *CycleServiceSuite) TestAdvancementGateReblocksAfterAdvance() {
	// The year advanced mid-cycle, then ran and finalized both semesters
	// again after the advancement. The next year must block until levels
	// are advanced once more: only finalizations after advanced_at count.
	s.seedConfig("2025-2026", models.SemesterSecond, models.StatusFinalized)
	advancedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.years.Upsert(s.ctx, &models.AcademicYearRecord{
		YearCode: "2025-2026", IsCurrent: true, YearLevelsAdvanced: true, AdvancedAt: &advancedAt,
	}))
	s.seedFinalized("2025-2026", models.SemesterFirst,
		time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC))
	s.seedFinalized("2025-2026", models.SemesterSecond,
		time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC))

	_, err := s.svc.StartDistribution(s.ctx, StartParams{AcademicYear: "2026-2027", Semester: "1st Semester"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *CycleServiceSuite) TestAdvancementWindowIgnoresEarlierFinalizations() {
	// One semester finalized before the advancement, one after: only the
	// later one counts, so the next year may start.
	s.seedConfig("2025-2026", models.SemesterSecond, models.StatusFinalized)
	advancedAt := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.years.Upsert(s.ctx, &models.AcademicYearRecord{
		YearCode: "2025-2026", IsCurrent: true, YearLevelsAdvanced: true, AdvancedAt: &advancedAt,
	}))
	s.seedFinalized("2025-2026", models.SemesterFirst,
		time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC))
	s.seedFinalized("2025-2026", models.SemesterSecond,
		time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC))

	res, err := s.svc.StartDistribution(s.ctx, StartParams{AcademicYear: "2026-2027", Semester: "1st Semester"})
	s.Require().NoError(err)
	s.NotNil(res.Started)
}

func (s *CycleServiceSuite) TestDeadlineOrdering() {
	s.seedConfig("2024-2025", models.SemesterFirst, models.StatusFinalized)
	s.seedFinalized("2024-2025", models.SemesterFirst,
		time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))

	params := s.startParams()
	params.DocumentsDeadline = "2025-04-10"
	_, err := s.svc.StartDistribution(s.ctx, params)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	params.DocumentsDeadline = "2025-04-09"
	_, err = s.svc.StartDistribution(s.ctx, params)
	s.Require().Error(err)

	params.DocumentsDeadline = "2025-04-11"
	res, err := s.svc.StartDistribution(s.ctx, params)
	s.Require().NoError(err)
	s.Require().NotNil(res.Started)

	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(cfg.DocumentsDeadline)
	s.Equal("2025-04-11", cfg.DocumentsDeadline.Format(models.DeadlineLayout))
}

func (s *CycleServiceSuite) TestGraduatePauseIsIdempotent() {
	s.seedStudent(&rostermodels.Student{
		ID: "g1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025",
		YearLevel: "Grade 12", IsGraduating: true,
	})
	s.seedStudent(&rostermodels.Student{
		ID: "g2", Status: rostermodels.StudentApplicant, StatusAcademicYear: "2024-2025",
		YearLevel: "Grade 12", IsGraduating: true,
	})
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025"})

	first, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.Require().NotNil(first.Review)
	s.Equal(2, first.Review.GraduateCount)
	s.Equal([]string{"g1", "g2"}, first.Review.GraduateIDs)

	second, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.Require().NotNil(second.Review)
	s.Equal(2, second.Review.GraduateCount)

	// Nothing mutated while the review is pending.
	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Nil(cfg)
	g1, err := s.roster.Get(s.ctx, "g1")
	s.Require().NoError(err)
	s.False(g1.IsArchived)
	s.False(g1.NeedsDocumentUpload)
}

func (s *CycleServiceSuite) TestGraduateDecisionArchiveAll() {
	s.seedStudent(&rostermodels.Student{
		ID: "g1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025",
		YearLevel: "Grade 12", IsGraduating: true,
	})
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025"})

	first, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.Require().NotNil(first.Review)

	params := s.startParams()
	params.GraduateDecision = "archive-all"
	params.ReviewToken = first.Review.Token.String()
	res, err := s.svc.StartDistribution(s.ctx, params)
	s.Require().NoError(err)
	s.Require().NotNil(res.Started)
	s.Equal(1, res.Started.ArchivedGraduates)

	g1, err := s.roster.Get(s.ctx, "g1")
	s.Require().NoError(err)
	s.True(g1.IsArchived)
	s.Equal(rostermodels.StudentArchived, g1.Status)
	s.Equal("Graduated - Completed Grade 12 in A.Y. 2024-2025", g1.ArchiveReason)

	history, err := s.roster.HistoryFor(s.ctx, "g1")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(rostermodels.UpdateSourceGraduateArchive, history[0].UpdateSource)
	s.Equal(rostermodels.StudentActive, history[0].OldStatus)

	// Archived graduates are not re-flagged; the remaining student is.
	s.False(g1.NeedsDocumentUpload)
	s1, err := s.roster.Get(s.ctx, "s1")
	s.Require().NoError(err)
	s.True(s1.NeedsDocumentUpload)

	// The pending review is consumed.
	_, err = s.pending.Find(s.ctx, "2025-2026", models.SemesterFirst)
	s.Require().Error(err)
}

func (s *CycleServiceSuite) TestGraduateDecisionSkip() {
	s.seedStudent(&rostermodels.Student{
		ID: "g1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025",
		YearLevel: "Grade 12", IsGraduating: true,
	})

	first, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.Require().NotNil(first.Review)

	params := s.startParams()
	params.GraduateDecision = "skip"
	res, err := s.svc.StartDistribution(s.ctx, params)
	s.Require().NoError(err)
	s.Require().NotNil(res.Started)
	s.Zero(res.Started.ArchivedGraduates)

	g1, err := s.roster.Get(s.ctx, "g1")
	s.Require().NoError(err)
	s.False(g1.IsArchived)
	s.True(g1.NeedsDocumentUpload)
}

func (s *CycleServiceSuite) TestDecisionWithoutPendingReview() {
	params := s.startParams()
	params.GraduateDecision = "archive-all"
	_, err := s.svc.StartDistribution(s.ctx, params)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *CycleServiceSuite) TestDecisionWithMismatchedToken() {
	s.seedStudent(&rostermodels.Student{
		ID: "g1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025", IsGraduating: true,
	})
	first, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.Require().NotNil(first.Review)

	params := s.startParams()
	params.GraduateDecision = "skip"
	params.ReviewToken = "7f0e1a9a-9f5e-4f7c-9a64-8d4f3f8f1b2d"
	_, err = s.svc.StartDistribution(s.ctx, params)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *CycleServiceSuite) TestExpiredReviewRejected() {
	s.seedStudent(&rostermodels.Student{
		ID: "g1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025", IsGraduating: true,
	})
	first, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	s.Require().NotNil(first.Review)

	// Decide long after the review window lapsed.
	lateCtx := requestcontext.WithTime(context.Background(), testNow.Add(2*time.Hour))
	params := s.startParams()
	params.GraduateDecision = "archive-all"
	_, err = s.svc.StartDistribution(lateCtx, params)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	g1, err := s.roster.Get(s.ctx, "g1")
	s.Require().NoError(err)
	s.False(g1.IsArchived)
}

func (s *CycleServiceSuite) TestStartRollsBackOnBulkUpdateFailure() {
	s.seedConfig("2024-2025", models.SemesterSecond, models.StatusFinalized)
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025"})

	svc := s.newService(s.config, &failingRoster{s.roster})
	_, err := svc.StartDistribution(s.ctx, s.startParams())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// The config keeps its pre-call value: no partial active cycle.
	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(cfg)
	s.Equal(models.StatusFinalized, cfg.Status)
	s.Equal("2024-2025", cfg.AcademicYear)
}

func (s *CycleServiceSuite) TestFinalizeRollsBackOnConfigSaveFailure() {
	s.seedConfig("2025-2026", models.SemesterFirst, models.StatusActive)
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2025-2026"})

	cfgStore := &failingConfig{MemoryStore: s.config, failSave: true}
	svc := s.newService(cfgStore, s.roster)

	_, err := svc.FinalizeDistribution(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// The rollback leaves no stranded finalized snapshot and the cycle open,
	// so the retry is not blocked by the duplicate guard.
	_, err = s.snapshots.FindFinalized(s.ctx, "2025-2026", models.SemesterFirst)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, cfg.Status)

	// Once the store recovers, the identical call finalizes cleanly.
	cfgStore.failSave = false
	res, err := svc.FinalizeDistribution(s.ctx)
	s.Require().NoError(err)
	s.True(res.SnapshotCreated)
	s.Equal(1, res.TotalStudents)

	cfg, err = s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusFinalized, cfg.Status)
}

func (s *CycleServiceSuite) TestFinalizeHappyPath() {
	s.seedConfig("2025-2026", models.SemesterFirst, models.StatusActive)
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2025-2026"})
	s.seedStudent(&rostermodels.Student{ID: "s2", Status: rostermodels.StudentApplicant, StatusAcademicYear: "2025-2026"})
	s.Require().NoError(s.docs.Put(s.ctx, &docstore.Document{StudentID: "s1", DocumentType: "00"}))
	s.Require().NoError(s.docs.Put(s.ctx, &docstore.Document{StudentID: "s1", DocumentType: "01"}))
	s.Require().NoError(s.slots.Put(s.ctx, &slotstore.Slot{Label: "Morning", IsActive: true}))

	res, err := s.svc.FinalizeDistribution(s.ctx)
	s.Require().NoError(err)
	s.True(res.SnapshotCreated)
	s.Equal(1, res.TotalStudents)
	s.True(res.DocumentsArchived)
	s.Equal(2, res.ArchivedDocuments)
	s.True(res.SlotsRetired)
	s.Equal(1, res.SlotsDeactivated)

	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusFinalized, cfg.Status)
	s.False(cfg.UploadsEnabled)

	snap, err := s.snapshots.FindFinalized(s.ctx, "2025-2026", models.SemesterFirst)
	s.Require().NoError(err)
	s.Equal(1, snap.TotalStudents)
	s.Equal(DefaultDistributionLocation, snap.Location)

	live, err := s.docs.CountLive(s.ctx)
	s.Require().NoError(err)
	s.Zero(live)
	archived, err := s.docs.CountArchived(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, archived)
	active, err := s.slots.AnyActive(s.ctx)
	s.Require().NoError(err)
	s.False(active)
}

func (s *CycleServiceSuite) TestFinalizeTwiceFails() {
	s.seedConfig("2025-2026", models.SemesterFirst, models.StatusActive)

	_, err := s.svc.FinalizeDistribution(s.ctx)
	s.Require().NoError(err)

	_, err = s.svc.FinalizeDistribution(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *CycleServiceSuite) TestFinalizeWithoutConfig() {
	_, err := s.svc.FinalizeDistribution(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *CycleServiceSuite) TestActivate() {
	s.seedConfig("2025-2026", models.SemesterFirst, models.StatusPreparing)
	s.Require().NoError(s.svc.ActivateDistribution(s.ctx))

	cfg, err := s.config.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, cfg.Status)
}

func (s *CycleServiceSuite) TestStatusView() {
	s.seedConfig("2024-2025", models.SemesterSecond, models.StatusFinalized)
	s.seedFinalized("2024-2025", models.SemesterFirst,
		time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 11, 10, 12, 0, 0, 0, time.UTC))
	s.seedFinalized("2024-2025", models.SemesterSecond,
		time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(s.years.Upsert(s.ctx, &models.AcademicYearRecord{
		YearCode: "2024-2025", IsCurrent: true,
	}))
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025"})
	s.seedStudent(&rostermodels.Student{ID: "s2", Status: rostermodels.StudentApplicant, StatusAcademicYear: "2024-2025"})
	s.Require().NoError(s.slots.Put(s.ctx, &slotstore.Slot{Label: "Afternoon", IsActive: true}))
	s.Require().NoError(s.docs.Put(s.ctx, &docstore.Document{StudentID: "s1", DocumentType: "00"}))

	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, status.ActiveStudents)
	s.Equal(1, status.ApplicantStudents)
	s.True(status.AdvancementRequired)
	s.Require().NotNil(status.CurrentYear)
	s.Equal("2024-2025", status.CurrentYear.YearCode)
	s.False(status.CurrentYear.YearLevelsAdvanced)
	s.True(status.SignupSlotsOpen)
	s.Equal(1, status.LiveDocuments)
	s.Zero(status.ArchivedDocuments)
	s.Require().NotNil(status.LastFinalized)
	s.Equal(models.SemesterSecond, status.LastFinalized.Semester)
}

func (s *CycleServiceSuite) TestPendingGraduatesView() {
	s.seedStudent(&rostermodels.Student{
		ID: "g1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025", IsGraduating: true,
	})
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025"})

	grads, err := s.svc.PendingGraduates(s.ctx, "2025-2026")
	s.Require().NoError(err)
	s.Require().Len(grads, 1)
	s.Equal("g1", grads[0].ID)

	_, err = s.svc.PendingGraduates(s.ctx, "bogus")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *CycleServiceSuite) TestAuditTrail() {
	s.seedStudent(&rostermodels.Student{ID: "s1", Status: rostermodels.StudentActive, StatusAcademicYear: "2024-2025"})

	_, err := s.svc.StartDistribution(s.ctx, s.startParams())
	s.Require().NoError(err)
	_, err = s.svc.FinalizeDistribution(s.ctx)
	s.Require().NoError(err)

	events := s.auditor.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionCycleStarted, events[0].Action)
	s.Equal(audit.ActionCycleFinalized, events[1].Action)
	s.Equal("2025-2026", events[0].AcademicYear)
}
