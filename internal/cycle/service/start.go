package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"educaid/internal/audit"
	"educaid/internal/cycle/models"
	rostermodels "educaid/internal/roster/models"
	dErrors "educaid/pkg/domain-errors"
	"educaid/pkg/platform/sentinel"
	"educaid/pkg/requestcontext"
)

// StartParams carries the raw operator inputs of a start request.
type StartParams struct {
	AcademicYear      string
	Semester          string
	DocumentsDeadline string
	GraduateDecision  string
	ReviewToken       string
}

// ReviewRequired is the phase-1 pause result: the start did not proceed and
// no state beyond the pending token was written.
type ReviewRequired struct {
	Token         uuid.UUID
	AcademicYear  string
	Semester      models.Semester
	GraduateCount int
	GraduateIDs   []string
	ExpiresAt     time.Time
}

// StartSummary reports a completed start.
type StartSummary struct {
	AcademicYear      string
	Semester          models.Semester
	FlaggedStudents   int
	ArchivedGraduates int
	NotificationsSent int
}

// StartResult is either a pause (Review set) or a completed start (Started set).
type StartResult struct {
	Review  *ReviewRequired
	Started *StartSummary
}

// StartDistribution opens a new distribution cycle for the target period.
//
// Guards run in a fixed order: input validation, the graduate-review gate,
// then (inside the same transaction as the writes) the duplicate-finalization,
// year-advancement, and deadline-ordering guards. Committed effects are the
// config upsert and the roster-wide re-upload flood; notification dispatch
// happens after commit and never rolls the transition back.
func (s *Service) StartDistribution(ctx context.Context, params StartParams) (*StartResult, error) {
	started := time.Now()
	defer s.observeTransition("start", started)

	year := strings.TrimSpace(params.AcademicYear)
	if err := models.ValidateAcademicYear(year); err != nil {
		s.rejectGuard("validation")
		return nil, err
	}
	semester, err := models.ParseSemester(params.Semester)
	if err != nil {
		s.rejectGuard("validation")
		return nil, err
	}
	deadline, err := models.ParseDeadline(params.DocumentsDeadline)
	if err != nil {
		s.rejectGuard("validation")
		return nil, err
	}
	decision, err := models.ParseGraduateDecision(params.GraduateDecision)
	if err != nil {
		s.rejectGuard("validation")
		return nil, err
	}

	now := requestcontext.Now(ctx)

	cfg, err := s.config.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cycle configuration")
	}

	// The graduate gate applies on the first-ever cycle and whenever the
	// target year differs from the configured one.
	gateApplies := !cfg.Configured() || cfg.AcademicYear != year
	if gateApplies {
		if decision == "" {
			pause, err := s.pauseForReview(ctx, year, semester, deadline, now)
			if err != nil {
				return nil, err
			}
			if pause != nil {
				return &StartResult{Review: pause}, nil
			}
		} else if err := s.verifyPendingReview(ctx, year, semester, params.ReviewToken); err != nil {
			return nil, err
		}
	} else {
		// A decision without an open gate has nothing to apply to.
		decision = ""
	}

	var flagged, archived int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Duplicate-finalization guard, re-checked inside the transaction.
		_, err := s.snapshots.FindFinalized(txCtx, year, semester)
		switch {
		case err == nil:
			s.rejectGuard("duplicate_period")
			return dErrors.Newf(dErrors.CodeConflict,
				"distribution for %s %s is already finalized and cannot be restarted", semester, year)
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to inspect snapshot ledger")
		}

		if err := s.checkAdvancement(txCtx, year); err != nil {
			return err
		}
		if err := s.checkDeadline(txCtx, deadline); err != nil {
			return err
		}

		if decision == models.DecisionArchiveAll {
			archived, err = s.archiveGraduates(txCtx, year, now)
			if err != nil {
				return err
			}
		}

		if err := s.ensureCurrentYear(txCtx, year); err != nil {
			return err
		}

		newCfg := &models.CycleConfig{
			Status:               models.StatusActive,
			AcademicYear:         year,
			Semester:             semester,
			UploadsEnabled:       true,
			DocumentsDeadline:    deadline,
			StudentListFinalized: false,
		}
		if err := s.config.Save(txCtx, newCfg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update cycle configuration")
		}

		flagged, err = s.roster.FlagAllForReupload(txCtx, models.DocumentTypeCodes, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to flag students for document re-upload")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if decision != "" {
		if err := s.pending.Delete(ctx, year, semester); err != nil {
			s.logger.WarnContext(ctx, "failed to clear pending graduate review", "error", err)
		}
		action := audit.ActionGraduatesSkipped
		if decision == models.DecisionArchiveAll {
			action = audit.ActionGraduatesArchived
		}
		s.publishAudit(ctx, action, year, semester, fmt.Sprintf("graduates archived: %d", archived))
	}
	if s.metrics != nil {
		s.metrics.CyclesStarted.Inc()
		if archived > 0 {
			s.metrics.GraduatesArchived.Add(float64(archived))
		}
	}
	s.publishAudit(ctx, audit.ActionCycleStarted, year, semester,
		fmt.Sprintf("students flagged for re-upload: %d", flagged))

	sent := s.notifyOpened(ctx, fmt.Sprintf("%s %s", semester, year))

	s.logger.InfoContext(ctx, "distribution cycle started",
		"academic_year", year,
		"semester", string(semester),
		"flagged_students", flagged,
		"archived_graduates", archived,
		"notifications_sent", sent,
		"request_id", requestcontext.RequestID(ctx))

	return &StartResult{Started: &StartSummary{
		AcademicYear:      year,
		Semester:          semester,
		FlaggedStudents:   flagged,
		ArchivedGraduates: archived,
		NotificationsSent: sent,
	}}, nil
}

// pauseForReview computes the graduate pending set and, when non-empty,
// persists a review token and returns the pause result. Nothing else is
// mutated; repeating the identical start returns the same pending count.
func (s *Service) pauseForReview(ctx context.Context, year string, semester models.Semester, deadline *time.Time, now time.Time) (*ReviewRequired, error) {
	grads, err := s.roster.ListGraduating(ctx, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list graduating students")
	}
	if len(grads) == 0 {
		return nil, nil
	}

	ids := make([]string, len(grads))
	for i, g := range grads {
		ids[i] = g.ID
	}
	review := &models.PendingReview{
		Token:             uuid.New(),
		AcademicYear:      year,
		Semester:          semester,
		DocumentsDeadline: deadline,
		GraduateIDs:       ids,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.pendingTTL),
	}
	if err := s.pending.Put(ctx, review); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist pending graduate review")
	}

	if s.metrics != nil {
		s.metrics.ReviewsRequired.Inc()
	}
	s.publishAudit(ctx, audit.ActionReviewRequired, year, semester,
		fmt.Sprintf("pending graduates: %d", len(grads)))
	s.logger.InfoContext(ctx, "start paused for graduate review",
		"academic_year", year,
		"semester", string(semester),
		"pending_graduates", len(grads),
		"request_id", requestcontext.RequestID(ctx))

	return &ReviewRequired{
		Token:         review.Token,
		AcademicYear:  year,
		Semester:      semester,
		GraduateCount: len(grads),
		GraduateIDs:   ids,
		ExpiresAt:     review.ExpiresAt,
	}, nil
}

// verifyPendingReview checks that the supplied decision answers an open,
// unexpired review for the period. The graduate set itself is recomputed at
// apply time, never trusted from the token.
func (s *Service) verifyPendingReview(ctx context.Context, year string, semester models.Semester, token string) error {
	review, err := s.pending.Find(ctx, year, semester)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeConflict,
			"no pending graduate review for %s %s: start the cycle again without a decision", semester, year)
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Newf(dErrors.CodeConflict,
			"the graduate review for %s %s has expired: start the cycle again to recompute the pending set", semester, year)
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending graduate review")
	}
	if token != "" && token != review.Token.String() {
		return dErrors.New(dErrors.CodeConflict, "graduate review token does not match the pending review")
	}
	return nil
}

// archiveGraduates recomputes the graduate set inside the transaction and
// archives every member with a reason-stamped history record.
func (s *Service) archiveGraduates(ctx context.Context, year string, now time.Time) (int, error) {
	grads, err := s.roster.ListGraduating(ctx, year)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list graduating students")
	}
	for _, g := range grads {
		reason := g.GraduationReason()
		if err := s.roster.Archive(ctx, g.ID, reason, now); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive graduating student")
		}
		entry := &rostermodels.StatusHistoryEntry{
			ID:           uuid.New(),
			StudentID:    g.ID,
			OldStatus:    g.Status,
			NewStatus:    rostermodels.StudentArchived,
			Reason:       reason,
			UpdateSource: rostermodels.UpdateSourceGraduateArchive,
			CreatedAt:    now,
		}
		if err := s.roster.AppendStatusHistory(ctx, entry); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record status history")
		}
	}
	return len(grads), nil
}

// checkAdvancement blocks the start when the configured year finished both
// semesters without a year-level advancement in between.
func (s *Service) checkAdvancement(ctx context.Context, targetYear string) error {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cycle configuration")
	}
	if !cfg.Configured() || cfg.AcademicYear == targetYear {
		return nil
	}

	blocked, err := s.advancementBlocked(ctx, cfg.AcademicYear)
	if err != nil {
		return err
	}
	if blocked {
		s.rejectGuard("advancement_required")
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"both semesters of A.Y. %s are finalized: advance student year levels before starting %s",
			cfg.AcademicYear, targetYear)
	}
	return nil
}

// checkDeadline enforces that a supplied deadline lands strictly after the
// most recent finalized distribution date.
func (s *Service) checkDeadline(ctx context.Context, deadline *time.Time) error {
	if deadline == nil {
		return nil
	}
	latest, err := s.snapshots.LatestFinalized(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to inspect snapshot ledger")
	}
	if !deadline.After(latest.DistributionDate) {
		s.rejectGuard("deadline_ordering")
		return dErrors.Newf(dErrors.CodeValidation,
			"documents deadline %s must be after the last distribution date %s (%s %s)",
			deadline.Format(models.DeadlineLayout),
			latest.DistributionDate.Format(models.DeadlineLayout),
			latest.Semester, latest.AcademicYear)
	}
	return nil
}

// ensureCurrentYear flags the target year as current in the registry without
// touching its advancement fields.
func (s *Service) ensureCurrentYear(ctx context.Context, year string) error {
	rec, err := s.years.Find(ctx, year)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		rec = &models.AcademicYearRecord{YearCode: year}
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load academic year registry")
	}
	if rec.IsCurrent {
		return nil
	}
	rec.IsCurrent = true
	if err := s.years.Upsert(ctx, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update academic year registry")
	}
	return nil
}

func (s *Service) notifyOpened(ctx context.Context, period string) int {
	if s.notifier == nil {
		return 0
	}
	recipients, err := s.roster.ListNotifiable(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list notification recipients", "error", err)
		return 0
	}
	sent := s.notifier.DistributionOpened(ctx, recipients, period)
	if s.metrics != nil && sent > 0 {
		s.metrics.NotificationsSent.Add(float64(sent))
	}
	return sent
}
