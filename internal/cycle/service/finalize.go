package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"educaid/internal/audit"
	"educaid/internal/cycle/models"
	rostermodels "educaid/internal/roster/models"
	dErrors "educaid/pkg/domain-errors"
	"educaid/pkg/platform/sentinel"
	"educaid/pkg/requestcontext"
)

// DefaultDistributionLocation stamps snapshots that finalize records.
const DefaultDistributionLocation = "Main Distribution Center"

// FinalizeResult summarizes a finalize run, distinguishing which best-effort
// steps actually succeeded.
type FinalizeResult struct {
	AcademicYear string
	Semester     models.Semester

	TotalStudents   int
	SnapshotCreated bool

	ArchivedDocuments int
	DocumentsArchived bool

	SlotsDeactivated int
	SlotsRetired     bool
}

// FinalizeDistribution closes the configured cycle. Document archival,
// snapshot recording, and slot deactivation are best-effort; the config
// update to finalized is the critical step and the only one that can fail
// the operation outright once the duplicate guard has passed.
func (s *Service) FinalizeDistribution(ctx context.Context) (*FinalizeResult, error) {
	started := time.Now()
	defer s.observeTransition("finalize", started)

	now := requestcontext.Now(ctx)

	cfg, err := s.config.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cycle configuration")
	}
	if !cfg.Configured() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no distribution cycle is configured: start one first")
	}

	// Duplicate guard before any effect; the snapshot store re-checks it.
	_, err = s.snapshots.FindFinalized(ctx, cfg.AcademicYear, cfg.Semester)
	switch {
	case err == nil:
		s.rejectGuard("duplicate_finalize")
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"distribution for %s %s is already finalized", cfg.Semester, cfg.AcademicYear)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to inspect snapshot ledger")
	}

	result := &FinalizeResult{AcademicYear: cfg.AcademicYear, Semester: cfg.Semester}

	// Best-effort: move live documents into the per-period archive.
	if s.docs != nil {
		n, err := s.docs.ArchiveAll(ctx, cfg.AcademicYear, string(cfg.Semester), now)
		if err != nil {
			s.logger.WarnContext(ctx, "document archival failed, documents remain live",
				"academic_year", cfg.AcademicYear, "error", err)
		} else {
			result.ArchivedDocuments = n
			result.DocumentsArchived = true
		}
	}

	// Snapshot recording and the critical config flip share one transaction:
	// a failed config save must not strand a finalized snapshot, or every
	// retry would trip the duplicate guard with the cycle still open.
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		count, err := s.roster.CountByStatus(txCtx, rostermodels.StudentActive)
		if err != nil {
			s.logger.WarnContext(txCtx, "failed to count active students for snapshot", "error", err)
			count = 0
		}
		snap := &models.DistributionSnapshot{
			AcademicYear:     cfg.AcademicYear,
			Semester:         cfg.Semester,
			DistributionDate: now.Truncate(24 * time.Hour),
			TotalStudents:    count,
			Location:         DefaultDistributionLocation,
		}
		err = s.snapshots.Finalize(txCtx, snap, now)
		switch {
		case err == nil:
			result.TotalStudents = count
			result.SnapshotCreated = true
		case errors.Is(err, sentinel.ErrConflict):
			s.rejectGuard("duplicate_finalize")
			return dErrors.Newf(dErrors.CodeConflict,
				"distribution for %s %s is already finalized", cfg.Semester, cfg.AcademicYear)
		default:
			s.logger.WarnContext(txCtx, "snapshot recording failed, history will miss this period",
				"academic_year", cfg.AcademicYear, "error", err)
		}

		cfg.Status = models.StatusFinalized
		cfg.UploadsEnabled = false
		if err := s.config.Save(txCtx, cfg); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize cycle configuration")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort: retire open signup slots.
	if s.slots != nil {
		n, err := s.slots.DeactivateAll(ctx, now)
		if err != nil {
			s.logger.WarnContext(ctx, "signup slot deactivation failed", "error", err)
		} else {
			result.SlotsDeactivated = n
			result.SlotsRetired = true
		}
	}

	if s.metrics != nil {
		s.metrics.CyclesFinalized.Inc()
	}
	s.publishAudit(ctx, audit.ActionCycleFinalized, cfg.AcademicYear, cfg.Semester,
		fmt.Sprintf("snapshot created: %t, documents archived: %d", result.SnapshotCreated, result.ArchivedDocuments))

	s.logger.InfoContext(ctx, "distribution cycle finalized",
		"academic_year", cfg.AcademicYear,
		"semester", string(cfg.Semester),
		"total_students", result.TotalStudents,
		"snapshot_created", result.SnapshotCreated,
		"documents_archived", result.ArchivedDocuments,
		"slots_deactivated", result.SlotsDeactivated,
		"request_id", requestcontext.RequestID(ctx))

	return result, nil
}
