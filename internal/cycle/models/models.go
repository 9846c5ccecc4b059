// Package models holds the aggregates of the distribution lifecycle: the live
// cycle configuration, the finalized-cycle snapshot ledger, the academic year
// registry, and the pending graduate-review token.
package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "educaid/pkg/domain-errors"
)

// Status is the lifecycle state of the distribution cycle.
//
// In the current simplified workflow "start" moves directly to active from
// any prior state (preparing is reachable but short-circuited) and "finalize"
// closes the cycle. There is no reactivate transition: once finalized, only a
// new gated start moves the system forward.
type Status string

const (
	StatusInactive   Status = "inactive"
	StatusPreparing  Status = "preparing"
	StatusActive     Status = "active"
	StatusFinalizing Status = "finalizing"
	StatusFinalized  Status = "finalized"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusInactive, StatusPreparing, StatusActive, StatusFinalizing, StatusFinalized:
		return true
	}
	return false
}

// Semester identifies one of the two halves of an academic year. The literal
// labels are part of the persisted data and must not change.
type Semester string

const (
	SemesterFirst  Semester = "1st Semester"
	SemesterSecond Semester = "2nd Semester"
)

// ParseSemester validates and normalizes a semester label.
func ParseSemester(raw string) (Semester, error) {
	switch Semester(strings.TrimSpace(raw)) {
	case SemesterFirst:
		return SemesterFirst, nil
	case SemesterSecond:
		return SemesterSecond, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "semester is required")
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown semester %q: use %q or %q", raw, SemesterFirst, SemesterSecond)
}

var academicYearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// ValidateAcademicYear checks the YYYY-YYYY format and that the end year is
// exactly one greater than the start year.
func ValidateAcademicYear(year string) error {
	if strings.TrimSpace(year) == "" {
		return dErrors.New(dErrors.CodeValidation, "academic year is required")
	}
	if !academicYearPattern.MatchString(year) {
		return dErrors.Newf(dErrors.CodeValidation, "invalid academic year %q: use YYYY-YYYY (e.g. 2025-2026)", year)
	}
	parts := strings.SplitN(year, "-", 2)
	start, _ := strconv.Atoi(parts[0])
	end, _ := strconv.Atoi(parts[1])
	if end != start+1 {
		return dErrors.Newf(dErrors.CodeValidation, "invalid academic year %q: end year must be exactly one after start year", year)
	}
	return nil
}

// DeadlineLayout is the wire format for the documents submission deadline.
const DeadlineLayout = "2006-01-02"

// ParseDeadline parses an optional YYYY-MM-DD deadline. An empty string means
// no deadline was supplied.
func ParseDeadline(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DeadlineLayout, raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid documents deadline %q: use a valid date (YYYY-MM-DD)", raw)
	}
	return &d, nil
}

// DocumentTypeCodes is the full set of document types every enrolled student
// must re-submit when a new cycle opens: enrollment form, grades, ID picture,
// certificate of indigency, letter to the mayor.
var DocumentTypeCodes = []string{"00", "01", "02", "03", "04"}

// CycleConfig is the live configuration singleton. At most one set exists; it
// is created implicitly on the first start and overwritten (never deleted) on
// every subsequent transition. Only the lifecycle service mutates it.
type CycleConfig struct {
	Status               Status
	AcademicYear         string
	Semester             Semester
	UploadsEnabled       bool
	DocumentsDeadline    *time.Time
	StudentListFinalized bool
}

// Configured reports whether a cycle has ever been started.
func (c *CycleConfig) Configured() bool {
	return c != nil && c.AcademicYear != ""
}

// Period renders the human-readable period label, e.g. "1st Semester 2025-2026".
func (c *CycleConfig) Period() string {
	return fmt.Sprintf("%s %s", c.Semester, c.AcademicYear)
}

// AcademicYearRecord is one row of the academic period registry.
//
// YearLevelsAdvanced is set only by the external year-level advancement
// feature; the lifecycle service reads it as a gate and never writes it.
type AcademicYearRecord struct {
	YearCode           string
	IsCurrent          bool
	YearLevelsAdvanced bool
	AdvancedAt         *time.Time
}

// DistributionSnapshot is one row of the snapshot ledger. FinalizedAt nil
// means draft; non-nil means the period is immutably closed. At most one row
// per (AcademicYear, Semester) may ever carry a non-nil FinalizedAt.
type DistributionSnapshot struct {
	ID               uuid.UUID
	AcademicYear     string
	Semester         Semester
	DistributionDate time.Time
	TotalStudents    int
	Location         string
	Notes            string
	FinalizedAt      *time.Time
}

// Finalized reports whether the snapshot is immutably closed.
func (s *DistributionSnapshot) Finalized() bool {
	return s != nil && s.FinalizedAt != nil
}

// Period renders the snapshot's period label.
func (s *DistributionSnapshot) Period() string {
	return fmt.Sprintf("%s %s", s.Semester, s.AcademicYear)
}

// GraduateDecision is the operator's answer to the graduate-review pause.
type GraduateDecision string

const (
	DecisionArchiveAll GraduateDecision = "archive-all"
	DecisionSkip       GraduateDecision = "skip"
)

// ParseGraduateDecision validates an optional decision. An empty string means
// no decision was supplied yet.
func ParseGraduateDecision(raw string) (GraduateDecision, error) {
	switch GraduateDecision(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case DecisionArchiveAll:
		return DecisionArchiveAll, nil
	case DecisionSkip:
		return DecisionSkip, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown graduate decision %q: use %q or %q", raw, DecisionArchiveAll, DecisionSkip)
}

// PendingReview captures a paused start: the requested parameters plus the
// graduate set that triggered the pause. It is keyed by period and expires
// after a TTL so that an abandoned review session cannot apply a stale
// decision against a roster that has since changed.
type PendingReview struct {
	Token             uuid.UUID
	AcademicYear      string
	Semester          Semester
	DocumentsDeadline *time.Time
	GraduateIDs       []string
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// PeriodKey builds the lookup key for a pending review.
func PeriodKey(academicYear string, semester Semester) string {
	return academicYear + "|" + string(semester)
}

// Key returns the pending review's period key.
func (p *PendingReview) Key() string {
	return PeriodKey(p.AcademicYear, p.Semester)
}

// Expired reports whether the review window has lapsed.
func (p *PendingReview) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
