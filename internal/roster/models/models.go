// Package models holds the student roster records the lifecycle service
// reads and mutates.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StudentStatus is the enrollment state of a roster record.
type StudentStatus string

const (
	StudentApplicant StudentStatus = "applicant"
	StudentActive    StudentStatus = "active"
	StudentArchived  StudentStatus = "archived"
)

// Student is one roster record. Enrolled means status applicant or active
// and not archived; only enrolled students are touched by cycle transitions.
type Student struct {
	ID       string
	FullName string
	Email    string

	Status             StudentStatus
	YearLevel          string
	StatusAcademicYear string
	IsGraduating       bool

	IsArchived    bool
	ArchiveReason string

	NeedsDocumentUpload bool
	DocumentsToReupload []string

	UpdatedAt time.Time
}

// Enrolled reports whether the student participates in the current program.
func (s *Student) Enrolled() bool {
	return !s.IsArchived && (s.Status == StudentApplicant || s.Status == StudentActive)
}

// GraduationReason renders the archive reason recorded when a graduate is
// archived, e.g. "Graduated - Completed Grade 12 in A.Y. 2024-2025".
func (s *Student) GraduationReason() string {
	return fmt.Sprintf("Graduated - Completed %s in A.Y. %s", s.YearLevel, s.StatusAcademicYear)
}

// StatusHistoryEntry is one row of the append-only student status audit
// trail.
type StatusHistoryEntry struct {
	ID           uuid.UUID
	StudentID    string
	OldStatus    StudentStatus
	NewStatus    StudentStatus
	Reason       string
	UpdateSource string
	CreatedAt    time.Time
}

// UpdateSourceGraduateArchive tags history rows written by the graduate
// archival step of a cycle start.
const UpdateSourceGraduateArchive = "admin_graduate_archive"
