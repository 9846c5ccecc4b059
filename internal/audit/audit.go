// Package audit records lifecycle transitions as an append-only event trail.
// Publishing is fail-open: an unreachable sink must never block a transition.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened.
type Action string

const (
	ActionCycleStarted      Action = "cycle_started"
	ActionCycleActivated    Action = "cycle_activated"
	ActionCycleFinalized    Action = "cycle_finalized"
	ActionGraduatesArchived Action = "graduates_archived"
	ActionGraduatesSkipped  Action = "graduates_skipped"
	ActionReviewRequired    Action = "review_required"
)

// Event is one audit trail entry.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Action       Action    `json:"action"`
	AcademicYear string    `json:"academic_year"`
	Semester     string    `json:"semester"`
	OperatorID   string    `json:"operator_id,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher sinks audit events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}
