// Package handler exposes the distribution lifecycle over HTTP for the admin
// console.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"educaid/internal/cycle/models"
	"educaid/internal/cycle/service"
	rostermodels "educaid/internal/roster/models"
	dErrors "educaid/pkg/domain-errors"
	"educaid/pkg/platform/httputil"
)

// Service defines the lifecycle operations the handler exposes.
type Service interface {
	StartDistribution(ctx context.Context, params service.StartParams) (*service.StartResult, error)
	ActivateDistribution(ctx context.Context) error
	FinalizeDistribution(ctx context.Context) (*service.FinalizeResult, error)
	Status(ctx context.Context) (*service.WorkflowStatus, error)
	History(ctx context.Context, limit int) ([]*models.DistributionSnapshot, error)
	PendingGraduates(ctx context.Context, targetYear string) ([]*rostermodels.Student, error)
}

// Handler serves the admin distribution endpoints.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// New creates a distribution Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the distribution routes on the router. Admin
// authentication middleware is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/distribution/start", h.handleStart)
	r.Post("/admin/distribution/activate", h.handleActivate)
	r.Post("/admin/distribution/finalize", h.handleFinalize)
	r.Get("/admin/distribution/status", h.handleStatus)
	r.Get("/admin/distribution/history", h.handleHistory)
	r.Get("/admin/distribution/graduates", h.handleGraduates)
}

type startRequest struct {
	AcademicYear      string `json:"academic_year"`
	Semester          string `json:"semester"`
	DocumentsDeadline string `json:"documents_deadline,omitempty"`
	GraduateDecision  string `json:"graduate_decision,omitempty"`
	ReviewToken       string `json:"review_token,omitempty"`
}

type reviewRequiredResponse struct {
	ReviewRequired bool     `json:"review_required"`
	ReviewToken    string   `json:"review_token"`
	AcademicYear   string   `json:"academic_year"`
	Semester       string   `json:"semester"`
	GraduateCount  int      `json:"graduate_count"`
	GraduateIDs    []string `json:"graduate_ids"`
	ExpiresAt      string   `json:"expires_at"`
}

type startedResponse struct {
	ReviewRequired    bool   `json:"review_required"`
	AcademicYear      string `json:"academic_year"`
	Semester          string `json:"semester"`
	FlaggedStudents   int    `json:"flagged_students"`
	ArchivedGraduates int    `json:"archived_graduates"`
	NotificationsSent int    `json:"notifications_sent"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WarnContext(ctx, "invalid start request", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.svc.StartDistribution(ctx, service.StartParams{
		AcademicYear:      req.AcademicYear,
		Semester:          req.Semester,
		DocumentsDeadline: req.DocumentsDeadline,
		GraduateDecision:  req.GraduateDecision,
		ReviewToken:       req.ReviewToken,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if result.Review != nil {
		httputil.WriteJSON(w, http.StatusOK, reviewRequiredResponse{
			ReviewRequired: true,
			ReviewToken:    result.Review.Token.String(),
			AcademicYear:   result.Review.AcademicYear,
			Semester:       string(result.Review.Semester),
			GraduateCount:  result.Review.GraduateCount,
			GraduateIDs:    result.Review.GraduateIDs,
			ExpiresAt:      result.Review.ExpiresAt.Format(time.RFC3339),
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, startedResponse{
		AcademicYear:      result.Started.AcademicYear,
		Semester:          string(result.Started.Semester),
		FlaggedStudents:   result.Started.FlaggedStudents,
		ArchivedGraduates: result.Started.ArchivedGraduates,
		NotificationsSent: result.Started.NotificationsSent,
	})
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ActivateDistribution(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": string(models.StatusActive)})
}

type finalizeResponse struct {
	AcademicYear      string `json:"academic_year"`
	Semester          string `json:"semester"`
	TotalStudents     int    `json:"total_students"`
	SnapshotCreated   bool   `json:"snapshot_created"`
	ArchivedDocuments int    `json:"archived_documents"`
	DocumentsArchived bool   `json:"documents_archived"`
	SlotsDeactivated  int    `json:"slots_deactivated"`
	SlotsRetired      bool   `json:"slots_retired"`
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.FinalizeDistribution(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, finalizeResponse{
		AcademicYear:      result.AcademicYear,
		Semester:          string(result.Semester),
		TotalStudents:     result.TotalStudents,
		SnapshotCreated:   result.SnapshotCreated,
		ArchivedDocuments: result.ArchivedDocuments,
		DocumentsArchived: result.DocumentsArchived,
		SlotsDeactivated:  result.SlotsDeactivated,
		SlotsRetired:      result.SlotsRetired,
	})
}

type statusResponse struct {
	Configured          bool   `json:"configured"`
	Status              string `json:"status,omitempty"`
	AcademicYear        string `json:"academic_year,omitempty"`
	Semester            string `json:"semester,omitempty"`
	UploadsEnabled      bool   `json:"uploads_enabled"`
	DocumentsDeadline   string `json:"documents_deadline,omitempty"`
	RegistryYear        string `json:"registry_year,omitempty"`
	YearLevelsAdvanced  bool   `json:"year_levels_advanced"`
	ActiveStudents      int    `json:"active_students"`
	ApplicantStudents   int    `json:"applicant_students"`
	AdvancementRequired bool   `json:"advancement_required"`
	SignupSlotsOpen     bool   `json:"signup_slots_open"`
	LiveDocuments       int    `json:"live_documents"`
	ArchivedDocuments   int    `json:"archived_documents"`
	LastFinalized       string `json:"last_finalized_period,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := statusResponse{
		ActiveStudents:      status.ActiveStudents,
		ApplicantStudents:   status.ApplicantStudents,
		AdvancementRequired: status.AdvancementRequired,
		SignupSlotsOpen:     status.SignupSlotsOpen,
		LiveDocuments:       status.LiveDocuments,
		ArchivedDocuments:   status.ArchivedDocuments,
	}
	if status.CurrentYear != nil {
		resp.RegistryYear = status.CurrentYear.YearCode
		resp.YearLevelsAdvanced = status.CurrentYear.YearLevelsAdvanced
	}
	if cfg := status.Config; cfg.Configured() {
		resp.Configured = true
		resp.Status = string(cfg.Status)
		resp.AcademicYear = cfg.AcademicYear
		resp.Semester = string(cfg.Semester)
		resp.UploadsEnabled = cfg.UploadsEnabled
		if cfg.DocumentsDeadline != nil {
			resp.DocumentsDeadline = cfg.DocumentsDeadline.Format(models.DeadlineLayout)
		}
	}
	if status.LastFinalized != nil {
		resp.LastFinalized = status.LastFinalized.Period()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type historyEntry struct {
	AcademicYear     string `json:"academic_year"`
	Semester         string `json:"semester"`
	DistributionDate string `json:"distribution_date"`
	TotalStudents    int    `json:"total_students"`
	Location         string `json:"location"`
	FinalizedAt      string `json:"finalized_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	snaps, err := h.svc.History(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries := make([]historyEntry, 0, len(snaps))
	for _, snap := range snaps {
		entries = append(entries, historyEntry{
			AcademicYear:     snap.AcademicYear,
			Semester:         string(snap.Semester),
			DistributionDate: snap.DistributionDate.Format(models.DeadlineLayout),
			TotalStudents:    snap.TotalStudents,
			Location:         snap.Location,
			FinalizedAt:      snap.FinalizedAt.Format(time.RFC3339),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
}

type graduateEntry struct {
	ID                 string `json:"id"`
	FullName           string `json:"full_name,omitempty"`
	YearLevel          string `json:"year_level,omitempty"`
	StatusAcademicYear string `json:"status_academic_year"`
	Status             string `json:"status"`
}

func (h *Handler) handleGraduates(w http.ResponseWriter, r *http.Request) {
	targetYear := r.URL.Query().Get("target_year")
	grads, err := h.svc.PendingGraduates(r.Context(), targetYear)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries := make([]graduateEntry, 0, len(grads))
	for _, g := range grads {
		entries = append(entries, graduateEntry{
			ID:                 g.ID,
			FullName:           g.FullName,
			YearLevel:          g.YearLevel,
			StatusAcademicYear: g.StatusAcademicYear,
			Status:             string(g.Status),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"target_year": targetYear,
		"count":       len(entries),
		"graduates":   entries,
	})
}
