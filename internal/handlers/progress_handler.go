package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/coursehub/progress-service/internal/middleware"
	"github.com/coursehub/progress-service/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CompletionService is the interface that wraps the section completion flow.
type CompletionService interface {
	// CompleteSection records a completed section, recomputes course progress and issues
	// a certificate when the course reaches 100 percent.
	//
	// "expectedCourseID" is optional, when it is not zero the section must belong to that course.
	// Errors carry one of the models reason codes.
	CompleteSection(ctx context.Context, identity models.Identity, sectionID, expectedCourseID int) (*models.CompletionResult, error)
}

// ContentService is the interface that wraps course structure reads.
type ContentService interface {
	// GetStructure returns the ordered chapters and sections of a course the caller is enrolled in.
	GetStructure(ctx context.Context, identity models.Identity, courseID int) (*models.CourseStructure, error)
}

// ProgressService is the interface that wraps progress reads.
type ProgressService interface {
	// GetCourseProgress returns the caller's progress record in a course together with completed sections.
	GetCourseProgress(ctx context.Context, identity models.Identity, courseID int) (*models.CourseProgressResponse, error)
	// Summarize aggregates the progress of a student across all started courses.
	Summarize(ctx context.Context, studentID int) (*models.ProgressSummary, error)
}

// ProgressHandler handles HTTP requests for student progress
type ProgressHandler struct {
	BaseHandler
	completion CompletionService
	content    ContentService
	progress   ProgressService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(completion CompletionService, content ContentService, progress ProgressService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler: BaseHandler{logger: logger},
		completion:  completion,
		content:     content,
		progress:    progress,
	}
}

// RegisterRoutes registers all progress handler routes
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sections/{sectionID}/complete", h.CompleteSection)
	r.Route("/courses/{courseID}", func(r chi.Router) {
		r.Get("/structure", h.GetStructure)
		r.Get("/progress", h.GetCourseProgress)
	})
	r.Get("/progress/summary", h.GetSummary)
}

// CompleteSection handles POST /api/v1/sections/{sectionID}/complete
// @Summary Complete a section
// @Description Marks a section as completed, recomputes course progress and issues a certificate at 100 percent
// @Tags progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sectionID path int true "Section ID"
// @Param request body models.CompleteSectionRequest false "Optional course the section must belong to"
// @Success 200 {object} models.CompletionResult
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/sections/{sectionID}/complete [post]
func (h *ProgressHandler) CompleteSection(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sectionID, ok := pathID(chi.URLParam(r, "sectionID"))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid section id")
		return
	}

	var req models.CompleteSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CourseID < 0 {
		h.respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	result, err := h.completion.CompleteSection(r.Context(), identity, sectionID, req.CourseID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetStructure handles GET /api/v1/courses/{courseID}/structure
// @Summary Get course structure
// @Description Get chapters and sections of an enrolled course in display order
// @Tags courses
// @Produce json
// @Security BearerAuth
// @Param courseID path int true "Course ID"
// @Success 200 {object} models.CourseStructure
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/courses/{courseID}/structure [get]
func (h *ProgressHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	courseID, ok := pathID(chi.URLParam(r, "courseID"))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	structure, err := h.content.GetStructure(r.Context(), identity, courseID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, structure)
}

// GetCourseProgress handles GET /api/v1/courses/{courseID}/progress
// @Summary Get course progress
// @Description Get the caller's progress in a course and the sections completed so far
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Param courseID path int true "Course ID"
// @Success 200 {object} models.CourseProgressResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/courses/{courseID}/progress [get]
func (h *ProgressHandler) GetCourseProgress(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	courseID, ok := pathID(chi.URLParam(r, "courseID"))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	progress, err := h.progress.GetCourseProgress(r.Context(), identity, courseID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, progress)
}

// GetSummary handles GET /api/v1/progress/summary
// @Summary Get progress summary
// @Description Get totals and average progress across the caller's courses
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ProgressSummary
// @Failure 401 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/progress/summary [get]
func (h *ProgressHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.progress.Summarize(r.Context(), identity.StudentID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}
