package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReconciliationService is the interface that wraps the progress reconciliation sweep.
type ReconciliationService interface {
	// Reconcile recomputes every record below 100 percent and issues certificates that are due.
	Reconcile(ctx context.Context) (*models.ReconciliationReport, error)
}

// AdminHandler handles administrative HTTP requests
type AdminHandler struct {
	BaseHandler
	certificates CertificateService
	reconciler   ReconciliationService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(certificates CertificateService, reconciler ReconciliationService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:  BaseHandler{logger: logger},
		certificates: certificates,
		reconciler:   reconciler,
	}
}

// RegisterRoutes registers all admin handler routes
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/certificates", h.IssueCertificate)
		r.Post("/reconcile", h.Reconcile)
	})
}

// IssueCertificate handles POST /api/v1/admin/certificates
// @Summary Issue certificate
// @Description Issue a certificate for a student who completed a course
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Param request body models.IssueCertificateRequest true "Student and course"
// @Success 201 {object} models.Certificate
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/admin/certificates [post]
func (h *AdminHandler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req models.IssueCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentID <= 0 || req.CourseID <= 0 {
		h.respondError(w, http.StatusBadRequest, "studentId and courseId are required")
		return
	}

	certificate, err := h.certificates.IssueManually(r.Context(), req.StudentID, req.CourseID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.logger.Info("certificate issued manually",
		zap.Int("student_id", req.StudentID),
		zap.Int("course_id", req.CourseID),
		zap.String("certificate_number", certificate.CertificateNumber),
	)
	h.respondJSON(w, http.StatusCreated, certificate)
}

// Reconcile handles POST /api/v1/admin/reconcile
// @Summary Run reconciliation
// @Description Recompute unfinished progress records and issue missing certificates
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Security BearerAuth
// @Success 200 {object} models.ReconciliationReport
// @Failure 503 {object} map[string]string
// @Router /api/v1/admin/reconcile [post]
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}
