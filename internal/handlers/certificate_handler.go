package handlers

import (
	"context"
	"net/http"

	"github.com/coursehub/progress-service/internal/middleware"
	"github.com/coursehub/progress-service/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CertificateService is the interface that wraps certificate reads and administrative issuance.
type CertificateService interface {
	// ListForStudent returns the certificates of a student, newest first.
	ListForStudent(ctx context.Context, studentID int) ([]models.CertificateListItem, error)
	// GetByNumber returns a certificate owned by the caller. Admins can read any certificate.
	GetByNumber(ctx context.Context, identity models.Identity, number string) (*models.Certificate, error)
	// IssueManually issues a certificate for a completed course that has none yet.
	IssueManually(ctx context.Context, studentID, courseID int) (*models.Certificate, error)
}

// CertificateHandler handles HTTP requests for certificates of the caller
type CertificateHandler struct {
	BaseHandler
	service CertificateService
}

// NewCertificateHandler creates a new certificate handler
func NewCertificateHandler(svc CertificateService, logger *zap.Logger) *CertificateHandler {
	return &CertificateHandler{
		BaseHandler: BaseHandler{logger: logger},
		service:     svc,
	}
}

// RegisterRoutes registers all certificate handler routes
func (h *CertificateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/certificates", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{number}", h.GetByNumber)
	})
}

// List handles GET /api/v1/certificates
// @Summary List certificates
// @Description Get all certificates of the caller
// @Tags certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CertificateListItem
// @Failure 401 {object} map[string]string
// @Router /api/v1/certificates [get]
func (h *CertificateHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	certificates, err := h.service.ListForStudent(r.Context(), identity.StudentID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if certificates == nil {
		certificates = []models.CertificateListItem{}
	}

	h.respondJSON(w, http.StatusOK, certificates)
}

// GetByNumber handles GET /api/v1/certificates/{number}
// @Summary Get certificate
// @Description Get a certificate of the caller by its number
// @Tags certificates
// @Produce json
// @Security BearerAuth
// @Param number path string true "Certificate number"
// @Success 200 {object} models.Certificate
// @Failure 404 {object} map[string]string
// @Router /api/v1/certificates/{number} [get]
func (h *CertificateHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	certificate, err := h.service.GetByNumber(r.Context(), identity, chi.URLParam(r, "number"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, certificate)
}
