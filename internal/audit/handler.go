package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AuditRepository persists audit events
type AuditRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
}

// ContactRepository resolves where to notify a student
type ContactRepository interface {
	GetStudentContact(ctx context.Context, studentID int) (*models.StudentContact, error)
}

// Handler processes audit tasks on the worker side
type Handler struct {
	auditRepo   AuditRepository
	contactRepo ContactRepository
	mailer      Mailer
	logger      *zap.Logger
}

// NewHandler creates a new audit task handler. A nil mailer disables certificate emails.
func NewHandler(auditRepo AuditRepository, contactRepo ContactRepository, mailer Mailer, logger *zap.Logger) *Handler {
	return &Handler{
		auditRepo:   auditRepo,
		contactRepo: contactRepo,
		mailer:      mailer,
		logger:      logger,
	}
}

// Register binds the audit task types to the mux
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskSectionCompleted, h.HandleAuditTask)
	mux.HandleFunc(TaskCertificateIssued, h.HandleAuditTask)
}

// HandleAuditTask stores the event and, for issued certificates, notifies the student
func (h *Handler) HandleAuditTask(ctx context.Context, t *asynq.Task) error {
	var event models.AuditEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		// A malformed payload never becomes valid, retrying is pointless
		return fmt.Errorf("failed to decode audit event: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.auditRepo.Create(ctx, &event); err != nil {
		return err
	}

	if event.Type != models.AuditEventCertificateIssued || h.mailer == nil {
		return nil
	}

	// The event is already stored, a failed notification must not replay it
	if err := h.notifyCertificate(ctx, &event); err != nil {
		h.logger.Error("failed to send certificate notification",
			zap.Int("student_id", event.StudentID),
			zap.Int("course_id", event.CourseID),
			zap.Error(err),
		)
	}

	return nil
}

func (h *Handler) notifyCertificate(ctx context.Context, event *models.AuditEvent) error {
	contact, err := h.contactRepo.GetStudentContact(ctx, event.StudentID)
	if err != nil {
		return err
	}
	if contact.Email == "" {
		return errors.New("student has no email address")
	}

	var details struct {
		CertificateNumber string `json:"certificateNumber"`
	}
	if len(event.Details) > 0 {
		if err := json.Unmarshal(event.Details, &details); err != nil {
			return fmt.Errorf("failed to decode certificate details: %w", err)
		}
	}

	body := fmt.Sprintf(
		"<p>Congratulations, %s!</p><p>You have completed course #%d. Your certificate number is <b>%s</b>.</p>",
		html.EscapeString(contact.FullName), event.CourseID, html.EscapeString(details.CertificateNumber),
	)

	return h.mailer.Send(contact.Email, "Your course certificate", body)
}
