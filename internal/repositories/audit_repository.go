package repositories

import (
	"context"
	"database/sql"

	"github.com/coursehub/progress-service/internal/models"
)

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sql.DB) *auditRepository {
	return &auditRepository{
		db: db,
	}
}

// Create inserts an audit log entry
func (r *auditRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_logs (event_type, student_id, course_id, section_id, percentage, details, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var sectionID sql.NullInt64
	if event.SectionID != 0 {
		sectionID = sql.NullInt64{Int64: int64(event.SectionID), Valid: true}
	}

	var details sql.NullString
	if len(event.Details) > 0 {
		details = sql.NullString{String: string(event.Details), Valid: true}
	}

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		event.Type,
		event.StudentID,
		event.CourseID,
		sectionID,
		event.Percentage,
		details,
		event.OccurredAt,
	)
	if err != nil {
		return classifyError("failed to create audit log", err)
	}

	return nil
}
