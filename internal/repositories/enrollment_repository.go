package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coursehub/progress-service/internal/models"
)

type enrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sql.DB) *enrollmentRepository {
	return &enrollmentRepository{
		db: db,
	}
}

// IsCourseEnrolledForStudent checks if the organization of a student has been granted a course
func (r *enrollmentRepository) IsCourseEnrolledForStudent(ctx context.Context, studentID, courseID int) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM students st
			INNER JOIN organization_courses oc ON oc.organization_id = st.organization_id
			WHERE st.id = ? AND oc.course_id = ?
		)
	`

	var enrolled bool
	err := conn(ctx, r.db).QueryRowContext(ctx, query, studentID, courseID).Scan(&enrolled)
	if err != nil {
		return false, classifyError("failed to check course enrollment", err)
	}

	return enrolled, nil
}

// GetStudentContact retrieves the notification data of a student
func (r *enrollmentRepository) GetStudentContact(ctx context.Context, studentID int) (*models.StudentContact, error) {
	query := `
		SELECT id, organization_id, email, full_name
		FROM students
		WHERE id = ?
		LIMIT 1
	`

	var contact models.StudentContact
	err := conn(ctx, r.db).QueryRowContext(ctx, query, studentID).Scan(
		&contact.StudentID,
		&contact.OrganizationID,
		&contact.Email,
		&contact.FullName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %d: %w", studentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, classifyError("failed to get student contact", err)
	}

	return &contact, nil
}
