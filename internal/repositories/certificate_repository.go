package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coursehub/progress-service/internal/models"
)

type certificateRepository struct {
	db *sql.DB
}

// NewCertificateRepository creates a new certificate repository
func NewCertificateRepository(db *sql.DB) *certificateRepository {
	return &certificateRepository{
		db: db,
	}
}

// Exists checks if a certificate was issued to a student for a course
func (r *certificateRepository) Exists(ctx context.Context, studentID, courseID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM certificates WHERE student_id = ? AND course_id = ?)`

	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, query, studentID, courseID).Scan(&exists)
	if err != nil {
		return false, classifyError("failed to check certificate existence", err)
	}

	return exists, nil
}

// Create inserts a new certificate.
// A second certificate for the same student and course violates the unique key and yields models.ErrAlreadyExists.
func (r *certificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	query := `
		INSERT INTO certificates (student_id, course_id, certificate_number, issued_at, score_percentage)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		certificate.StudentID,
		certificate.CourseID,
		certificate.CertificateNumber,
		certificate.IssuedAt,
		certificate.ScorePercentage,
	)
	if err != nil {
		return classifyError("failed to create certificate", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return classifyError("failed to get last insert id", err)
	}

	certificate.ID = int(id)
	return nil
}

// GetByNumber retrieves a certificate by its number
func (r *certificateRepository) GetByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	query := `
		SELECT id, student_id, course_id, certificate_number, issued_at, score_percentage
		FROM certificates
		WHERE certificate_number = ?
		LIMIT 1
	`

	var certificate models.Certificate
	err := conn(ctx, r.db).QueryRowContext(ctx, query, number).Scan(
		&certificate.ID,
		&certificate.StudentID,
		&certificate.CourseID,
		&certificate.CertificateNumber,
		&certificate.IssuedAt,
		&certificate.ScorePercentage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("certificate %s: %w", number, models.ErrNotFound)
	}
	if err != nil {
		return nil, classifyError("failed to get certificate by number", err)
	}

	return &certificate, nil
}

// ListByStudent retrieves all certificates of a student with course titles
func (r *certificateRepository) ListByStudent(ctx context.Context, studentID int) ([]models.CertificateListItem, error) {
	query := `
		SELECT c.certificate_number, c.course_id, co.title, c.issued_at, c.score_percentage
		FROM certificates c
		INNER JOIN courses co ON co.id = c.course_id
		WHERE c.student_id = ?
		ORDER BY c.issued_at DESC, c.id DESC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, classifyError("failed to query certificates", err)
	}
	defer rows.Close()

	certificates := []models.CertificateListItem{}
	for rows.Next() {
		var item models.CertificateListItem
		if err := rows.Scan(
			&item.CertificateNumber,
			&item.CourseID,
			&item.CourseTitle,
			&item.IssuedAt,
			&item.ScorePercentage,
		); err != nil {
			return nil, classifyError("failed to scan certificate", err)
		}
		certificates = append(certificates, item)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating certificate rows", err)
	}

	return certificates, nil
}
