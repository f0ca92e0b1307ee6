package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coursehub/progress-service/internal/models"
)

const progressColumns = `id, student_id, course_id, percentage, status, started_at, completed_at, updated_at`

type progressRepository struct {
	db *sql.DB
}

// NewProgressRepository creates a new progress record repository
func NewProgressRepository(db *sql.DB) *progressRepository {
	return &progressRepository{
		db: db,
	}
}

// GetOrCreate returns the progress record of a student in a course, creating it when missing.
// The insert relies on the (student_id, course_id) unique key, so concurrent first access creates one row.
func (r *progressRepository) GetOrCreate(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error) {
	query := `
		INSERT INTO course_progress (student_id, course_id, percentage, status)
		VALUES (?, ?, 0, ?)
		ON DUPLICATE KEY UPDATE id = id
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query, studentID, courseID, models.ProgressStatusNotStarted)
	if err != nil {
		return nil, classifyError("failed to create progress record", err)
	}

	return r.Get(ctx, studentID, courseID)
}

// Get retrieves the progress record of a student in a course
func (r *progressRepository) Get(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + `
		FROM course_progress
		WHERE student_id = ? AND course_id = ?
		LIMIT 1
	`

	return r.getOne(ctx, query, studentID, courseID)
}

// GetForUpdate retrieves the progress record and locks its row until the surrounding transaction ends
func (r *progressRepository) GetForUpdate(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + `
		FROM course_progress
		WHERE student_id = ? AND course_id = ?
		LIMIT 1
		FOR UPDATE
	`

	return r.getOne(ctx, query, studentID, courseID)
}

func (r *progressRepository) getOne(ctx context.Context, query string, studentID, courseID int) (*models.ProgressRecord, error) {
	record, err := scanProgress(conn(ctx, r.db).QueryRowContext(ctx, query, studentID, courseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progress record for student %d in course %d: %w", studentID, courseID, models.ErrNotFound)
	}
	if err != nil {
		return nil, classifyError("failed to get progress record", err)
	}

	return record, nil
}

// Update persists percentage, status and timestamps of a progress record
func (r *progressRepository) Update(ctx context.Context, record *models.ProgressRecord) error {
	query := `
		UPDATE course_progress
		SET percentage = ?, status = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	var completedAt sql.NullTime
	if record.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *record.CompletedAt, Valid: true}
	}

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		record.Percentage,
		record.Status,
		completedAt,
		record.UpdatedAt,
		record.ID,
	)
	if err != nil {
		return classifyError("failed to update progress record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classifyError("failed to get rows affected", err)
	}

	// MySQL reports 0 affected rows when the values did not change, so only a missing row is an error
	if rowsAffected == 0 {
		if _, err := r.Get(ctx, record.StudentID, record.CourseID); err != nil {
			return err
		}
	}

	return nil
}

// ListByStudent retrieves all progress records of a student
func (r *progressRepository) ListByStudent(ctx context.Context, studentID int) ([]models.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + `
		FROM course_progress
		WHERE student_id = ?
		ORDER BY course_id
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, classifyError("failed to query progress records", err)
	}
	defer rows.Close()

	records := []models.ProgressRecord{}
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, classifyError("failed to scan progress record", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating progress rows", err)
	}

	return records, nil
}

// ListUnsettled retrieves keys of progress records that are not completed or completed without a certificate.
// Keys are returned in ID order starting after afterID, at most limit keys per call.
func (r *progressRepository) ListUnsettled(ctx context.Context, afterID, limit int) ([]models.ProgressKey, int, error) {
	query := `
		SELECT cp.id, cp.student_id, cp.course_id
		FROM course_progress cp
		LEFT JOIN certificates c ON c.student_id = cp.student_id AND c.course_id = cp.course_id
		WHERE cp.id > ? AND (cp.status <> ? OR c.id IS NULL)
		ORDER BY cp.id
		LIMIT ?
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, afterID, models.ProgressStatusCompleted, limit)
	if err != nil {
		return nil, afterID, classifyError("failed to query unsettled progress records", err)
	}
	defer rows.Close()

	keys := []models.ProgressKey{}
	lastID := afterID
	for rows.Next() {
		var key models.ProgressKey
		if err := rows.Scan(&lastID, &key.StudentID, &key.CourseID); err != nil {
			return nil, afterID, classifyError("failed to scan progress key", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, afterID, classifyError("error iterating progress key rows", err)
	}

	return keys, lastID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*models.ProgressRecord, error) {
	var (
		record      models.ProgressRecord
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&record.ID,
		&record.StudentID,
		&record.CourseID,
		&record.Percentage,
		&record.Status,
		&record.StartedAt,
		&completedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}

	return &record, nil
}
