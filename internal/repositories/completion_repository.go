package repositories

import (
	"context"
	"database/sql"
)

type completionRepository struct {
	db *sql.DB
}

// NewCompletionRepository creates a new completion ledger repository
func NewCompletionRepository(db *sql.DB) *completionRepository {
	return &completionRepository{
		db: db,
	}
}

// RecordCompletion inserts a completion record for a student and a section.
// A record that already exists is left as is and reported as not inserted.
func (r *completionRepository) RecordCompletion(ctx context.Context, studentID, sectionID int) (bool, error) {
	query := `
		INSERT INTO section_completions (student_id, section_id)
		VALUES (?, ?)
	`

	_, err := conn(ctx, r.db).ExecContext(ctx, query, studentID, sectionID)
	if isDuplicateEntry(err) {
		return false, nil
	}
	if err != nil {
		return false, classifyError("failed to record completion", err)
	}

	return true, nil
}

// GetCompletedCount counts completion records of a student for sections that belong to a course
func (r *completionRepository) GetCompletedCount(ctx context.Context, studentID, courseID int) (int, error) {
	query := `
		SELECT COUNT(sc.section_id)
		FROM section_completions sc
		INNER JOIN sections s ON s.id = sc.section_id
		INNER JOIN chapters ch ON ch.id = s.chapter_id
		WHERE sc.student_id = ? AND ch.course_id = ?
	`

	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, query, studentID, courseID).Scan(&count)
	if err != nil {
		return 0, classifyError("failed to count completed sections", err)
	}

	return count, nil
}

// IsCompleted checks if a student has completed a section
func (r *completionRepository) IsCompleted(ctx context.Context, studentID, sectionID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM section_completions WHERE student_id = ? AND section_id = ?)`

	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, query, studentID, sectionID).Scan(&exists)
	if err != nil {
		return false, classifyError("failed to check completion existence", err)
	}

	return exists, nil
}

// ListCompletedSectionIDs retrieves IDs of the sections of a course completed by a student
func (r *completionRepository) ListCompletedSectionIDs(ctx context.Context, studentID, courseID int) ([]int, error) {
	query := `
		SELECT sc.section_id
		FROM section_completions sc
		INNER JOIN sections s ON s.id = sc.section_id
		INNER JOIN chapters ch ON ch.id = s.chapter_id
		WHERE sc.student_id = ? AND ch.course_id = ?
		ORDER BY sc.section_id
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, studentID, courseID)
	if err != nil {
		return nil, classifyError("failed to query completed sections", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, classifyError("failed to scan completed section", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating completed section rows", err)
	}

	return ids, nil
}
