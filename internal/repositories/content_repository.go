package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/coursehub/progress-service/internal/models"
)

type contentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new content structure repository
func NewContentRepository(db *sql.DB) *contentRepository {
	return &contentRepository{
		db: db,
	}
}

// GetCourseByID retrieves a course by its ID
func (r *contentRepository) GetCourseByID(ctx context.Context, courseID int) (*models.Course, error) {
	query := `
		SELECT id, title, status
		FROM courses
		WHERE id = ?
		LIMIT 1
	`

	var course models.Course
	err := conn(ctx, r.db).QueryRowContext(ctx, query, courseID).Scan(
		&course.ID,
		&course.Title,
		&course.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %d: %w", courseID, models.ErrNotFound)
	}
	if err != nil {
		return nil, classifyError("failed to get course by id", err)
	}

	return &course, nil
}

// GetTotalSectionCount counts all sections across all chapters of a course.
// A course without chapters or sections yields 0.
func (r *contentRepository) GetTotalSectionCount(ctx context.Context, courseID int) (int, error) {
	query := `
		SELECT COUNT(s.id)
		FROM sections s
		INNER JOIN chapters ch ON ch.id = s.chapter_id
		WHERE ch.course_id = ?
	`

	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, query, courseID).Scan(&count)
	if err != nil {
		return 0, classifyError("failed to count sections", err)
	}

	return count, nil
}

// GetStructure retrieves the course tree with chapters and sections ordered by their ordering keys
func (r *contentRepository) GetStructure(ctx context.Context, courseID int) (*models.CourseStructure, error) {
	course, err := r.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			ch.id,
			ch.title,
			ch.sort_order,
			s.id,
			s.title,
			s.sort_order,
			s.content_kind
		FROM chapters ch
		LEFT JOIN sections s ON s.chapter_id = ch.id
		WHERE ch.course_id = ?
		ORDER BY ch.sort_order, ch.id, s.sort_order, s.id
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, classifyError("failed to query course structure", err)
	}
	defer rows.Close()

	structure := &models.CourseStructure{
		Course:   *course,
		Chapters: []models.Chapter{},
	}
	for rows.Next() {
		var (
			chapter      models.Chapter
			sectionID    sql.NullInt64
			sectionTitle sql.NullString
			sectionOrder sql.NullInt64
			sectionKind  sql.NullString
		)
		if err := rows.Scan(
			&chapter.ID,
			&chapter.Title,
			&chapter.Order,
			&sectionID,
			&sectionTitle,
			&sectionOrder,
			&sectionKind,
		); err != nil {
			return nil, classifyError("failed to scan course structure", err)
		}

		// Rows arrive grouped by chapter, so a new chapter starts whenever the ID changes
		last := len(structure.Chapters) - 1
		if last < 0 || structure.Chapters[last].ID != chapter.ID {
			chapter.CourseID = courseID
			chapter.Sections = []models.Section{}
			structure.Chapters = append(structure.Chapters, chapter)
			last++
		}

		if sectionID.Valid {
			structure.Chapters[last].Sections = append(structure.Chapters[last].Sections, models.Section{
				ID:        int(sectionID.Int64),
				ChapterID: chapter.ID,
				Title:     sectionTitle.String,
				Order:     int(sectionOrder.Int64),
				Kind:      models.ContentKind(sectionKind.String),
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating course structure rows", err)
	}

	return structure, nil
}

// GetSectionLocation resolves a section to its chapter and course
func (r *contentRepository) GetSectionLocation(ctx context.Context, sectionID int) (*models.SectionLocation, error) {
	query := `
		SELECT s.id, s.chapter_id, ch.course_id
		FROM sections s
		INNER JOIN chapters ch ON ch.id = s.chapter_id
		WHERE s.id = ?
		LIMIT 1
	`

	var location models.SectionLocation
	err := conn(ctx, r.db).QueryRowContext(ctx, query, sectionID).Scan(
		&location.SectionID,
		&location.ChapterID,
		&location.CourseID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %d: %w", sectionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, classifyError("failed to get section location", err)
	}

	return &location, nil
}
