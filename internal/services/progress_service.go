package services

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"go.uber.org/zap"
)

// ContentRepository defines methods for reading the course content structure
type ContentRepository interface {
	// GetCourseByID retrieves a course by its ID
	//
	// "ctx" is the context for the request.
	// "courseID" is the ID of the course.
	//
	// Returns the course and an error if any. A missing course yields models.ErrNotFound.
	GetCourseByID(ctx context.Context, courseID int) (*models.Course, error)
	// GetTotalSectionCount counts all sections of a course
	//
	// "ctx" is the context for the request.
	// "courseID" is the ID of the course.
	//
	// Returns the number of sections (0 for an empty course) and an error if any.
	GetTotalSectionCount(ctx context.Context, courseID int) (int, error)
	// GetStructure retrieves the chapter/section tree of a course
	//
	// "ctx" is the context for the request.
	// "courseID" is the ID of the course.
	//
	// Returns the course structure and an error if any.
	GetStructure(ctx context.Context, courseID int) (*models.CourseStructure, error)
	// GetSectionLocation resolves a section to its chapter and course
	//
	// "ctx" is the context for the request.
	// "sectionID" is the ID of the section.
	//
	// Returns the section location and an error if any.
	GetSectionLocation(ctx context.Context, sectionID int) (*models.SectionLocation, error)
}

// CompletionLedger defines methods for completion record data access
type CompletionLedger interface {
	// RecordCompletion records a section completion for a student
	//
	// "ctx" is the context for the request.
	// "studentID" is the ID of the student.
	// "sectionID" is the ID of the section.
	//
	// Returns true when a new record was written, false when it already existed, and an error if any.
	RecordCompletion(ctx context.Context, studentID, sectionID int) (bool, error)
	// GetCompletedCount counts the sections of a course completed by a student
	//
	// "ctx" is the context for the request.
	// "studentID" is the ID of the student.
	// "courseID" is the ID of the course.
	//
	// Returns the number of completed sections and an error if any.
	GetCompletedCount(ctx context.Context, studentID, courseID int) (int, error)
	// IsCompleted checks if a student has completed a section
	//
	// "ctx" is the context for the request.
	// "studentID" is the ID of the student.
	// "sectionID" is the ID of the section.
	//
	// Returns a boolean and an error if any.
	IsCompleted(ctx context.Context, studentID, sectionID int) (bool, error)
	// ListCompletedSectionIDs lists the sections of a course completed by a student
	//
	// "ctx" is the context for the request.
	// "studentID" is the ID of the student.
	// "courseID" is the ID of the course.
	//
	// Returns a list of section IDs and an error if any.
	ListCompletedSectionIDs(ctx context.Context, studentID, courseID int) ([]int, error)
}

// ProgressRepository defines methods for progress record data access
type ProgressRepository interface {
	// GetOrCreate retrieves the progress record of a student in a course, creating it when missing
	//
	// "ctx" is the context for the request.
	// "studentID" is the ID of the student.
	// "courseID" is the ID of the course.
	//
	// Returns the progress record and an error if any.
	GetOrCreate(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error)
	// Get retrieves the progress record of a student in a course
	//
	// "ctx" is the context for the request.
	// "studentID" is the ID of the student.
	// "courseID" is the ID of the course.
	//
	// Returns the progress record and an error if any. A missing record yields models.ErrNotFound.
	Get(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error)
	// GetForUpdate retrieves the progress record and locks it until the transaction ends
	//
	// "ctx" is the context for the request, carrying the transaction.
	// "studentID" is the ID of the student.
	// "courseID" is the ID of the course.
	//
	// Returns the progress record and an error if any.
	GetForUpdate(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error)
	// Update persists a progress record
	//
	// "ctx" is the context for the request.
	// "record" is the progress record to persist.
	//
	// Returns an error if any.
	Update(ctx context.Context, record *models.ProgressRecord) error
	// ListByStudent retrieves all progress records of a student
	//
	// "ctx" is the context for the request.
	// "studentID" is the ID of the student.
	//
	// Returns a list of progress records and an error if any.
	ListByStudent(ctx context.Context, studentID int) ([]models.ProgressRecord, error)
}

// TxManager runs a function inside a database transaction carried by the context
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SummaryCache caches progress summaries per student.
// Entries are versioned by a per-student generation that Invalidate advances, so a summary computed
// from reads that began before an invalidation can never be served after it.
type SummaryCache interface {
	// Get returns the cached summary, or nil when there is none, and the current generation.
	// A summary computed after Get must be stored under that generation.
	Get(ctx context.Context, studentID int) (*models.ProgressSummary, int64, error)
	Set(ctx context.Context, summary *models.ProgressSummary, generation int64) error
	Invalidate(ctx context.Context, studentID int) error
}

type progressService struct {
	contentRepo  ContentRepository
	ledger       CompletionLedger
	progressRepo ProgressRepository
	enrollment   EnrollmentGate
	txManager    TxManager
	cache        SummaryCache
	locks        *KeyedMutex
	logger       *zap.Logger
	maxRetries   int
	now          func() time.Time
}

// NewProgressService creates a new progress aggregator service
func NewProgressService(
	contentRepo ContentRepository,
	ledger CompletionLedger,
	progressRepo ProgressRepository,
	enrollment EnrollmentGate,
	txManager TxManager,
	cache SummaryCache,
	locks *KeyedMutex,
	logger *zap.Logger,
	maxRetries int,
) *progressService {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &progressService{
		contentRepo:  contentRepo,
		ledger:       ledger,
		progressRepo: progressRepo,
		enrollment:   enrollment,
		txManager:    txManager,
		cache:        cache,
		locks:        locks,
		logger:       logger,
		maxRetries:   maxRetries,
		now:          time.Now,
	}
}

// GetOrCreate returns the progress record of a student in a course, creating a not_started record when missing
func (s *progressService) GetOrCreate(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, error) {
	if studentID <= 0 || courseID <= 0 {
		return nil, fmt.Errorf("student and course IDs must be positive: %w", models.ErrInvalidInput)
	}

	record, err := s.progressRepo.GetOrCreate(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create progress record: %w", err)
	}

	return record, nil
}

// Recompute recalculates the percentage of a student in a course from the completion ledger.
// It is a pure function of ledger state at call time and is safe to run again after a failure.
func (s *progressService) Recompute(ctx context.Context, studentID, courseID int) (int, error) {
	if studentID <= 0 || courseID <= 0 {
		return 0, fmt.Errorf("student and course IDs must be positive: %w", models.ErrInvalidInput)
	}

	unlock := s.locks.Lock(models.ProgressKey{StudentID: studentID, CourseID: courseID})
	defer unlock()

	var percentage int
	err := withRetry(ctx, s.logger, "recompute", s.maxRetries, func() error {
		return s.txManager.WithinTx(ctx, func(ctx context.Context) error {
			record, _, err := s.RecomputeInTx(ctx, studentID, courseID)
			if err != nil {
				return err
			}
			percentage = record.Percentage
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return percentage, nil
}

// RecomputeInTx recalculates progress inside the transaction carried by ctx.
// The caller must hold the key lock of (studentID, courseID).
//
// Returns the persisted record and whether this call moved the record to completed.
func (s *progressService) RecomputeInTx(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, bool, error) {
	if _, err := s.progressRepo.GetOrCreate(ctx, studentID, courseID); err != nil {
		return nil, false, fmt.Errorf("failed to get or create progress record: %w", err)
	}

	record, err := s.progressRepo.GetForUpdate(ctx, studentID, courseID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock progress record: %w", err)
	}

	total, err := s.contentRepo.GetTotalSectionCount(ctx, courseID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get total section count: %w", err)
	}
	// Nothing to divide by, the stored record stays as it is
	if total == 0 {
		return record, false, nil
	}

	completed, err := s.ledger.GetCompletedCount(ctx, studentID, courseID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get completed count: %w", err)
	}

	percentage := models.CalculatePercentage(completed, total)
	// Progress never goes backwards
	if percentage < record.Percentage {
		s.logger.Warn("recomputed percentage is lower than stored, keeping stored value",
			zap.Int("student_id", studentID),
			zap.Int("course_id", courseID),
			zap.Int("stored", record.Percentage),
			zap.Int("recomputed", percentage),
		)
		return record, false, nil
	}

	now := s.now().UTC()
	record.Percentage = percentage
	record.Status = models.StatusFromPercentage(percentage)
	record.UpdatedAt = now

	newlyCompleted := false
	if record.Status == models.ProgressStatusCompleted && record.CompletedAt == nil {
		record.CompletedAt = &now
		newlyCompleted = true
	}

	if err := s.progressRepo.Update(ctx, record); err != nil {
		return nil, false, fmt.Errorf("failed to update progress record: %w", err)
	}

	return record, newlyCompleted, nil
}

// GetCourseProgress retrieves the progress of a student in a course together with completed sections
func (s *progressService) GetCourseProgress(ctx context.Context, identity models.Identity, courseID int) (*models.CourseProgressResponse, error) {
	if identity.StudentID <= 0 || courseID <= 0 {
		return nil, fmt.Errorf("student and course IDs must be positive: %w", models.ErrInvalidInput)
	}

	if _, err := s.contentRepo.GetCourseByID(ctx, courseID); err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	if err := requireEnrollment(ctx, s.enrollment, identity.StudentID, courseID); err != nil {
		return nil, err
	}

	record, err := s.GetOrCreate(ctx, identity.StudentID, courseID)
	if err != nil {
		return nil, err
	}

	total, err := s.contentRepo.GetTotalSectionCount(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get total section count: %w", err)
	}

	sectionIDs, err := s.ledger.ListCompletedSectionIDs(ctx, identity.StudentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed sections: %w", err)
	}

	return &models.CourseProgressResponse{
		Progress:            record,
		TotalSections:       total,
		CompletedSectionIDs: sectionIDs,
	}, nil
}

// Summarize aggregates progress across all courses of a student
func (s *progressService) Summarize(ctx context.Context, studentID int) (*models.ProgressSummary, error) {
	if studentID <= 0 {
		return nil, fmt.Errorf("student ID must be positive: %w", models.ErrInvalidInput)
	}

	cached, generation, err := s.cache.Get(ctx, studentID)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("failed to read summary cache", zap.Int("student_id", studentID), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	records, err := s.progressRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}

	summary := summarize(studentID, records)

	// without a known generation the entry could outlive an invalidation
	if cacheable {
		if err := s.cache.Set(ctx, summary, generation); err != nil {
			s.logger.Warn("failed to write summary cache", zap.Int("student_id", studentID), zap.Error(err))
		}
	}

	return summary, nil
}

// summarize counts records per status and averages their percentages
func summarize(studentID int, records []models.ProgressRecord) *models.ProgressSummary {
	summary := &models.ProgressSummary{
		StudentID:    studentID,
		TotalCourses: len(records),
	}
	if len(records) == 0 {
		return summary
	}

	sum := 0
	for _, record := range records {
		switch record.Status {
		case models.ProgressStatusCompleted:
			summary.CompletedCourses++
		case models.ProgressStatusInProgress:
			summary.InProgressCourses++
		}
		sum += record.Percentage
	}
	summary.AverageProgress = float64(sum) / float64(len(records))

	return summary
}
