package models

import "time"

// ProgressStatus represents the status of a student's progress in a course
type ProgressStatus string

const (
	ProgressStatusNotStarted ProgressStatus = "not_started"
	ProgressStatusInProgress ProgressStatus = "in_progress"
	ProgressStatusCompleted  ProgressStatus = "completed"
)

// StatusFromPercentage derives the progress status from a percentage
func StatusFromPercentage(percentage int) ProgressStatus {
	switch {
	case percentage <= 0:
		return ProgressStatusNotStarted
	case percentage >= 100:
		return ProgressStatusCompleted
	default:
		return ProgressStatusInProgress
	}
}

// CalculatePercentage returns floor(100 * completed / total), clamped to [0, 100].
// The caller must not pass a zero total.
func CalculatePercentage(completed, total int) int {
	if completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return 100 * completed / total
}

// ProgressRecord represents the derived progress of a student in a course
type ProgressRecord struct {
	ID          int            `json:"id"`
	StudentID   int            `json:"studentId"`
	CourseID    int            `json:"courseId"`
	Percentage  int            `json:"percentage"`
	Status      ProgressStatus `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CourseProgressResponse represents a progress record with the completed sections for the sidebar
type CourseProgressResponse struct {
	Progress            *ProgressRecord `json:"progress"`
	TotalSections       int             `json:"totalSections"`
	CompletedSectionIDs []int           `json:"completedSectionIds"`
}

// ProgressSummary aggregates progress across all courses of a student
type ProgressSummary struct {
	StudentID         int     `json:"studentId"`
	TotalCourses      int     `json:"totalCourses"`
	CompletedCourses  int     `json:"completedCourses"`
	InProgressCourses int     `json:"inProgressCourses"`
	AverageProgress   float64 `json:"averageProgress"`
}

// ProgressKey identifies a progress record
type ProgressKey struct {
	StudentID int `json:"studentId"`
	CourseID  int `json:"courseId"`
}
