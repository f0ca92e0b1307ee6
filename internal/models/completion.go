package models

import "time"

// CompletionRecord represents a single section completion by a student
type CompletionRecord struct {
	StudentID   int       `json:"studentId"`
	SectionID   int       `json:"sectionId"`
	CompletedAt time.Time `json:"completedAt"`
}

// CompletionResult is returned to the caller after a section completion event
type CompletionResult struct {
	CourseID       int            `json:"courseId"`
	SectionID      int            `json:"sectionId"`
	Percentage     int            `json:"percentage"`
	Status         ProgressStatus `json:"status"`
	NewlyCompleted bool           `json:"newlyCompleted"`
	Certificate    *Certificate   `json:"certificate,omitempty"`
}

// CompleteSectionRequest represents an optional body of a completion request
type CompleteSectionRequest struct {
	CourseID int `json:"courseId,omitempty" example:"1"`
}
