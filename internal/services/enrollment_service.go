package services

import (
	"context"
	"fmt"

	"github.com/coursehub/progress-service/internal/models"
)

// EnrollmentGate decides whether a student's organization has access to a course
type EnrollmentGate interface {
	IsCourseEnrolledForStudent(ctx context.Context, studentID, courseID int) (bool, error)
}

// requireEnrollment returns models.ErrUnauthorized when the course is not enrolled for the student
func requireEnrollment(ctx context.Context, gate EnrollmentGate, studentID, courseID int) error {
	enrolled, err := gate.IsCourseEnrolledForStudent(ctx, studentID, courseID)
	if err != nil {
		return fmt.Errorf("failed to check enrollment: %w", err)
	}
	if !enrolled {
		return fmt.Errorf("course %d: %w", courseID, models.ErrUnauthorized)
	}
	return nil
}
