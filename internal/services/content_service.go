package services

import (
	"context"
	"fmt"

	"github.com/coursehub/progress-service/internal/models"
)

type contentService struct {
	repo       ContentRepository
	enrollment EnrollmentGate
}

// NewContentService creates a new content structure service
func NewContentService(repo ContentRepository, enrollment EnrollmentGate) *contentService {
	return &contentService{
		repo:       repo,
		enrollment: enrollment,
	}
}

// GetStructure returns the ordered chapters and sections of a course enrolled for the caller
func (s *contentService) GetStructure(ctx context.Context, identity models.Identity, courseID int) (*models.CourseStructure, error) {
	if courseID <= 0 {
		return nil, fmt.Errorf("course ID must be positive: %w", models.ErrInvalidInput)
	}

	if identity.Role != models.RoleAdmin {
		if err := requireEnrollment(ctx, s.enrollment, identity.StudentID, courseID); err != nil {
			return nil, err
		}
	}

	structure, err := s.repo.GetStructure(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course structure: %w", err)
	}

	return structure, nil
}
