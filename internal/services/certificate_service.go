package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxNumberAttempts bounds regeneration of a colliding certificate number
const maxNumberAttempts = 3

// CertificateRepository defines methods for certificate data access
type CertificateRepository interface {
	// Exists checks if a certificate was issued to a student for a course
	Exists(ctx context.Context, studentID, courseID int) (bool, error)
	// Create inserts a new certificate, a unique key violation yields models.ErrAlreadyExists
	Create(ctx context.Context, certificate *models.Certificate) error
	// GetByNumber retrieves a certificate by its number
	GetByNumber(ctx context.Context, number string) (*models.Certificate, error)
	// ListByStudent retrieves all certificates of a student
	ListByStudent(ctx context.Context, studentID int) ([]models.CertificateListItem, error)
}

// NumberGenerator produces human-readable certificate numbers
type NumberGenerator func(issuedAt time.Time) string

// GenerateCertificateNumber produces numbers like CERT-20240131-1A2B3C4D5E6F
func GenerateCertificateNumber(issuedAt time.Time) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("CERT-%s-%s", issuedAt.UTC().Format("20060102"), strings.ToUpper(id[:12]))
}

type certificateService struct {
	repo         CertificateRepository
	progressRepo ProgressRepository
	contentRepo  ContentRepository
	txManager    TxManager
	locks        *KeyedMutex
	logger       *zap.Logger
	maxRetries   int
	generate     NumberGenerator
	now          func() time.Time
}

// NewCertificateService creates a new certification issuer
func NewCertificateService(
	repo CertificateRepository,
	progressRepo ProgressRepository,
	contentRepo ContentRepository,
	txManager TxManager,
	locks *KeyedMutex,
	logger *zap.Logger,
	maxRetries int,
) *certificateService {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &certificateService{
		repo:         repo,
		progressRepo: progressRepo,
		contentRepo:  contentRepo,
		txManager:    txManager,
		locks:        locks,
		logger:       logger,
		maxRetries:   maxRetries,
		generate:     GenerateCertificateNumber,
		now:          time.Now,
	}
}

// Issue creates a certificate unless one already exists for the student and course.
// It runs against the transaction carried by ctx when there is one.
//
// Returns the new certificate, or nil when the student already holds one.
func (s *certificateService) Issue(ctx context.Context, studentID, courseID, score int) (*models.Certificate, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		exists, err := s.repo.Exists(ctx, studentID, courseID)
		if err != nil {
			return nil, fmt.Errorf("failed to check certificate existence: %w", err)
		}
		if exists {
			return nil, nil
		}

		issuedAt := s.now().UTC()
		certificate := &models.Certificate{
			StudentID:         studentID,
			CourseID:          courseID,
			CertificateNumber: s.generate(issuedAt),
			IssuedAt:          issuedAt,
			ScorePercentage:   score,
		}

		err = s.repo.Create(ctx, certificate)
		if err == nil {
			s.logger.Info("certificate issued",
				zap.Int("student_id", studentID),
				zap.Int("course_id", courseID),
				zap.String("certificate_number", certificate.CertificateNumber),
			)
			return certificate, nil
		}
		if !errors.Is(err, models.ErrAlreadyExists) {
			return nil, fmt.Errorf("failed to create certificate: %w", err)
		}

		// Either a concurrent issuer won the (student, course) key or the number collided.
		// The next iteration tells the two apart.
		s.logger.Debug("certificate insert hit a unique key",
			zap.Int("student_id", studentID),
			zap.Int("course_id", courseID),
			zap.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("failed to generate a unique certificate number: %w", models.ErrConcurrencyConflict)
}

// IssueManually issues a certificate on behalf of an administrator.
// The student must have completed the course and must not hold a certificate for it yet.
func (s *certificateService) IssueManually(ctx context.Context, studentID, courseID int) (*models.Certificate, error) {
	if studentID <= 0 || courseID <= 0 {
		return nil, fmt.Errorf("student and course IDs must be positive: %w", models.ErrInvalidInput)
	}

	if _, err := s.contentRepo.GetCourseByID(ctx, courseID); err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	unlock := s.locks.Lock(models.ProgressKey{StudentID: studentID, CourseID: courseID})
	defer unlock()

	var certificate *models.Certificate
	err := withRetry(ctx, s.logger, "issue_certificate", s.maxRetries, func() error {
		return s.txManager.WithinTx(ctx, func(ctx context.Context) error {
			record, err := s.progressRepo.Get(ctx, studentID, courseID)
			if err != nil {
				return fmt.Errorf("failed to get progress record: %w", err)
			}
			if record.Percentage < 100 {
				return fmt.Errorf("course progress is %d%%: %w", record.Percentage, models.ErrInvalidInput)
			}

			certificate, err = s.Issue(ctx, studentID, courseID, models.FixedCertificateScore)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if certificate == nil {
		return nil, fmt.Errorf("certificate for student %d in course %d: %w", studentID, courseID, models.ErrAlreadyExists)
	}

	return certificate, nil
}

// ListForStudent retrieves all certificates of a student, newest first
func (s *certificateService) ListForStudent(ctx context.Context, studentID int) ([]models.CertificateListItem, error) {
	if studentID <= 0 {
		return nil, fmt.Errorf("student ID must be positive: %w", models.ErrInvalidInput)
	}

	certificates, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	return certificates, nil
}

// GetByNumber retrieves a certificate visible to the caller.
// Students see only their own certificates, administrators see all of them.
func (s *certificateService) GetByNumber(ctx context.Context, identity models.Identity, number string) (*models.Certificate, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("certificate number is required: %w", models.ErrInvalidInput)
	}

	certificate, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	if identity.Role != models.RoleAdmin && certificate.StudentID != identity.StudentID {
		return nil, fmt.Errorf("certificate %s: %w", number, models.ErrNotFound)
	}

	return certificate, nil
}
