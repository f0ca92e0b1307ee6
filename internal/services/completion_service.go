package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"go.uber.org/zap"
)

// ProgressAggregator recalculates progress inside the transaction carried by ctx
type ProgressAggregator interface {
	RecomputeInTx(ctx context.Context, studentID, courseID int) (*models.ProgressRecord, bool, error)
}

// CertificateIssuer issues at most one certificate per student and course
type CertificateIssuer interface {
	Issue(ctx context.Context, studentID, courseID, score int) (*models.Certificate, error)
}

// AuditPublisher reports transitions to the audit sink.
// Publishing never fails the caller, implementations log their own errors.
type AuditPublisher interface {
	Publish(ctx context.Context, event *models.AuditEvent)
}

type completionService struct {
	contentRepo ContentRepository
	ledger      CompletionLedger
	enrollment  EnrollmentGate
	aggregator  ProgressAggregator
	issuer      CertificateIssuer
	txManager   TxManager
	locks       *KeyedMutex
	publisher   AuditPublisher
	cache       SummaryCache
	logger      *zap.Logger
	maxRetries  int
	now         func() time.Time
}

// NewCompletionService creates the service that drives a section completion through ledger, progress and certification
func NewCompletionService(
	contentRepo ContentRepository,
	ledger CompletionLedger,
	enrollment EnrollmentGate,
	aggregator ProgressAggregator,
	issuer CertificateIssuer,
	txManager TxManager,
	locks *KeyedMutex,
	publisher AuditPublisher,
	cache SummaryCache,
	logger *zap.Logger,
	maxRetries int,
) *completionService {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &completionService{
		contentRepo: contentRepo,
		ledger:      ledger,
		enrollment:  enrollment,
		aggregator:  aggregator,
		issuer:      issuer,
		txManager:   txManager,
		locks:       locks,
		publisher:   publisher,
		cache:       cache,
		logger:      logger,
		maxRetries:  maxRetries,
		now:         time.Now,
	}
}

// CompleteSection records that a student finished a section and advances the course progress.
//
// "ctx" is the context for the request.
// "identity" is the authenticated caller.
// "sectionID" is the ID of the completed section.
// "expectedCourseID" is the course the caller believes the section belongs to, 0 to skip the check.
//
// The ledger write, the recompute and the certificate issuance commit together or not at all.
// Returns the completion result and an error if any.
func (s *completionService) CompleteSection(ctx context.Context, identity models.Identity, sectionID, expectedCourseID int) (*models.CompletionResult, error) {
	if identity.StudentID <= 0 {
		return nil, fmt.Errorf("student ID must be positive: %w", models.ErrInvalidInput)
	}
	if sectionID <= 0 || expectedCourseID < 0 {
		return nil, fmt.Errorf("section and course IDs must be positive: %w", models.ErrInvalidInput)
	}

	location, err := s.contentRepo.GetSectionLocation(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve section: %w", err)
	}
	if expectedCourseID != 0 && location.CourseID != expectedCourseID {
		return nil, fmt.Errorf("section %d does not belong to course %d: %w", sectionID, expectedCourseID, models.ErrNotFound)
	}

	studentID, courseID := identity.StudentID, location.CourseID

	if err := requireEnrollment(ctx, s.enrollment, studentID, courseID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(models.ProgressKey{StudentID: studentID, CourseID: courseID})
	defer unlock()

	var (
		result      *models.CompletionResult
		newlyLogged bool
	)
	err = withRetry(ctx, s.logger, "complete_section", s.maxRetries, func() error {
		return s.txManager.WithinTx(ctx, func(ctx context.Context) error {
			inserted, err := s.ledger.RecordCompletion(ctx, studentID, sectionID)
			if err != nil {
				return fmt.Errorf("failed to record completion: %w", err)
			}

			record, newlyCompleted, err := s.aggregator.RecomputeInTx(ctx, studentID, courseID)
			if err != nil {
				return fmt.Errorf("failed to recompute progress: %w", err)
			}

			var certificate *models.Certificate
			if record.Percentage >= 100 {
				certificate, err = s.issuer.Issue(ctx, studentID, courseID, models.FixedCertificateScore)
				if err != nil {
					return fmt.Errorf("failed to issue certificate: %w", err)
				}
			}

			newlyLogged = inserted
			result = &models.CompletionResult{
				CourseID:       courseID,
				SectionID:      sectionID,
				Percentage:     record.Percentage,
				Status:         record.Status,
				NewlyCompleted: newlyCompleted,
				Certificate:    certificate,
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("section completion failed",
			zap.Int("student_id", studentID),
			zap.Int("course_id", courseID),
			zap.Int("section_id", sectionID),
			zap.String("reason", models.ReasonCode(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.afterCommit(ctx, studentID, newlyLogged, result)

	return result, nil
}

// afterCommitTimeout bounds the audit enqueue and cache invalidation that follow a commit
const afterCommitTimeout = 2 * time.Second

// detachAfterCommit returns a context that survives cancellation of ctx, so a client that hangs up
// after the commit does not lose the audit trail of a change that already happened
func detachAfterCommit(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
}

// afterCommit reports the transition and drops the cached summary
func (s *completionService) afterCommit(ctx context.Context, studentID int, newlyLogged bool, result *models.CompletionResult) {
	ctx, cancel := detachAfterCommit(ctx)
	defer cancel()

	occurredAt := s.now().UTC()

	if newlyLogged {
		s.publisher.Publish(ctx, &models.AuditEvent{
			Type:       models.AuditEventSectionCompleted,
			StudentID:  studentID,
			CourseID:   result.CourseID,
			SectionID:  result.SectionID,
			Percentage: result.Percentage,
			OccurredAt: occurredAt,
		})
	}

	if result.Certificate != nil {
		s.publisher.Publish(ctx, certificateIssuedEvent(result.Certificate, result.Percentage, s.logger))
	}

	if err := s.cache.Invalidate(ctx, studentID); err != nil {
		s.logger.Warn("failed to invalidate summary cache", zap.Int("student_id", studentID), zap.Error(err))
	}
}

// certificateIssuedEvent builds the audit event of a freshly issued certificate
func certificateIssuedEvent(certificate *models.Certificate, percentage int, logger *zap.Logger) *models.AuditEvent {
	details, err := json.Marshal(map[string]any{
		"certificateNumber": certificate.CertificateNumber,
		"scorePercentage":   certificate.ScorePercentage,
	})
	if err != nil {
		logger.Warn("failed to marshal certificate details", zap.Error(err))
		details = nil
	}
	return &models.AuditEvent{
		Type:       models.AuditEventCertificateIssued,
		StudentID:  certificate.StudentID,
		CourseID:   certificate.CourseID,
		Percentage: percentage,
		Details:    details,
		OccurredAt: certificate.IssuedAt.UTC(),
	}
}
