package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/coursehub/progress-service/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultReconcileBatchSize   = 200
	defaultReconcileConcurrency = 4
)

// UnsettledProgressLister pages through progress records that may still need a recompute or a certificate
type UnsettledProgressLister interface {
	ListUnsettled(ctx context.Context, afterID, limit int) ([]models.ProgressKey, int, error)
}

type reconciliationService struct {
	lister      UnsettledProgressLister
	aggregator  ProgressAggregator
	issuer      CertificateIssuer
	txManager   TxManager
	locks       *KeyedMutex
	publisher   AuditPublisher
	cache       SummaryCache
	logger      *zap.Logger
	maxRetries  int
	batchSize   int
	concurrency int
}

// NewReconciliationService creates the service that replays recompute and issuance for unsettled progress records
func NewReconciliationService(
	lister UnsettledProgressLister,
	aggregator ProgressAggregator,
	issuer CertificateIssuer,
	txManager TxManager,
	locks *KeyedMutex,
	publisher AuditPublisher,
	cache SummaryCache,
	logger *zap.Logger,
	maxRetries, batchSize, concurrency int,
) *reconciliationService {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultReconcileConcurrency
	}
	return &reconciliationService{
		lister:      lister,
		aggregator:  aggregator,
		issuer:      issuer,
		txManager:   txManager,
		locks:       locks,
		publisher:   publisher,
		cache:       cache,
		logger:      logger,
		maxRetries:  maxRetries,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// Reconcile recomputes every unsettled progress record and issues missing certificates.
// A failing record is counted and logged, the sweep goes on with the rest.
func (s *reconciliationService) Reconcile(ctx context.Context) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{}
	var mu sync.Mutex

	afterID := 0
	for {
		keys, lastID, err := s.lister.ListUnsettled(ctx, afterID, s.batchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list unsettled progress records: %w", err)
		}
		if len(keys) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, key := range keys {
			g.Go(func() error {
				issued, err := s.reconcileOne(gctx, key)

				mu.Lock()
				defer mu.Unlock()
				report.Checked++
				if err != nil {
					report.Failed++
					s.logger.Error("failed to reconcile progress record",
						zap.Int("student_id", key.StudentID),
						zap.Int("course_id", key.CourseID),
						zap.Error(err),
					)
					return nil
				}
				if issued {
					report.CertificatesIssued++
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return report, err
		}

		afterID = lastID
		if len(keys) < s.batchSize {
			break
		}
	}

	s.logger.Info("reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("certificates_issued", report.CertificatesIssued),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

func (s *reconciliationService) reconcileOne(ctx context.Context, key models.ProgressKey) (bool, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	var (
		record      *models.ProgressRecord
		certificate *models.Certificate
	)
	err := withRetry(ctx, s.logger, "reconcile", s.maxRetries, func() error {
		return s.txManager.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			record, _, err = s.aggregator.RecomputeInTx(ctx, key.StudentID, key.CourseID)
			if err != nil {
				return err
			}

			certificate = nil
			if record.Percentage >= 100 {
				certificate, err = s.issuer.Issue(ctx, key.StudentID, key.CourseID, models.FixedCertificateScore)
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}

	if certificate == nil {
		return false, nil
	}

	ctx, cancel := detachAfterCommit(ctx)
	defer cancel()

	s.publisher.Publish(ctx, certificateIssuedEvent(certificate, record.Percentage, s.logger))
	if err := s.cache.Invalidate(ctx, key.StudentID); err != nil {
		s.logger.Warn("failed to invalidate summary cache", zap.Int("student_id", key.StudentID), zap.Error(err))
	}

	return true, nil
}
