package main

import (
	"context"
	"sync"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler runs one reconciliation sweep
type Reconciler interface {
	Reconcile(ctx context.Context) (*models.ReconciliationReport, error)
}

// Scheduler triggers reconciliation sweeps on a cron schedule
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	logger     *zap.Logger
	timeout    time.Duration

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(reconciler Reconciler, logger *zap.Logger, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		reconciler: reconciler,
		logger:     logger,
		timeout:    timeout,
	}
}

// Start validates the schedule and starts the cron loop
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("schedule", schedule))
	return nil
}

// Stop stops the cron loop and waits for a running sweep
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// runOnce runs a sweep unless the previous one is still running
func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Previous reconciliation still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error("Reconciliation failed", zap.String("reason", models.ReasonCode(err)), zap.Error(err))
		return
	}

	s.logger.Info("Reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("certificates_issued", report.CertificatesIssued),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(started)),
	)
}
