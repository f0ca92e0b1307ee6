package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursehub/progress-service/internal/audit"
	"github.com/coursehub/progress-service/internal/cache"
	"github.com/coursehub/progress-service/internal/config"
	"github.com/coursehub/progress-service/internal/logger"
	"github.com/coursehub/progress-service/internal/repositories"
	"github.com/coursehub/progress-service/internal/services"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Progress Service Scheduler")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Create Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	summaryCache := cache.NewSummaryCache(rdb, cfg.Progress.SummaryCacheTTL)
	publisher := audit.NewPublisher(asynqClient, logger.Logger)

	// Initialize repositories
	contentRepo := repositories.NewContentRepository(db)
	completionRepo := repositories.NewCompletionRepository(db)
	progressRepo := repositories.NewProgressRepository(db)
	certificateRepo := repositories.NewCertificateRepository(db)
	enrollmentRepo := repositories.NewEnrollmentRepository(db)
	txManager := repositories.NewTxManager(db)

	// The API runs its own lock table, cross-process safety comes from row locks and unique keys
	locks := services.NewKeyedMutex()
	progressService := services.NewProgressService(
		contentRepo, completionRepo, progressRepo, enrollmentRepo,
		txManager, summaryCache, locks, logger.Logger, cfg.Progress.MaxRetries,
	)
	certificateService := services.NewCertificateService(
		certificateRepo, progressRepo, contentRepo,
		txManager, locks, logger.Logger, cfg.Progress.MaxRetries,
	)
	reconciliationService := services.NewReconciliationService(
		progressRepo, progressService, certificateService,
		txManager, locks, publisher, summaryCache, logger.Logger,
		cfg.Progress.MaxRetries, cfg.Reconcile.BatchSize, cfg.Reconcile.Concurrency,
	)

	scheduler := NewScheduler(reconciliationService, logger.Logger, 10*time.Minute)
	if err := scheduler.Start(cfg.Reconcile.Schedule); err != nil {
		logger.Logger.Fatal("Invalid reconciliation schedule", zap.String("schedule", cfg.Reconcile.Schedule), zap.Error(err))
	}
	defer func() {
		logger.Logger.Info("Shutting down scheduler...")
		scheduler.Stop()
		logger.Logger.Info("Scheduler exited")
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
