package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/coursehub/progress-service/docs"
	"github.com/coursehub/progress-service/internal/audit"
	"github.com/coursehub/progress-service/internal/auth"
	"github.com/coursehub/progress-service/internal/cache"
	"github.com/coursehub/progress-service/internal/config"
	"github.com/coursehub/progress-service/internal/handlers"
	"github.com/coursehub/progress-service/internal/logger"
	"github.com/coursehub/progress-service/internal/middleware"
	"github.com/coursehub/progress-service/internal/repositories"
	"github.com/coursehub/progress-service/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title CourseHub Progress API
// @version 1.0
// @description Section completion, course progress and certificates

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for administrative endpoints
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
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

	logger.Logger.Info("Starting Progress Service API")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Without Redis the service still works, summaries are computed on every request
	// and audit events are only logged
	var (
		summaryCache services.SummaryCache   = cache.NoopSummaryCache{}
		publisher    services.AuditPublisher = audit.LogPublisher{Logger: logger.Logger}
	)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Logger.Warn("Redis is unavailable, running without cache and audit queue", zap.Error(err))
	} else {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()

		summaryCache = cache.NewSummaryCache(rdb, cfg.Progress.SummaryCacheTTL)
		publisher = audit.NewPublisher(asynqClient, logger.Logger)
	}

	// Initialize JWT token validator
	tokenGenerator := auth.NewTokenGenerator(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	// Initialize repositories
	contentRepo := repositories.NewContentRepository(db)
	completionRepo := repositories.NewCompletionRepository(db)
	progressRepo := repositories.NewProgressRepository(db)
	certificateRepo := repositories.NewCertificateRepository(db)
	enrollmentRepo := repositories.NewEnrollmentRepository(db)
	txManager := repositories.NewTxManager(db)

	// Initialize services, all writers share one lock table
	locks := services.NewKeyedMutex()
	progressService := services.NewProgressService(
		contentRepo, completionRepo, progressRepo, enrollmentRepo,
		txManager, summaryCache, locks, logger.Logger, cfg.Progress.MaxRetries,
	)
	certificateService := services.NewCertificateService(
		certificateRepo, progressRepo, contentRepo,
		txManager, locks, logger.Logger, cfg.Progress.MaxRetries,
	)
	completionService := services.NewCompletionService(
		contentRepo, completionRepo, enrollmentRepo, progressService, certificateService,
		txManager, locks, publisher, summaryCache, logger.Logger, cfg.Progress.MaxRetries,
	)
	contentService := services.NewContentService(contentRepo, enrollmentRepo)
	reconciliationService := services.NewReconciliationService(
		progressRepo, progressService, certificateService,
		txManager, locks, publisher, summaryCache, logger.Logger,
		cfg.Progress.MaxRetries, cfg.Reconcile.BatchSize, cfg.Reconcile.Concurrency,
	)

	// Initialize handlers
	progressHandler := handlers.NewProgressHandler(completionService, contentService, progressService, logger.Logger)
	certificateHandler := handlers.NewCertificateHandler(certificateService, logger.Logger)
	adminHandler := handlers.NewAdminHandler(certificateService, reconciliationService, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggerMiddleware(logger.Logger))
	r.Use(middleware.RecoveryMiddleware(logger.Logger))
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(cfg.Server.RateLimit, cfg.Server.RateLimitEvery))
	r.Use(middleware.RequestSizeLimitMiddleware(1 * 1024 * 1024)) // 1MB

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Student endpoints (JWT protected)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(tokenGenerator))
			progressHandler.RegisterRoutes(r)
			certificateHandler.RegisterRoutes(r)
		})

		// Admin endpoints (API key or admin JWT)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAccessMiddleware(cfg.APIKey, tokenGenerator))
			adminHandler.RegisterRoutes(r)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "progress_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Running from cmd/api
		if _, err := os.Stat("../../migrations"); err == nil {
			migrationPath = "file://../../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
