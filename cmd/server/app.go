package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadence-learn/cadence-api/internal/config"
	"github.com/cadence-learn/cadence-api/internal/domain/srs"
	"github.com/cadence-learn/cadence-api/internal/events"
	"github.com/cadence-learn/cadence-api/internal/platform/gemini"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/platform/postgres"
	"github.com/cadence-learn/cadence-api/internal/platform/redis"
	"github.com/cadence-learn/cadence-api/internal/service/analytics"
	"github.com/cadence-learn/cadence-api/internal/service/assignment"
	"github.com/cadence-learn/cadence-api/internal/service/auth"
	"github.com/cadence-learn/cadence-api/internal/service/enrollment"
	"github.com/cadence-learn/cadence-api/internal/service/grading"
	"github.com/cadence-learn/cadence-api/internal/service/progression"
	"github.com/cadence-learn/cadence-api/internal/task"
)

// application holds the fully wired dependency graph for the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	cache  *redis.Cache

	jwtService        auth.JWTService
	authService       *auth.Service
	enrollmentService *enrollment.Service
	gradingService    *grading.Service
	assignmentService *assignment.Service
	analyticsService  *analytics.Service

	reconciler *task.Reconciler
}

// newApplication loads configuration and wires every component. The returned
// application owns the database handle and cache connection; callers must
// invoke cleanup when done.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	db, err := setupDatabase(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	// Caching is optional; the analytics service degrades to recomputing
	// rollups on every request when no cache is configured.
	var cache *redis.Cache
	if cfg.Cache.RedisURL != "" {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 60 * time.Second
		}
		cache, err = redis.NewCache(ctx, cfg.Cache.RedisURL, ttl, appLogger)
		if err != nil {
			appLogger.Warn("cache unavailable, continuing without it",
				slog.String("error", err.Error()))
			cache = nil
		}
	}

	userStore := postgres.NewPostgresUserStore(db, appLogger)
	studentStore := postgres.NewPostgresStudentStore(db, appLogger)
	classroomStore := postgres.NewPostgresClassroomStore(db, appLogger)
	enrollmentStore := postgres.NewPostgresEnrollmentStore(db, appLogger)
	activityStore := postgres.NewPostgresActivityStore(db, appLogger)
	attemptStore := postgres.NewPostgresAttemptStore(db, appLogger)
	reviewStateStore := postgres.NewPostgresReviewStateStore(db, appLogger)
	assignmentStore := postgres.NewPostgresAssignmentStore(db, appLogger)
	progressionStore := postgres.NewPostgresProgressionStore(db, appLogger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	authService := auth.NewService(userStore, auth.NewBcryptVerifier(), jwtService, appLogger)

	generator, err := gemini.NewFeedbackGenerator(ctx, appLogger, cfg.Feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback generator: %w", err)
	}

	scheduler := srs.NewServiceWithParams(srs.NewParams(srs.ParamsConfig{
		MinEaseFactor:         cfg.SRS.MinEaseFactor,
		MaxEaseFactor:         cfg.SRS.MaxEaseFactor,
		LapseQualityThreshold: cfg.SRS.LapseQualityThreshold,
		LapseEasePenalty:      cfg.SRS.LapseEasePenalty,
		LapseIntervalDays:     cfg.SRS.LapseIntervalDays,
		ReviewStreakThreshold: cfg.SRS.ReviewStreakThreshold,
	}))

	progressionService := progression.NewService(
		db,
		studentStore,
		attemptStore,
		activityStore,
		progressionStore,
		progression.NewPolicy(cfg.Progression),
		appLogger,
	)

	// Parked attempts are announced on the in-process event bus so the
	// reconciler picks them up without waiting for the next sweep.
	emitter := events.NewInMemoryEmitter(appLogger)

	gradingService := grading.NewService(
		db,
		attemptStore,
		activityStore,
		reviewStateStore,
		scheduler,
		progressionService,
		generator,
		emitter,
		appLogger,
	)

	enrollmentService := enrollment.NewService(studentStore, classroomStore, enrollmentStore, appLogger)

	assignmentService := assignment.NewService(
		studentStore,
		classroomStore,
		activityStore,
		assignmentStore,
		reviewStateStore,
		cfg.Distributor,
		appLogger,
	)

	analyticsService := analytics.NewService(
		reviewStateStore,
		attemptStore,
		enrollmentStore,
		classroomStore,
		cache,
		analytics.NewParams(cfg.Analytics),
		appLogger,
	)

	reconciler := task.NewReconciler(attemptStore, gradingService, task.DefaultReconcilerConfig(), appLogger)
	emitter.RegisterHandler(reconciler)

	return &application{
		config:            cfg,
		logger:            appLogger,
		db:                db,
		cache:             cache,
		jwtService:        jwtService,
		authService:       authService,
		enrollmentService: enrollmentService,
		gradingService:    gradingService,
		assignmentService: assignmentService,
		analyticsService:  analyticsService,
		reconciler:        reconciler,
	}, nil
}

// cleanup releases the application's long-lived resources in reverse
// dependency order.
func (app *application) cleanup() {
	app.reconciler.Stop()

	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Warn("failed to close cache connection", slog.String("error", err.Error()))
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Warn("failed to close database connection", slog.String("error", err.Error()))
	}
}
