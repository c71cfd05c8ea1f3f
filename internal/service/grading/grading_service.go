// Package grading turns raw submissions into graded, applied attempts.
//
// Grading is the one pipeline where the system's hardest guarantees meet:
// idempotent attempt creation, the single external dependency (the feedback
// generator), and the atomic triple write of attempt + review state
// transition + progression ledger entry.
package grading

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/domain/srs"
	"github.com/cadence-learn/cadence-api/internal/events"
	"github.com/cadence-learn/cadence-api/internal/feedback"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/service/progression"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// RawAttempt is an ungraded submission.
type RawAttempt struct {
	StudentID   uuid.UUID
	ActivityID  uuid.UUID
	SubmittedAt time.Time
	Answer      string
}

// Service grades submissions and applies their outcomes.
type Service struct {
	db           *sql.DB
	attempts     store.AttemptStore
	activities   store.ActivityStore
	reviewStates store.ReviewStateStore
	scheduler    srs.Service
	progression  *progression.Service
	generator    feedback.Generator
	emitter      events.Emitter
	locks        *keyedMutex
	logger       *slog.Logger
}

// NewService creates a new grading service.
func NewService(
	db *sql.DB,
	attempts store.AttemptStore,
	activities store.ActivityStore,
	reviewStates store.ReviewStateStore,
	scheduler srs.Service,
	progressionSvc *progression.Service,
	generator feedback.Generator,
	emitter events.Emitter,
	logger *slog.Logger,
) *Service {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if attempts == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("attempts cannot be nil")
	}
	if activities == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("activities cannot be nil")
	}
	if reviewStates == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("reviewStates cannot be nil")
	}
	if scheduler == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("scheduler cannot be nil")
	}
	if progressionSvc == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("progressionSvc cannot be nil")
	}
	if generator == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("generator cannot be nil")
	}
	if emitter == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("emitter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		db:           db,
		attempts:     attempts,
		activities:   activities,
		reviewStates: reviewStates,
		scheduler:    scheduler,
		progression:  progressionSvc,
		generator:    generator,
		emitter:      emitter,
		locks:        newKeyedMutex(),
		logger:       logger.With(slog.String("component", "grading_service")),
	}
}

// Grade grades a raw submission and applies the outcome.
//
// Duplicate submissions (same student, activity, submittedAt) return the
// previously stored attempt with ErrAlreadyGraded or ErrGradingPending,
// without re-invoking the external generator. If the generator is
// unreachable, the attempt is persisted as grading_pending and returned with
// ErrGradingPending; the reconciliation sweep finishes it later.
func (s *Service) Grade(ctx context.Context, raw RawAttempt) (*domain.Attempt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// Serialize same-pair submissions in-process; the attempt unique
	// constraint and the review state row lock cover other processes.
	unlock := s.locks.Lock(raw.StudentID.String() + "/" + raw.ActivityID.String())
	defer unlock()

	activity, err := s.activities.GetByID(ctx, raw.ActivityID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, &ServiceError{Operation: "grade", Message: "activity lookup failed", Err: err}
	}

	attempt, err := domain.NewPendingAttempt(raw.StudentID, raw.ActivityID, raw.SubmittedAt, raw.Answer)
	if err != nil {
		return nil, err
	}

	// The pending row is the idempotency anchor: exactly one submission
	// per key wins the insert, everyone else resolves to the winner's row.
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, store.ErrAttemptExists) {
			prior, getErr := s.attempts.GetByKey(ctx, raw.StudentID, raw.ActivityID, raw.SubmittedAt)
			if getErr != nil {
				return nil, &ServiceError{Operation: "grade", Message: "duplicate lookup failed", Err: getErr}
			}
			if prior.Graded() {
				return prior, ErrAlreadyGraded
			}
			if prior.Failed() {
				return prior, ErrGradingFailed
			}
			return prior, ErrGradingPending
		}
		return nil, &ServiceError{Operation: "grade", Message: "failed to save attempt", Err: err}
	}

	score, feedbackText, err := s.score(ctx, activity, raw.Answer)
	if err != nil {
		if errors.Is(err, feedback.ErrTransientFailure) {
			log.Warn("feedback generator unreachable, attempt parked",
				slog.String("attempt_id", attempt.ID.String()),
				slog.String("error", err.Error()))
			s.announceParked(ctx, attempt.ID)
			return attempt, ErrGradingPending
		}
		// Structural failures surface immediately and are terminal: the row
		// flips to grading_failed so the sweep never retries them.
		s.markFailed(ctx, attempt)
		return nil, err
	}

	return s.finalize(ctx, attempt, score, feedbackText, time.Now().UTC())
}

// Regrade re-runs grading for an attempt parked in grading_pending. Used by
// the reconciliation sweep.
func (s *Service) Regrade(ctx context.Context, attemptID uuid.UUID) (*domain.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(attempt.StudentID.String() + "/" + attempt.ActivityID.String())
	defer unlock()

	// Re-read under the lock; a concurrent submission may have finished it.
	attempt, err = s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Graded() {
		return attempt, ErrAlreadyGraded
	}
	if attempt.Failed() {
		return attempt, ErrGradingFailed
	}

	activity, err := s.activities.GetByID(ctx, attempt.ActivityID)
	if err != nil {
		return nil, err
	}

	score, feedbackText, err := s.score(ctx, activity, attempt.RawAnswer)
	if err != nil {
		if errors.Is(err, feedback.ErrTransientFailure) {
			return attempt, ErrGradingPending
		}
		s.markFailed(ctx, attempt)
		return nil, err
	}

	return s.finalize(ctx, attempt, score, feedbackText, time.Now().UTC())
}

// markFailed records a terminal grading failure so the reconciliation sweep
// stops picking the attempt up. Best effort; the original failure is what
// callers see either way.
func (s *Service) markFailed(ctx context.Context, attempt *domain.Attempt) {
	attempt.MarkFailed()
	if err := s.attempts.MarkFailed(ctx, attempt.ID); err != nil {
		s.logger.Error("failed to record terminal grading failure",
			slog.String("attempt_id", attempt.ID.String()),
			slog.String("error", err.Error()))
	}
}

// announceParked emits an event so the reconciler can enqueue the attempt
// right away instead of waiting for its next sweep.
func (s *Service) announceParked(ctx context.Context, attemptID uuid.UUID) {
	event, err := events.NewAttemptParkedEvent(attemptID)
	if err != nil {
		s.logger.Error("failed to build parked attempt event",
			slog.String("attempt_id", attemptID.String()),
			slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Warn("parked attempt event not handled",
			slog.String("attempt_id", attemptID.String()),
			slog.String("error", err.Error()))
	}
}

// score computes the grade for an answer. MCQ grading is a pure lookup
// against the activity's answer key; open-ended activities go through the
// external generator.
func (s *Service) score(
	ctx context.Context,
	activity *domain.Activity,
	answer string,
) (float64, string, error) {
	content, err := activity.ParseContent()
	if err != nil {
		return 0, "", &ServiceError{Operation: "score", Message: "activity content unreadable", Err: err}
	}

	if activity.Type == domain.ActivityMCQ {
		for _, option := range content.Options {
			if option.ID == answer {
				return clamp01(option.Credit), "", nil
			}
		}
		return 0, "", ErrInvalidAnswer
	}

	result, err := s.generator.GenerateFeedback(ctx, content.Prompt, content.Rubric, answer)
	if err != nil {
		return 0, "", err
	}
	return result.Score, result.Explanation, nil
}

// finalize commits the grading outcome in one transaction: the attempt is
// marked graded, the review state takes exactly one transition, and exactly
// one progression ledger entry is written.
func (s *Service) finalize(
	ctx context.Context,
	attempt *domain.Attempt,
	score float64,
	feedbackText string,
	gradedAt time.Time,
) (*domain.Attempt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attempt.MarkGraded(score, feedbackText, gradedAt); err != nil {
		return nil, err
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txAttempts := s.attempts.WithTx(tx)
		txStates := s.reviewStates.WithTx(tx)

		if err := txAttempts.MarkGraded(ctx, attempt); err != nil {
			return &ServiceError{Operation: "finalize", Message: "failed to mark attempt graded", Err: err}
		}

		if err := s.transitionState(ctx, txStates, attempt, score, gradedAt); err != nil {
			return err
		}

		if _, err := s.progression.ApplyOutcomeTx(ctx, tx, attempt); err != nil {
			// Already applied means a previous finalize for this attempt
			// committed the ledger entry; everything else aborts.
			if !errors.Is(err, progression.ErrAlreadyApplied) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, srs.ErrStaleTransition) {
			return nil, ErrStaleTransition
		}
		return nil, err
	}

	log.Info("attempt graded",
		slog.String("attempt_id", attempt.ID.String()),
		slog.String("student_id", attempt.StudentID.String()),
		slog.String("activity_id", attempt.ActivityID.String()),
		slog.Float64("score", score))
	return attempt, nil
}

// transitionState applies the graded attempt to the review state under a row
// lock, creating first-exposure state when none exists.
func (s *Service) transitionState(
	ctx context.Context,
	states store.ReviewStateStore,
	attempt *domain.Attempt,
	score float64,
	gradedAt time.Time,
) error {
	state, err := states.GetForUpdate(ctx, attempt.StudentID, attempt.ActivityID)
	created := false
	if err != nil {
		if !store.IsNotFoundError(err) {
			return &ServiceError{Operation: "finalize", Message: "review state lookup failed", Err: err}
		}
		state, err = domain.NewReviewState(attempt.StudentID, attempt.ActivityID)
		if err != nil {
			return err
		}
		created = true
	}

	next, err := s.scheduler.NextState(state, score, gradedAt)
	if err != nil {
		return err
	}

	if created {
		if err := states.Create(ctx, next); err != nil {
			return &ServiceError{Operation: "finalize", Message: "failed to create review state", Err: err}
		}
		return nil
	}
	if err := states.Update(ctx, next); err != nil {
		return &ServiceError{Operation: "finalize", Message: "failed to update review state", Err: err}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
