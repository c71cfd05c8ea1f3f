// Package progression maintains the XP, level, and CEFR progression ledger.
// Every graded attempt is applied exactly once; the ledger entry keyed by
// attempt ID is both the audit record and the idempotency marker.
package progression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// Common progression service errors.
var (
	// ErrAlreadyApplied indicates the attempt's outcome has already been
	// recorded in the ledger. Callers receive the prior delta alongside
	// this sentinel.
	ErrAlreadyApplied = errors.New("attempt outcome already applied")

	// ErrAttemptNotGraded indicates the attempt has no final score yet.
	ErrAttemptNotGraded = errors.New("attempt has not been graded")
)

// ServiceError is a custom error type for progression service errors.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("progression service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("progression service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Service applies graded attempt outcomes to student progression.
type Service struct {
	db         *sql.DB
	students   store.StudentStore
	attempts   store.AttemptStore
	activities store.ActivityStore
	deltas     store.ProgressionStore
	policy     Policy
	logger     *slog.Logger
}

// NewService creates a new progression service.
func NewService(
	db *sql.DB,
	students store.StudentStore,
	attempts store.AttemptStore,
	activities store.ActivityStore,
	deltas store.ProgressionStore,
	policy Policy,
	logger *slog.Logger,
) *Service {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if students == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("students cannot be nil")
	}
	if attempts == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("attempts cannot be nil")
	}
	if activities == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("activities cannot be nil")
	}
	if deltas == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("deltas cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		db:         db,
		students:   students,
		attempts:   attempts,
		activities: activities,
		deltas:     deltas,
		policy:     policy,
		logger:     logger.With(slog.String("component", "progression_service")),
	}
}

// ApplyOutcome applies a graded attempt's outcome in its own transaction.
// Returns the prior delta with ErrAlreadyApplied if the attempt was applied
// before.
func (s *Service) ApplyOutcome(
	ctx context.Context,
	attempt *domain.Attempt,
) (*domain.ProgressionDelta, error) {
	var delta *domain.ProgressionDelta
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var txErr error
		delta, txErr = s.ApplyOutcomeTx(ctx, tx, attempt)
		return txErr
	})
	if err != nil && !errors.Is(err, ErrAlreadyApplied) {
		return nil, err
	}
	return delta, err
}

// ApplyOutcomeTx applies a graded attempt's outcome inside the caller's
// transaction. The grading engine uses this so the attempt write, the review
// state transition, and the ledger entry commit atomically.
func (s *Service) ApplyOutcomeTx(
	ctx context.Context,
	tx *sql.Tx,
	attempt *domain.Attempt,
) (*domain.ProgressionDelta, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !attempt.Graded() {
		return nil, ErrAttemptNotGraded
	}

	txDeltas := s.deltas.WithTx(tx)
	txStudents := s.students.WithTx(tx)
	txAttempts := s.attempts.WithTx(tx)

	// Idempotency check before any computation.
	if prior, err := txDeltas.GetDelta(ctx, attempt.ID); err == nil {
		log.Debug("attempt already applied, returning prior delta",
			slog.String("attempt_id", attempt.ID.String()))
		return prior, ErrAlreadyApplied
	} else if !store.IsNotFoundError(err) {
		return nil, &ServiceError{Operation: "apply_outcome", Message: "ledger lookup failed", Err: err}
	}

	student, err := txStudents.GetByID(ctx, attempt.StudentID)
	if err != nil {
		return nil, &ServiceError{Operation: "apply_outcome", Message: "student lookup failed", Err: err}
	}

	activity, err := s.activities.GetByID(ctx, attempt.ActivityID)
	if err != nil {
		return nil, &ServiceError{Operation: "apply_outcome", Message: "activity lookup failed", Err: err}
	}

	xpDelta := s.policy.XPDelta(activity.Type, activity.Difficulty, *attempt.Score)

	newXP := student.XP + xpDelta
	newLevel := s.policy.Level(newXP)

	newCEFR, err := s.recomputeCEFR(ctx, txAttempts, student)
	if err != nil {
		return nil, err
	}

	delta := &domain.ProgressionDelta{
		AttemptID:   attempt.ID,
		StudentID:   student.ID,
		XPDelta:     xpDelta,
		XPAfter:     newXP,
		LevelBefore: student.Level,
		LevelAfter:  newLevel,
		CEFRBefore:  student.CEFRLevel,
		CEFRAfter:   newCEFR,
		AppliedAt:   time.Now().UTC(),
	}

	if err := txDeltas.CreateDelta(ctx, delta); err != nil {
		// A concurrent application won the race; surface its entry.
		if errors.Is(err, store.ErrDeltaExists) {
			prior, getErr := txDeltas.GetDelta(ctx, attempt.ID)
			if getErr != nil {
				return nil, &ServiceError{Operation: "apply_outcome", Message: "ledger lookup failed", Err: getErr}
			}
			return prior, ErrAlreadyApplied
		}
		return nil, &ServiceError{Operation: "apply_outcome", Message: "failed to append ledger entry", Err: err}
	}

	student.XP = newXP
	student.Level = newLevel
	student.CEFRLevel = newCEFR
	student.UpdatedAt = time.Now().UTC()
	if err := txStudents.Update(ctx, student); err != nil {
		return nil, &ServiceError{Operation: "apply_outcome", Message: "failed to update student", Err: err}
	}

	log.Info("progression applied",
		slog.String("student_id", student.ID.String()),
		slog.String("attempt_id", attempt.ID.String()),
		slog.Int("xp_delta", xpDelta),
		slog.Int("level", newLevel),
		slog.String("cefr", string(newCEFR)))
	return delta, nil
}

// GetDelta retrieves the ledger entry for an attempt.
func (s *Service) GetDelta(ctx context.Context, attemptID uuid.UUID) (*domain.ProgressionDelta, error) {
	return s.deltas.GetDelta(ctx, attemptID)
}

// recomputeCEFR rebuilds the CEFR estimate from the student's recent graded
// window. The transactional attempt store sees the attempt being applied,
// so the window always includes it.
func (s *Service) recomputeCEFR(
	ctx context.Context,
	attempts store.AttemptStore,
	student *domain.Student,
) (domain.CEFRLevel, error) {
	recent, err := attempts.ListRecentGraded(ctx, student.ID, s.policy.CEFRWindow)
	if err != nil {
		return "", &ServiceError{Operation: "apply_outcome", Message: "recent attempts lookup failed", Err: err}
	}
	if len(recent) == 0 {
		return student.CEFRLevel, nil
	}

	ids := make([]uuid.UUID, len(recent))
	for i, a := range recent {
		ids[i] = a.ActivityID
	}
	acts, err := s.activities.GetMultiple(ctx, ids)
	if err != nil {
		return "", &ServiceError{Operation: "apply_outcome", Message: "activity lookup failed", Err: err}
	}

	scored := make([]scoredAttempt, len(recent))
	for i, a := range recent {
		scored[i] = scoredAttempt{Score: *a.Score, Difficulty: acts[i].Difficulty}
	}
	return s.policy.EstimateCEFR(student.CEFRLevel, scored), nil
}
