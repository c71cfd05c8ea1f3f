package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// AttemptStore defines the interface for attempt persistence. Attempts are
// append-only: rows are created once, marked graded once, and never deleted.
type AttemptStore interface {
	// Create saves a new attempt. Returns ErrAttemptExists if an attempt
	// with the same (student, activity, submitted at) idempotency key
	// already exists; the unique constraint behind this error is what makes
	// concurrent duplicate submissions collapse to a single attempt.
	Create(ctx context.Context, attempt *domain.Attempt) error

	// GetByID retrieves an attempt by its unique ID.
	// Returns ErrAttemptNotFound if the attempt does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Attempt, error)

	// GetByKey retrieves an attempt by its idempotency key.
	// Returns ErrAttemptNotFound if no such attempt exists.
	GetByKey(
		ctx context.Context,
		studentID, activityID uuid.UUID,
		submittedAt time.Time,
	) (*domain.Attempt, error)

	// MarkGraded writes the grading outcome (status, score, feedback,
	// graded at) of an existing attempt.
	MarkGraded(ctx context.Context, attempt *domain.Attempt) error

	// MarkFailed flips a pending attempt to the terminal failed status so
	// the reconciliation sweep stops retrying it. A no-op if the attempt is
	// no longer pending.
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// ListPending retrieves up to limit attempts stuck in GradingPending
	// that were submitted before the cutoff, oldest first. The
	// reconciliation sweep drains this queue.
	ListPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Attempt, error)

	// ListGradedSince retrieves a student's graded attempts with gradedAt
	// in (since, until], newest first.
	ListGradedSince(
		ctx context.Context,
		studentID uuid.UUID,
		since, until time.Time,
	) ([]*domain.Attempt, error)

	// ListRecentGraded retrieves the student's most recent graded attempts,
	// newest first, up to limit. Feeds the CEFR estimate's rolling window.
	ListRecentGraded(ctx context.Context, studentID uuid.UUID, limit int) ([]*domain.Attempt, error)

	// WithTx returns an AttemptStore bound to the given transaction.
	WithTx(tx *sql.Tx) AttemptStore
}
