package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// ReviewStateStore defines the interface for spaced-repetition state
// persistence.
type ReviewStateStore interface {
	// Get retrieves the review state for a (student, activity) pair.
	// Returns ErrReviewStateNotFound if no state exists yet.
	Get(ctx context.Context, studentID, activityID uuid.UUID) (*domain.ReviewState, error)

	// GetForUpdate retrieves the review state with a row lock, serializing
	// concurrent transitions for the same pair. MUST be called inside a
	// transaction (use WithTx); outside one the lock is released
	// immediately and provides no protection.
	GetForUpdate(ctx context.Context, studentID, activityID uuid.UUID) (*domain.ReviewState, error)

	// Create saves the state for a student's first exposure to an activity.
	Create(ctx context.Context, state *domain.ReviewState) error

	// Update overwrites an existing state after a transition.
	// Returns ErrReviewStateNotFound if the state does not exist.
	Update(ctx context.Context, state *domain.ReviewState) error

	// ListDue retrieves up to limit review states due at or before asOf,
	// ordered by dueAt ascending with ties broken by lapses descending so
	// struggling items surface first.
	ListDue(ctx context.Context, studentID uuid.UUID, asOf time.Time, limit int) ([]*domain.ReviewState, error)

	// ListByStudent retrieves all review states for a student.
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*domain.ReviewState, error)

	// ListActivityIDs retrieves the IDs of every activity the student has
	// been exposed to (has review state for).
	ListActivityIDs(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error)

	// WithTx returns a ReviewStateStore bound to the given transaction.
	WithTx(tx *sql.Tx) ReviewStateStore
}
