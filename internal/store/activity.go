package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// ActivityStore defines the interface for activity persistence. Activities
// are immutable content units created outside this service, so the store is
// read-only.
type ActivityStore interface {
	// GetByID retrieves an activity by its unique ID.
	// Returns ErrActivityNotFound if the activity does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error)

	// GetMultiple retrieves the given activities, preserving the order of
	// the requested IDs. Returns ErrActivityNotFound if any ID is unknown.
	GetMultiple(ctx context.Context, ids []uuid.UUID) ([]*domain.Activity, error)

	// ListUnseen retrieves up to limit activities at the given difficulty
	// that the student has no review state for, oldest first so the
	// selection is deterministic.
	ListUnseen(
		ctx context.Context,
		studentID uuid.UUID,
		difficulty int,
		limit int,
	) ([]*domain.Activity, error)
}
