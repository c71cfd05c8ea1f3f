package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// UserStore defines the interface for user data persistence. Accounts are
// provisioned by the surrounding platform; this service only reads them to
// authenticate sessions.
type UserStore interface {
	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
