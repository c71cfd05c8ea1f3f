package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// ProgressionStore defines the interface for the progression ledger.
// Ledger entries are keyed by attempt ID, which is what the ledger's
// idempotency guarantee hangs on.
type ProgressionStore interface {
	// CreateDelta appends a ledger entry. Returns ErrDeltaExists if an
	// entry for the attempt already exists.
	CreateDelta(ctx context.Context, delta *domain.ProgressionDelta) error

	// GetDelta retrieves the ledger entry for an attempt.
	// Returns ErrDeltaNotFound if the attempt has not been applied.
	GetDelta(ctx context.Context, attemptID uuid.UUID) (*domain.ProgressionDelta, error)

	// WithTx returns a ProgressionStore bound to the given transaction.
	WithTx(tx *sql.Tx) ProgressionStore
}
