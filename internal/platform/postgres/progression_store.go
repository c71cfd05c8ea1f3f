package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// PostgresProgressionStore implements the store.ProgressionStore interface
// using a PostgreSQL database as the storage backend. The ledger table's
// primary key is the attempt ID, so double application of the same graded
// attempt surfaces as ErrDeltaExists instead of silently stacking XP.
type PostgresProgressionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProgressionStore creates a new PostgreSQL implementation of the
// ProgressionStore interface. If logger is nil, a default logger will be used.
func NewPostgresProgressionStore(db store.DBTX, logger *slog.Logger) *PostgresProgressionStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProgressionStore{
		db:     db,
		logger: logger.With(slog.String("component", "progression_store")),
	}
}

// Ensure PostgresProgressionStore implements store.ProgressionStore interface
var _ store.ProgressionStore = (*PostgresProgressionStore)(nil)

// WithTx implements store.ProgressionStore.WithTx.
func (s *PostgresProgressionStore) WithTx(tx *sql.Tx) store.ProgressionStore {
	return &PostgresProgressionStore{
		db:     tx,
		logger: s.logger,
	}
}

// CreateDelta implements store.ProgressionStore.CreateDelta.
func (s *PostgresProgressionStore) CreateDelta(ctx context.Context, delta *domain.ProgressionDelta) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := delta.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO progression_deltas (attempt_id, student_id, xp_delta, xp_after, level_before, level_after, cefr_before, cefr_after, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		delta.AttemptID,
		delta.StudentID,
		delta.XPDelta,
		delta.XPAfter,
		delta.LevelBefore,
		delta.LevelAfter,
		delta.CEFRBefore,
		delta.CEFRAfter,
		delta.AppliedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDeltaExists
		}
		if isForeignKeyViolation(err) {
			return store.ErrAttemptNotFound
		}
		log.Error("failed to create progression delta",
			slog.String("error", err.Error()),
			slog.String("attempt_id", delta.AttemptID.String()))
		return store.NewStoreError("progression delta", "create", "failed to insert delta", err)
	}
	return nil
}

// GetDelta implements store.ProgressionStore.GetDelta.
func (s *PostgresProgressionStore) GetDelta(
	ctx context.Context,
	attemptID uuid.UUID,
) (*domain.ProgressionDelta, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT attempt_id, student_id, xp_delta, xp_after, level_before, level_after, cefr_before, cefr_after, applied_at
		FROM progression_deltas
		WHERE attempt_id = $1
	`
	var delta domain.ProgressionDelta
	err := s.db.QueryRowContext(ctx, query, attemptID).Scan(
		&delta.AttemptID,
		&delta.StudentID,
		&delta.XPDelta,
		&delta.XPAfter,
		&delta.LevelBefore,
		&delta.LevelAfter,
		&delta.CEFRBefore,
		&delta.CEFRAfter,
		&delta.AppliedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDeltaNotFound
		}
		log.Error("failed to get progression delta",
			slog.String("error", err.Error()),
			slog.String("attempt_id", attemptID.String()))
		return nil, store.NewStoreError("progression delta", "get", "query failed", err)
	}
	return &delta, nil
}
