package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// PostgresActivityStore implements the store.ActivityStore interface using a
// PostgreSQL database as the storage backend. Activities are written by the
// content pipeline outside this service, so only reads are exposed.
type PostgresActivityStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresActivityStore creates a new PostgreSQL implementation of the
// ActivityStore interface. If logger is nil, a default logger will be used.
func NewPostgresActivityStore(db store.DBTX, logger *slog.Logger) *PostgresActivityStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresActivityStore{
		db:     db,
		logger: logger.With(slog.String("component", "activity_store")),
	}
}

// Ensure PostgresActivityStore implements store.ActivityStore interface
var _ store.ActivityStore = (*PostgresActivityStore)(nil)

const activityColumns = "id, type, difficulty, content, created_at"

func scanActivity(scanner interface{ Scan(...any) error }) (*domain.Activity, error) {
	var activity domain.Activity
	err := scanner.Scan(
		&activity.ID,
		&activity.Type,
		&activity.Difficulty,
		&activity.Content,
		&activity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrActivityNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// GetByID implements store.ActivityStore.GetByID.
func (s *PostgresActivityStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	activity, err := scanActivity(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get activity",
				slog.String("error", err.Error()),
				slog.String("activity_id", id.String()))
		}
		return nil, err
	}
	return activity, nil
}

// GetMultiple implements store.ActivityStore.GetMultiple. The requested
// order is preserved; a missing ID fails the whole call with
// ErrActivityNotFound so callers never receive a silently truncated set.
func (s *PostgresActivityStore) GetMultiple(
	ctx context.Context,
	ids []uuid.UUID,
) ([]*domain.Activity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, ids)
	if err != nil {
		log.Error("failed to get activities",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
		return nil, store.NewStoreError("activity", "get multiple", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[uuid.UUID]*domain.Activity, len(ids))
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, store.NewStoreError("activity", "get multiple", "scan failed", err)
		}
		byID[activity.ID] = activity
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("activity", "get multiple", "row iteration failed", err)
	}

	activities := make([]*domain.Activity, 0, len(ids))
	for _, id := range ids {
		activity, ok := byID[id]
		if !ok {
			return nil, store.ErrActivityNotFound
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

// ListUnseen implements store.ActivityStore.ListUnseen.
func (s *PostgresActivityStore) ListUnseen(
	ctx context.Context,
	studentID uuid.UUID,
	difficulty int,
	limit int,
) ([]*domain.Activity, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT a.id, a.type, a.difficulty, a.content, a.created_at
		FROM activities a
		WHERE a.difficulty = $2
		  AND NOT EXISTS (
			SELECT 1 FROM review_states rs
			WHERE rs.student_id = $1 AND rs.activity_id = a.id
		  )
		ORDER BY a.created_at
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, studentID, difficulty, limit)
	if err != nil {
		log.Error("failed to list unseen activities",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()),
			slog.Int("difficulty", difficulty))
		return nil, store.NewStoreError("activity", "list unseen", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []*domain.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, store.NewStoreError("activity", "list unseen", "scan failed", err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("activity", "list unseen", "row iteration failed", err)
	}
	return activities, nil
}
