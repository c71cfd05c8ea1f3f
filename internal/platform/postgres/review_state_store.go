package postgres

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

// PostgresReviewStateStore implements the store.ReviewStateStore interface
// using a PostgreSQL database as the storage backend. The table's primary
// key is (student_id, activity_id); last_graded_at is NULL in the database
// for states that have never been graded and maps to the zero time.
type PostgresReviewStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewStateStore creates a new PostgreSQL implementation of the
// ReviewStateStore interface. If logger is nil, a default logger will be used.
func NewPostgresReviewStateStore(db store.DBTX, logger *slog.Logger) *PostgresReviewStateStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_state_store")),
	}
}

// Ensure PostgresReviewStateStore implements store.ReviewStateStore interface
var _ store.ReviewStateStore = (*PostgresReviewStateStore)(nil)

// WithTx implements store.ReviewStateStore.WithTx.
func (s *PostgresReviewStateStore) WithTx(tx *sql.Tx) store.ReviewStateStore {
	return &PostgresReviewStateStore{
		db:     tx,
		logger: s.logger,
	}
}

const reviewStateColumns = "student_id, activity_id, stage, ease_factor, interval_days, due_at, streak, lapses, last_graded_at, total_reviews, on_time_reviews, created_at, updated_at"

func scanReviewState(scanner interface{ Scan(...any) error }) (*domain.ReviewState, error) {
	var (
		state        domain.ReviewState
		lastGradedAt sql.NullTime
	)
	err := scanner.Scan(
		&state.StudentID,
		&state.ActivityID,
		&state.Stage,
		&state.EaseFactor,
		&state.IntervalDays,
		&state.DueAt,
		&state.Streak,
		&state.Lapses,
		&lastGradedAt,
		&state.TotalReviews,
		&state.OnTimeReviews,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReviewStateNotFound
		}
		return nil, err
	}
	if lastGradedAt.Valid {
		state.LastGradedAt = lastGradedAt.Time
	}
	return &state, nil
}

// nullableTime maps the zero time to NULL for storage.
func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func (s *PostgresReviewStateStore) getWhere(
	ctx context.Context,
	lock string,
	studentID, activityID uuid.UUID,
) (*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + reviewStateColumns + ` FROM review_states WHERE student_id = $1 AND activity_id = $2` + lock
	state, err := scanReviewState(s.db.QueryRowContext(ctx, query, studentID, activityID))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get review state",
				slog.String("error", err.Error()),
				slog.String("student_id", studentID.String()),
				slog.String("activity_id", activityID.String()))
		}
		return nil, err
	}
	return state, nil
}

// Get implements store.ReviewStateStore.Get.
func (s *PostgresReviewStateStore) Get(
	ctx context.Context,
	studentID, activityID uuid.UUID,
) (*domain.ReviewState, error) {
	return s.getWhere(ctx, "", studentID, activityID)
}

// GetForUpdate implements store.ReviewStateStore.GetForUpdate. The FOR
// UPDATE lock holds until the surrounding transaction ends, serializing
// concurrent transitions for the same pair.
func (s *PostgresReviewStateStore) GetForUpdate(
	ctx context.Context,
	studentID, activityID uuid.UUID,
) (*domain.ReviewState, error) {
	return s.getWhere(ctx, " FOR UPDATE", studentID, activityID)
}

// Create implements store.ReviewStateStore.Create.
func (s *PostgresReviewStateStore) Create(ctx context.Context, state *domain.ReviewState) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO review_states (student_id, activity_id, stage, ease_factor, interval_days, due_at, streak, lapses, last_graded_at, total_reviews, on_time_reviews, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		state.StudentID,
		state.ActivityID,
		state.Stage,
		state.EaseFactor,
		state.IntervalDays,
		state.DueAt,
		state.Streak,
		state.Lapses,
		nullableTime(state.LastGradedAt),
		state.TotalReviews,
		state.OnTimeReviews,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		log.Error("failed to create review state",
			slog.String("error", err.Error()),
			slog.String("student_id", state.StudentID.String()),
			slog.String("activity_id", state.ActivityID.String()))
		return store.NewStoreError("review state", "create", "failed to insert review state", err)
	}
	return nil
}

// Update implements store.ReviewStateStore.Update.
func (s *PostgresReviewStateStore) Update(ctx context.Context, state *domain.ReviewState) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE review_states
		SET stage = $3, ease_factor = $4, interval_days = $5, due_at = $6,
		    streak = $7, lapses = $8, last_graded_at = $9,
		    total_reviews = $10, on_time_reviews = $11, updated_at = $12
		WHERE student_id = $1 AND activity_id = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		state.StudentID,
		state.ActivityID,
		state.Stage,
		state.EaseFactor,
		state.IntervalDays,
		state.DueAt,
		state.Streak,
		state.Lapses,
		nullableTime(state.LastGradedAt),
		state.TotalReviews,
		state.OnTimeReviews,
		state.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update review state",
			slog.String("error", err.Error()),
			slog.String("student_id", state.StudentID.String()),
			slog.String("activity_id", state.ActivityID.String()))
		return store.NewStoreError("review state", "update", "failed to update review state", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("review state", "update", "failed to check rows affected", err)
	}
	if rows == 0 {
		return store.ErrReviewStateNotFound
	}
	return nil
}

// ListDue implements store.ReviewStateStore.ListDue. Ties on due_at are
// broken by lapse count so struggling items surface first.
func (s *PostgresReviewStateStore) ListDue(
	ctx context.Context,
	studentID uuid.UUID,
	asOf time.Time,
	limit int,
) ([]*domain.ReviewState, error) {
	query := `
		SELECT ` + reviewStateColumns + ` FROM review_states
		WHERE student_id = $1 AND due_at <= $2
		ORDER BY due_at ASC, lapses DESC
		LIMIT $3
	`
	return s.queryStates(ctx, "list due", query, studentID, asOf.UTC(), limit)
}

// ListByStudent implements store.ReviewStateStore.ListByStudent.
func (s *PostgresReviewStateStore) ListByStudent(
	ctx context.Context,
	studentID uuid.UUID,
) ([]*domain.ReviewState, error) {
	query := `SELECT ` + reviewStateColumns + ` FROM review_states WHERE student_id = $1`
	return s.queryStates(ctx, "list by student", query, studentID)
}

// ListActivityIDs implements store.ReviewStateStore.ListActivityIDs.
func (s *PostgresReviewStateStore) ListActivityIDs(
	ctx context.Context,
	studentID uuid.UUID,
) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT activity_id FROM review_states WHERE student_id = $1`
	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		log.Error("failed to list exposed activity IDs",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()))
		return nil, store.NewStoreError("review state", "list activity ids", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("review state", "list activity ids", "scan failed", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review state", "list activity ids", "row iteration failed", err)
	}
	return ids, nil
}

func (s *PostgresReviewStateStore) queryStates(
	ctx context.Context,
	operation, query string,
	args ...any,
) ([]*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query review states",
			slog.String("error", err.Error()),
			slog.String("operation", operation))
		return nil, store.NewStoreError("review state", operation, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var states []*domain.ReviewState
	for rows.Next() {
		state, err := scanReviewState(rows)
		if err != nil {
			return nil, store.NewStoreError("review state", operation, "scan failed", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review state", operation, "row iteration failed", err)
	}
	return states, nil
}
