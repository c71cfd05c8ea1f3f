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

// PostgresAttemptStore implements the store.AttemptStore interface using a
// PostgreSQL database as the storage backend. The attempts table carries a
// unique constraint on (student_id, activity_id, submitted_at); Create maps
// its violation to ErrAttemptExists, which is how concurrent duplicate
// submissions collapse to one row.
type PostgresAttemptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAttemptStore creates a new PostgreSQL implementation of the
// AttemptStore interface. If logger is nil, a default logger will be used.
func NewPostgresAttemptStore(db store.DBTX, logger *slog.Logger) *PostgresAttemptStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAttemptStore{
		db:     db,
		logger: logger.With(slog.String("component", "attempt_store")),
	}
}

// Ensure PostgresAttemptStore implements store.AttemptStore interface
var _ store.AttemptStore = (*PostgresAttemptStore)(nil)

// WithTx implements store.AttemptStore.WithTx.
func (s *PostgresAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore {
	return &PostgresAttemptStore{
		db:     tx,
		logger: s.logger,
	}
}

const attemptColumns = "id, student_id, activity_id, submitted_at, raw_answer, status, score, feedback, graded_at, created_at"

func scanAttempt(scanner interface{ Scan(...any) error }) (*domain.Attempt, error) {
	var attempt domain.Attempt
	err := scanner.Scan(
		&attempt.ID,
		&attempt.StudentID,
		&attempt.ActivityID,
		&attempt.SubmittedAt,
		&attempt.RawAnswer,
		&attempt.Status,
		&attempt.Score,
		&attempt.Feedback,
		&attempt.GradedAt,
		&attempt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAttemptNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// Create implements store.AttemptStore.Create.
func (s *PostgresAttemptStore) Create(ctx context.Context, attempt *domain.Attempt) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attempt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO attempts (id, student_id, activity_id, submitted_at, raw_answer, status, score, feedback, graded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.StudentID,
		attempt.ActivityID,
		attempt.SubmittedAt,
		attempt.RawAnswer,
		attempt.Status,
		attempt.Score,
		attempt.Feedback,
		attempt.GradedAt,
		attempt.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAttemptExists
		}
		if isForeignKeyViolation(err) {
			return store.ErrActivityNotFound
		}
		log.Error("failed to create attempt",
			slog.String("error", err.Error()),
			slog.String("attempt_id", attempt.ID.String()))
		return store.NewStoreError("attempt", "create", "failed to insert attempt", err)
	}
	return nil
}

// GetByID implements store.AttemptStore.GetByID.
func (s *PostgresAttemptStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attempt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = $1`
	attempt, err := scanAttempt(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get attempt",
				slog.String("error", err.Error()),
				slog.String("attempt_id", id.String()))
		}
		return nil, err
	}
	return attempt, nil
}

// GetByKey implements store.AttemptStore.GetByKey.
func (s *PostgresAttemptStore) GetByKey(
	ctx context.Context,
	studentID, activityID uuid.UUID,
	submittedAt time.Time,
) (*domain.Attempt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE student_id = $1 AND activity_id = $2 AND submitted_at = $3`
	attempt, err := scanAttempt(s.db.QueryRowContext(ctx, query, studentID, activityID, submittedAt.UTC()))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get attempt by key",
				slog.String("error", err.Error()),
				slog.String("student_id", studentID.String()),
				slog.String("activity_id", activityID.String()))
		}
		return nil, err
	}
	return attempt, nil
}

// MarkGraded implements store.AttemptStore.MarkGraded.
func (s *PostgresAttemptStore) MarkGraded(ctx context.Context, attempt *domain.Attempt) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attempt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE attempts
		SET status = $2, score = $3, feedback = $4, graded_at = $5
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.Status,
		attempt.Score,
		attempt.Feedback,
		attempt.GradedAt,
	)
	if err != nil {
		log.Error("failed to mark attempt graded",
			slog.String("error", err.Error()),
			slog.String("attempt_id", attempt.ID.String()))
		return store.NewStoreError("attempt", "mark graded", "failed to update attempt", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("attempt", "mark graded", "failed to check rows affected", err)
	}
	if rows == 0 {
		return store.ErrAttemptNotFound
	}
	return nil
}

// MarkFailed implements store.AttemptStore.MarkFailed.
func (s *PostgresAttemptStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// Guarded on the pending status so a concurrent finalize always wins.
	query := `UPDATE attempts SET status = $2 WHERE id = $1 AND status = $3`
	_, err := s.db.ExecContext(ctx, query, id, domain.AttemptStatusFailed, domain.AttemptStatusPending)
	if err != nil {
		log.Error("failed to mark attempt failed",
			slog.String("error", err.Error()),
			slog.String("attempt_id", id.String()))
		return store.NewStoreError("attempt", "mark failed", "failed to update attempt", err)
	}
	return nil
}

// ListPending implements store.AttemptStore.ListPending.
func (s *PostgresAttemptStore) ListPending(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + ` FROM attempts
		WHERE status = $1 AND submitted_at < $2
		ORDER BY submitted_at
		LIMIT $3
	`
	return s.queryAttempts(ctx, "list pending", query, domain.AttemptStatusPending, cutoff.UTC(), limit)
}

// ListGradedSince implements store.AttemptStore.ListGradedSince.
func (s *PostgresAttemptStore) ListGradedSince(
	ctx context.Context,
	studentID uuid.UUID,
	since, until time.Time,
) ([]*domain.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + ` FROM attempts
		WHERE student_id = $1 AND status = $2 AND graded_at > $3 AND graded_at <= $4
		ORDER BY graded_at DESC
	`
	return s.queryAttempts(
		ctx, "list graded since", query,
		studentID, domain.AttemptStatusGraded, since.UTC(), until.UTC(),
	)
}

// ListRecentGraded implements store.AttemptStore.ListRecentGraded.
func (s *PostgresAttemptStore) ListRecentGraded(
	ctx context.Context,
	studentID uuid.UUID,
	limit int,
) ([]*domain.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + ` FROM attempts
		WHERE student_id = $1 AND status = $2
		ORDER BY graded_at DESC
		LIMIT $3
	`
	return s.queryAttempts(ctx, "list recent graded", query, studentID, domain.AttemptStatusGraded, limit)
}

func (s *PostgresAttemptStore) queryAttempts(
	ctx context.Context,
	operation, query string,
	args ...any,
) ([]*domain.Attempt, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query attempts",
			slog.String("error", err.Error()),
			slog.String("operation", operation))
		return nil, store.NewStoreError("attempt", operation, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []*domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, store.NewStoreError("attempt", operation, "scan failed", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("attempt", operation, "row iteration failed", err)
	}
	return attempts, nil
}
