package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/platform/logger"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// PostgresAssignmentStore implements the store.AssignmentStore interface
// using a PostgreSQL database as the storage backend. The ordered activity
// list is stored as a JSONB array so the teacher's sequencing survives
// round-trips exactly.
type PostgresAssignmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAssignmentStore creates a new PostgreSQL implementation of the
// AssignmentStore interface. If logger is nil, a default logger will be used.
func NewPostgresAssignmentStore(db store.DBTX, logger *slog.Logger) *PostgresAssignmentStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAssignmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "assignment_store")),
	}
}

// Ensure PostgresAssignmentStore implements store.AssignmentStore interface
var _ store.AssignmentStore = (*PostgresAssignmentStore)(nil)

const assignmentColumns = "id, classroom_id, created_by, activity_ids, due_at, created_at"

func scanAssignment(scanner interface{ Scan(...any) error }) (*domain.Assignment, error) {
	var (
		assignment  domain.Assignment
		activityIDs []byte
	)
	err := scanner.Scan(
		&assignment.ID,
		&assignment.ClassroomID,
		&assignment.CreatedBy,
		&activityIDs,
		&assignment.DueAt,
		&assignment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(activityIDs, &assignment.ActivityIDs); err != nil {
		return nil, fmt.Errorf("failed to decode activity IDs: %w", err)
	}
	return &assignment, nil
}

// Create implements store.AssignmentStore.Create.
func (s *PostgresAssignmentStore) Create(ctx context.Context, assignment *domain.Assignment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := assignment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	activityIDs, err := json.Marshal(assignment.ActivityIDs)
	if err != nil {
		return fmt.Errorf("failed to encode activity IDs: %w", err)
	}

	query := `
		INSERT INTO assignments (id, classroom_id, created_by, activity_ids, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.ClassroomID,
		assignment.CreatedBy,
		activityIDs,
		assignment.DueAt,
		assignment.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrClassroomNotFound
		}
		log.Error("failed to create assignment",
			slog.String("error", err.Error()),
			slog.String("assignment_id", assignment.ID.String()))
		return store.NewStoreError("assignment", "create", "failed to insert assignment", err)
	}
	return nil
}

// GetByID implements store.AssignmentStore.GetByID.
func (s *PostgresAssignmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	assignment, err := scanAssignment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get assignment",
				slog.String("error", err.Error()),
				slog.String("assignment_id", id.String()))
		}
		return nil, err
	}
	return assignment, nil
}

// ListByClassroom implements store.AssignmentStore.ListByClassroom.
func (s *PostgresAssignmentStore) ListByClassroom(
	ctx context.Context,
	classroomID uuid.UUID,
) ([]*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE classroom_id = $1 ORDER BY created_at`
	return s.queryAssignments(ctx, "list by classroom", query, classroomID)
}

// ListForStudent implements store.AssignmentStore.ListForStudent. Oldest
// first across all the student's classrooms, which is the FIFO order the
// distributor consumes.
func (s *PostgresAssignmentStore) ListForStudent(
	ctx context.Context,
	studentID uuid.UUID,
) ([]*domain.Assignment, error) {
	query := `
		SELECT a.id, a.classroom_id, a.created_by, a.activity_ids, a.due_at, a.created_at
		FROM assignments a
		JOIN enrollments e ON e.classroom_id = a.classroom_id
		WHERE e.student_id = $1 AND e.active
		ORDER BY a.created_at
	`
	return s.queryAssignments(ctx, "list for student", query, studentID)
}

func (s *PostgresAssignmentStore) queryAssignments(
	ctx context.Context,
	operation, query string,
	args ...any,
) ([]*domain.Assignment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query assignments",
			slog.String("error", err.Error()),
			slog.String("operation", operation))
		return nil, store.NewStoreError("assignment", operation, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []*domain.Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, store.NewStoreError("assignment", operation, "scan failed", err)
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("assignment", operation, "row iteration failed", err)
	}
	return assignments, nil
}
