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

// PostgresEnrollmentStore implements the store.EnrollmentStore interface
// using a PostgreSQL database as the storage backend. Active uniqueness is
// enforced by a partial unique index on (student_id, classroom_id) WHERE
// active, so re-enrolling after an unenroll is always possible.
type PostgresEnrollmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEnrollmentStore creates a new PostgreSQL implementation of the
// EnrollmentStore interface. If logger is nil, a default logger will be used.
func NewPostgresEnrollmentStore(db store.DBTX, logger *slog.Logger) *PostgresEnrollmentStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEnrollmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "enrollment_store")),
	}
}

// Ensure PostgresEnrollmentStore implements store.EnrollmentStore interface
var _ store.EnrollmentStore = (*PostgresEnrollmentStore)(nil)

// WithTx implements store.EnrollmentStore.WithTx.
func (s *PostgresEnrollmentStore) WithTx(tx *sql.Tx) store.EnrollmentStore {
	return &PostgresEnrollmentStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.EnrollmentStore.Create.
func (s *PostgresEnrollmentStore) Create(ctx context.Context, enrollment *domain.Enrollment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := enrollment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO enrollments (id, student_id, classroom_id, enrolled_at, active, unenrolled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.StudentID,
		enrollment.ClassroomID,
		enrollment.EnrolledAt,
		enrollment.Active,
		enrollment.UnenrolledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEnrollmentExists
		}
		if isForeignKeyViolation(err) {
			return store.ErrStudentNotFound
		}
		log.Error("failed to create enrollment",
			slog.String("error", err.Error()),
			slog.String("student_id", enrollment.StudentID.String()),
			slog.String("classroom_id", enrollment.ClassroomID.String()))
		return store.NewStoreError("enrollment", "create", "failed to insert enrollment", err)
	}
	return nil
}

// GetActive implements store.EnrollmentStore.GetActive.
func (s *PostgresEnrollmentStore) GetActive(
	ctx context.Context,
	studentID, classroomID uuid.UUID,
) (*domain.Enrollment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, student_id, classroom_id, enrolled_at, active, unenrolled_at
		FROM enrollments
		WHERE student_id = $1 AND classroom_id = $2 AND active
	`
	var enrollment domain.Enrollment
	err := s.db.QueryRowContext(ctx, query, studentID, classroomID).Scan(
		&enrollment.ID,
		&enrollment.StudentID,
		&enrollment.ClassroomID,
		&enrollment.EnrolledAt,
		&enrollment.Active,
		&enrollment.UnenrolledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEnrollmentNotFound
		}
		log.Error("failed to get active enrollment",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()))
		return nil, store.NewStoreError("enrollment", "get active", "query failed", err)
	}
	return &enrollment, nil
}

// Update implements store.EnrollmentStore.Update.
func (s *PostgresEnrollmentStore) Update(ctx context.Context, enrollment *domain.Enrollment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := enrollment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `UPDATE enrollments SET active = $2, unenrolled_at = $3 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query,
		enrollment.ID,
		enrollment.Active,
		enrollment.UnenrolledAt,
	)
	if err != nil {
		log.Error("failed to update enrollment",
			slog.String("error", err.Error()),
			slog.String("enrollment_id", enrollment.ID.String()))
		return store.NewStoreError("enrollment", "update", "failed to update enrollment", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("enrollment", "update", "failed to check rows affected", err)
	}
	if rows == 0 {
		return store.ErrEnrollmentNotFound
	}
	return nil
}

// ListActiveByStudent implements store.EnrollmentStore.ListActiveByStudent.
func (s *PostgresEnrollmentStore) ListActiveByStudent(
	ctx context.Context,
	studentID uuid.UUID,
) ([]*domain.Classroom, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT c.id, c.teacher_id, c.school_id, c.name, c.enrollment_code, c.created_at, c.updated_at
		FROM classrooms c
		JOIN enrollments e ON e.classroom_id = c.id
		WHERE e.student_id = $1 AND e.active
		ORDER BY e.enrolled_at
	`
	rows, err := s.db.QueryContext(ctx, query, studentID)
	if err != nil {
		log.Error("failed to list enrolled classrooms",
			slog.String("error", err.Error()),
			slog.String("student_id", studentID.String()))
		return nil, store.NewStoreError("enrollment", "list by student", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var classrooms []*domain.Classroom
	for rows.Next() {
		classroom, err := scanClassroom(rows)
		if err != nil {
			return nil, store.NewStoreError("enrollment", "list by student", "scan failed", err)
		}
		classrooms = append(classrooms, classroom)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("enrollment", "list by student", "row iteration failed", err)
	}
	return classrooms, nil
}

// ListActiveByClassroom implements store.EnrollmentStore.ListActiveByClassroom.
func (s *PostgresEnrollmentStore) ListActiveByClassroom(
	ctx context.Context,
	classroomID uuid.UUID,
) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT student_id FROM enrollments
		WHERE classroom_id = $1 AND active
		ORDER BY enrolled_at
	`
	rows, err := s.db.QueryContext(ctx, query, classroomID)
	if err != nil {
		log.Error("failed to list classroom roster",
			slog.String("error", err.Error()),
			slog.String("classroom_id", classroomID.String()))
		return nil, store.NewStoreError("enrollment", "list by classroom", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var studentIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("enrollment", "list by classroom", "scan failed", err)
		}
		studentIDs = append(studentIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("enrollment", "list by classroom", "row iteration failed", err)
	}
	return studentIDs, nil
}
