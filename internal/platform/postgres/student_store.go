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

// PostgresStudentStore implements the store.StudentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresStudentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStudentStore creates a new PostgreSQL implementation of the
// StudentStore interface. If logger is nil, a default logger will be used.
func NewPostgresStudentStore(db store.DBTX, logger *slog.Logger) *PostgresStudentStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStudentStore{
		db:     db,
		logger: logger.With(slog.String("component", "student_store")),
	}
}

// Ensure PostgresStudentStore implements store.StudentStore interface
var _ store.StudentStore = (*PostgresStudentStore)(nil)

// WithTx implements store.StudentStore.WithTx.
func (s *PostgresStudentStore) WithTx(tx *sql.Tx) store.StudentStore {
	return &PostgresStudentStore{
		db:     tx,
		logger: s.logger,
	}
}

const studentColumns = "id, school_id, xp, level, cefr_level, created_at, updated_at"

func scanStudent(scanner interface{ Scan(...any) error }) (*domain.Student, error) {
	var student domain.Student
	err := scanner.Scan(
		&student.ID,
		&student.SchoolID,
		&student.XP,
		&student.Level,
		&student.CEFRLevel,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStudentNotFound
		}
		return nil, err
	}
	return &student, nil
}

// GetByID implements store.StudentStore.GetByID.
func (s *PostgresStudentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	student, err := scanStudent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get student",
				slog.String("error", err.Error()),
				slog.String("student_id", id.String()))
		}
		return nil, err
	}
	return student, nil
}

// Create implements store.StudentStore.Create.
func (s *PostgresStudentStore) Create(ctx context.Context, student *domain.Student) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := student.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO students (id, school_id, xp, level, cefr_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		student.ID,
		student.SchoolID,
		student.XP,
		student.Level,
		student.CEFRLevel,
		student.CreatedAt,
		student.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		log.Error("failed to create student",
			slog.String("error", err.Error()),
			slog.String("student_id", student.ID.String()))
		return store.NewStoreError("student", "create", "failed to insert student", err)
	}
	return nil
}

// Update implements store.StudentStore.Update.
func (s *PostgresStudentStore) Update(ctx context.Context, student *domain.Student) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := student.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE students
		SET xp = $2, level = $3, cefr_level = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		student.ID,
		student.XP,
		student.Level,
		student.CEFRLevel,
		student.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update student",
			slog.String("error", err.Error()),
			slog.String("student_id", student.ID.String()))
		return store.NewStoreError("student", "update", "failed to update student", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("student", "update", "failed to check rows affected", err)
	}
	if rows == 0 {
		return store.ErrStudentNotFound
	}
	return nil
}

// ListByClassroom implements store.StudentStore.ListByClassroom.
func (s *PostgresStudentStore) ListByClassroom(
	ctx context.Context,
	classroomID uuid.UUID,
) ([]*domain.Student, error) {
	query := `
		SELECT s.id, s.school_id, s.xp, s.level, s.cefr_level, s.created_at, s.updated_at
		FROM students s
		JOIN enrollments e ON e.student_id = s.id
		WHERE e.classroom_id = $1 AND e.active
		ORDER BY s.created_at
	`
	return s.queryStudents(ctx, "list by classroom", query, classroomID)
}

// ListByTeacher implements store.StudentStore.ListByTeacher.
func (s *PostgresStudentStore) ListByTeacher(
	ctx context.Context,
	teacherID uuid.UUID,
) ([]*domain.Student, error) {
	query := `
		SELECT DISTINCT s.id, s.school_id, s.xp, s.level, s.cefr_level, s.created_at, s.updated_at
		FROM students s
		JOIN enrollments e ON e.student_id = s.id
		JOIN classrooms c ON c.id = e.classroom_id
		WHERE c.teacher_id = $1 AND e.active
	`
	return s.queryStudents(ctx, "list by teacher", query, teacherID)
}

func (s *PostgresStudentStore) queryStudents(
	ctx context.Context,
	operation, query string,
	args ...any,
) ([]*domain.Student, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query students",
			slog.String("error", err.Error()),
			slog.String("operation", operation))
		return nil, store.NewStoreError("student", operation, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var students []*domain.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, store.NewStoreError("student", operation, "scan failed", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("student", operation, "row iteration failed", err)
	}
	return students, nil
}
