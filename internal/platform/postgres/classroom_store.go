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

// PostgresClassroomStore implements the store.ClassroomStore interface
// using a PostgreSQL database as the storage backend.
type PostgresClassroomStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresClassroomStore creates a new PostgreSQL implementation of the
// ClassroomStore interface. If logger is nil, a default logger will be used.
func NewPostgresClassroomStore(db store.DBTX, logger *slog.Logger) *PostgresClassroomStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresClassroomStore{
		db:     db,
		logger: logger.With(slog.String("component", "classroom_store")),
	}
}

// Ensure PostgresClassroomStore implements store.ClassroomStore interface
var _ store.ClassroomStore = (*PostgresClassroomStore)(nil)

// WithTx implements store.ClassroomStore.WithTx.
func (s *PostgresClassroomStore) WithTx(tx *sql.Tx) store.ClassroomStore {
	return &PostgresClassroomStore{
		db:     tx,
		logger: s.logger,
	}
}

const classroomColumns = "id, teacher_id, school_id, name, enrollment_code, created_at, updated_at"

func scanClassroom(scanner interface{ Scan(...any) error }) (*domain.Classroom, error) {
	var classroom domain.Classroom
	err := scanner.Scan(
		&classroom.ID,
		&classroom.TeacherID,
		&classroom.SchoolID,
		&classroom.Name,
		&classroom.EnrollmentCode,
		&classroom.CreatedAt,
		&classroom.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrClassroomNotFound
		}
		return nil, err
	}
	return &classroom, nil
}

// GetByID implements store.ClassroomStore.GetByID.
func (s *PostgresClassroomStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Classroom, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE id = $1`
	classroom, err := scanClassroom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get classroom",
				slog.String("error", err.Error()),
				slog.String("classroom_id", id.String()))
		}
		return nil, err
	}
	return classroom, nil
}

// GetByCode implements store.ClassroomStore.GetByCode.
func (s *PostgresClassroomStore) GetByCode(
	ctx context.Context,
	schoolID uuid.UUID,
	code string,
) (*domain.Classroom, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE school_id = $1 AND enrollment_code = $2`
	classroom, err := scanClassroom(s.db.QueryRowContext(ctx, query, schoolID, code))
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get classroom by code",
				slog.String("error", err.Error()),
				slog.String("school_id", schoolID.String()))
		}
		return nil, err
	}
	return classroom, nil
}

// ListByTeacher implements store.ClassroomStore.ListByTeacher.
func (s *PostgresClassroomStore) ListByTeacher(
	ctx context.Context,
	teacherID uuid.UUID,
) ([]*domain.Classroom, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE teacher_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, teacherID)
	if err != nil {
		log.Error("failed to list classrooms",
			slog.String("error", err.Error()),
			slog.String("teacher_id", teacherID.String()))
		return nil, store.NewStoreError("classroom", "list by teacher", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var classrooms []*domain.Classroom
	for rows.Next() {
		classroom, err := scanClassroom(rows)
		if err != nil {
			return nil, store.NewStoreError("classroom", "list by teacher", "scan failed", err)
		}
		classrooms = append(classrooms, classroom)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("classroom", "list by teacher", "row iteration failed", err)
	}
	return classrooms, nil
}

// Create implements store.ClassroomStore.Create.
func (s *PostgresClassroomStore) Create(ctx context.Context, classroom *domain.Classroom) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := classroom.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO classrooms (id, teacher_id, school_id, name, enrollment_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		classroom.ID,
		classroom.TeacherID,
		classroom.SchoolID,
		classroom.Name,
		classroom.EnrollmentCode,
		classroom.CreatedAt,
		classroom.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrCodeExists
		}
		log.Error("failed to create classroom",
			slog.String("error", err.Error()),
			slog.String("classroom_id", classroom.ID.String()))
		return store.NewStoreError("classroom", "create", "failed to insert classroom", err)
	}
	return nil
}

// UpdateCode implements store.ClassroomStore.UpdateCode.
func (s *PostgresClassroomStore) UpdateCode(
	ctx context.Context,
	classroomID uuid.UUID,
	code string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE classrooms SET enrollment_code = $2, updated_at = now() WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, classroomID, code)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrCodeExists
		}
		log.Error("failed to update enrollment code",
			slog.String("error", err.Error()),
			slog.String("classroom_id", classroomID.String()))
		return store.NewStoreError("classroom", "update code", "failed to update code", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("classroom", "update code", "failed to check rows affected", err)
	}
	if rows == 0 {
		return store.ErrClassroomNotFound
	}
	return nil
}
