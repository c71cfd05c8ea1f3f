package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// StudentStore defines the interface for student progression persistence.
type StudentStore interface {
	// GetByID retrieves a student's progression record.
	// Returns ErrStudentNotFound if the student does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Student, error)

	// Create saves a new student progression record.
	Create(ctx context.Context, student *domain.Student) error

	// Update writes the progression fields (XP, level, CEFR) of an existing
	// student. Returns ErrStudentNotFound if the student does not exist.
	//
	// Update participates in the grading transaction; callers use WithTx so
	// that the attempt, the review state transition, and the progression
	// write commit or roll back together.
	Update(ctx context.Context, student *domain.Student) error

	// ListByClassroom retrieves the progression records of all actively
	// enrolled students of a classroom.
	ListByClassroom(ctx context.Context, classroomID uuid.UUID) ([]*domain.Student, error)

	// ListByTeacher retrieves the progression records of all students
	// actively enrolled in any of the teacher's classrooms.
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*domain.Student, error)

	// WithTx returns a StudentStore bound to the given transaction.
	WithTx(tx *sql.Tx) StudentStore
}
