package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// ClassroomStore defines the interface for classroom data persistence,
// including enrollment code management.
type ClassroomStore interface {
	// GetByID retrieves a classroom by its unique ID.
	// Returns ErrClassroomNotFound if the classroom does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Classroom, error)

	// GetByCode retrieves the classroom whose active enrollment code
	// matches, scoped to a school. Returns ErrClassroomNotFound if no
	// classroom carries the code.
	GetByCode(ctx context.Context, schoolID uuid.UUID, code string) (*domain.Classroom, error)

	// ListByTeacher retrieves all classrooms owned by a teacher.
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*domain.Classroom, error)

	// Create saves a new classroom. Returns ErrCodeExists if the enrollment
	// code collides with another active code in the same school.
	Create(ctx context.Context, classroom *domain.Classroom) error

	// UpdateCode replaces the classroom's enrollment code. The previous
	// code stops matching immediately; there is no grace period.
	// Returns ErrCodeExists on a collision within the school and
	// ErrClassroomNotFound if the classroom does not exist.
	UpdateCode(ctx context.Context, classroomID uuid.UUID, code string) error

	// WithTx returns a ClassroomStore bound to the given transaction.
	WithTx(tx *sql.Tx) ClassroomStore
}
