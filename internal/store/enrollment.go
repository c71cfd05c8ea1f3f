package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// EnrollmentStore defines the interface for enrollment persistence.
// Enrollments are soft-deleted only; no method here removes rows, so
// historical analytics over past enrollment always stay queryable.
type EnrollmentStore interface {
	// Create saves a new enrollment. Returns ErrEnrollmentExists if the
	// student already has an active enrollment in the classroom.
	Create(ctx context.Context, enrollment *domain.Enrollment) error

	// GetActive retrieves the student's active enrollment in a classroom.
	// Returns ErrEnrollmentNotFound if there is none.
	GetActive(ctx context.Context, studentID, classroomID uuid.UUID) (*domain.Enrollment, error)

	// Update writes the mutable fields (active, unenrolled at) of an
	// existing enrollment.
	Update(ctx context.Context, enrollment *domain.Enrollment) error

	// ListActiveByStudent retrieves the classrooms the student is actively
	// enrolled in.
	ListActiveByStudent(ctx context.Context, studentID uuid.UUID) ([]*domain.Classroom, error)

	// ListActiveByClassroom retrieves the IDs of students actively enrolled
	// in a classroom.
	ListActiveByClassroom(ctx context.Context, classroomID uuid.UUID) ([]uuid.UUID, error)

	// WithTx returns an EnrollmentStore bound to the given transaction.
	WithTx(tx *sql.Tx) EnrollmentStore
}
