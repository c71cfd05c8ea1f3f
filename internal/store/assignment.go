package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// AssignmentStore defines the interface for teacher assignment persistence.
type AssignmentStore interface {
	// Create saves a new assignment.
	Create(ctx context.Context, assignment *domain.Assignment) error

	// GetByID retrieves an assignment by its unique ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error)

	// ListByClassroom retrieves a classroom's assignments, oldest first.
	ListByClassroom(ctx context.Context, classroomID uuid.UUID) ([]*domain.Assignment, error)

	// ListForStudent retrieves the assignments of every classroom the
	// student is actively enrolled in, oldest first (FIFO for the
	// distributor's merge policy).
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]*domain.Assignment, error)
}
