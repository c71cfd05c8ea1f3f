package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Assignment-specific validation errors.
var (
	ErrAssignmentIDEmpty         = errors.New("assignment ID cannot be empty")
	ErrAssignmentClassroomEmpty  = errors.New("assignment classroom ID cannot be empty")
	ErrAssignmentCreatorEmpty    = errors.New("assignment creator ID cannot be empty")
	ErrAssignmentNoActivities    = errors.New("assignment must contain at least one activity")
	ErrAssignmentDuplicateItem   = errors.New("assignment contains a duplicate activity")
)

// Assignment is teacher-authored work for a classroom: an ordered sequence
// of activities, optionally with a due date. Assignments never touch review
// state directly; completing an assigned activity produces an attempt like
// any other submission.
type Assignment struct {
	ID          uuid.UUID   `json:"id"`
	ClassroomID uuid.UUID   `json:"classroom_id"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	ActivityIDs []uuid.UUID `json:"activity_ids"`
	DueAt       *time.Time  `json:"due_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewAssignment creates an assignment of the given activities, preserving
// their order.
func NewAssignment(
	classroomID, createdBy uuid.UUID,
	activityIDs []uuid.UUID,
	dueAt *time.Time,
) (*Assignment, error) {
	assignment := &Assignment{
		ID:          uuid.New(),
		ClassroomID: classroomID,
		CreatedBy:   createdBy,
		ActivityIDs: activityIDs,
		DueAt:       dueAt,
		CreatedAt:   time.Now().UTC(),
	}

	if err := assignment.Validate(); err != nil {
		return nil, err
	}

	return assignment, nil
}

// Validate checks if the Assignment has valid data.
func (a *Assignment) Validate() error {
	if a.ID == uuid.Nil {
		return ErrAssignmentIDEmpty
	}
	if a.ClassroomID == uuid.Nil {
		return ErrAssignmentClassroomEmpty
	}
	if a.CreatedBy == uuid.Nil {
		return ErrAssignmentCreatorEmpty
	}
	if len(a.ActivityIDs) == 0 {
		return ErrAssignmentNoActivities
	}
	seen := make(map[uuid.UUID]struct{}, len(a.ActivityIDs))
	for _, id := range a.ActivityIDs {
		if id == uuid.Nil {
			return ErrActivityIDEmpty
		}
		if _, dup := seen[id]; dup {
			return ErrAssignmentDuplicateItem
		}
		seen[id] = struct{}{}
	}
	return nil
}
