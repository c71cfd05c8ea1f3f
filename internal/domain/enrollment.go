package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Enrollment-specific validation errors.
var (
	ErrEnrollmentIDEmpty        = errors.New("enrollment ID cannot be empty")
	ErrEnrollmentStudentEmpty   = errors.New("enrollment student ID cannot be empty")
	ErrEnrollmentClassroomEmpty = errors.New("enrollment classroom ID cannot be empty")
)

// Enrollment links a student to a classroom. Enrollments are soft-deleted:
// unenrolling flips Active to false and stamps UnenrolledAt, but the row is
// never removed so that historical attempts and review state stay queryable
// for analytics.
type Enrollment struct {
	ID           uuid.UUID  `json:"id"`
	StudentID    uuid.UUID  `json:"student_id"`
	ClassroomID  uuid.UUID  `json:"classroom_id"`
	EnrolledAt   time.Time  `json:"enrolled_at"`
	Active       bool       `json:"active"`
	UnenrolledAt *time.Time `json:"unenrolled_at,omitempty"`
}

// NewEnrollment creates an active enrollment for a student in a classroom.
func NewEnrollment(studentID, classroomID uuid.UUID) (*Enrollment, error) {
	enrollment := &Enrollment{
		ID:          uuid.New(),
		StudentID:   studentID,
		ClassroomID: classroomID,
		EnrolledAt:  time.Now().UTC(),
		Active:      true,
	}

	if err := enrollment.Validate(); err != nil {
		return nil, err
	}

	return enrollment, nil
}

// Validate checks if the Enrollment has valid data.
func (e *Enrollment) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEnrollmentIDEmpty
	}
	if e.StudentID == uuid.Nil {
		return ErrEnrollmentStudentEmpty
	}
	if e.ClassroomID == uuid.Nil {
		return ErrEnrollmentClassroomEmpty
	}
	return nil
}

// Deactivate marks the enrollment as ended at the given time.
func (e *Enrollment) Deactivate(now time.Time) {
	e.Active = false
	e.UnenrolledAt = &now
}
