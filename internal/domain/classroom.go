package domain

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Classroom-specific validation errors.
var (
	ErrClassroomIDEmpty      = errors.New("classroom ID cannot be empty")
	ErrClassroomTeacherEmpty = errors.New("classroom teacher ID cannot be empty")
	ErrClassroomSchoolEmpty  = errors.New("classroom school ID cannot be empty")
	ErrClassroomNameEmpty    = errors.New("classroom name cannot be empty")
)

// EnrollmentCodeLength is the number of characters in a generated
// enrollment code.
const EnrollmentCodeLength = 8

// enrollmentCodeAlphabet deliberately omits easily confused characters
// (0/O, 1/I/L) since codes are read out loud in classrooms.
const enrollmentCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Classroom groups enrolled students under a single teacher within a school.
// EnrollmentCode is the currently active join code; regenerating it
// invalidates the previous code immediately.
type Classroom struct {
	ID             uuid.UUID `json:"id"`
	TeacherID      uuid.UUID `json:"teacher_id"`
	SchoolID       uuid.UUID `json:"school_id"`
	Name           string    `json:"name"`
	EnrollmentCode string    `json:"enrollment_code"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewClassroom creates a classroom with a freshly generated enrollment code.
func NewClassroom(teacherID, schoolID uuid.UUID, name string) (*Classroom, error) {
	code, err := NewEnrollmentCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	classroom := &Classroom{
		ID:             uuid.New(),
		TeacherID:      teacherID,
		SchoolID:       schoolID,
		Name:           name,
		EnrollmentCode: code,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := classroom.Validate(); err != nil {
		return nil, err
	}

	return classroom, nil
}

// Validate checks if the Classroom has valid data.
func (c *Classroom) Validate() error {
	if c.ID == uuid.Nil {
		return ErrClassroomIDEmpty
	}
	if c.TeacherID == uuid.Nil {
		return ErrClassroomTeacherEmpty
	}
	if c.SchoolID == uuid.Nil {
		return ErrClassroomSchoolEmpty
	}
	if c.Name == "" {
		return ErrClassroomNameEmpty
	}
	return nil
}

// NewEnrollmentCode generates a random join code. Uniqueness among active
// codes within a school is enforced by the enrollment registry, which
// retries on collision.
func NewEnrollmentCode() (string, error) {
	b := make([]byte, EnrollmentCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = enrollmentCodeAlphabet[int(b[i])%len(enrollmentCodeAlphabet)]
	}
	return string(b), nil
}
