package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CEFRLevel is a Common European Framework of Reference proficiency band.
type CEFRLevel string

// CEFR bands in ascending order of proficiency.
const (
	CEFRA1 CEFRLevel = "A1"
	CEFRA2 CEFRLevel = "A2"
	CEFRB1 CEFRLevel = "B1"
	CEFRB2 CEFRLevel = "B2"
	CEFRC1 CEFRLevel = "C1"
	CEFRC2 CEFRLevel = "C2"
)

// cefrOrder maps each band to its position, used for ordered comparisons
// and for stepping a single band at a time.
var cefrOrder = []CEFRLevel{CEFRA1, CEFRA2, CEFRB1, CEFRB2, CEFRC1, CEFRC2}

// CEFRIndex returns the zero-based position of the level, or -1 if the
// level is not a known band.
func CEFRIndex(level CEFRLevel) int {
	for i, l := range cefrOrder {
		if l == level {
			return i
		}
	}
	return -1
}

// CEFRAt returns the band at the given position, clamping to the valid range.
func CEFRAt(index int) CEFRLevel {
	if index < 0 {
		return cefrOrder[0]
	}
	if index >= len(cefrOrder) {
		return cefrOrder[len(cefrOrder)-1]
	}
	return cefrOrder[index]
}

// Student-specific validation errors.
var (
	ErrStudentIDEmpty     = errors.New("student ID cannot be empty")
	ErrStudentSchoolEmpty = errors.New("student school ID cannot be empty")
	ErrNegativeXP         = errors.New("student XP cannot be negative")
	ErrNegativeLevel      = errors.New("student level cannot be negative")
)

// Student holds a learner's progression snapshot. The record's identity
// lifecycle is owned by the platform's user provisioning; this service
// reads and writes only the progression fields (XP, level, CEFR band).
type Student struct {
	ID        uuid.UUID `json:"id"`
	SchoolID  uuid.UUID `json:"school_id"`
	XP        int       `json:"xp"`
	Level     int       `json:"level"`
	CEFRLevel CEFRLevel `json:"cefr_level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStudent creates a progression record for a freshly provisioned learner.
// New students start at zero XP, level zero, and the lowest CEFR band.
func NewStudent(id, schoolID uuid.UUID) (*Student, error) {
	now := time.Now().UTC()
	student := &Student{
		ID:        id,
		SchoolID:  schoolID,
		XP:        0,
		Level:     0,
		CEFRLevel: CEFRA1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := student.Validate(); err != nil {
		return nil, err
	}

	return student, nil
}

// Validate checks if the Student has valid data.
func (s *Student) Validate() error {
	if s.ID == uuid.Nil {
		return ErrStudentIDEmpty
	}
	if s.SchoolID == uuid.Nil {
		return ErrStudentSchoolEmpty
	}
	if s.XP < 0 {
		return ErrNegativeXP
	}
	if s.Level < 0 {
		return ErrNegativeLevel
	}
	if CEFRIndex(s.CEFRLevel) < 0 {
		return ErrInvalidCEFRLevel
	}
	return nil
}
