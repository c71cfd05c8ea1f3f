package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Progression-specific validation errors.
var (
	ErrDeltaAttemptEmpty = errors.New("progression delta attempt ID cannot be empty")
	ErrDeltaStudentEmpty = errors.New("progression delta student ID cannot be empty")
	ErrNegativeXPDelta   = errors.New("XP delta cannot be negative")
)

// ProgressionDelta is a ledger entry recording the effect of one graded
// attempt on a student's progression. Entries are keyed by attempt ID, which
// is what makes re-application of the same attempt a detectable no-op.
//
// XPDelta is never negative: review failures cost time, not points.
type ProgressionDelta struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	StudentID   uuid.UUID `json:"student_id"`
	XPDelta     int       `json:"xp_delta"`
	XPAfter     int       `json:"xp_after"`
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	CEFRBefore  CEFRLevel `json:"cefr_before"`
	CEFRAfter   CEFRLevel `json:"cefr_after"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Validate checks if the ProgressionDelta has valid data.
func (d *ProgressionDelta) Validate() error {
	if d.AttemptID == uuid.Nil {
		return ErrDeltaAttemptEmpty
	}
	if d.StudentID == uuid.Nil {
		return ErrDeltaStudentEmpty
	}
	if d.XPDelta < 0 {
		return ErrNegativeXPDelta
	}
	if d.XPAfter < 0 {
		return ErrNegativeXP
	}
	if d.LevelBefore < 0 || d.LevelAfter < 0 {
		return ErrNegativeLevel
	}
	if CEFRIndex(d.CEFRBefore) < 0 || CEFRIndex(d.CEFRAfter) < 0 {
		return ErrInvalidCEFRLevel
	}
	return nil
}
