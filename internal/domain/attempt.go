package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus tracks whether grading has completed for an attempt.
type AttemptStatus string

// Possible attempt status values.
const (
	// AttemptStatusGraded means the attempt has a final score and, for
	// open-ended activities, feedback.
	AttemptStatusGraded AttemptStatus = "graded"

	// AttemptStatusPending means the external feedback generator could not
	// be reached; the attempt is parked for the reconciliation sweep and is
	// never silently dropped.
	AttemptStatusPending AttemptStatus = "grading_pending"

	// AttemptStatusFailed means grading hit a structural failure that no
	// retry can cure (unusable answer, blocked or malformed generator
	// response). The attempt is kept for audit but the sweep skips it.
	AttemptStatusFailed AttemptStatus = "grading_failed"
)

// Attempt-specific validation errors.
var (
	ErrAttemptIDEmpty       = errors.New("attempt ID cannot be empty")
	ErrAttemptStudentEmpty  = errors.New("attempt student ID cannot be empty")
	ErrAttemptActivityEmpty = errors.New("attempt activity ID cannot be empty")
	ErrAttemptAnswerEmpty   = errors.New("attempt answer cannot be empty")
	ErrInvalidAttemptStatus = errors.New("invalid attempt status")
	ErrInvalidScore         = errors.New("score must be between 0 and 1")
	ErrAttemptNotGraded     = errors.New("attempt has not been graded")
)

// Attempt is the append-only record of a submitted answer. Once graded it is
// immutable and serves as the sole audit trail for progression and
// analytics. The triple (StudentID, ActivityID, SubmittedAt) is the
// idempotency key: retried submissions of the same triple resolve to the
// same attempt.
type Attempt struct {
	ID          uuid.UUID     `json:"id"`
	StudentID   uuid.UUID     `json:"student_id"`
	ActivityID  uuid.UUID     `json:"activity_id"`
	SubmittedAt time.Time     `json:"submitted_at"`
	RawAnswer   string        `json:"raw_answer"`
	Status      AttemptStatus `json:"status"`
	Score       *float64      `json:"score,omitempty"`
	Feedback    *string       `json:"feedback,omitempty"`
	GradedAt    *time.Time    `json:"graded_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewPendingAttempt creates an ungraded attempt for the given submission.
func NewPendingAttempt(
	studentID, activityID uuid.UUID,
	submittedAt time.Time,
	rawAnswer string,
) (*Attempt, error) {
	attempt := &Attempt{
		ID:          uuid.New(),
		StudentID:   studentID,
		ActivityID:  activityID,
		SubmittedAt: submittedAt.UTC(),
		RawAnswer:   rawAnswer,
		Status:      AttemptStatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := attempt.Validate(); err != nil {
		return nil, err
	}

	return attempt, nil
}

// Validate checks if the Attempt has valid data.
func (a *Attempt) Validate() error {
	if a.ID == uuid.Nil {
		return ErrAttemptIDEmpty
	}
	if a.StudentID == uuid.Nil {
		return ErrAttemptStudentEmpty
	}
	if a.ActivityID == uuid.Nil {
		return ErrAttemptActivityEmpty
	}
	if a.RawAnswer == "" {
		return ErrAttemptAnswerEmpty
	}
	switch a.Status {
	case AttemptStatusGraded, AttemptStatusPending, AttemptStatusFailed:
	default:
		return ErrInvalidAttemptStatus
	}
	if a.Status == AttemptStatusGraded {
		if a.Score == nil || a.GradedAt == nil {
			return ErrAttemptNotGraded
		}
		if *a.Score < 0 || *a.Score > 1 {
			return ErrInvalidScore
		}
	}
	return nil
}

// MarkGraded finalizes the attempt with a score and optional feedback.
// Returns an error if the score is out of range.
func (a *Attempt) MarkGraded(score float64, feedback string, gradedAt time.Time) error {
	if score < 0 || score > 1 {
		return ErrInvalidScore
	}
	gradedAt = gradedAt.UTC()
	a.Status = AttemptStatusGraded
	a.Score = &score
	a.GradedAt = &gradedAt
	if feedback != "" {
		a.Feedback = &feedback
	}
	return nil
}

// MarkFailed records a terminal grading failure. The attempt keeps its raw
// answer for audit but will never receive a score.
func (a *Attempt) MarkFailed() {
	a.Status = AttemptStatusFailed
}

// Graded reports whether the attempt has a final score.
func (a *Attempt) Graded() bool {
	return a.Status == AttemptStatusGraded
}

// Failed reports whether grading ended in a terminal failure.
func (a *Attempt) Failed() bool {
	return a.Status == AttemptStatusFailed
}
