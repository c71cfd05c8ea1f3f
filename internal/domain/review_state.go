package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReviewStage is the position of an item in the spaced-repetition state
// machine: New → Learning → Review → Lapsed, with Lapsed re-entering
// Learning on the next successful recall.
type ReviewStage string

// Possible review stage values.
const (
	StageNew      ReviewStage = "new"
	StageLearning ReviewStage = "learning"
	StageReview   ReviewStage = "review"
	StageLapsed   ReviewStage = "lapsed"
)

// Common validation errors for ReviewState.
var (
	ErrEmptyStateStudentID  = errors.New("review state student ID cannot be empty")
	ErrEmptyStateActivityID = errors.New("review state activity ID cannot be empty")
	ErrInvalidInterval      = errors.New("interval must be greater than or equal to 0")
	ErrInvalidEaseFactor    = errors.New("ease factor must be greater than 1.0")
	ErrInvalidStreak        = errors.New("streak cannot be negative")
	ErrInvalidLapses        = errors.New("lapse count cannot be negative")
	ErrInvalidStage         = errors.New("invalid review stage")
)

// DefaultEaseFactor is the starting ease for a freshly created state.
const DefaultEaseFactor = 2.5

// ReviewState tracks a student's spaced-repetition scheduling for a single
// activity. It is created on first exposure and mutated exactly once per
// graded attempt; LastGradedAt orders transitions so that a delayed retry
// can never overwrite newer state.
//
// TotalReviews and OnTimeReviews are running counters maintained by the
// scheduler so that on-time ratios can be computed without replaying the
// attempt history.
type ReviewState struct {
	StudentID     uuid.UUID   `json:"student_id"`
	ActivityID    uuid.UUID   `json:"activity_id"`
	Stage         ReviewStage `json:"stage"`
	EaseFactor    float64     `json:"ease_factor"`
	IntervalDays  int         `json:"interval_days"`
	DueAt         time.Time   `json:"due_at"`
	Streak        int         `json:"streak"`
	Lapses        int         `json:"lapses"`
	LastGradedAt  time.Time   `json:"last_graded_at"` // zero until the first graded attempt
	TotalReviews  int         `json:"total_reviews"`
	OnTimeReviews int         `json:"on_time_reviews"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewReviewState creates scheduling state for a student's first exposure to
// an activity. The item is due immediately.
func NewReviewState(studentID, activityID uuid.UUID) (*ReviewState, error) {
	now := time.Now().UTC()
	state := &ReviewState{
		StudentID:    studentID,
		ActivityID:   activityID,
		Stage:        StageNew,
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: 0,
		DueAt:        now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := state.Validate(); err != nil {
		return nil, err
	}

	return state, nil
}

// Validate checks if the ReviewState has valid data.
func (s *ReviewState) Validate() error {
	if s.StudentID == uuid.Nil {
		return ErrEmptyStateStudentID
	}
	if s.ActivityID == uuid.Nil {
		return ErrEmptyStateActivityID
	}
	switch s.Stage {
	case StageNew, StageLearning, StageReview, StageLapsed:
	default:
		return ErrInvalidStage
	}
	if s.IntervalDays < 0 {
		return ErrInvalidInterval
	}
	if s.EaseFactor <= 1.0 {
		return ErrInvalidEaseFactor
	}
	if s.Streak < 0 {
		return ErrInvalidStreak
	}
	if s.Lapses < 0 {
		return ErrInvalidLapses
	}
	return nil
}

// Overdue reports whether the item was due before the given time.
func (s *ReviewState) Overdue(asOf time.Time) bool {
	return s.DueAt.Before(asOf)
}
