package srs

import (
	"errors"
	"time"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// Common errors.
var (
	ErrNilState       = errors.New("review state cannot be nil")
	ErrInvalidQuality = errors.New("quality must be between 0 and 1")
	ErrInvalidDays    = errors.New("postpone days must be at least 1")

	// ErrStaleTransition is returned when a graded attempt is older than the
	// last transition already applied to the state. Out-of-order delivery
	// (for example a delayed retry finishing after a newer attempt) must be
	// rejected rather than silently overwriting newer state.
	ErrStaleTransition = errors.New("stale transition: state already advanced past this attempt")
)

// Service defines the interface for SRS algorithm operations.
type Service interface {
	// NextState computes the state after a graded attempt of normalized
	// quality q in [0, 1]. The returned state is a new value; the input is
	// never mutated.
	NextState(
		state *domain.ReviewState,
		q float64,
		gradedAt time.Time,
	) (*domain.ReviewState, error)

	// Postpone pushes the next due date forward by a number of days without
	// otherwise touching the schedule.
	Postpone(
		state *domain.ReviewState,
		days int,
		now time.Time,
	) (*domain.ReviewState, error)
}

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters.
func NewDefaultService() Service {
	return &defaultService{params: NewDefaultParams()}
}

// NewServiceWithParams creates a new SRS service with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{params: params}
}

// NextState implements the Service interface.
func (s *defaultService) NextState(
	state *domain.ReviewState,
	q float64,
	gradedAt time.Time,
) (*domain.ReviewState, error) {
	if state == nil {
		return nil, ErrNilState
	}
	if q < 0 || q > 1 {
		return nil, ErrInvalidQuality
	}
	if !state.LastGradedAt.IsZero() && !gradedAt.UTC().After(state.LastGradedAt) {
		return nil, ErrStaleTransition
	}

	return calculateNextState(state, q, gradedAt, s.params), nil
}

// Postpone implements the Service interface.
func (s *defaultService) Postpone(
	state *domain.ReviewState,
	days int,
	now time.Time,
) (*domain.ReviewState, error) {
	if state == nil {
		return nil, ErrNilState
	}
	if days < 1 {
		return nil, ErrInvalidDays
	}

	next := *state
	next.DueAt = state.DueAt.AddDate(0, 0, days)
	next.UpdatedAt = now.UTC()

	return &next, nil
}
