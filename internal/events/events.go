// Package events decouples services from the background machinery that
// reacts to them. The grading service announces parked attempts without
// knowing who listens; the reconciler registers as a handler so a parked
// attempt is re-queued immediately instead of waiting for the next sweep.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventAttemptParked announces that grading parked an attempt because the
// feedback generator was unreachable.
const EventAttemptParked = "attempt.parked"

// GradingEvent is a notification emitted by the grading pipeline.
type GradingEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// Type names what happened; handlers ignore types they do not know.
	Type string `json:"type"`

	// Payload carries the event-specific data serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the event was created.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *GradingEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// AttemptParkedPayload is the payload of an EventAttemptParked event.
type AttemptParkedPayload struct {
	AttemptID uuid.UUID `json:"attempt_id"`
}

// NewAttemptParkedEvent creates an event announcing the given parked attempt.
func NewAttemptParkedEvent(attemptID uuid.UUID) (*GradingEvent, error) {
	payload, err := json.Marshal(AttemptParkedPayload{AttemptID: attemptID})
	if err != nil {
		return nil, err
	}

	return &GradingEvent{
		ID:        uuid.New(),
		Type:      EventAttemptParked,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Handler processes grading events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *GradingEvent) error
}

// Emitter publishes grading events to registered handlers, letting services
// announce without direct knowledge of handlers.
type Emitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *GradingEvent) error
}
