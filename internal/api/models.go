package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response payload
type LoginResponse struct {
	Token string `json:"token"`
}

// AttemptResponse represents a graded or pending attempt. Score, Feedback
// and GradedAt are absent while grading is still in flight.
type AttemptResponse struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	ActivityID  string     `json:"activity_id"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Score       *float64   `json:"score,omitempty"`
	Feedback    *string    `json:"feedback,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
}

func attemptToResponse(attempt *domain.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:          attempt.ID.String(),
		StudentID:   attempt.StudentID.String(),
		ActivityID:  attempt.ActivityID.String(),
		Status:      string(attempt.Status),
		SubmittedAt: attempt.SubmittedAt,
		Score:       attempt.Score,
		Feedback:    attempt.Feedback,
		GradedAt:    attempt.GradedAt,
	}
}

// ActivityResponse represents an activity handed to a student. The answer
// key is stripped from MCQ content before it leaves the server.
type ActivityResponse struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Difficulty int         `json:"difficulty"`
	Content    interface{} `json:"content"`
}

// redactedOption is an MCQ choice with the credit weight removed.
type redactedOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// redactedContent is activity content safe to show a student mid-attempt.
type redactedContent struct {
	Prompt  string           `json:"prompt"`
	Options []redactedOption `json:"options,omitempty"`
}

func activityToResponse(activity *domain.Activity) ActivityResponse {
	resp := ActivityResponse{
		ID:         activity.ID.String(),
		Type:       string(activity.Type),
		Difficulty: activity.Difficulty,
	}

	content, err := activity.ParseContent()
	if err != nil {
		// Malformed stored content; expose nothing rather than the raw blob.
		return resp
	}

	redacted := redactedContent{Prompt: content.Prompt}
	for _, opt := range content.Options {
		redacted.Options = append(redacted.Options, redactedOption{ID: opt.ID, Text: opt.Text})
	}
	resp.Content = redacted
	return resp
}

// AssignmentResponse represents a teacher assignment
type AssignmentResponse struct {
	ID          string     `json:"id"`
	ClassroomID string     `json:"classroom_id"`
	CreatedBy   string     `json:"created_by"`
	ActivityIDs []string   `json:"activity_ids"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func assignmentToResponse(assignment *domain.Assignment) AssignmentResponse {
	ids := make([]string, len(assignment.ActivityIDs))
	for i, id := range assignment.ActivityIDs {
		ids[i] = id.String()
	}
	return AssignmentResponse{
		ID:          assignment.ID.String(),
		ClassroomID: assignment.ClassroomID.String(),
		CreatedBy:   assignment.CreatedBy.String(),
		ActivityIDs: ids,
		DueAt:       assignment.DueAt,
		CreatedAt:   assignment.CreatedAt,
	}
}

// ClassroomResponse represents a classroom as seen by an enrolled student.
// The enrollment code is omitted; only teachers may see or rotate it.
type ClassroomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func classroomToResponse(classroom *domain.Classroom) ClassroomResponse {
	return ClassroomResponse{
		ID:   classroom.ID.String(),
		Name: classroom.Name,
	}
}

// parsePathUUID parses a chi URL parameter as a UUID.
func parsePathUUID(raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
