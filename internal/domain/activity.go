package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActivityType distinguishes how an activity is answered and graded.
type ActivityType string

// Possible activity type values.
const (
	// ActivityMCQ is a multiple-choice question, graded synchronously
	// against an answer key.
	ActivityMCQ ActivityType = "mcq"

	// ActivitySAQ is a short-answer question, graded by the external
	// feedback generator against a rubric.
	ActivitySAQ ActivityType = "saq"

	// ActivityLAQ is a long-answer question, graded like SAQ but with a
	// more involved rubric.
	ActivityLAQ ActivityType = "laq"
)

// Difficulty bounds. Difficulty 1 roughly corresponds to CEFR A1 and 6 to C2.
const (
	MinDifficulty = 1
	MaxDifficulty = 6
)

// Activity-specific validation errors.
var (
	ErrActivityIDEmpty        = errors.New("activity ID cannot be empty")
	ErrActivityContentEmpty   = errors.New("activity content cannot be empty")
	ErrActivityContentBadJSON = errors.New("activity content must be valid JSON")
	ErrInvalidDifficulty      = errors.New("activity difficulty out of range")
)

// Activity is an immutable content unit. Content generation lives outside
// this service; activities are consumed read-only. The content is stored as
// JSONB so that question formats can evolve without schema changes.
type Activity struct {
	ID         uuid.UUID       `json:"id"`
	Type       ActivityType    `json:"type"`
	Difficulty int             `json:"difficulty"`
	Content    json.RawMessage `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ActivityContent is the expected shape of the content field. Options carry
// per-option credit so MCQs can award partial credit by rubric weight;
// Rubric is the grading guidance handed to the feedback generator for
// open-ended activities.
type ActivityContent struct {
	Prompt  string           `json:"prompt"`
	Options []ActivityOption `json:"options,omitempty"`
	Rubric  string           `json:"rubric,omitempty"`
}

// ActivityOption is a single MCQ choice.
type ActivityOption struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Credit float64 `json:"credit"` // 1 for correct, 0 for wrong, fractional for partial credit
}

// Validate checks if the Activity has valid data.
func (a *Activity) Validate() error {
	if a.ID == uuid.Nil {
		return ErrActivityIDEmpty
	}
	switch a.Type {
	case ActivityMCQ, ActivitySAQ, ActivityLAQ:
	default:
		return ErrInvalidActivityType
	}
	if a.Difficulty < MinDifficulty || a.Difficulty > MaxDifficulty {
		return ErrInvalidDifficulty
	}
	if len(a.Content) == 0 {
		return ErrActivityContentEmpty
	}
	var js json.RawMessage
	if err := json.Unmarshal(a.Content, &js); err != nil {
		return ErrActivityContentBadJSON
	}
	return nil
}

// ParseContent decodes the JSONB content into its structured form.
func (a *Activity) ParseContent() (*ActivityContent, error) {
	var content ActivityContent
	if err := json.Unmarshal(a.Content, &content); err != nil {
		return nil, ErrActivityContentBadJSON
	}
	return &content, nil
}
