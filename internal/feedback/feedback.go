// Package feedback provides the interface for grading open-ended answers
// through an external language-model service. It abstracts the details of
// the LLM API integration (Gemini), so the grading engine can score
// short-answer and long-answer activities without coupling to a specific
// external service.
package feedback

import "context"

// Result is the outcome of grading one open-ended answer.
type Result struct {
	// Score is the rubric-based quality of the answer in [0, 1].
	Score float64 `json:"score"`

	// Explanation is the student-facing feedback text.
	Explanation string `json:"explanation"`
}

// Generator grades an open-ended answer against a rubric.
//
// Implementations must distinguish transient failures (reachability,
// timeouts) from permanent ones: callers park the attempt for later
// reconciliation on ErrTransientFailure but fail fast on anything else.
type Generator interface {
	// GenerateFeedback scores the answer against the rubric for the given
	// prompt. The returned score is always within [0, 1].
	//
	// Returns ErrTransientFailure when the service could not be reached
	// after retries, and ErrInvalidResponse when the service responded
	// with something unusable.
	GenerateFeedback(ctx context.Context, prompt, rubric, answer string) (*Result, error)
}
