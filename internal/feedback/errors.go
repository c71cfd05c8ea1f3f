package feedback

import "errors"

// Common errors returned by feedback generators.
var (
	// ErrGenerationFailed is returned when feedback generation fails for
	// any general reason.
	ErrGenerationFailed = errors.New("failed to generate feedback for answer")

	// ErrInvalidResponse is returned when the LLM response cannot be
	// parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to
	// safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might
	// resolve on retry. Attempts failing with this error are parked as
	// grading_pending rather than rejected.
	ErrTransientFailure = errors.New("transient error during feedback generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyAnswer is returned when there is no answer text to grade.
	ErrEmptyAnswer = errors.New("answer text cannot be empty")
)
