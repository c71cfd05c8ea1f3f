// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword is returned when a password doesn't meet requirements.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidActivityType is returned when an activity type is not recognized.
	ErrInvalidActivityType = errors.New("invalid activity type")

	// ErrInvalidCEFRLevel is returned when a CEFR level is not recognized.
	ErrInvalidCEFRLevel = errors.New("invalid CEFR level")

	// ErrInvalidQuality is returned when a normalized answer quality is
	// outside the [0, 1] range.
	ErrInvalidQuality = errors.New("quality must be between 0 and 1")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
