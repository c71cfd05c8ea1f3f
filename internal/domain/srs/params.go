// Package srs implements the spaced-repetition scheduling algorithm: a pure,
// deterministic state machine over domain.ReviewState driven by normalized
// answer quality.
package srs

// Params defines all configurable parameters for the SRS algorithm.
type Params struct {
	// Ease factor limits.
	MinEaseFactor float64
	MaxEaseFactor float64

	// LapseQualityThreshold is the quality below which an answer counts as
	// a lapse rather than a successful recall.
	LapseQualityThreshold float64

	// LapseEasePenalty is subtracted from the ease factor on a lapse.
	LapseEasePenalty float64

	// LapseIntervalDays is the interval an item falls back to after a lapse.
	LapseIntervalDays int

	// ReviewStreakThreshold is the consecutive-success count at which an
	// item graduates from Learning to Review.
	ReviewStreakThreshold int

	// OnTimeGraceDays is how far past the due date a review still counts as
	// on time for the on-time counters. An item due today and reviewed
	// later the same day should not be penalized.
	OnTimeGraceDays int
}

// ParamsConfig allows overriding the default parameters when creating a new
// Params instance. Zero values leave the corresponding default in place.
type ParamsConfig struct {
	MinEaseFactor         float64
	MaxEaseFactor         float64
	LapseQualityThreshold float64
	LapseEasePenalty      float64
	LapseIntervalDays     int
	ReviewStreakThreshold int
	OnTimeGraceDays       int
}

// NewDefaultParams creates a new Params instance with default values.
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor:         1.3,
		MaxEaseFactor:         2.5,
		LapseQualityThreshold: 0.6,
		LapseEasePenalty:      0.2,
		LapseIntervalDays:     1,
		ReviewStreakThreshold: 2,
		OnTimeGraceDays:       1,
	}
}

// NewParams creates a new Params instance with custom configuration.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.MaxEaseFactor > 0 {
		params.MaxEaseFactor = config.MaxEaseFactor
	}
	if config.LapseQualityThreshold > 0 {
		params.LapseQualityThreshold = config.LapseQualityThreshold
	}
	if config.LapseEasePenalty > 0 {
		params.LapseEasePenalty = config.LapseEasePenalty
	}
	if config.LapseIntervalDays > 0 {
		params.LapseIntervalDays = config.LapseIntervalDays
	}
	if config.ReviewStreakThreshold > 0 {
		params.ReviewStreakThreshold = config.ReviewStreakThreshold
	}
	if config.OnTimeGraceDays > 0 {
		params.OnTimeGraceDays = config.OnTimeGraceDays
	}

	return params
}
