package analytics

import "github.com/cadence-learn/cadence-api/internal/config"

// Metric defaults. Weights and windows are product policy, exposed through
// configuration; these are the shipped values.
const (
	DefaultOnTimeWeight  = 0.4
	DefaultOverdueWeight = 0.4
	DefaultStreakWeight  = 0.2

	DefaultStreakTarget = 5

	DefaultVelocityWindowDays   = 14
	DefaultVelocityHalfLifeDays = 7.0
)

// Params holds the health and velocity tuning constants.
type Params struct {
	// Health term weights; they sum to 1.
	OnTimeWeight  float64
	OverdueWeight float64
	StreakWeight  float64

	// StreakTarget is the average streak at which the streak factor
	// saturates at 1.
	StreakTarget int

	// Velocity EWMA parameters.
	VelocityWindowDays   int
	VelocityHalfLifeDays float64
}

// NewDefaultParams returns the shipped tuning.
func NewDefaultParams() Params {
	return Params{
		OnTimeWeight:         DefaultOnTimeWeight,
		OverdueWeight:        DefaultOverdueWeight,
		StreakWeight:         DefaultStreakWeight,
		StreakTarget:         DefaultStreakTarget,
		VelocityWindowDays:   DefaultVelocityWindowDays,
		VelocityHalfLifeDays: DefaultVelocityHalfLifeDays,
	}
}

// NewParams builds Params from configuration, falling back to defaults for
// unset values. The three weights are taken together or not at all, since a
// partial override would no longer sum to 1.
func NewParams(cfg config.AnalyticsConfig) Params {
	params := NewDefaultParams()
	if cfg.OnTimeWeight > 0 || cfg.OverdueWeight > 0 || cfg.StreakWeight > 0 {
		params.OnTimeWeight = cfg.OnTimeWeight
		params.OverdueWeight = cfg.OverdueWeight
		params.StreakWeight = cfg.StreakWeight
	}
	if cfg.StreakTarget > 0 {
		params.StreakTarget = cfg.StreakTarget
	}
	if cfg.VelocityWindowDays > 0 {
		params.VelocityWindowDays = cfg.VelocityWindowDays
	}
	if cfg.VelocityHalfLifeDays > 0 {
		params.VelocityHalfLifeDays = cfg.VelocityHalfLifeDays
	}
	return params
}
