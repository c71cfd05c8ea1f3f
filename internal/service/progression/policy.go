package progression

import (
	"math"

	"github.com/cadence-learn/cadence-api/internal/config"
	"github.com/cadence-learn/cadence-api/internal/domain"
)

// Policy defaults. The curve and band widths are product policy, so they are
// configurable rather than hard-coded; these values are the shipped tuning.
const (
	DefaultXPPerLevel     = 100
	DefaultCEFRWindow     = 20
	DefaultCEFRHysteresis = 0.05
)

// Base XP per difficulty step for each activity type. Open-ended work pays
// more than recognition tasks at the same difficulty.
var baseXPPerDifficulty = map[domain.ActivityType]int{
	domain.ActivityMCQ: 10,
	domain.ActivitySAQ: 15,
	domain.ActivityLAQ: 20,
}

// Policy holds the progression tuning constants.
type Policy struct {
	// XPPerLevel scales the level curve: level = floor(sqrt(xp / XPPerLevel)).
	XPPerLevel int

	// CEFRWindow is how many recent graded attempts feed the CEFR estimate.
	CEFRWindow int

	// CEFRHysteresis is the band around a CEFR boundary that the smoothed
	// estimate must clear before the level moves.
	CEFRHysteresis float64
}

// NewDefaultPolicy returns the shipped tuning.
func NewDefaultPolicy() Policy {
	return Policy{
		XPPerLevel:     DefaultXPPerLevel,
		CEFRWindow:     DefaultCEFRWindow,
		CEFRHysteresis: DefaultCEFRHysteresis,
	}
}

// NewPolicy builds a Policy from configuration, falling back to defaults
// for unset values.
func NewPolicy(cfg config.ProgressionConfig) Policy {
	policy := NewDefaultPolicy()
	if cfg.XPPerLevel > 0 {
		policy.XPPerLevel = cfg.XPPerLevel
	}
	if cfg.CEFRWindow > 0 {
		policy.CEFRWindow = cfg.CEFRWindow
	}
	if cfg.CEFRHysteresis > 0 {
		policy.CEFRHysteresis = cfg.CEFRHysteresis
	}
	return policy
}

// XPDelta computes the experience awarded for a graded attempt.
// Never negative: a zero score earns zero, not a penalty.
func (p Policy) XPDelta(activityType domain.ActivityType, difficulty int, score float64) int {
	base, ok := baseXPPerDifficulty[activityType]
	if !ok {
		base = baseXPPerDifficulty[domain.ActivityMCQ]
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return int(math.Round(float64(base*difficulty) * score))
}

// Level maps cumulative XP onto the level curve. The curve is monotonic, so
// levels never go down.
func (p Policy) Level(xp int) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Floor(math.Sqrt(float64(xp) / float64(p.XPPerLevel))))
}

// scoredAttempt pairs a graded attempt's score with the difficulty of its
// activity, newest first.
type scoredAttempt struct {
	Score      float64
	Difficulty int
}

// cefrBandCount is the number of CEFR bands (A1 through C2).
const cefrBandCount = 6

// EstimateCEFR recomputes a student's CEFR band from recent graded work.
//
// Each attempt maps to a point on the [0, 1] proficiency continuum (six
// equal bands, position within a band set by the score), smoothed with an
// exponentially-weighted moving average that favors recent attempts. The
// band only moves when the smoothed estimate clears the boundary plus the
// hysteresis margin, and at most one band per recomputation, so a single
// outlier score can never swing the level.
func (p Policy) EstimateCEFR(current domain.CEFRLevel, recent []scoredAttempt) domain.CEFRLevel {
	if len(recent) == 0 {
		return current
	}

	// EWMA over the window, newest first. alpha = 2/(N+1) is the standard
	// span-based smoothing constant.
	alpha := 2.0 / (float64(p.CEFRWindow) + 1)
	var estimate, weight float64
	w := 1.0
	for _, a := range recent {
		point := (float64(a.Difficulty-1) + a.Score) / cefrBandCount
		estimate += w * point
		weight += w
		w *= 1 - alpha
	}
	estimate /= weight

	idx := domain.CEFRIndex(current)
	upper := float64(idx+1) / cefrBandCount
	lower := float64(idx) / cefrBandCount

	switch {
	case estimate > upper+p.CEFRHysteresis:
		return domain.CEFRAt(idx + 1)
	case estimate < lower-p.CEFRHysteresis:
		return domain.CEFRAt(idx - 1)
	default:
		return current
	}
}
