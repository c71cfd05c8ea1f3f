package srs

import (
	"math"
	"time"

	"github.com/cadence-learn/cadence-api/internal/domain"
)

// calculateNewEaseFactor determines the new ease factor after an answer of
// quality q.
//
// For successful recalls the adjustment follows the SM-2 family formula on a
// normalized quality scale:
//
//	delta = 0.1 - (1-q) * (0.08 + (1-q)*0.02)
//
// so a perfect answer (q=1) gains the full 0.1 while a barely passing answer
// loses a little ease. A lapse applies the flat LapseEasePenalty instead.
// The result is always clamped to [MinEaseFactor, MaxEaseFactor].
func calculateNewEaseFactor(currentEF, q float64, lapsed bool, params *Params) float64 {
	var newEF float64
	if lapsed {
		newEF = currentEF - params.LapseEasePenalty
	} else {
		newEF = currentEF + (0.1 - (1-q)*(0.08+(1-q)*0.02))
	}

	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	if newEF > params.MaxEaseFactor {
		newEF = params.MaxEaseFactor
	}

	return newEF
}

// calculateNewInterval determines the next interval in days.
//
// A lapse resets the interval to LapseIntervalDays. A successful recall
// multiplies the previous interval by the (already updated) ease factor,
// with the previous interval floored at 1 so the first successful review of
// a new item produces a real interval instead of 0 * ef.
func calculateNewInterval(currentInterval int, easeFactor float64, lapsed bool, params *Params) int {
	if lapsed {
		return params.LapseIntervalDays
	}

	previous := currentInterval
	if previous < 1 {
		previous = 1
	}

	return int(math.Round(float64(previous) * easeFactor))
}

// calculateNextStage determines the state-machine position after the
// transition. Lapses always move to Lapsed; successes move to Review once
// the streak reaches the threshold, otherwise (back) to Learning.
func calculateNextStage(streak int, lapsed bool, params *Params) domain.ReviewStage {
	if lapsed {
		return domain.StageLapsed
	}
	if streak >= params.ReviewStreakThreshold {
		return domain.StageReview
	}
	return domain.StageLearning
}

// calculateNextState applies a graded attempt of quality q to a review
// state, returning a new state and leaving the input untouched. Given
// identical (state, q, gradedAt) inputs the output is always identical,
// which is what makes retries and replay-based tests safe.
func calculateNextState(
	state *domain.ReviewState,
	q float64,
	gradedAt time.Time,
	params *Params,
) *domain.ReviewState {
	gradedAt = gradedAt.UTC()
	lapsed := q < params.LapseQualityThreshold

	next := &domain.ReviewState{
		StudentID:     state.StudentID,
		ActivityID:    state.ActivityID,
		Stage:         state.Stage,
		EaseFactor:    state.EaseFactor,
		IntervalDays:  state.IntervalDays,
		DueAt:         state.DueAt,
		Streak:        state.Streak,
		Lapses:        state.Lapses,
		LastGradedAt:  state.LastGradedAt,
		TotalReviews:  state.TotalReviews,
		OnTimeReviews: state.OnTimeReviews,
		CreatedAt:     state.CreatedAt,
		UpdatedAt:     state.UpdatedAt,
	}

	if lapsed {
		next.Lapses++
		next.Streak = 0
	} else {
		next.Streak++
	}

	next.EaseFactor = calculateNewEaseFactor(state.EaseFactor, q, lapsed, params)
	next.IntervalDays = calculateNewInterval(state.IntervalDays, next.EaseFactor, lapsed, params)
	next.Stage = calculateNextStage(next.Streak, lapsed, params)
	next.DueAt = gradedAt.AddDate(0, 0, next.IntervalDays)

	next.TotalReviews++
	if !gradedAt.After(state.DueAt.AddDate(0, 0, params.OnTimeGraceDays)) {
		next.OnTimeReviews++
	}

	next.LastGradedAt = gradedAt
	next.UpdatedAt = gradedAt

	return next
}
