package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/domain/srs"
	"github.com/cadence-learn/cadence-api/internal/events"
	"github.com/cadence-learn/cadence-api/internal/feedback"
	"github.com/cadence-learn/cadence-api/internal/service/progression"
	"github.com/cadence-learn/cadence-api/internal/store"
	"github.com/cadence-learn/cadence-api/internal/testutil"
)

type testEnv struct {
	svc       *Service
	attempts  *fakeAttemptStore
	states    *fakeReviewStateStore
	students  *fakeStudentStore
	deltas    *fakeProgressionStore
	generator *fakeGenerator
	emitter   *events.InMemoryEmitter
	student   *domain.Student
}

func newTestEnv(t *testing.T, generator *fakeGenerator, activities ...*domain.Activity) *testEnv {
	t.Helper()

	student, err := domain.NewStudent(uuid.New(), uuid.New())
	require.NoError(t, err)

	attempts := newFakeAttemptStore()
	states := newFakeReviewStateStore()
	students := newFakeStudentStore(student)
	deltas := newFakeProgressionStore()
	activityStore := newFakeActivityStore(activities...)
	db := testutil.StubDB()
	t.Cleanup(func() { _ = db.Close() })

	progressionSvc := progression.NewService(
		db,
		students,
		attempts,
		activityStore,
		deltas,
		progression.NewDefaultPolicy(),
		slog.Default(),
	)

	if generator == nil {
		generator = &fakeGenerator{
			generate: func(context.Context, string, string, string) (*feedback.Result, error) {
				return nil, errors.New("generator should not be called")
			},
		}
	}

	emitter := events.NewInMemoryEmitter(slog.Default())

	svc := NewService(
		db,
		attempts,
		activityStore,
		states,
		srs.NewDefaultService(),
		progressionSvc,
		generator,
		emitter,
		slog.Default(),
	)

	return &testEnv{
		svc:       svc,
		attempts:  attempts,
		states:    states,
		students:  students,
		deltas:    deltas,
		generator: generator,
		emitter:   emitter,
		student:   student,
	}
}

func mcqActivity(difficulty int) *domain.Activity {
	content := `{"prompt":"Pick the correct form.","options":[` +
		`{"id":"a","text":"goes","credit":1},` +
		`{"id":"b","text":"go","credit":0},` +
		`{"id":"c","text":"going","credit":0.5}]}`
	return &domain.Activity{
		ID:         uuid.New(),
		Type:       domain.ActivityMCQ,
		Difficulty: difficulty,
		Content:    json.RawMessage(content),
		CreatedAt:  time.Now().UTC(),
	}
}

func saqActivity(difficulty int) *domain.Activity {
	content := `{"prompt":"Describe your weekend.","rubric":"Award full credit for a coherent past-tense narrative."}`
	return &domain.Activity{
		ID:         uuid.New(),
		Type:       domain.ActivitySAQ,
		Difficulty: difficulty,
		Content:    json.RawMessage(content),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestGrade_MCQSynchronous(t *testing.T) {
	t.Parallel()

	activity := mcqActivity(2)
	env := newTestEnv(t, nil, activity)
	ctx := context.Background()
	submittedAt := time.Now().UTC()

	attempt, err := env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: submittedAt,
		Answer:      "a",
	})
	require.NoError(t, err)
	require.NotNil(t, attempt)

	assert.True(t, attempt.Graded())
	require.NotNil(t, attempt.Score)
	assert.Equal(t, 1.0, *attempt.Score)
	assert.Nil(t, attempt.Feedback, "MCQ grading produces no feedback text")

	// Review state was created on first exposure and scheduled forward.
	state, err := env.states.Get(ctx, env.student.ID, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.TotalReviews)
	assert.True(t, state.DueAt.After(submittedAt))

	// Exactly one ledger entry, with XP for a difficulty-2 MCQ.
	delta, err := env.deltas.GetDelta(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, delta.XPDelta)

	student, err := env.students.GetByID(ctx, env.student.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, student.XP)
}

func TestGrade_MCQPartialCredit(t *testing.T) {
	t.Parallel()

	activity := mcqActivity(1)
	env := newTestEnv(t, nil, activity)

	attempt, err := env.svc.Grade(context.Background(), RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "c",
	})
	require.NoError(t, err)
	require.NotNil(t, attempt.Score)
	assert.Equal(t, 0.5, *attempt.Score)
}

func TestGrade_MCQUnknownOption(t *testing.T) {
	t.Parallel()

	activity := mcqActivity(1)
	env := newTestEnv(t, nil, activity)
	ctx := context.Background()
	submittedAt := time.Now().UTC()

	_, err := env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: submittedAt,
		Answer:      "z",
	})
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	// The failure is terminal: the stored row is grading_failed, so the
	// reconciliation sweep never picks it up.
	stored, err := env.attempts.GetByKey(ctx, env.student.ID, activity.ID, submittedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusFailed, stored.Status)

	pending, err := env.attempts.ListPending(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGrade_ActivityNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	_, err := env.svc.Grade(context.Background(), RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  uuid.New(),
		SubmittedAt: time.Now().UTC(),
		Answer:      "a",
	})
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
}

func TestGrade_DuplicateSubmissionReturnsPriorAttempt(t *testing.T) {
	t.Parallel()

	activity := mcqActivity(1)
	env := newTestEnv(t, nil, activity)
	ctx := context.Background()
	submittedAt := time.Now().UTC()

	raw := RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: submittedAt,
		Answer:      "a",
	}

	first, err := env.svc.Grade(ctx, raw)
	require.NoError(t, err)

	second, err := env.svc.Grade(ctx, raw)
	assert.ErrorIs(t, err, ErrAlreadyGraded)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
}

func TestGrade_DuplicateOfPendingAttempt(t *testing.T) {
	t.Parallel()

	activity := saqActivity(1)
	generator := &fakeGenerator{
		generate: func(context.Context, string, string, string) (*feedback.Result, error) {
			return nil, feedback.ErrTransientFailure
		},
	}
	env := newTestEnv(t, generator, activity)
	ctx := context.Background()

	raw := RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "We go to park yesterday.",
	}

	first, err := env.svc.Grade(ctx, raw)
	assert.ErrorIs(t, err, ErrGradingPending)
	require.NotNil(t, first)

	second, err := env.svc.Grade(ctx, raw)
	assert.ErrorIs(t, err, ErrGradingPending)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	// The duplicate resolved to the stored row without another generator call.
	assert.Equal(t, 1, env.generator.callCount())
}

func TestGrade_InvalidGeneratorResponseIsTerminal(t *testing.T) {
	t.Parallel()

	activity := saqActivity(2)
	generator := &fakeGenerator{
		generate: func(context.Context, string, string, string) (*feedback.Result, error) {
			return nil, fmt.Errorf("%w: score out of range", feedback.ErrInvalidResponse)
		},
	}
	env := newTestEnv(t, generator, activity)
	ctx := context.Background()
	submittedAt := time.Now().UTC()

	raw := RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: submittedAt,
		Answer:      "Yesterday I go swimming.",
	}

	_, err := env.svc.Grade(ctx, raw)
	assert.ErrorIs(t, err, feedback.ErrInvalidResponse)

	// The row flips to grading_failed, so the sweep never sees it and the
	// generator is never invoked for it again.
	stored, err := env.attempts.GetByKey(ctx, env.student.ID, activity.ID, submittedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusFailed, stored.Status)

	pending, err := env.attempts.ListPending(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = env.svc.Regrade(ctx, stored.ID)
	assert.ErrorIs(t, err, ErrGradingFailed)

	second, err := env.svc.Grade(ctx, raw)
	assert.ErrorIs(t, err, ErrGradingFailed)
	require.NotNil(t, second)
	assert.Equal(t, stored.ID, second.ID)

	assert.Equal(t, 1, env.generator.callCount())
}

func TestGrade_ContentBlockedIsTerminal(t *testing.T) {
	t.Parallel()

	activity := saqActivity(1)
	generator := &fakeGenerator{
		generate: func(context.Context, string, string, string) (*feedback.Result, error) {
			return nil, feedback.ErrContentBlocked
		},
	}
	env := newTestEnv(t, generator, activity)
	ctx := context.Background()
	submittedAt := time.Now().UTC()

	_, err := env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: submittedAt,
		Answer:      "...",
	})
	assert.ErrorIs(t, err, feedback.ErrContentBlocked)

	stored, err := env.attempts.GetByKey(ctx, env.student.ID, activity.ID, submittedAt)
	require.NoError(t, err)
	assert.True(t, stored.Failed())
}

func TestGrade_TransientGeneratorFailureParksAttempt(t *testing.T) {
	t.Parallel()

	activity := saqActivity(2)
	generator := &fakeGenerator{
		generate: func(context.Context, string, string, string) (*feedback.Result, error) {
			return nil, fmt.Errorf("%w: upstream 503", feedback.ErrTransientFailure)
		},
	}
	env := newTestEnv(t, generator, activity)
	ctx := context.Background()

	attempt, err := env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "Last weekend I visited my grandmother.",
	})
	assert.ErrorIs(t, err, ErrGradingPending)
	require.NotNil(t, attempt)
	assert.Equal(t, domain.AttemptStatusPending, attempt.Status)

	// The attempt is persisted for the reconciliation sweep, with no review
	// state transition and no progression entry yet.
	stored, getErr := env.attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.AttemptStatusPending, stored.Status)

	_, stateErr := env.states.Get(ctx, env.student.ID, activity.ID)
	assert.ErrorIs(t, stateErr, store.ErrReviewStateNotFound)

	_, deltaErr := env.deltas.GetDelta(ctx, attempt.ID)
	assert.ErrorIs(t, deltaErr, store.ErrDeltaNotFound)
}

func TestGrade_ParkedAttemptIsAnnounced(t *testing.T) {
	t.Parallel()

	activity := saqActivity(1)
	generator := &fakeGenerator{
		generate: func(context.Context, string, string, string) (*feedback.Result, error) {
			return nil, feedback.ErrTransientFailure
		},
	}
	env := newTestEnv(t, generator, activity)
	handler := &recordingHandler{}
	env.emitter.RegisterHandler(handler)

	attempt, err := env.svc.Grade(context.Background(), RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "I am study English.",
	})
	require.ErrorIs(t, err, ErrGradingPending)
	require.NotNil(t, attempt)

	received := handler.received()
	require.Len(t, received, 1)
	assert.Equal(t, events.EventAttemptParked, received[0].Type)

	var payload events.AttemptParkedPayload
	require.NoError(t, received[0].UnmarshalPayload(&payload))
	assert.Equal(t, attempt.ID, payload.AttemptID)
}

func TestGrade_ConcurrentDuplicateSubmissions(t *testing.T) {
	t.Parallel()

	activity := saqActivity(2)
	generator := &fakeGenerator{
		generate: func(context.Context, string, string, string) (*feedback.Result, error) {
			// Hold the lock long enough for the second caller to pile up.
			time.Sleep(10 * time.Millisecond)
			return &feedback.Result{Score: 0.9, Explanation: "Solid answer."}, nil
		},
	}
	env := newTestEnv(t, generator, activity)

	raw := RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "Last summer I travelled to the coast.",
	}

	type outcome struct {
		attempt *domain.Attempt
		err     error
	}
	results := make(chan outcome, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt, err := env.svc.Grade(context.Background(), raw)
			results <- outcome{attempt: attempt, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var graded, duplicates int
	ids := make(map[uuid.UUID]struct{})
	for res := range results {
		require.NotNil(t, res.attempt)
		ids[res.attempt.ID] = struct{}{}
		switch {
		case res.err == nil:
			graded++
		case errors.Is(res.err, ErrAlreadyGraded):
			duplicates++
		default:
			t.Fatalf("unexpected grading outcome: %v", res.err)
		}
	}

	assert.Equal(t, 1, graded)
	assert.Equal(t, 1, duplicates)
	assert.Len(t, ids, 1, "both callers resolve to the same attempt")
	assert.Equal(t, 1, env.generator.callCount())
}

func TestGrade_SAQSuccess(t *testing.T) {
	t.Parallel()

	activity := saqActivity(3)
	generator := &fakeGenerator{
		generate: func(_ context.Context, _, _, answer string) (*feedback.Result, error) {
			require.NotEmpty(t, answer)
			return &feedback.Result{Score: 0.8, Explanation: "Good narrative, minor tense errors."}, nil
		},
	}
	env := newTestEnv(t, generator, activity)

	attempt, err := env.svc.Grade(context.Background(), RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "Last weekend I went hiking with my brother.",
	})
	require.NoError(t, err)

	assert.True(t, attempt.Graded())
	require.NotNil(t, attempt.Score)
	assert.Equal(t, 0.8, *attempt.Score)
	require.NotNil(t, attempt.Feedback)
	assert.Equal(t, "Good narrative, minor tense errors.", *attempt.Feedback)
}

func TestRegrade_FinishesParkedAttempt(t *testing.T) {
	t.Parallel()

	activity := saqActivity(1)
	unreachable := true
	generator := &fakeGenerator{}
	generator.generate = func(context.Context, string, string, string) (*feedback.Result, error) {
		if unreachable {
			return nil, feedback.ErrTransientFailure
		}
		return &feedback.Result{Score: 1.0, Explanation: "Well done."}, nil
	}
	env := newTestEnv(t, generator, activity)
	ctx := context.Background()

	parked, err := env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "I study every day.",
	})
	require.ErrorIs(t, err, ErrGradingPending)

	// Generator recovers; the sweep retries the parked attempt.
	unreachable = false
	graded, err := env.svc.Regrade(ctx, parked.ID)
	require.NoError(t, err)
	assert.True(t, graded.Graded())
	require.NotNil(t, graded.Score)
	assert.Equal(t, 1.0, *graded.Score)

	// The outcome was fully applied.
	_, err = env.deltas.GetDelta(ctx, parked.ID)
	assert.NoError(t, err)
}

func TestRegrade_AlreadyGraded(t *testing.T) {
	t.Parallel()

	activity := mcqActivity(1)
	env := newTestEnv(t, nil, activity)
	ctx := context.Background()

	attempt, err := env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "a",
	})
	require.NoError(t, err)

	regraded, err := env.svc.Regrade(ctx, attempt.ID)
	assert.ErrorIs(t, err, ErrAlreadyGraded)
	require.NotNil(t, regraded)
	assert.Equal(t, attempt.ID, regraded.ID)
}

func TestRegrade_UnknownAttempt(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	_, err := env.svc.Regrade(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrAttemptNotFound)
}

func TestGrade_SecondAttemptStrengthensSchedule(t *testing.T) {
	t.Parallel()

	activity := mcqActivity(1)
	env := newTestEnv(t, nil, activity)
	ctx := context.Background()

	first, err := env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: time.Now().UTC(),
		Answer:      "a",
	})
	require.NoError(t, err)

	afterFirst, err := env.states.Get(ctx, env.student.ID, activity.ID)
	require.NoError(t, err)

	_, err = env.svc.Grade(ctx, RawAttempt{
		StudentID:   env.student.ID,
		ActivityID:  activity.ID,
		SubmittedAt: first.SubmittedAt.Add(time.Minute),
		Answer:      "a",
	})
	require.NoError(t, err)

	afterSecond, err := env.states.Get(ctx, env.student.ID, activity.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, afterSecond.TotalReviews)
	assert.False(t, afterSecond.DueAt.Before(afterFirst.DueAt))
}
