package grading

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/events"
	"github.com/cadence-learn/cadence-api/internal/feedback"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// recordingHandler captures emitted events for assertions.
type recordingHandler struct {
	mu     sync.Mutex
	events []*events.GradingEvent
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *events.GradingEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) received() []*events.GradingEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*events.GradingEvent, len(h.events))
	copy(out, h.events)
	return out
}

// fakeActivityStore is an in-memory store.ActivityStore.
type fakeActivityStore struct {
	activities map[uuid.UUID]*domain.Activity
}

func newFakeActivityStore(activities ...*domain.Activity) *fakeActivityStore {
	s := &fakeActivityStore{activities: make(map[uuid.UUID]*domain.Activity)}
	for _, a := range activities {
		s.activities[a.ID] = a
	}
	return s
}

func (s *fakeActivityStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Activity, error) {
	activity, ok := s.activities[id]
	if !ok {
		return nil, store.ErrActivityNotFound
	}
	return activity, nil
}

func (s *fakeActivityStore) GetMultiple(_ context.Context, ids []uuid.UUID) ([]*domain.Activity, error) {
	out := make([]*domain.Activity, 0, len(ids))
	for _, id := range ids {
		activity, ok := s.activities[id]
		if !ok {
			return nil, store.ErrActivityNotFound
		}
		out = append(out, activity)
	}
	return out, nil
}

func (s *fakeActivityStore) ListUnseen(
	_ context.Context,
	_ uuid.UUID,
	_ int,
	_ int,
) ([]*domain.Activity, error) {
	return nil, nil
}

// fakeAttemptStore is an in-memory store.AttemptStore enforcing the
// idempotency key constraint.
type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*domain.Attempt
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[uuid.UUID]*domain.Attempt)}
}

func attemptKey(studentID, activityID uuid.UUID, submittedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%d", studentID, activityID, submittedAt.UTC().UnixNano())
}

func copyAttempt(a *domain.Attempt) *domain.Attempt {
	c := *a
	return &c
}

func (s *fakeAttemptStore) Create(_ context.Context, attempt *domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(attempt.StudentID, attempt.ActivityID, attempt.SubmittedAt)
	for _, existing := range s.attempts {
		if attemptKey(existing.StudentID, existing.ActivityID, existing.SubmittedAt) == key {
			return store.ErrAttemptExists
		}
	}
	s.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (s *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, store.ErrAttemptNotFound
	}
	return copyAttempt(attempt), nil
}

func (s *fakeAttemptStore) GetByKey(
	_ context.Context,
	studentID, activityID uuid.UUID,
	submittedAt time.Time,
) (*domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(studentID, activityID, submittedAt)
	for _, attempt := range s.attempts {
		if attemptKey(attempt.StudentID, attempt.ActivityID, attempt.SubmittedAt) == key {
			return copyAttempt(attempt), nil
		}
	}
	return nil, store.ErrAttemptNotFound
}

func (s *fakeAttemptStore) MarkGraded(_ context.Context, attempt *domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attempt.ID]; !ok {
		return store.ErrAttemptNotFound
	}
	s.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (s *fakeAttemptStore) MarkFailed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return store.ErrAttemptNotFound
	}
	if attempt.Status == domain.AttemptStatusPending {
		attempt.Status = domain.AttemptStatusFailed
	}
	return nil
}

func (s *fakeAttemptStore) ListPending(
	_ context.Context,
	cutoff time.Time,
	limit int,
) ([]*domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.Status == domain.AttemptStatusPending && attempt.SubmittedAt.Before(cutoff) {
			out = append(out, copyAttempt(attempt))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeAttemptStore) ListGradedSince(
	_ context.Context,
	studentID uuid.UUID,
	since, until time.Time,
) ([]*domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.StudentID == studentID && attempt.Graded() &&
			attempt.GradedAt.After(since) && !attempt.GradedAt.After(until) {
			out = append(out, copyAttempt(attempt))
		}
	}
	return out, nil
}

func (s *fakeAttemptStore) ListRecentGraded(
	_ context.Context,
	studentID uuid.UUID,
	limit int,
) ([]*domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.StudentID == studentID && attempt.Graded() {
			out = append(out, copyAttempt(attempt))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeAttemptStore) WithTx(_ *sql.Tx) store.AttemptStore { return s }

// fakeReviewStateStore is an in-memory store.ReviewStateStore.
type fakeReviewStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.ReviewState
}

func newFakeReviewStateStore() *fakeReviewStateStore {
	return &fakeReviewStateStore{states: make(map[string]*domain.ReviewState)}
}

func stateKey(studentID, activityID uuid.UUID) string {
	return studentID.String() + "/" + activityID.String()
}

func copyState(s *domain.ReviewState) *domain.ReviewState {
	c := *s
	return &c
}

func (s *fakeReviewStateStore) Get(_ context.Context, studentID, activityID uuid.UUID) (*domain.ReviewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[stateKey(studentID, activityID)]
	if !ok {
		return nil, store.ErrReviewStateNotFound
	}
	return copyState(state), nil
}

func (s *fakeReviewStateStore) GetForUpdate(ctx context.Context, studentID, activityID uuid.UUID) (*domain.ReviewState, error) {
	return s.Get(ctx, studentID, activityID)
}

func (s *fakeReviewStateStore) Create(_ context.Context, state *domain.ReviewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stateKey(state.StudentID, state.ActivityID)
	if _, ok := s.states[key]; ok {
		return store.ErrDuplicate
	}
	s.states[key] = copyState(state)
	return nil
}

func (s *fakeReviewStateStore) Update(_ context.Context, state *domain.ReviewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stateKey(state.StudentID, state.ActivityID)
	if _, ok := s.states[key]; !ok {
		return store.ErrReviewStateNotFound
	}
	s.states[key] = copyState(state)
	return nil
}

func (s *fakeReviewStateStore) ListDue(
	_ context.Context,
	studentID uuid.UUID,
	asOf time.Time,
	limit int,
) ([]*domain.ReviewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ReviewState
	for _, state := range s.states {
		if state.StudentID == studentID && !state.DueAt.After(asOf) {
			out = append(out, copyState(state))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeReviewStateStore) ListByStudent(_ context.Context, studentID uuid.UUID) ([]*domain.ReviewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ReviewState
	for _, state := range s.states {
		if state.StudentID == studentID {
			out = append(out, copyState(state))
		}
	}
	return out, nil
}

func (s *fakeReviewStateStore) ListActivityIDs(_ context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, state := range s.states {
		if state.StudentID == studentID {
			out = append(out, state.ActivityID)
		}
	}
	return out, nil
}

func (s *fakeReviewStateStore) WithTx(_ *sql.Tx) store.ReviewStateStore { return s }

// fakeStudentStore is an in-memory store.StudentStore.
type fakeStudentStore struct {
	mu       sync.Mutex
	students map[uuid.UUID]*domain.Student
}

func newFakeStudentStore(students ...*domain.Student) *fakeStudentStore {
	s := &fakeStudentStore{students: make(map[uuid.UUID]*domain.Student)}
	for _, student := range students {
		s.students[student.ID] = student
	}
	return s
}

func (s *fakeStudentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[id]
	if !ok {
		return nil, store.ErrStudentNotFound
	}
	c := *student
	return &c, nil
}

func (s *fakeStudentStore) Create(_ context.Context, student *domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.ID] = student
	return nil
}

func (s *fakeStudentStore) Update(_ context.Context, student *domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[student.ID]; !ok {
		return store.ErrStudentNotFound
	}
	c := *student
	s.students[student.ID] = &c
	return nil
}

func (s *fakeStudentStore) ListByClassroom(_ context.Context, _ uuid.UUID) ([]*domain.Student, error) {
	return nil, nil
}

func (s *fakeStudentStore) ListByTeacher(_ context.Context, _ uuid.UUID) ([]*domain.Student, error) {
	return nil, nil
}

func (s *fakeStudentStore) WithTx(_ *sql.Tx) store.StudentStore { return s }

// fakeProgressionStore is an in-memory store.ProgressionStore.
type fakeProgressionStore struct {
	mu     sync.Mutex
	deltas map[uuid.UUID]*domain.ProgressionDelta
}

func newFakeProgressionStore() *fakeProgressionStore {
	return &fakeProgressionStore{deltas: make(map[uuid.UUID]*domain.ProgressionDelta)}
}

func (s *fakeProgressionStore) CreateDelta(_ context.Context, delta *domain.ProgressionDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deltas[delta.AttemptID]; ok {
		return store.ErrDeltaExists
	}
	c := *delta
	s.deltas[delta.AttemptID] = &c
	return nil
}

func (s *fakeProgressionStore) GetDelta(_ context.Context, attemptID uuid.UUID) (*domain.ProgressionDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta, ok := s.deltas[attemptID]
	if !ok {
		return nil, store.ErrDeltaNotFound
	}
	c := *delta
	return &c, nil
}

func (s *fakeProgressionStore) WithTx(_ *sql.Tx) store.ProgressionStore { return s }

// fakeGenerator is a scripted feedback.Generator.
type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	generate func(ctx context.Context, prompt, rubric, answer string) (*feedback.Result, error)
}

func (g *fakeGenerator) GenerateFeedback(
	ctx context.Context,
	prompt, rubric, answer string,
) (*feedback.Result, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.generate(ctx, prompt, rubric, answer)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
