// Package task runs background work: the reconciliation sweep that drains
// attempts parked in grading_pending when the feedback generator was
// unreachable. The database is the queue; every sweep re-reads the pending
// set, so a crashed worker never loses an attempt.
package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-learn/cadence-api/internal/domain"
	"github.com/cadence-learn/cadence-api/internal/events"
	"github.com/cadence-learn/cadence-api/internal/service/grading"
	"github.com/cadence-learn/cadence-api/internal/store"
)

// Grader re-runs grading for a parked attempt.
type Grader interface {
	Regrade(ctx context.Context, attemptID uuid.UUID) (*domain.Attempt, error)
}

// ReconcilerConfig holds configuration for the reconciliation sweep.
type ReconcilerConfig struct {
	// WorkerCount determines how many concurrent workers re-grade attempts.
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory work queue.
	QueueSize int

	// SweepInterval defines how often the pending set is re-read.
	SweepInterval time.Duration

	// PendingAge is how long an attempt must sit in grading_pending before
	// the sweep picks it up, leaving room for the submitting request's own
	// retries to finish first.
	PendingAge time.Duration

	// BatchSize caps how many pending attempts one sweep enqueues.
	BatchSize int
}

// DefaultReconcilerConfig returns a ReconcilerConfig with reasonable defaults.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		WorkerCount:   2,
		QueueSize:     100,
		SweepInterval: 1 * time.Minute,
		PendingAge:    30 * time.Second,
		BatchSize:     50,
	}
}

// Reconciler periodically re-grades attempts stuck in grading_pending.
type Reconciler struct {
	attempts   store.AttemptStore
	grader     Grader
	config     ReconcilerConfig
	workChan   chan uuid.UUID
	inFlight   sync.Map
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	attempts store.AttemptStore,
	grader Grader,
	config ReconcilerConfig,
	logger *slog.Logger,
) *Reconciler {
	if attempts == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("attempts cannot be nil")
	}
	if grader == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("grader cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 1 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reconciler{
		attempts:   attempts,
		grader:     grader,
		config:     config,
		workChan:   make(chan uuid.UUID, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger.With(slog.String("component", "reconciler")),
	}
}

// Start launches the workers and the sweep loop. An immediate first sweep
// recovers attempts parked before the last shutdown.
func (r *Reconciler) Start() {
	r.logger.Info("starting reconciler",
		slog.Int("worker_count", r.config.WorkerCount),
		slog.String("sweep_interval", r.config.SweepInterval.String()))

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.sweepLoop()
}

// Stop shuts the reconciler down and waits for in-progress work to finish.
func (r *Reconciler) Stop() {
	r.logger.Info("stopping reconciler")
	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) sweepLoop() {
	defer r.wg.Done()

	// First sweep runs immediately to recover work parked across restarts.
	r.sweep()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.ctx.Done():
			return
		}
	}
}

// sweep reads the pending set and enqueues attempts not already in flight.
func (r *Reconciler) sweep() {
	cutoff := time.Now().UTC().Add(-r.config.PendingAge)
	pending, err := r.attempts.ListPending(r.ctx, cutoff, r.config.BatchSize)
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("pending sweep failed",
				slog.String("error", err.Error()))
		}
		return
	}
	if len(pending) == 0 {
		return
	}

	r.logger.Info("sweeping pending attempts",
		slog.Int("count", len(pending)))

	for _, attempt := range pending {
		if _, loaded := r.inFlight.LoadOrStore(attempt.ID, struct{}{}); loaded {
			continue
		}
		select {
		case r.workChan <- attempt.ID:
		case <-r.ctx.Done():
			r.inFlight.Delete(attempt.ID)
			return
		default:
			// Queue full; the next sweep will pick it up again.
			r.inFlight.Delete(attempt.ID)
			return
		}
	}
}

// HandleEvent implements events.Handler. A freshly parked attempt is
// enqueued immediately instead of waiting for the next sweep; if the queue
// is full the sweep picks it up later.
func (r *Reconciler) HandleEvent(_ context.Context, event *events.GradingEvent) error {
	if event.Type != events.EventAttemptParked {
		return nil
	}

	var payload events.AttemptParkedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return err
	}

	if _, loaded := r.inFlight.LoadOrStore(payload.AttemptID, struct{}{}); loaded {
		return nil
	}
	select {
	case r.workChan <- payload.AttemptID:
	default:
		r.inFlight.Delete(payload.AttemptID)
	}
	return nil
}

func (r *Reconciler) worker(id int) {
	defer r.wg.Done()

	log := r.logger.With(slog.Int("worker_id", id))
	for {
		select {
		case attemptID := <-r.workChan:
			r.process(log, attemptID)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reconciler) process(log *slog.Logger, attemptID uuid.UUID) {
	defer r.inFlight.Delete(attemptID)

	_, err := r.grader.Regrade(r.ctx, attemptID)
	switch {
	case err == nil:
		log.Info("parked attempt graded",
			slog.String("attempt_id", attemptID.String()))
	case errors.Is(err, grading.ErrAlreadyGraded):
		// A concurrent submission finished it; nothing to do.
	case errors.Is(err, grading.ErrGradingFailed):
		// Terminally failed; the sweep will not see it again.
	case errors.Is(err, grading.ErrGradingPending):
		log.Warn("feedback generator still unreachable",
			slog.String("attempt_id", attemptID.String()))
	case r.ctx.Err() != nil:
		// Shutting down.
	default:
		log.Error("failed to re-grade parked attempt",
			slog.String("attempt_id", attemptID.String()),
			slog.String("error", err.Error()))
	}
}
