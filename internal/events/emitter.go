package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEmitter dispatches events synchronously to handlers registered in
// memory. Enough for a single process; a broker would replace it if events
// ever needed to cross process boundaries.
type InMemoryEmitter struct {
	handlers []Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEmitter creates a new InMemoryEmitter.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEmitter{
		logger: logger.With(slog.String("component", "event_emitter")),
	}
}

// Ensure InMemoryEmitter implements the Emitter interface.
var _ Emitter = (*InMemoryEmitter)(nil)

// RegisterHandler adds a handler to receive subsequent events.
func (e *InMemoryEmitter) RegisterHandler(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// EmitEvent publishes the event to every registered handler. A failing
// handler does not stop delivery to the others; the first error is returned.
func (e *InMemoryEmitter) EmitEvent(ctx context.Context, event *GradingEvent) error {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("event handler failed",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Type),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
