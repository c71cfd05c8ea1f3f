package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInMemoryEmitter_NoHandlers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEmitter(discardLogger())
	event, err := NewAttemptParkedEvent(uuid.New())
	require.NoError(t, err)

	assert.NoError(t, emitter.EmitEvent(context.Background(), event))
}

func TestInMemoryEmitter_DeliversToAllHandlers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEmitter(discardLogger())
	first := &mockHandler{}
	second := &mockHandler{}
	emitter.RegisterHandler(first)
	emitter.RegisterHandler(second)

	event, err := NewAttemptParkedEvent(uuid.New())
	require.NoError(t, err)
	require.NoError(t, emitter.EmitEvent(context.Background(), event))

	assert.Equal(t, 1, first.handledCount)
	assert.Equal(t, 1, second.handledCount)
	assert.Equal(t, event, first.lastEvent)
	assert.Equal(t, event, second.lastEvent)
}

func TestInMemoryEmitter_FailingHandlerDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEmitter(discardLogger())
	failing := &mockHandler{handlerError: errors.New("handler error")}
	healthy := &mockHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(healthy)

	event, err := NewAttemptParkedEvent(uuid.New())
	require.NoError(t, err)

	err = emitter.EmitEvent(context.Background(), event)
	assert.EqualError(t, err, "handler error")

	// The failure did not keep the other handler from seeing the event.
	assert.Equal(t, 1, failing.handledCount)
	assert.Equal(t, 1, healthy.handledCount)
}
