package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return newTestEventForTenant(eventType, uuid.New())
}

func newTestEventForTenant(eventType string, tenantID uuid.UUID) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), tenantID),
		Data:            "payload",
	}
}

type recordingHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []shared.DomainEvent
	err        error
	panics     bool
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panics {
		panic("boom")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) received() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to typed and wildcard handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		typed := newRecordingHandler("NumberAllocated")
		other := newRecordingHandler("CashSessionClosed")
		all := newRecordingHandler()
		bus.Subscribe(typed)
		bus.Subscribe(other)
		bus.Subscribe(all)

		e1, e2 := newTestEvent("NumberAllocated"), newTestEvent("FiscalDocumentSubmitted")
		require.NoError(t, bus.Publish(ctx, e1, e2))

		assert.Equal(t, []shared.DomainEvent{e1}, typed.received())
		assert.Empty(t, other.received())
		assert.Equal(t, []shared.DomainEvent{e1, e2}, all.received())
	})

	t.Run("failing and panicking handlers do not stop delivery", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := newRecordingHandler("X")
		failing.err = errors.New("handler error")
		panicking := newRecordingHandler("X")
		panicking.panics = true
		healthy := newRecordingHandler("X")
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
		assert.Len(t, healthy.received(), 1)
	})

	t.Run("unsubscribed handler gets nothing", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newRecordingHandler("X")
		bus.Subscribe(h)
		require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
		bus.Unsubscribe(h)
		require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
		assert.Len(t, h.received(), 1)
	})
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop(), WithAsyncDelivery(4))
	h := newRecordingHandler()
	bus.Subscribe(h)

	assert.ErrorIs(t, bus.Publish(ctx, newTestEvent("X")), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	events := make([]shared.DomainEvent, 20)
	for i := range events {
		events[i] = newTestEvent("X")
		require.NoError(t, bus.Publish(ctx, events[i]))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(stopCtx))

	assert.Equal(t, events, h.received(), "queued events are delivered in order before Stop returns")
	assert.ErrorIs(t, bus.Publish(ctx, newTestEvent("X")), ErrBusStopped)

	t.Run("restart", func(t *testing.T) {
		require.NoError(t, bus.Start(ctx))
		require.NoError(t, bus.Publish(ctx, newTestEvent("X")))
		require.NoError(t, bus.Stop(stopCtx))
		assert.Len(t, h.received(), 21)
	})
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	a := newRecordingHandler()
	b := newRecordingHandler()
	wild := newRecordingHandler()

	r.Register(a, "SeriesCreated", "NumberAllocated")
	r.Register(b, "NumberAllocated")
	r.Register(wild)

	assert.Equal(t, []shared.EventHandler{a, b, wild}, r.GetHandlers("NumberAllocated"))
	assert.Equal(t, []shared.EventHandler{a, wild}, r.GetHandlers("SeriesCreated"))
	assert.Equal(t, []shared.EventHandler{wild}, r.GetHandlers("Unknown"))
	assert.Equal(t, []string{"NumberAllocated", "SeriesCreated"}, r.EventTypes())

	r.Unregister(a)
	assert.Equal(t, []shared.EventHandler{b, wild}, r.GetHandlers("NumberAllocated"))
	assert.Equal(t, []string{"NumberAllocated"}, r.EventTypes())

	r.Unregister(wild)
	assert.Empty(t, r.GetHandlers("SeriesCreated"))
}

func TestHandlerRegistry_DeliversOnce(t *testing.T) {
	r := NewHandlerRegistry()
	audit := newRecordingHandler()
	metrics := newRecordingHandler()

	r.Register(audit)
	r.Register(audit)
	r.Register(metrics, "CashSessionClosed", "CashSessionClosed")
	r.Register(metrics)

	assert.Equal(t, []shared.EventHandler{metrics, audit}, r.GetHandlers("CashSessionClosed"))
	assert.Equal(t, []shared.EventHandler{audit, metrics}, r.GetHandlers("NumberAllocated"))

	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(audit)
	bus.Subscribe(audit, "CashSessionClosed")
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("CashSessionClosed")))
	assert.Len(t, audit.received(), 1)
}
