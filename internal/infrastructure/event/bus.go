package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/felicita/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish on an asynchronous bus that is not running
var ErrBusStopped = errors.New("event bus is not running")

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithAsyncDelivery makes Publish enqueue events and return immediately.
// A single worker started by Start delivers them in publish order.
func WithAsyncDelivery(bufferSize int) BusOption {
	return func(b *InMemoryEventBus) {
		if bufferSize <= 0 {
			bufferSize = 256
		}
		b.bufferSize = bufferSize
	}
}

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus delivers domain events to handlers inside the process.
// Handler failures are logged and never reach the publisher: events are
// published after the state change committed, so there is nothing to undo.
type InMemoryEventBus struct {
	registry   *HandlerRegistry
	logger     *zap.Logger
	queue      chan envelope
	bufferSize int
	running    atomic.Bool
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// NewInMemoryEventBus creates a bus that delivers synchronously unless
// WithAsyncDelivery is given
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers events to every matching handler
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.bufferSize == 0 {
		for _, event := range events {
			b.deliver(ctx, event)
		}
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running.Load() {
		return ErrBusStopped
	}
	for _, event := range events {
		select {
		case b.queue <- envelope{ctx: context.WithoutCancel(ctx), event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit event types the handler's
// own EventTypes are used; an empty list subscribes to everything.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from every event type
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start starts the delivery worker of an asynchronous bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running.Swap(true) {
		return nil
	}
	if b.bufferSize > 0 {
		b.queue = make(chan envelope, b.bufferSize)
		b.wg.Add(1)
		go b.drain(b.queue)
	}
	b.logger.Info("event bus started", zap.Bool("async", b.bufferSize > 0))
	return nil
}

// Stop refuses new events, lets the worker deliver what is queued and waits
// for it or for ctx, whichever comes first
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running.Swap(false) {
		b.mu.Unlock()
		return nil
	}
	if b.queue != nil {
		close(b.queue)
		b.queue = nil
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) drain(queue chan envelope) {
	defer b.wg.Done()
	for env := range queue {
		b.deliver(env.ctx, env.event)
	}
}

func (b *InMemoryEventBus) deliver(ctx context.Context, event shared.DomainEvent) {
	for _, handler := range b.registry.GetHandlers(event.EventType()) {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("tenant_id", event.TenantID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, event)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
