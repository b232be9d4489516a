package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrEnvelopeMismatch is returned by Replay when the stored payload no longer
// agrees with the audit columns it was recorded under
var ErrEnvelopeMismatch = errors.New("audit payload does not match its envelope")

// EventSerializer turns fiscal events into audit entries and back. Only
// registered event types are accepted in either direction, so everything in
// the audit trail can be replayed as a typed event.
type EventSerializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
	now   func() time.Time
}

// NewEventSerializer creates a serializer with no registered types
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		types: make(map[string]reflect.Type),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register binds an event type name to the concrete type of prototype
func (s *EventSerializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.mu.Lock()
	s.types[eventType] = t
	s.mu.Unlock()
}

// Envelope builds the audit entry of an event. Events without a tenant or of
// an unregistered type are refused.
func (s *EventSerializer) Envelope(event shared.DomainEvent) (*AuditEntry, error) {
	if !s.IsRegistered(event.EventType()) {
		return nil, fmt.Errorf("event type %s is not registered for auditing", event.EventType())
	}
	if event.TenantID() == uuid.Nil {
		return nil, fmt.Errorf("event %s of type %s has no tenant", event.EventID(), event.EventType())
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", event.EventType(), err)
	}
	return &AuditEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		TenantID:      event.TenantID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		RecordedAt:    s.now(),
	}, nil
}

// Replay decodes an audit entry into its typed event and checks that the
// payload still carries the identity recorded in the entry
func (s *EventSerializer) Replay(entry AuditEntry) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.types[entry.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", entry.EventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(entry.Payload, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", entry.EventType, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("registered type for %s does not implement DomainEvent", entry.EventType)
	}
	if event.EventID() != entry.EventID ||
		event.EventType() != entry.EventType ||
		event.TenantID() != entry.TenantID ||
		event.AggregateID() != entry.AggregateID {
		return nil, fmt.Errorf("%w: entry %s", ErrEnvelopeMismatch, entry.ID)
	}
	return event, nil
}

// IsRegistered reports whether eventType can be audited
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.types[eventType]
	return ok
}

// RegisteredTypes returns the registered event type names in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	types := make([]string, 0, len(s.types))
	for t := range s.types {
		types = append(types, t)
	}
	s.mu.RUnlock()
	sort.Strings(types)
	return types
}
