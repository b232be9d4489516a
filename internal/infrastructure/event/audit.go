package event

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditEntry is the stored trace of one domain event
type AuditEntry struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	TenantID      uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	OccurredAt    time.Time
	Payload       json.RawMessage
	RecordedAt    time.Time
}

// AuditStore persists audit entries
type AuditStore interface {
	// Append stores an entry. Appending an event ID twice is not an error and
	// keeps the first entry.
	Append(ctx context.Context, entry *AuditEntry) error
	// FindByAggregate lists the entries of one aggregate in occurrence order
	FindByAggregate(ctx context.Context, tenantID, aggregateID uuid.UUID) ([]AuditEntry, error)
}

// AuditHandler writes every fiscal event to an AuditStore: allocations,
// lifecycle transitions and cash movements all leave a trail.
type AuditHandler struct {
	store      AuditStore
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewAuditHandler creates an AuditHandler
func NewAuditHandler(store AuditStore, serializer *EventSerializer, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{store: store, serializer: serializer, logger: logger}
}

// EventTypes returns nil: the handler receives every event
func (h *AuditHandler) EventTypes() []string {
	return nil
}

// Handle wraps the event in its audit envelope and appends it to the store
func (h *AuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	entry, err := h.serializer.Envelope(event)
	if err != nil {
		return err
	}
	if err := h.store.Append(ctx, entry); err != nil {
		return err
	}
	h.logger.Debug("audit entry recorded",
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_id", entry.AggregateID.String()),
		zap.String("tenant_id", entry.TenantID.String()),
	)
	return nil
}

// Ensure AuditHandler implements EventHandler
var _ shared.EventHandler = (*AuditHandler)(nil)

// InMemoryAuditStore keeps audit entries in memory
type InMemoryAuditStore struct {
	mu      sync.RWMutex
	entries []AuditEntry
	seen    map[uuid.UUID]bool
}

// NewInMemoryAuditStore creates an empty store
func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{seen: make(map[uuid.UUID]bool)}
}

// Append stores a copy of entry
func (s *InMemoryAuditStore) Append(_ context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[entry.EventID] {
		return nil
	}
	s.seen[entry.EventID] = true
	e := *entry
	e.Payload = append(json.RawMessage(nil), entry.Payload...)
	s.entries = append(s.entries, e)
	return nil
}

// FindByAggregate lists the entries of one aggregate in occurrence order
func (s *InMemoryAuditStore) FindByAggregate(_ context.Context, tenantID, aggregateID uuid.UUID) ([]AuditEntry, error) {
	s.mu.RLock()
	result := make([]AuditEntry, 0)
	for _, e := range s.entries {
		if e.TenantID == tenantID && e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(result, func(i, j int) bool { return result[i].OccurredAt.Before(result[j].OccurredAt) })
	return result, nil
}

// Len returns the number of stored entries
func (s *InMemoryAuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryAuditStore implements AuditStore
var _ AuditStore = (*InMemoryAuditStore)(nil)
