package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate. Fiscal events are
// audit material, so every one carries its tenant and a stable identity
// that idempotent consumers key on.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent is embedded by concrete events. Its fields are flattened
// into the JSON envelope of the embedding event.
type BaseDomainEvent struct {
	Identity  uuid.UUID `json:"event_id"`
	Kind      string    `json:"event_type"`
	Occurred  time.Time `json:"occurred_at"`
	Aggregate uuid.UUID `json:"aggregate_id"`
	Source    string    `json:"aggregate_type"`
	Tenant    uuid.UUID `json:"tenant_id"`
}

// NewBaseDomainEvent stamps a new event. Time is kept in UTC at microsecond
// precision so it survives a round trip through PostgreSQL unchanged.
func NewBaseDomainEvent(eventType, aggregateType string, aggregateID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		Identity:  uuid.New(),
		Kind:      eventType,
		Occurred:  time.Now().UTC().Truncate(time.Microsecond),
		Aggregate: aggregateID,
		Source:    aggregateType,
		Tenant:    tenantID,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID { return e.Identity }
func (e *BaseDomainEvent) EventType() string { return e.Kind }
func (e *BaseDomainEvent) OccurredAt() time.Time { return e.Occurred }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e *BaseDomainEvent) AggregateType() string { return e.Source }
func (e *BaseDomainEvent) TenantID() uuid.UUID { return e.Tenant }
