package numbering

import (
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeSeries = "Series"

// Event type constants
const (
	EventTypeSeriesCreated     = "SeriesCreated"
	EventTypeNumberAllocated   = "NumberAllocated"
	EventTypeSeriesDeactivated = "SeriesDeactivated"
	EventTypeSeriesActivated   = "SeriesActivated"
)

// SeriesCreatedEvent is raised when a numbering series is configured
type SeriesCreatedEvent struct {
	shared.BaseDomainEvent
	SeriesID     uuid.UUID                `json:"series_id"`
	DocumentType valueobject.DocumentType `json:"document_type"`
	Code         string                   `json:"code"`
	MaxNumber    int64                    `json:"max_number"`
}

// NewSeriesCreatedEvent creates a new SeriesCreatedEvent
func NewSeriesCreatedEvent(s *Series) *SeriesCreatedEvent {
	return &SeriesCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSeriesCreated, AggregateTypeSeries, s.ID, s.TenantID),
		SeriesID:        s.ID,
		DocumentType:    s.DocumentType,
		Code:            s.Code,
		MaxNumber:       s.MaxNumber,
	}
}

// NumberAllocatedEvent is raised for every number handed out
type NumberAllocatedEvent struct {
	shared.BaseDomainEvent
	SeriesID   uuid.UUID `json:"series_id"`
	Code       string    `json:"code"`
	Number     int64     `json:"number"`
	FullNumber string    `json:"full_number"`
	Remaining  int64     `json:"remaining"`
}

// NewNumberAllocatedEvent creates a new NumberAllocatedEvent
func NewNumberAllocatedEvent(s *Series, number int64) *NumberAllocatedEvent {
	return &NumberAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNumberAllocated, AggregateTypeSeries, s.ID, s.TenantID),
		SeriesID:        s.ID,
		Code:            s.Code,
		Number:          number,
		FullNumber:      s.FormatNumber(number),
		Remaining:       s.Remaining(),
	}
}

// SeriesDeactivatedEvent is raised when a series stops allocating
type SeriesDeactivatedEvent struct {
	shared.BaseDomainEvent
	SeriesID      uuid.UUID `json:"series_id"`
	Code          string    `json:"code"`
	CurrentNumber int64     `json:"current_number"`
}

// NewSeriesDeactivatedEvent creates a new SeriesDeactivatedEvent
func NewSeriesDeactivatedEvent(s *Series) *SeriesDeactivatedEvent {
	return &SeriesDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSeriesDeactivated, AggregateTypeSeries, s.ID, s.TenantID),
		SeriesID:        s.ID,
		Code:            s.Code,
		CurrentNumber:   s.CurrentNumber,
	}
}

// SeriesActivatedEvent is raised when a series is re-enabled
type SeriesActivatedEvent struct {
	shared.BaseDomainEvent
	SeriesID uuid.UUID `json:"series_id"`
	Code     string    `json:"code"`
}

// NewSeriesActivatedEvent creates a new SeriesActivatedEvent
func NewSeriesActivatedEvent(s *Series) *SeriesActivatedEvent {
	return &SeriesActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSeriesActivated, AggregateTypeSeries, s.ID, s.TenantID),
		SeriesID:        s.ID,
		Code:            s.Code,
	}
}
