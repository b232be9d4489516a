package invoicing

import (
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeFiscalDocument = "FiscalDocument"

// Event type constants
const (
	EventTypeDocumentCreated   = "FiscalDocumentCreated"
	EventTypeDocumentValidated = "FiscalDocumentValidated"
	EventTypeDocumentReopened  = "FiscalDocumentReopened"
	EventTypeDocumentSubmitted = "FiscalDocumentSubmitted"
	EventTypeDocumentAccepted  = "FiscalDocumentAccepted"
	EventTypeDocumentRejected  = "FiscalDocumentRejected"
	EventTypeDocumentReset     = "FiscalDocumentReset"
	EventTypeDocumentVoided    = "FiscalDocumentVoided"
)

// DocumentTransition carries the identity of the document and the edge it crossed
type DocumentTransition struct {
	DocumentID   uuid.UUID                `json:"document_id"`
	DocumentType valueobject.DocumentType `json:"document_type"`
	SeriesCode   string                   `json:"series_code"`
	FullNumber   string                   `json:"full_number,omitempty"`
	FromStatus   DocumentStatus           `json:"from_status"`
	ToStatus     DocumentStatus           `json:"to_status"`
	GrandTotal   decimal.Decimal          `json:"grand_total"`
	Currency     valueobject.Currency     `json:"currency"`
}

func transitionOf(h *DocumentHeader, from DocumentStatus) DocumentTransition {
	return DocumentTransition{
		DocumentID:   h.ID,
		DocumentType: h.DocumentType,
		SeriesCode:   h.SeriesCode,
		FullNumber:   h.FullNumber,
		FromStatus:   from,
		ToStatus:     h.Status,
		GrandTotal:   h.Totals.GrandTotal,
		Currency:     h.Currency,
	}
}

func baseEvent(eventType string, h *DocumentHeader) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeFiscalDocument, h.ID, h.TenantID)
}

// DocumentCreatedEvent is raised when a draft document is opened
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(h *DocumentHeader) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentCreated, h),
		DocumentTransition: transitionOf(h, ""),
	}
}

// DocumentValidatedEvent is raised on draft → validated
type DocumentValidatedEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
}

// NewDocumentValidatedEvent creates a new DocumentValidatedEvent
func NewDocumentValidatedEvent(h *DocumentHeader, from DocumentStatus) *DocumentValidatedEvent {
	return &DocumentValidatedEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentValidated, h),
		DocumentTransition: transitionOf(h, from),
	}
}

// DocumentReopenedEvent is raised when editing a validated document sends it back to draft
type DocumentReopenedEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
}

// NewDocumentReopenedEvent creates a new DocumentReopenedEvent
func NewDocumentReopenedEvent(h *DocumentHeader) *DocumentReopenedEvent {
	return &DocumentReopenedEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentReopened, h),
		DocumentTransition: transitionOf(h, DocumentStatusValidated),
	}
}

// DocumentSubmittedEvent is raised on validated → submitted.
// The transport collaborator listens to it to send the document to the authority.
type DocumentSubmittedEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
	Number         int64  `json:"number"`
	ContentHash    string `json:"content_hash"`
	Attempt        int    `json:"attempt"`
	NumberAssigned bool   `json:"number_assigned"`
}

// NewDocumentSubmittedEvent creates a new DocumentSubmittedEvent
func NewDocumentSubmittedEvent(h *DocumentHeader, from DocumentStatus, numberAssigned bool) *DocumentSubmittedEvent {
	var number int64
	if h.Number != nil {
		number = *h.Number
	}
	return &DocumentSubmittedEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentSubmitted, h),
		DocumentTransition: transitionOf(h, from),
		Number:             number,
		ContentHash:        h.ContentHash,
		Attempt:            h.SubmissionCount,
		NumberAssigned:     numberAssigned,
	}
}

// DocumentAcceptedEvent is raised on submitted → accepted
type DocumentAcceptedEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
	ResponseCode string   `json:"response_code"`
	Notes        []string `json:"notes,omitempty"`
}

// NewDocumentAcceptedEvent creates a new DocumentAcceptedEvent
func NewDocumentAcceptedEvent(h *DocumentHeader, from DocumentStatus) *DocumentAcceptedEvent {
	evt := &DocumentAcceptedEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentAccepted, h),
		DocumentTransition: transitionOf(h, from),
	}
	if h.AuthorityResponse != nil {
		evt.ResponseCode = h.AuthorityResponse.Code
		evt.Notes = h.AuthorityResponse.Notes
	}
	return evt
}

// DocumentRejectedEvent is raised on submitted → rejected
type DocumentRejectedEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
	ResponseCode string `json:"response_code"`
	Description  string `json:"description"`
}

// NewDocumentRejectedEvent creates a new DocumentRejectedEvent
func NewDocumentRejectedEvent(h *DocumentHeader, from DocumentStatus) *DocumentRejectedEvent {
	evt := &DocumentRejectedEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentRejected, h),
		DocumentTransition: transitionOf(h, from),
	}
	if h.AuthorityResponse != nil {
		evt.ResponseCode = h.AuthorityResponse.Code
		evt.Description = h.AuthorityResponse.Description
	}
	return evt
}

// DocumentResetEvent is raised on rejected → draft
type DocumentResetEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
}

// NewDocumentResetEvent creates a new DocumentResetEvent
func NewDocumentResetEvent(h *DocumentHeader, from DocumentStatus) *DocumentResetEvent {
	return &DocumentResetEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentReset, h),
		DocumentTransition: transitionOf(h, from),
	}
}

// DocumentVoidedEvent is raised on accepted → voided
type DocumentVoidedEvent struct {
	shared.BaseDomainEvent
	DocumentTransition
	CorrectingDocumentID uuid.UUID `json:"correcting_document_id"`
	Reason               string    `json:"reason"`
}

// NewDocumentVoidedEvent creates a new DocumentVoidedEvent
func NewDocumentVoidedEvent(h *DocumentHeader, from DocumentStatus) *DocumentVoidedEvent {
	evt := &DocumentVoidedEvent{
		BaseDomainEvent:    baseEvent(EventTypeDocumentVoided, h),
		DocumentTransition: transitionOf(h, from),
		Reason:             h.VoidReason,
	}
	if h.CorrectingDocumentID != nil {
		evt.CorrectingDocumentID = *h.CorrectingDocumentID
	}
	return evt
}
