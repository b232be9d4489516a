package event

import (
	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/pos"
)

// RegisterFiscalEvents registers every event the fiscal core emits
func RegisterFiscalEvents(serializer *EventSerializer) {
	// Numbering
	serializer.Register(numbering.EventTypeSeriesCreated, &numbering.SeriesCreatedEvent{})
	serializer.Register(numbering.EventTypeNumberAllocated, &numbering.NumberAllocatedEvent{})
	serializer.Register(numbering.EventTypeSeriesDeactivated, &numbering.SeriesDeactivatedEvent{})
	serializer.Register(numbering.EventTypeSeriesActivated, &numbering.SeriesActivatedEvent{})

	// Document lifecycle
	serializer.Register(invoicing.EventTypeDocumentCreated, &invoicing.DocumentCreatedEvent{})
	serializer.Register(invoicing.EventTypeDocumentValidated, &invoicing.DocumentValidatedEvent{})
	serializer.Register(invoicing.EventTypeDocumentReopened, &invoicing.DocumentReopenedEvent{})
	serializer.Register(invoicing.EventTypeDocumentSubmitted, &invoicing.DocumentSubmittedEvent{})
	serializer.Register(invoicing.EventTypeDocumentAccepted, &invoicing.DocumentAcceptedEvent{})
	serializer.Register(invoicing.EventTypeDocumentRejected, &invoicing.DocumentRejectedEvent{})
	serializer.Register(invoicing.EventTypeDocumentReset, &invoicing.DocumentResetEvent{})
	serializer.Register(invoicing.EventTypeDocumentVoided, &invoicing.DocumentVoidedEvent{})

	// Cash sessions
	serializer.Register(pos.EventTypeCashSessionOpened, &pos.CashSessionOpenedEvent{})
	serializer.Register(pos.EventTypeSalePaymentRecorded, &pos.SalePaymentRecordedEvent{})
	serializer.Register(pos.EventTypeCashSessionSuspended, &pos.CashSessionSuspendedEvent{})
	serializer.Register(pos.EventTypeCashSessionResumed, &pos.CashSessionResumedEvent{})
	serializer.Register(pos.EventTypeCashSessionClosed, &pos.CashSessionClosedEvent{})
}
