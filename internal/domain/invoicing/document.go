package invoicing

import (
	"context"
	"fmt"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TotalsComputer is implemented by documents whose totals are folded from lines
type TotalsComputer interface {
	RecomputeTotals() error
	CurrentTotals() Totals
}

// LifecycleHolder is implemented by documents driven through the approval lifecycle
type LifecycleHolder interface {
	CurrentStatus() DocumentStatus
	CanModify() bool
	CanVoid() bool
	Validate() error
	Submit(ctx context.Context, allocator numbering.NumberAllocator) error
	ApplyAuthorityResponse(resp AuthorityResponse) error
	Reset() error
	Void(correctingDocumentID uuid.UUID, reason string) error
}

// Document is any fiscal document variant
type Document interface {
	shared.AggregateRoot
	TotalsComputer
	LifecycleHolder
	Header() *DocumentHeader
	Type() valueobject.DocumentType
	// VerifyContentHash recomputes the content hash and compares it with the stored one
	VerifyContentHash() bool
}

// NewDocumentParams carries what every variant needs to open a draft
type NewDocumentParams struct {
	TenantID     uuid.UUID
	Series       SeriesRef
	CustomerID   *uuid.UUID
	Customer     valueobject.Party
	Currency     valueobject.Currency
	ExchangeRate decimal.Decimal
	Correction   *Correction
}

// NewDocument opens a draft of the requested type
func NewDocument(docType valueobject.DocumentType, p NewDocumentParams) (Document, error) {
	var (
		doc Document
		err error
	)
	switch docType {
	case valueobject.DocumentTypeInvoice:
		doc, err = NewInvoice(p.TenantID, p.Series, p.Customer, p.Currency, p.ExchangeRate)
	case valueobject.DocumentTypeReceipt:
		doc, err = NewReceipt(p.TenantID, p.Series, p.Customer, p.Currency, p.ExchangeRate)
	case valueobject.DocumentTypeCreditNote:
		if p.Correction == nil {
			return nil, shared.NewDomainError("INVALID_CORRECTION", "Credit notes require the modified document")
		}
		doc, err = NewCreditNote(p.TenantID, p.Series, p.Customer, p.Currency, p.ExchangeRate, *p.Correction)
	case valueobject.DocumentTypeDebitNote:
		if p.Correction == nil {
			return nil, shared.NewDomainError("INVALID_CORRECTION", "Debit notes require the modified document")
		}
		doc, err = NewDebitNote(p.TenantID, p.Series, p.Customer, p.Currency, p.ExchangeRate, *p.Correction)
	default:
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", fmt.Sprintf("Unsupported document type: %s", docType))
	}
	if err != nil {
		return nil, err
	}
	doc.Header().CustomerID = p.CustomerID
	return doc, nil
}
