package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit note reasons (catalogue 09)
var creditNoteReasons = map[string]string{
	"01": "Anulación de la operación",
	"02": "Anulación por error en el RUC",
	"03": "Corrección por error en la descripción",
	"04": "Descuento global",
	"05": "Descuento por ítem",
	"06": "Devolución total",
	"07": "Devolución por ítem",
	"08": "Bonificación",
	"09": "Disminución en el valor",
	"10": "Otros conceptos",
	"11": "Ajustes de operaciones de exportación",
	"12": "Ajustes afectos al IVAP",
	"13": "Corrección del monto neto pendiente de pago",
}

// Debit note reasons (catalogue 10)
var debitNoteReasons = map[string]string{
	"01": "Intereses por mora",
	"02": "Aumento en el valor",
	"03": "Penalidades / otros conceptos",
	"10": "Ajustes de operaciones de exportación",
	"11": "Ajustes afectos al IVAP",
}

// Correction identifies the document a note modifies and why
type Correction struct {
	DocumentID   *uuid.UUID
	DocumentType valueobject.DocumentType
	FullNumber   string
	ReasonCode   string
	Reason       string
}

func (c Correction) validate(reasons map[string]string, noteSeries string) (Correction, error) {
	c.FullNumber = strings.ToUpper(strings.TrimSpace(c.FullNumber))
	c.Reason = strings.TrimSpace(c.Reason)
	if c.DocumentType != valueobject.DocumentTypeInvoice && c.DocumentType != valueobject.DocumentTypeReceipt {
		return c, shared.NewDomainError("INVALID_CORRECTION", "Notes can only modify invoices or receipts")
	}
	if c.FullNumber == "" {
		return c, shared.NewDomainError("INVALID_CORRECTION", "The modified document number is required")
	}
	if _, ok := reasons[c.ReasonCode]; !ok {
		return c, shared.NewDomainError("INVALID_CORRECTION", fmt.Sprintf("Unknown reason code: %s", c.ReasonCode))
	}
	if c.Reason == "" {
		c.Reason = reasons[c.ReasonCode]
	}
	if noteSeries != "" && c.FullNumber[0] != noteSeries[0] {
		return c, shared.NewDomainError("INVALID_CORRECTION",
			fmt.Sprintf("Series %s cannot modify document %s", noteSeries, c.FullNumber))
	}
	return c, nil
}

func (c Correction) fingerprint() string {
	return strings.Join([]string{string(c.DocumentType), c.FullNumber, c.ReasonCode, c.Reason}, ";")
}

// CreditNote decreases or cancels a previously accepted document
type CreditNote struct {
	DocumentHeader
	Correction Correction
}

// NewCreditNote opens a draft credit note
func NewCreditNote(tenantID uuid.UUID, series SeriesRef, customer valueobject.Party, currency valueobject.Currency, exchangeRate decimal.Decimal, correction Correction) (*CreditNote, error) {
	header, err := newHeader(tenantID, valueobject.DocumentTypeCreditNote, series, customer, currency, exchangeRate)
	if err != nil {
		return nil, err
	}
	correction, err = correction.validate(creditNoteReasons, header.SeriesCode)
	if err != nil {
		return nil, err
	}
	n := &CreditNote{DocumentHeader: header, Correction: correction}
	n.AddDomainEvent(NewDocumentCreatedEvent(&n.DocumentHeader))
	return n, nil
}

// Validate runs the draft → validated transition
func (n *CreditNote) Validate() error {
	return n.validate(n.checkVariant)
}

// Submit runs the validated → submitted transition, assigning the number if needed
func (n *CreditNote) Submit(ctx context.Context, allocator numbering.NumberAllocator) error {
	return n.submit(ctx, allocator, n.Correction.fingerprint)
}

// VerifyContentHash recomputes the content hash and compares it with the stored one
func (n *CreditNote) VerifyContentHash() bool {
	return n.ContentHash != "" && n.ContentHash == n.hash(n.Correction.fingerprint())
}

func (n *CreditNote) checkVariant() error {
	if n.Customer.IsAnonymous() && n.Correction.DocumentType == valueobject.DocumentTypeInvoice {
		return shared.NewDomainError(shared.ErrMissingParty.Code, "Notes on invoices require the invoiced customer")
	}
	return nil
}

// DebitNote increases the amount of a previously accepted document
type DebitNote struct {
	DocumentHeader
	Correction Correction
}

// NewDebitNote opens a draft debit note
func NewDebitNote(tenantID uuid.UUID, series SeriesRef, customer valueobject.Party, currency valueobject.Currency, exchangeRate decimal.Decimal, correction Correction) (*DebitNote, error) {
	header, err := newHeader(tenantID, valueobject.DocumentTypeDebitNote, series, customer, currency, exchangeRate)
	if err != nil {
		return nil, err
	}
	correction, err = correction.validate(debitNoteReasons, header.SeriesCode)
	if err != nil {
		return nil, err
	}
	n := &DebitNote{DocumentHeader: header, Correction: correction}
	n.AddDomainEvent(NewDocumentCreatedEvent(&n.DocumentHeader))
	return n, nil
}

// Validate runs the draft → validated transition
func (n *DebitNote) Validate() error {
	return n.validate(n.checkVariant)
}

// Submit runs the validated → submitted transition, assigning the number if needed
func (n *DebitNote) Submit(ctx context.Context, allocator numbering.NumberAllocator) error {
	return n.submit(ctx, allocator, n.Correction.fingerprint)
}

// VerifyContentHash recomputes the content hash and compares it with the stored one
func (n *DebitNote) VerifyContentHash() bool {
	return n.ContentHash != "" && n.ContentHash == n.hash(n.Correction.fingerprint())
}

func (n *DebitNote) checkVariant() error {
	if n.Customer.IsAnonymous() && n.Correction.DocumentType == valueobject.DocumentTypeInvoice {
		return shared.NewDomainError(shared.ErrMissingParty.Code, "Notes on invoices require the invoiced customer")
	}
	return nil
}

// CorrectionOf returns the correction carried by a note, or nil for other variants
func CorrectionOf(doc Document) *Correction {
	switch n := doc.(type) {
	case *CreditNote:
		return &n.Correction
	case *DebitNote:
		return &n.Correction
	}
	return nil
}

var (
	_ Document = (*CreditNote)(nil)
	_ Document = (*DebitNote)(nil)
)
