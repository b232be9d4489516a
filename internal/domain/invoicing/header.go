package invoicing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeriesRef identifies the series a document is numbered in
type SeriesRef struct {
	ID   uuid.UUID
	Code string
}

// DocumentHeader holds the fields and behaviour shared by every fiscal document variant.
// Variants embed it and add their own extension fields and guards.
type DocumentHeader struct {
	shared.TenantAggregateRoot
	DocumentType         valueobject.DocumentType
	SeriesID             uuid.UUID
	SeriesCode           string
	Number               *int64
	FullNumber           string
	CustomerID           *uuid.UUID
	Customer             valueobject.Party
	Currency             valueobject.Currency
	ExchangeRate         decimal.Decimal
	IssueDate            time.Time
	DueDate              *time.Time
	Lines                []LineItem
	Adjustments          Adjustments
	Totals               Totals
	Status               DocumentStatus
	AuthorityResponse    *AuthorityResponse
	ContentHash          string
	SubmissionCount      int
	CorrectingDocumentID *uuid.UUID
	VoidReason           string
	Notes                string
	ValidatedAt          *time.Time
	SubmittedAt          *time.Time
	ResolvedAt           *time.Time
	VoidedAt             *time.Time
}

func newHeader(tenantID uuid.UUID, docType valueobject.DocumentType, series SeriesRef, customer valueobject.Party, currency valueobject.Currency, exchangeRate decimal.Decimal) (DocumentHeader, error) {
	if tenantID == uuid.Nil {
		return DocumentHeader{}, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if series.ID == uuid.Nil {
		return DocumentHeader{}, shared.NewDomainError("INVALID_SERIES", "Series ID cannot be empty")
	}
	code := strings.ToUpper(strings.TrimSpace(series.Code))
	if !seriesFitsType(docType, code) {
		return DocumentHeader{}, shared.NewDomainError("INVALID_SERIES",
			fmt.Sprintf("Series %s cannot number a %s", code, docType.Label()))
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	rate, err := normalizeExchangeRate(currency, exchangeRate)
	if err != nil {
		return DocumentHeader{}, err
	}

	return DocumentHeader{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DocumentType:        docType,
		SeriesID:            series.ID,
		SeriesCode:          code,
		Customer:            customer,
		Currency:            currency,
		ExchangeRate:        rate,
		IssueDate:           time.Now(),
		Lines:               make([]LineItem, 0),
		Adjustments:         Adjustments{GlobalDiscount: decimal.Zero, Surcharge: decimal.Zero, OtherTaxes: decimal.Zero, DetractionPercent: decimal.Zero},
		Totals:              ZeroTotals(),
		Status:              DocumentStatusDraft,
	}, nil
}

func seriesFitsType(docType valueobject.DocumentType, code string) bool {
	if len(code) != numbering.SeriesCodeLength {
		return false
	}
	for _, p := range docType.SeriesPrefixes() {
		if code[0] == p {
			return true
		}
	}
	return false
}

func normalizeExchangeRate(currency valueobject.Currency, rate decimal.Decimal) (decimal.Decimal, error) {
	if !currency.IsValid() {
		return decimal.Zero, shared.NewDomainError("INVALID_CURRENCY", fmt.Sprintf("Unsupported currency: %s", currency))
	}
	if currency == valueobject.DefaultCurrency && rate.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	if !rate.IsPositive() {
		return decimal.Zero, shared.NewDomainError("INVALID_EXCHANGE_RATE", "Exchange rate must be positive")
	}
	if !rate.Equal(rate.Round(valueobject.RatePlaces)) {
		return decimal.Zero, shared.NewDomainError("INVALID_EXCHANGE_RATE",
			fmt.Sprintf("Exchange rate cannot have more than %d decimal places", valueobject.RatePlaces))
	}
	return rate, nil
}

// Header returns the shared part of the document
func (h *DocumentHeader) Header() *DocumentHeader {
	return h
}

// Type returns the document type
func (h *DocumentHeader) Type() valueobject.DocumentType {
	return h.DocumentType
}

// CurrentStatus returns the lifecycle state
func (h *DocumentHeader) CurrentStatus() DocumentStatus {
	return h.Status
}

// CurrentTotals returns the stored totals
func (h *DocumentHeader) CurrentTotals() Totals {
	return h.Totals
}

// CanModify returns true while lines and totals may change
func (h *DocumentHeader) CanModify() bool {
	return h.Status.CanModify()
}

// CanVoid returns true only for accepted documents
func (h *DocumentHeader) CanVoid() bool {
	return h.Status.CanVoid()
}

// IsNumbered returns true once a number has been assigned
func (h *DocumentHeader) IsNumbered() bool {
	return h.Number != nil
}

// LineFigures returns the stored figures of every line
func (h *DocumentHeader) LineFigures() []taxation.LineFigures {
	figures := make([]taxation.LineFigures, len(h.Lines))
	for i := range h.Lines {
		figures[i] = h.Lines[i].Figures()
	}
	return figures
}

// GetLine returns a line by its ID
func (h *DocumentHeader) GetLine(lineID uuid.UUID) *LineItem {
	for i := range h.Lines {
		if h.Lines[i].ID == lineID {
			return &h.Lines[i]
		}
	}
	return nil
}

// ============================================
// Editing
// ============================================

func (h *DocumentHeader) ensureModifiable() error {
	if !h.Status.CanModify() {
		return shared.NewDomainError(shared.ErrDocumentLocked.Code,
			fmt.Sprintf("Cannot modify a document in %s status", h.Status))
	}
	return nil
}

// applyEdit recomputes totals for the proposed lines and adjustments and commits
// them only if the computation succeeds. A validated document returns to draft.
func (h *DocumentHeader) applyEdit(lines []LineItem, adj Adjustments) error {
	figures := make([]taxation.LineFigures, len(lines))
	for i := range lines {
		figures[i] = lines[i].Figures()
	}
	totals, err := Recompute(figures, adj)
	if err != nil {
		return err
	}
	h.Lines = lines
	h.Adjustments = adj
	h.Totals = totals
	h.reopen()
	h.Touch()
	return nil
}

func (h *DocumentHeader) reopen() {
	if h.Status != DocumentStatusValidated {
		return
	}
	next, _ := h.Status.Next(ActionEdit)
	h.Status = next
	h.ValidatedAt = nil
	h.AddDomainEvent(NewDocumentReopenedEvent(h))
}

func (h *DocumentHeader) copyLines() []LineItem {
	lines := make([]LineItem, len(h.Lines))
	copy(lines, h.Lines)
	return lines
}

// AddLine appends a computed line and recomputes totals
func (h *DocumentHeader) AddLine(spec LineSpec) (*LineItem, error) {
	if err := h.ensureModifiable(); err != nil {
		return nil, err
	}
	item, err := NewLineItem(h.ID, len(h.Lines)+1, spec)
	if err != nil {
		return nil, err
	}
	lines := append(h.copyLines(), *item)
	if err := h.applyEdit(lines, h.Adjustments); err != nil {
		return nil, err
	}
	return item, nil
}

// ReplaceLines swaps the whole line set for a new batch
func (h *DocumentHeader) ReplaceLines(specs []LineSpec) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	lines := make([]LineItem, 0, len(specs))
	for i, spec := range specs {
		item, err := NewLineItem(h.ID, i+1, spec)
		if err != nil {
			return shared.NewDomainError(shared.CodeOf(err), fmt.Sprintf("Line %d: %s", i+1, err.Error()))
		}
		lines = append(lines, *item)
	}
	return h.applyEdit(lines, h.Adjustments)
}

// UpdateLine replaces the inputs of an existing line
func (h *DocumentHeader) UpdateLine(lineID uuid.UUID, spec LineSpec) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	lines := h.copyLines()
	for i := range lines {
		if lines[i].ID != lineID {
			continue
		}
		item, err := NewLineItem(h.ID, lines[i].LineNo, spec)
		if err != nil {
			return err
		}
		item.ID = lineID
		lines[i] = *item
		return h.applyEdit(lines, h.Adjustments)
	}
	return shared.NewDomainError("LINE_NOT_FOUND", "Document line not found")
}

// RemoveLine drops a line and renumbers the remaining ones
func (h *DocumentHeader) RemoveLine(lineID uuid.UUID) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	lines := make([]LineItem, 0, len(h.Lines))
	found := false
	for _, l := range h.Lines {
		if l.ID == lineID {
			found = true
			continue
		}
		l.LineNo = len(lines) + 1
		lines = append(lines, l)
	}
	if !found {
		return shared.NewDomainError("LINE_NOT_FOUND", "Document line not found")
	}
	return h.applyEdit(lines, h.Adjustments)
}

// SetGlobalDiscount sets the document-level discount
func (h *DocumentHeader) SetGlobalDiscount(amount decimal.Decimal) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	adj := h.Adjustments
	adj.GlobalDiscount = amount
	return h.applyEdit(h.copyLines(), adj)
}

// SetSurcharge sets the document-level surcharge
func (h *DocumentHeader) SetSurcharge(amount decimal.Decimal) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	adj := h.Adjustments
	adj.Surcharge = amount
	return h.applyEdit(h.copyLines(), adj)
}

// SetOtherTaxes sets taxes other than the general sales tax (e.g. excise)
func (h *DocumentHeader) SetOtherTaxes(amount decimal.Decimal) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	adj := h.Adjustments
	adj.OtherTaxes = amount
	return h.applyEdit(h.copyLines(), adj)
}

// SetCustomer changes the customer printed on the document
func (h *DocumentHeader) SetCustomer(customerID *uuid.UUID, party valueobject.Party) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	h.CustomerID = customerID
	h.Customer = party
	h.reopen()
	h.Touch()
	return nil
}

// SetCurrency changes the document currency and exchange rate
func (h *DocumentHeader) SetCurrency(currency valueobject.Currency, exchangeRate decimal.Decimal) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	rate, err := normalizeExchangeRate(currency, exchangeRate)
	if err != nil {
		return err
	}
	h.Currency = currency
	h.ExchangeRate = rate
	h.reopen()
	h.Touch()
	return nil
}

// SetDueDate sets the payment due date
func (h *DocumentHeader) SetDueDate(due *time.Time) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	if due != nil && due.Before(truncateDay(h.IssueDate)) {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}
	h.DueDate = due
	h.Touch()
	return nil
}

// SetNotes sets free-text observations
func (h *DocumentHeader) SetNotes(notes string) error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	h.Notes = notes
	h.Touch()
	return nil
}

// RecomputeTotals re-derives every line and the document totals from the line inputs.
// Invoking it twice on unchanged lines yields identical totals.
func (h *DocumentHeader) RecomputeTotals() error {
	if err := h.ensureModifiable(); err != nil {
		return err
	}
	lines, totals, err := h.freshFigures()
	if err != nil {
		return err
	}
	h.Lines = lines
	h.Totals = totals
	return nil
}

func (h *DocumentHeader) freshFigures() ([]LineItem, Totals, error) {
	lines := make([]LineItem, len(h.Lines))
	figures := make([]taxation.LineFigures, len(h.Lines))
	for i, l := range h.Lines {
		fresh, err := l.Recomputed()
		if err != nil {
			return nil, Totals{}, err
		}
		lines[i] = fresh
		figures[i] = fresh.Figures()
	}
	totals, err := Recompute(figures, h.Adjustments)
	if err != nil {
		return nil, Totals{}, err
	}
	return lines, totals, nil
}

// ============================================
// Lifecycle
// ============================================

func (h *DocumentHeader) next(action DocumentAction) (DocumentStatus, error) {
	to, ok := h.Status.Next(action)
	if !ok || action == ActionEdit {
		return h.Status, shared.NewDomainError(shared.ErrInvalidStateTransition.Code,
			fmt.Sprintf("Cannot %s a document in %s status", action, h.Status))
	}
	return to, nil
}

func (h *DocumentHeader) validate(checkVariant func() error) error {
	to, err := h.next(ActionValidate)
	if err != nil {
		return err
	}
	if len(h.Lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Cannot validate a document without lines")
	}
	lines, totals, err := h.freshFigures()
	if err != nil {
		return err
	}
	for i := range lines {
		if !lines[i].Total.Equal(h.Lines[i].Total) || !lines[i].Tax.Equal(h.Lines[i].Tax) {
			return shared.NewDomainError("TOTALS_MISMATCH", fmt.Sprintf("Line %d figures are stale", h.Lines[i].LineNo))
		}
	}
	if !totals.Equal(h.Totals) {
		return shared.NewDomainError("TOTALS_MISMATCH", "Document totals do not match its lines")
	}
	if h.Customer.IsEmpty() {
		return shared.NewDomainError(shared.ErrMissingParty.Code, "Customer is required")
	}
	if err := checkVariant(); err != nil {
		return err
	}

	from := h.Status
	now := time.Now()
	h.Status = to
	h.ValidatedAt = &now
	h.UpdatedAt = now
	h.AddDomainEvent(NewDocumentValidatedEvent(h, from))
	return nil
}

func (h *DocumentHeader) submit(ctx context.Context, allocator numbering.NumberAllocator, fingerprint func() string) error {
	to, err := h.next(ActionSubmit)
	if err != nil {
		return err
	}

	var allocation *numbering.Allocation
	if h.Number == nil {
		alloc, err := allocator.Allocate(ctx, h.SeriesID)
		if err != nil {
			return err
		}
		if alloc.SeriesID != h.SeriesID || alloc.DocumentType != h.DocumentType {
			return shared.NewDomainError("SERIES_MISMATCH",
				fmt.Sprintf("Series %s does not number %s documents", alloc.SeriesCode, h.DocumentType.Label()))
		}
		allocation = &alloc
	}

	from := h.Status
	if allocation != nil {
		n := allocation.Number
		h.Number = &n
		h.FullNumber = allocation.FullNumber
		for _, e := range allocation.Events {
			h.AddDomainEvent(e)
		}
	}
	now := time.Now()
	h.ContentHash = h.hash(fingerprint())
	h.Status = to
	h.SubmittedAt = &now
	h.SubmissionCount++
	h.UpdatedAt = now
	h.AddDomainEvent(NewDocumentSubmittedEvent(h, from, allocation != nil))
	return nil
}

// ApplyAuthorityResponse records the single outcome reported by the tax authority
func (h *DocumentHeader) ApplyAuthorityResponse(resp AuthorityResponse) error {
	action := ActionAuthorityReject
	if resp.Accepted {
		action = ActionAuthorityAccept
	}
	to, err := h.next(action)
	if err != nil {
		return err
	}

	from := h.Status
	now := time.Now()
	if resp.ReceivedAt.IsZero() {
		resp.ReceivedAt = now
	}
	resp.Notes = append([]string(nil), resp.Notes...)
	resp.RawPayload = append([]byte(nil), resp.RawPayload...)
	h.AuthorityResponse = &resp
	h.Status = to
	h.ResolvedAt = &now
	h.UpdatedAt = now
	if resp.Accepted {
		h.AddDomainEvent(NewDocumentAcceptedEvent(h, from))
	} else {
		h.AddDomainEvent(NewDocumentRejectedEvent(h, from))
	}
	return nil
}

// Reset returns a rejected document to draft. The assigned number stays
// reserved for this document and is reused when it is submitted again.
func (h *DocumentHeader) Reset() error {
	to, err := h.next(ActionReset)
	if err != nil {
		return err
	}
	from := h.Status
	h.Status = to
	h.ContentHash = ""
	h.ValidatedAt = nil
	h.Touch()
	h.AddDomainEvent(NewDocumentResetEvent(h, from))
	return nil
}

// Void cancels an accepted document; the correcting document (usually a credit note) is mandatory
func (h *DocumentHeader) Void(correctingDocumentID uuid.UUID, reason string) error {
	to, err := h.next(ActionVoid)
	if err != nil {
		return err
	}
	if correctingDocumentID == uuid.Nil {
		return shared.NewDomainError(shared.ErrMissingCorrection.Code, "Voiding requires a linked correcting document")
	}
	if correctingDocumentID == h.ID {
		return shared.NewDomainError(shared.ErrMissingCorrection.Code, "A document cannot correct itself")
	}

	from := h.Status
	now := time.Now()
	h.Status = to
	h.CorrectingDocumentID = &correctingDocumentID
	h.VoidReason = strings.TrimSpace(reason)
	h.VoidedAt = &now
	h.UpdatedAt = now
	h.AddDomainEvent(NewDocumentVoidedEvent(h, from))
	return nil
}

// hash computes the SHA-256 content hash over the numbered document
func (h *DocumentHeader) hash(variant string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s|%s",
		h.DocumentType, h.FullNumber, h.IssueDate.Format("2006-01-02"),
		h.Customer.IdentityType(), h.Customer.IdentityNumber(),
		h.Currency, h.ExchangeRate.StringFixed(valueobject.RatePlaces))
	for _, l := range h.Lines {
		fmt.Fprintf(&b, "|%d;%s;%s;%s;%s;%s;%s;%s;%s;%s",
			l.LineNo, l.Description,
			l.Quantity.StringFixed(4), l.UnitPrice.StringFixed(4), l.UnitDiscount.StringFixed(4),
			l.TaxabilityCode, l.TaxRate.StringFixed(2),
			l.Value.StringFixed(2), l.Tax.StringFixed(2), l.Total.StringFixed(2))
	}
	t := h.Totals
	fmt.Fprintf(&b, "|%s;%s;%s;%s;%s;%s;%s|%s",
		t.Subtotal.StringFixed(2), t.Discount.StringFixed(2), t.Surcharge.StringFixed(2),
		t.TaxTotal.StringFixed(2), t.OtherTaxes.StringFixed(2), t.GrandTotal.StringFixed(2),
		t.Detraction.StringFixed(2), variant)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
