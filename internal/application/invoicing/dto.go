package invoicing

import (
	"encoding/json"
	"time"

	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Requests ====================

// PartyInput identifies the customer printed on a document
type PartyInput struct {
	IdentityType   string `json:"identity_type" validate:"required,oneof=0 1 4 6 7"`
	IdentityNumber string `json:"identity_number" validate:"max=20"`
	Name           string `json:"name" validate:"max=200"`
	Address        string `json:"address" validate:"max=300"`
}

// ToParty converts the input into a validated party
func (p PartyInput) ToParty() (valueobject.Party, error) {
	return valueobject.NewParty(valueobject.IdentityType(p.IdentityType), p.IdentityNumber, p.Name, p.Address)
}

// CorrectionInput identifies the document modified by a credit or debit note
type CorrectionInput struct {
	DocumentID   *uuid.UUID `json:"document_id"`
	DocumentType string     `json:"document_type" validate:"required,oneof=01 03"`
	FullNumber   string     `json:"full_number" validate:"required,max=13"`
	ReasonCode   string     `json:"reason_code" validate:"required,len=2,numeric"`
	Reason       string     `json:"reason" validate:"max=250"`
}

// AddLineRequest is one line of a line batch
type AddLineRequest struct {
	ProductID        *uuid.UUID       `json:"product_id"`
	ProductCode      string           `json:"product_code" validate:"max=50"`
	Description      string           `json:"description" validate:"required,max=500"`
	UnitCode         string           `json:"unit_code" validate:"max=3"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitPrice        decimal.Decimal  `json:"unit_price"`
	UnitDiscount     decimal.Decimal  `json:"unit_discount"`
	DiscountPercent  *decimal.Decimal `json:"discount_percent"`
	TaxabilityCode   string           `json:"taxability_code" validate:"required,len=2,numeric"`
	TaxRate          *decimal.Decimal `json:"tax_rate"`
	PriceIncludesTax bool             `json:"price_includes_tax"`
}

// CreateDocumentRequest opens a draft document
type CreateDocumentRequest struct {
	DocumentType   string           `json:"document_type" validate:"required,oneof=01 03 07 08"`
	SeriesID       uuid.UUID        `json:"series_id" validate:"required"`
	CustomerID     *uuid.UUID       `json:"customer_id"`
	Customer       *PartyInput      `json:"customer" validate:"omitempty"`
	Currency       string           `json:"currency" validate:"omitempty,oneof=PEN USD EUR"`
	ExchangeRate   decimal.Decimal  `json:"exchange_rate"`
	DueDate        *time.Time       `json:"due_date"`
	Correction     *CorrectionInput `json:"correction" validate:"omitempty"`
	Lines          []AddLineRequest `json:"lines" validate:"dive"`
	GlobalDiscount *decimal.Decimal `json:"global_discount"`
	Notes          string           `json:"notes" validate:"max=1000"`
}

// ReplaceLinesRequest swaps the whole line set of a draft
type ReplaceLinesRequest struct {
	Lines []AddLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// AdjustmentsRequest updates the document-level figures; nil fields stay unchanged
type AdjustmentsRequest struct {
	GlobalDiscount *decimal.Decimal `json:"global_discount"`
	Surcharge      *decimal.Decimal `json:"surcharge"`
	OtherTaxes     *decimal.Decimal `json:"other_taxes"`
}

// InvoiceTermsRequest updates invoice-only fields
type InvoiceTermsRequest struct {
	PaymentCondition  string           `json:"payment_condition" validate:"omitempty,oneof=CASH CREDIT"`
	CreditDays        int              `json:"credit_days" validate:"gte=0,lte=365"`
	PurchaseOrder     *string          `json:"purchase_order" validate:"omitempty,max=50"`
	DetractionCode    string           `json:"detraction_code" validate:"omitempty,len=3,numeric"`
	DetractionPercent *decimal.Decimal `json:"detraction_percent"`
	ClearDetraction   bool             `json:"clear_detraction"`
}

// AuthorityResponseRequest carries the outcome reported by the tax authority
type AuthorityResponseRequest struct {
	Accepted    bool            `json:"accepted"`
	Code        string          `json:"code" validate:"required,max=10"`
	Description string          `json:"description" validate:"max=500"`
	Notes       []string        `json:"notes"`
	TicketID    string          `json:"ticket_id" validate:"max=100"`
	CDRDigest   string          `json:"cdr_digest" validate:"max=128"`
	RawPayload  json.RawMessage `json:"raw_payload"`
	ReceivedAt  *time.Time      `json:"received_at"`
}

// VoidDocumentRequest voids an accepted document against its correcting note
type VoidDocumentRequest struct {
	CorrectingDocumentID uuid.UUID `json:"correcting_document_id" validate:"required"`
	Reason               string    `json:"reason" validate:"required,max=250"`
}

// DocumentListFilter represents filter options for document list
type DocumentListFilter struct {
	DocumentType string `json:"document_type" validate:"omitempty,oneof=01 03 07 08"`
	Status       string `json:"status" validate:"omitempty,oneof=DRAFT VALIDATED SUBMITTED ACCEPTED REJECTED VOIDED"`
	SeriesCode   string `json:"series_code" validate:"omitempty,len=4"`
	Page         int    `json:"page" validate:"gte=0"`
	PageSize     int    `json:"page_size" validate:"gte=0,lte=100"`
}

// ==================== Responses ====================

// LineResponse is the read model of a document line
type LineResponse struct {
	ID               uuid.UUID       `json:"id"`
	LineNo           int             `json:"line_no"`
	ProductID        *uuid.UUID      `json:"product_id,omitempty"`
	ProductCode      string          `json:"product_code,omitempty"`
	Description      string          `json:"description"`
	UnitCode         string          `json:"unit_code"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	UnitDiscount     decimal.Decimal `json:"unit_discount"`
	TaxabilityCode   string          `json:"taxability_code"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	PriceIncludesTax bool            `json:"price_includes_tax"`
	Value            decimal.Decimal `json:"value"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
}

// TotalsResponse is the read model of document totals
type TotalsResponse struct {
	TaxedBase      decimal.Decimal `json:"taxed_base"`
	ExemptBase     decimal.Decimal `json:"exempt_base"`
	UnaffectedBase decimal.Decimal `json:"unaffected_base"`
	ExportBase     decimal.Decimal `json:"export_base"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Surcharge      decimal.Decimal `json:"surcharge"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	OtherTaxes     decimal.Decimal `json:"other_taxes"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	Detraction     decimal.Decimal `json:"detraction"`
}

// DocumentResponse is the read model of a fiscal document
type DocumentResponse struct {
	ID                   uuid.UUID        `json:"id"`
	TenantID             uuid.UUID        `json:"tenant_id"`
	DocumentType         string           `json:"document_type"`
	SeriesID             uuid.UUID        `json:"series_id"`
	SeriesCode           string           `json:"series_code"`
	Number               *int64           `json:"number,omitempty"`
	FullNumber           string           `json:"full_number,omitempty"`
	Status               string           `json:"status"`
	CustomerID           *uuid.UUID       `json:"customer_id,omitempty"`
	CustomerIdentityType string           `json:"customer_identity_type"`
	CustomerIdentity     string           `json:"customer_identity,omitempty"`
	CustomerName         string           `json:"customer_name"`
	Currency             string           `json:"currency"`
	ExchangeRate         decimal.Decimal  `json:"exchange_rate"`
	IssueDate            time.Time        `json:"issue_date"`
	DueDate              *time.Time       `json:"due_date,omitempty"`
	Lines                []LineResponse   `json:"lines"`
	Totals               TotalsResponse   `json:"totals"`
	ContentHash          string           `json:"content_hash,omitempty"`
	SubmissionCount      int              `json:"submission_count"`
	AuthorityCode        string           `json:"authority_code,omitempty"`
	AuthorityNotes       []string         `json:"authority_notes,omitempty"`
	CorrectingDocumentID *uuid.UUID       `json:"correcting_document_id,omitempty"`
	Correction           *CorrectionInput `json:"correction,omitempty"`
	OperationType        string           `json:"operation_type,omitempty"`
	PaymentCondition     string           `json:"payment_condition,omitempty"`
	Notes                string           `json:"notes,omitempty"`
	Version              int              `json:"version"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// DocumentListItemResponse is the list read model of a fiscal document
type DocumentListItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	DocumentType string          `json:"document_type"`
	FullNumber   string          `json:"full_number,omitempty"`
	SeriesCode   string          `json:"series_code"`
	Status       string          `json:"status"`
	CustomerName string          `json:"customer_name"`
	Currency     string          `json:"currency"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	IssueDate    time.Time       `json:"issue_date"`
}

// ==================== Conversions ====================

// ToLineSpec converts a line request into the domain line spec
func (r AddLineRequest) ToLineSpec(defaultRate decimal.Decimal) (invoicing.LineSpec, error) {
	code := taxation.TaxabilityCode(r.TaxabilityCode)
	rate := defaultRate
	if r.TaxRate != nil {
		rate = *r.TaxRate
	}
	if !code.IsTaxed() {
		rate = decimal.Zero
	}
	discount := r.UnitDiscount
	if r.DiscountPercent != nil {
		d, err := taxation.DiscountFromPercent(r.UnitPrice, *r.DiscountPercent)
		if err != nil {
			return invoicing.LineSpec{}, err
		}
		discount = d
	}
	return invoicing.LineSpec{
		ProductID:        r.ProductID,
		ProductCode:      r.ProductCode,
		Description:      r.Description,
		UnitCode:         r.UnitCode,
		Quantity:         r.Quantity,
		UnitPrice:        r.UnitPrice,
		UnitDiscount:     discount,
		TaxabilityCode:   code,
		TaxRate:          rate,
		PriceIncludesTax: r.PriceIncludesTax,
	}, nil
}

// ToAuthorityResponse converts the request into the domain value
func (r AuthorityResponseRequest) ToAuthorityResponse() invoicing.AuthorityResponse {
	resp := invoicing.AuthorityResponse{
		Accepted:    r.Accepted,
		Code:        r.Code,
		Description: r.Description,
		Notes:       r.Notes,
		TicketID:    r.TicketID,
		CDRDigest:   r.CDRDigest,
		RawPayload:  r.RawPayload,
	}
	if r.ReceivedAt != nil {
		resp.ReceivedAt = *r.ReceivedAt
	}
	return resp
}

func toTotalsResponse(t invoicing.Totals) TotalsResponse {
	return TotalsResponse{
		TaxedBase:      t.TaxedBase,
		ExemptBase:     t.ExemptBase,
		UnaffectedBase: t.UnaffectedBase,
		ExportBase:     t.ExportBase,
		Subtotal:       t.Subtotal,
		Discount:       t.Discount,
		Surcharge:      t.Surcharge,
		TaxTotal:       t.TaxTotal,
		OtherTaxes:     t.OtherTaxes,
		GrandTotal:     t.GrandTotal,
		Detraction:     t.Detraction,
	}
}

// ToDocumentResponse converts a domain document to a response DTO
func ToDocumentResponse(doc invoicing.Document) DocumentResponse {
	h := doc.Header()
	lines := make([]LineResponse, len(h.Lines))
	for i, l := range h.Lines {
		lines[i] = LineResponse{
			ID:               l.ID,
			LineNo:           l.LineNo,
			ProductID:        l.ProductID,
			ProductCode:      l.ProductCode,
			Description:      l.Description,
			UnitCode:         l.UnitCode,
			Quantity:         l.Quantity,
			UnitPrice:        l.UnitPrice,
			UnitDiscount:     l.UnitDiscount,
			TaxabilityCode:   string(l.TaxabilityCode),
			TaxRate:          l.TaxRate,
			PriceIncludesTax: l.PriceIncludesTax,
			Value:            l.Value,
			Tax:              l.Tax,
			Total:            l.Total,
		}
	}

	resp := DocumentResponse{
		ID:                   h.ID,
		TenantID:             h.TenantID,
		DocumentType:         string(h.DocumentType),
		SeriesID:             h.SeriesID,
		SeriesCode:           h.SeriesCode,
		Number:               h.Number,
		FullNumber:           h.FullNumber,
		Status:               string(h.Status),
		CustomerID:           h.CustomerID,
		CustomerIdentityType: string(h.Customer.IdentityType()),
		CustomerIdentity:     h.Customer.IdentityNumber(),
		CustomerName:         h.Customer.Name(),
		Currency:             string(h.Currency),
		ExchangeRate:         h.ExchangeRate,
		IssueDate:            h.IssueDate,
		DueDate:              h.DueDate,
		Lines:                lines,
		Totals:               toTotalsResponse(h.Totals),
		ContentHash:          h.ContentHash,
		SubmissionCount:      h.SubmissionCount,
		CorrectingDocumentID: h.CorrectingDocumentID,
		Notes:                h.Notes,
		Version:              h.Version,
		CreatedAt:            h.CreatedAt,
		UpdatedAt:            h.UpdatedAt,
	}
	if h.AuthorityResponse != nil {
		resp.AuthorityCode = h.AuthorityResponse.Code
		resp.AuthorityNotes = h.AuthorityResponse.Notes
	}
	if c := invoicing.CorrectionOf(doc); c != nil {
		resp.Correction = &CorrectionInput{
			DocumentID:   c.DocumentID,
			DocumentType: string(c.DocumentType),
			FullNumber:   c.FullNumber,
			ReasonCode:   c.ReasonCode,
			Reason:       c.Reason,
		}
	}
	if inv, ok := doc.(*invoicing.Invoice); ok {
		resp.OperationType = inv.OperationType
		resp.PaymentCondition = string(inv.PaymentCondition)
	}
	return resp
}

// ToDocumentListItemResponse converts a domain document to a list item DTO
func ToDocumentListItemResponse(doc invoicing.Document) DocumentListItemResponse {
	h := doc.Header()
	return DocumentListItemResponse{
		ID:           h.ID,
		DocumentType: string(h.DocumentType),
		FullNumber:   h.FullNumber,
		SeriesCode:   h.SeriesCode,
		Status:       string(h.Status),
		CustomerName: h.Customer.Name(),
		Currency:     string(h.Currency),
		GrandTotal:   h.Totals.GrandTotal,
		IssueDate:    h.IssueDate,
	}
}
