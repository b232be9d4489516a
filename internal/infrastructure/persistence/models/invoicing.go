package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FiscalDocumentModel is the persistence model for every fiscal document variant.
// Variant-specific columns stay empty for the variants that do not use them.
type FiscalDocumentModel struct {
	TenantAggregateModel
	DocumentType string     `gorm:"type:varchar(2);not null;index"`
	SeriesID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_fiscal_documents_series_number,priority:1"`
	SeriesCode   string     `gorm:"type:varchar(4);not null"`
	Number       *int64     `gorm:"uniqueIndex:idx_fiscal_documents_series_number,priority:2"`
	FullNumber   string     `gorm:"type:varchar(13);index"`
	CustomerID   *uuid.UUID `gorm:"type:uuid;index"`

	CustomerIdentityType   string `gorm:"type:varchar(1)"`
	CustomerIdentityNumber string `gorm:"type:varchar(20)"`
	CustomerName           string `gorm:"type:varchar(200)"`
	CustomerAddress        string `gorm:"type:varchar(300)"`

	Currency     string          `gorm:"type:varchar(3);not null"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(10,4);not null;default:1"`
	IssueDate    time.Time       `gorm:"not null;index"`
	DueDate      *time.Time

	GlobalDiscount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Surcharge         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	OtherTaxes        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	DetractionPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`

	TaxedBase      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ExemptBase     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	UnaffectedBase decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ExportBase     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxTotal       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Detraction     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`

	Status               string     `gorm:"type:varchar(20);not null;index"`
	AuthorityResponse    *string    `gorm:"type:jsonb"`
	ContentHash          string     `gorm:"type:varchar(64)"`
	SubmissionCount      int        `gorm:"not null;default:0"`
	CorrectingDocumentID *uuid.UUID `gorm:"type:uuid"`
	VoidReason           string     `gorm:"type:varchar(500)"`
	Notes                string     `gorm:"type:text"`
	ValidatedAt          *time.Time
	SubmittedAt          *time.Time
	ResolvedAt           *time.Time
	VoidedAt             *time.Time

	// Invoice
	OperationType    string `gorm:"type:varchar(4)"`
	PurchaseOrder    string `gorm:"type:varchar(50)"`
	PaymentCondition string `gorm:"type:varchar(10)"`
	CreditDays       int    `gorm:"not null;default:0"`
	DetractionCode   string `gorm:"type:varchar(3)"`

	// Receipt
	AnonymousLimit decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`

	// Credit and debit notes
	CorrectionDocumentID   *uuid.UUID `gorm:"type:uuid"`
	CorrectionDocumentType string     `gorm:"type:varchar(2)"`
	CorrectionFullNumber   string     `gorm:"type:varchar(13);index"`
	CorrectionReasonCode   string     `gorm:"type:varchar(2)"`
	CorrectionReason       string     `gorm:"type:varchar(250)"`

	Lines []FiscalDocumentLineModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (FiscalDocumentModel) TableName() string {
	return "fiscal_documents"
}

// FiscalDocumentLineModel is the persistence model for a document line
type FiscalDocumentLineModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo           int             `gorm:"not null"`
	ProductID        *uuid.UUID      `gorm:"type:uuid"`
	ProductCode      string          `gorm:"type:varchar(50)"`
	Description      string          `gorm:"type:varchar(500);not null"`
	UnitCode         string          `gorm:"type:varchar(5);not null"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitDiscount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxabilityCode   string          `gorm:"type:varchar(2);not null"`
	TaxRate          decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	PriceIncludesTax bool            `gorm:"not null"`
	Value            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Tax              decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Total            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (FiscalDocumentLineModel) TableName() string {
	return "fiscal_document_lines"
}

// FiscalDocumentModelFromDomain creates a persistence model from any document variant
func FiscalDocumentModelFromDomain(doc invoicing.Document) (*FiscalDocumentModel, error) {
	h := doc.Header()
	m := &FiscalDocumentModel{
		DocumentType:           string(h.DocumentType),
		SeriesID:               h.SeriesID,
		SeriesCode:             h.SeriesCode,
		Number:                 h.Number,
		FullNumber:             h.FullNumber,
		CustomerID:             h.CustomerID,
		CustomerIdentityType:   string(h.Customer.IdentityType()),
		CustomerIdentityNumber: h.Customer.IdentityNumber(),
		CustomerName:           h.Customer.Name(),
		CustomerAddress:        h.Customer.Address(),
		Currency:               string(h.Currency),
		ExchangeRate:           h.ExchangeRate,
		IssueDate:              h.IssueDate,
		DueDate:                h.DueDate,
		GlobalDiscount:         h.Adjustments.GlobalDiscount,
		Surcharge:              h.Adjustments.Surcharge,
		OtherTaxes:             h.Adjustments.OtherTaxes,
		DetractionPercent:      h.Adjustments.DetractionPercent,
		TaxedBase:              h.Totals.TaxedBase,
		ExemptBase:             h.Totals.ExemptBase,
		UnaffectedBase:         h.Totals.UnaffectedBase,
		ExportBase:             h.Totals.ExportBase,
		Subtotal:               h.Totals.Subtotal,
		TaxTotal:               h.Totals.TaxTotal,
		GrandTotal:             h.Totals.GrandTotal,
		Detraction:             h.Totals.Detraction,
		Status:                 string(h.Status),
		ContentHash:            h.ContentHash,
		SubmissionCount:        h.SubmissionCount,
		CorrectingDocumentID:   h.CorrectingDocumentID,
		VoidReason:             h.VoidReason,
		Notes:                  h.Notes,
		ValidatedAt:            h.ValidatedAt,
		SubmittedAt:            h.SubmittedAt,
		ResolvedAt:             h.ResolvedAt,
		VoidedAt:               h.VoidedAt,
		AnonymousLimit:         decimal.Zero,
	}
	m.FromDomainTenantAggregateRoot(h.TenantAggregateRoot)

	if h.AuthorityResponse != nil {
		raw, err := json.Marshal(h.AuthorityResponse)
		if err != nil {
			return nil, fmt.Errorf("encode authority response: %w", err)
		}
		s := string(raw)
		m.AuthorityResponse = &s
	}

	switch d := doc.(type) {
	case *invoicing.Invoice:
		m.OperationType = d.OperationType
		m.PurchaseOrder = d.PurchaseOrder
		m.PaymentCondition = string(d.PaymentCondition)
		m.CreditDays = d.CreditDays
		m.DetractionCode = d.DetractionCode
	case *invoicing.Receipt:
		m.AnonymousLimit = d.AnonymousLimit
	}
	if c := invoicing.CorrectionOf(doc); c != nil {
		m.CorrectionDocumentID = c.DocumentID
		m.CorrectionDocumentType = string(c.DocumentType)
		m.CorrectionFullNumber = c.FullNumber
		m.CorrectionReasonCode = c.ReasonCode
		m.CorrectionReason = c.Reason
	}

	m.Lines = FiscalDocumentLineModelsFromDomain(h.Lines)
	return m, nil
}

// FiscalDocumentLineModelsFromDomain converts the lines of a document
func FiscalDocumentLineModelsFromDomain(lines []invoicing.LineItem) []FiscalDocumentLineModel {
	out := make([]FiscalDocumentLineModel, len(lines))
	for i, l := range lines {
		out[i] = FiscalDocumentLineModel{
			ID:               l.ID,
			DocumentID:       l.DocumentID,
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
	return out
}

// ToDomain rebuilds the document variant stored in the row
func (m *FiscalDocumentModel) ToDomain() (invoicing.Document, error) {
	header, err := m.header()
	if err != nil {
		return nil, err
	}

	switch valueobject.DocumentType(m.DocumentType) {
	case valueobject.DocumentTypeInvoice:
		return &invoicing.Invoice{
			DocumentHeader:   header,
			OperationType:    m.OperationType,
			PurchaseOrder:    m.PurchaseOrder,
			PaymentCondition: invoicing.PaymentCondition(m.PaymentCondition),
			CreditDays:       m.CreditDays,
			DetractionCode:   m.DetractionCode,
		}, nil
	case valueobject.DocumentTypeReceipt:
		return &invoicing.Receipt{DocumentHeader: header, AnonymousLimit: m.AnonymousLimit}, nil
	case valueobject.DocumentTypeCreditNote:
		return &invoicing.CreditNote{DocumentHeader: header, Correction: m.correction()}, nil
	case valueobject.DocumentTypeDebitNote:
		return &invoicing.DebitNote{DocumentHeader: header, Correction: m.correction()}, nil
	}
	return nil, fmt.Errorf("fiscal document %s has unknown type %q", m.ID, m.DocumentType)
}

func (m *FiscalDocumentModel) header() (invoicing.DocumentHeader, error) {
	h := invoicing.DocumentHeader{
		TenantAggregateRoot:  m.TenantAggregateRoot(),
		DocumentType:         valueobject.DocumentType(m.DocumentType),
		SeriesID:             m.SeriesID,
		SeriesCode:           m.SeriesCode,
		Number:               m.Number,
		FullNumber:           m.FullNumber,
		CustomerID:           m.CustomerID,
		Currency:             valueobject.Currency(m.Currency),
		ExchangeRate:         m.ExchangeRate,
		IssueDate:            m.IssueDate,
		DueDate:              m.DueDate,
		Status:               invoicing.DocumentStatus(m.Status),
		ContentHash:          m.ContentHash,
		SubmissionCount:      m.SubmissionCount,
		CorrectingDocumentID: m.CorrectingDocumentID,
		VoidReason:           m.VoidReason,
		Notes:                m.Notes,
		ValidatedAt:          m.ValidatedAt,
		SubmittedAt:          m.SubmittedAt,
		ResolvedAt:           m.ResolvedAt,
		VoidedAt:             m.VoidedAt,
		Adjustments: invoicing.Adjustments{
			GlobalDiscount:    m.GlobalDiscount,
			Surcharge:         m.Surcharge,
			OtherTaxes:        m.OtherTaxes,
			DetractionPercent: m.DetractionPercent,
		},
		Totals: invoicing.Totals{
			TaxedBase:      m.TaxedBase,
			ExemptBase:     m.ExemptBase,
			UnaffectedBase: m.UnaffectedBase,
			ExportBase:     m.ExportBase,
			Subtotal:       m.Subtotal,
			Discount:       m.GlobalDiscount,
			Surcharge:      m.Surcharge,
			TaxTotal:       m.TaxTotal,
			OtherTaxes:     m.OtherTaxes,
			GrandTotal:     m.GrandTotal,
			Detraction:     m.Detraction,
		},
		Lines: make([]invoicing.LineItem, len(m.Lines)),
	}
	if m.CustomerIdentityType != "" {
		h.Customer = valueobject.RestoreParty(valueobject.IdentityType(m.CustomerIdentityType),
			m.CustomerIdentityNumber, m.CustomerName, m.CustomerAddress)
	}
	if m.AuthorityResponse != nil && *m.AuthorityResponse != "" {
		var resp invoicing.AuthorityResponse
		if err := json.Unmarshal([]byte(*m.AuthorityResponse), &resp); err != nil {
			return invoicing.DocumentHeader{}, fmt.Errorf("decode authority response of %s: %w", m.ID, err)
		}
		h.AuthorityResponse = &resp
	}
	for i, l := range m.Lines {
		h.Lines[i] = l.ToDomain()
	}
	return h, nil
}

func (m *FiscalDocumentModel) correction() invoicing.Correction {
	return invoicing.Correction{
		DocumentID:   m.CorrectionDocumentID,
		DocumentType: valueobject.DocumentType(m.CorrectionDocumentType),
		FullNumber:   m.CorrectionFullNumber,
		ReasonCode:   m.CorrectionReasonCode,
		Reason:       m.CorrectionReason,
	}
}

// ToDomain converts the persistence model to a domain LineItem
func (l *FiscalDocumentLineModel) ToDomain() invoicing.LineItem {
	return invoicing.LineItem{
		ID:               l.ID,
		DocumentID:       l.DocumentID,
		LineNo:           l.LineNo,
		ProductID:        l.ProductID,
		ProductCode:      l.ProductCode,
		Description:      l.Description,
		UnitCode:         l.UnitCode,
		Quantity:         l.Quantity,
		UnitPrice:        l.UnitPrice,
		UnitDiscount:     l.UnitDiscount,
		TaxabilityCode:   taxation.TaxabilityCode(l.TaxabilityCode),
		TaxRate:          l.TaxRate,
		PriceIncludesTax: l.PriceIncludesTax,
		Value:            l.Value,
		Tax:              l.Tax,
		Total:            l.Total,
	}
}
