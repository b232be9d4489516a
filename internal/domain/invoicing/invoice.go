package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation types (catalogue 51)
const (
	OperationDomesticSale = "0101"
	OperationExport       = "0200"
	OperationDetraction   = "1001"
)

// PaymentCondition tells whether the invoice is paid on issue or on credit
type PaymentCondition string

const (
	PaymentConditionCash   PaymentCondition = "CASH"
	PaymentConditionCredit PaymentCondition = "CREDIT"
)

// IsValid checks if the payment condition is known
func (c PaymentCondition) IsValid() bool {
	return c == PaymentConditionCash || c == PaymentConditionCredit
}

// Invoice is a factura: issued to taxpayers identified by RUC
type Invoice struct {
	DocumentHeader
	OperationType    string
	PurchaseOrder    string
	PaymentCondition PaymentCondition
	CreditDays       int
	DetractionCode   string
}

// NewInvoice opens a draft invoice
func NewInvoice(tenantID uuid.UUID, series SeriesRef, customer valueobject.Party, currency valueobject.Currency, exchangeRate decimal.Decimal) (*Invoice, error) {
	header, err := newHeader(tenantID, valueobject.DocumentTypeInvoice, series, customer, currency, exchangeRate)
	if err != nil {
		return nil, err
	}
	inv := &Invoice{
		DocumentHeader:   header,
		OperationType:    OperationDomesticSale,
		PaymentCondition: PaymentConditionCash,
	}
	inv.AddDomainEvent(NewDocumentCreatedEvent(&inv.DocumentHeader))
	return inv, nil
}

// SetDetraction marks the invoice as subject to detraction with the given goods code and percentage
func (i *Invoice) SetDetraction(goodsCode string, percent decimal.Decimal) error {
	if err := i.ensureModifiable(); err != nil {
		return err
	}
	goodsCode = strings.TrimSpace(goodsCode)
	if goodsCode == "" {
		return shared.NewDomainError("INVALID_DETRACTION", "Detraction goods code is required")
	}
	if !percent.IsPositive() {
		return shared.NewDomainError("INVALID_DETRACTION", "Detraction percentage must be positive")
	}
	adj := i.Adjustments
	adj.DetractionPercent = percent
	if err := i.applyEdit(i.copyLines(), adj); err != nil {
		return err
	}
	i.DetractionCode = goodsCode
	i.OperationType = OperationDetraction
	return nil
}

// ClearDetraction removes the detraction
func (i *Invoice) ClearDetraction() error {
	if err := i.ensureModifiable(); err != nil {
		return err
	}
	adj := i.Adjustments
	adj.DetractionPercent = decimal.Zero
	if err := i.applyEdit(i.copyLines(), adj); err != nil {
		return err
	}
	i.DetractionCode = ""
	i.OperationType = OperationDomesticSale
	return nil
}

// IsSubjectToDetraction returns true if a detraction percentage is set
func (i *Invoice) IsSubjectToDetraction() bool {
	return i.Adjustments.DetractionPercent.IsPositive()
}

// SetPaymentTerms sets the payment condition; credit requires a positive number of days
func (i *Invoice) SetPaymentTerms(condition PaymentCondition, creditDays int) error {
	if err := i.ensureModifiable(); err != nil {
		return err
	}
	if !condition.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_CONDITION", fmt.Sprintf("Unknown payment condition: %s", condition))
	}
	if condition == PaymentConditionCredit && creditDays <= 0 {
		return shared.NewDomainError("INVALID_PAYMENT_CONDITION", "Credit invoices need a positive number of credit days")
	}
	if condition == PaymentConditionCash {
		creditDays = 0
	}
	i.PaymentCondition = condition
	i.CreditDays = creditDays
	if creditDays > 0 {
		due := truncateDay(i.IssueDate).AddDate(0, 0, creditDays)
		i.DueDate = &due
	} else {
		i.DueDate = nil
	}
	i.reopen()
	i.Touch()
	return nil
}

// SetPurchaseOrder records the customer's purchase order reference
func (i *Invoice) SetPurchaseOrder(ref string) error {
	if err := i.ensureModifiable(); err != nil {
		return err
	}
	i.PurchaseOrder = strings.TrimSpace(ref)
	i.Touch()
	return nil
}

// MarkExport switches the operation type to export; every line must then be export-coded
func (i *Invoice) MarkExport() error {
	if err := i.ensureModifiable(); err != nil {
		return err
	}
	if i.IsSubjectToDetraction() {
		return shared.NewDomainError("INVALID_OPERATION_TYPE", "Exports cannot be subject to detraction")
	}
	i.OperationType = OperationExport
	i.reopen()
	i.Touch()
	return nil
}

// Validate runs the draft → validated transition
func (i *Invoice) Validate() error {
	return i.validate(i.checkVariant)
}

// Submit runs the validated → submitted transition, assigning the number if needed
func (i *Invoice) Submit(ctx context.Context, allocator numbering.NumberAllocator) error {
	return i.submit(ctx, allocator, i.fingerprint)
}

// VerifyContentHash recomputes the content hash and compares it with the stored one
func (i *Invoice) VerifyContentHash() bool {
	return i.ContentHash != "" && i.ContentHash == i.hash(i.fingerprint())
}

func (i *Invoice) checkVariant() error {
	if !i.Customer.HasRUC() {
		return shared.NewDomainError(shared.ErrMissingParty.Code, "Invoices require a customer identified by RUC")
	}
	if i.Customer.Name() == "" {
		return shared.NewDomainError(shared.ErrMissingParty.Code, "Invoices require the customer legal name")
	}
	if i.PaymentCondition == PaymentConditionCredit && i.DueDate == nil {
		return shared.NewDomainError("INVALID_PAYMENT_CONDITION", "Credit invoices require a due date")
	}
	if i.OperationType == OperationExport {
		for _, l := range i.Lines {
			if l.TaxabilityCode != taxation.Export {
				return shared.NewDomainError("INVALID_OPERATION_TYPE",
					fmt.Sprintf("Line %d is not export-coded", l.LineNo))
			}
		}
	}
	return nil
}

func (i *Invoice) fingerprint() string {
	return strings.Join([]string{
		i.OperationType, i.PurchaseOrder, string(i.PaymentCondition),
		fmt.Sprintf("%d", i.CreditDays), i.DetractionCode,
		i.Adjustments.DetractionPercent.StringFixed(2),
	}, ";")
}

var _ Document = (*Invoice)(nil)
