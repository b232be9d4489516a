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

// DefaultAnonymousReceiptLimit is the grand total above which a receipt must identify its customer
var DefaultAnonymousReceiptLimit = decimal.NewFromInt(700)

// Receipt is a boleta: issued to final consumers, possibly anonymous
type Receipt struct {
	DocumentHeader
	AnonymousLimit decimal.Decimal
}

// NewReceipt opens a draft receipt. An empty customer becomes the anonymous party.
func NewReceipt(tenantID uuid.UUID, series SeriesRef, customer valueobject.Party, currency valueobject.Currency, exchangeRate decimal.Decimal) (*Receipt, error) {
	if customer.IsEmpty() {
		customer = valueobject.AnonymousParty()
	}
	header, err := newHeader(tenantID, valueobject.DocumentTypeReceipt, series, customer, currency, exchangeRate)
	if err != nil {
		return nil, err
	}
	r := &Receipt{
		DocumentHeader: header,
		AnonymousLimit: DefaultAnonymousReceiptLimit,
	}
	r.AddDomainEvent(NewDocumentCreatedEvent(&r.DocumentHeader))
	return r, nil
}

// Validate runs the draft → validated transition
func (r *Receipt) Validate() error {
	return r.validate(r.checkVariant)
}

// Submit runs the validated → submitted transition, assigning the number if needed
func (r *Receipt) Submit(ctx context.Context, allocator numbering.NumberAllocator) error {
	return r.submit(ctx, allocator, r.fingerprint)
}

// VerifyContentHash recomputes the content hash and compares it with the stored one
func (r *Receipt) VerifyContentHash() bool {
	return r.ContentHash != "" && r.ContentHash == r.hash(r.fingerprint())
}

func (r *Receipt) checkVariant() error {
	limit := r.AnonymousLimit
	if limit.IsZero() {
		limit = DefaultAnonymousReceiptLimit
	}
	if r.Customer.IsAnonymous() && r.Totals.GrandTotal.GreaterThan(limit) {
		return shared.NewDomainError(shared.ErrMissingParty.Code,
			fmt.Sprintf("Receipts above %s must identify the customer", limit.StringFixed(2)))
	}
	return nil
}

func (r *Receipt) fingerprint() string {
	return ""
}

var _ Document = (*Receipt)(nil)
