package pos

import (
	"fmt"
	"strings"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentKind is the family a payment method belongs to
type PaymentKind string

const (
	PaymentKindCash          PaymentKind = "cash"
	PaymentKindDebitCard     PaymentKind = "debit_card"
	PaymentKindCreditCard    PaymentKind = "credit_card"
	PaymentKindTransfer      PaymentKind = "transfer"
	PaymentKindYape          PaymentKind = "yape"
	PaymentKindPlin          PaymentKind = "plin"
	PaymentKindDigitalWallet PaymentKind = "digital_wallet"
	PaymentKindCheque        PaymentKind = "cheque"
	PaymentKindCompanyCredit PaymentKind = "company_credit"
	PaymentKindVouchers      PaymentKind = "vouchers"
)

// Bucket is the reconciliation total a payment kind is accumulated into
type Bucket string

const (
	BucketCash     Bucket = "cash"
	BucketCard     Bucket = "card"
	BucketTransfer Bucket = "transfer"
	BucketOther    Bucket = "other"
)

// IsValid checks if the kind is known
func (k PaymentKind) IsValid() bool {
	switch k {
	case PaymentKindCash, PaymentKindDebitCard, PaymentKindCreditCard, PaymentKindTransfer,
		PaymentKindYape, PaymentKindPlin, PaymentKindDigitalWallet, PaymentKindCheque,
		PaymentKindCompanyCredit, PaymentKindVouchers:
		return true
	}
	return false
}

// Bucket returns the reconciliation bucket of the kind
func (k PaymentKind) Bucket() Bucket {
	switch k {
	case PaymentKindCash:
		return BucketCash
	case PaymentKindDebitCard, PaymentKindCreditCard:
		return BucketCard
	case PaymentKindTransfer:
		return BucketTransfer
	default:
		return BucketOther
	}
}

// IsCard returns true for debit and credit cards
func (k PaymentKind) IsCard() bool {
	return k.Bucket() == BucketCard
}

// PaymentMethod describes how a customer may pay at the point of sale
type PaymentMethod struct {
	Code              string
	Name              string
	Kind              PaymentKind
	RequiresReference bool
	AllowsChange      bool
	CommissionPercent decimal.Decimal
	CommissionFixed   decimal.Decimal
	Active            bool
}

// NewPaymentMethod creates a validated payment method
func NewPaymentMethod(code, name string, kind PaymentKind) (*PaymentMethod, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" || len(code) > 20 {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method code must be between 1 and 20 characters")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method name cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment kind: %s", kind))
	}
	return &PaymentMethod{
		Code:              code,
		Name:              name,
		Kind:              kind,
		AllowsChange:      kind == PaymentKindCash,
		RequiresReference: kind != PaymentKindCash,
		CommissionPercent: decimal.Zero,
		CommissionFixed:   decimal.Zero,
		Active:            true,
	}, nil
}

// SetCommission sets the percentage and fixed commission charged by the processor
func (m *PaymentMethod) SetCommission(percent, fixed decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Commission percentage must be between 0 and 100")
	}
	if fixed.IsNegative() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Fixed commission cannot be negative")
	}
	m.CommissionPercent = percent
	m.CommissionFixed = fixed
	return nil
}

// Commission returns round2(amount × pct/100 + fixed)
func (m PaymentMethod) Commission(amount decimal.Decimal) decimal.Decimal {
	return valueobject.RoundMoney(valueobject.Percent(amount, m.CommissionPercent).Add(m.CommissionFixed))
}

// Bucket returns the reconciliation bucket of the method
func (m PaymentMethod) Bucket() Bucket {
	return m.Kind.Bucket()
}

// DefaultPaymentMethods returns the catalogue seeded for a new tenant
func DefaultPaymentMethods() []PaymentMethod {
	defs := []struct {
		code string
		name string
		kind PaymentKind
	}{
		{"EFECTIVO", "Efectivo", PaymentKindCash},
		{"DEBITO", "Tarjeta de débito", PaymentKindDebitCard},
		{"CREDITO", "Tarjeta de crédito", PaymentKindCreditCard},
		{"TRANSFER", "Transferencia bancaria", PaymentKindTransfer},
		{"YAPE", "Yape", PaymentKindYape},
		{"PLIN", "Plin", PaymentKindPlin},
	}
	methods := make([]PaymentMethod, 0, len(defs))
	for _, d := range defs {
		m, _ := NewPaymentMethod(d.code, d.name, d.kind)
		methods = append(methods, *m)
	}
	return methods
}
