package pos

import (
	"fmt"
	"strings"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentInput is one tender of a sale as entered at the terminal
type PaymentInput struct {
	Method     PaymentMethod
	Amount     decimal.Decimal
	Received   decimal.Decimal
	Reference  string
	CardLast4  string
	CardHolder string
}

// Payment is a recorded tender with its derived change and commission
type Payment struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	SaleID     uuid.UUID
	MethodCode string
	Kind       PaymentKind
	Amount     decimal.Decimal
	Received   decimal.Decimal
	Change     decimal.Decimal
	Commission decimal.Decimal
	Reference  string
	CardLast4  string
	CardHolder string
}

// Bucket returns the reconciliation bucket of the payment
func (p Payment) Bucket() Bucket {
	return p.Kind.Bucket()
}

// NewPayment validates a tender and derives change and commission
func NewPayment(sessionID, saleID uuid.UUID, in PaymentInput) (Payment, error) {
	if !in.Method.Kind.IsValid() {
		return Payment{}, invalidPayment(fmt.Sprintf("Unknown payment kind: %s", in.Method.Kind))
	}
	if !in.Method.Active {
		return Payment{}, invalidPayment(fmt.Sprintf("Payment method %s is inactive", in.Method.Code))
	}
	if !in.Amount.IsPositive() {
		return Payment{}, invalidPayment("Payment amount must be positive")
	}
	if !in.Amount.Equal(valueobject.RoundMoney(in.Amount)) {
		return Payment{}, invalidPayment(fmt.Sprintf("Payment amount cannot have more than %d decimal places", valueobject.MoneyPlaces))
	}
	reference := strings.TrimSpace(in.Reference)
	if in.Method.RequiresReference && reference == "" {
		return Payment{}, invalidPayment(fmt.Sprintf("Payment method %s requires a reference", in.Method.Code))
	}
	last4 := strings.TrimSpace(in.CardLast4)
	if last4 != "" && (!in.Method.Kind.IsCard() || !isDigits(last4, 4)) {
		return Payment{}, invalidPayment("Card last digits must be 4 digits on a card payment")
	}

	received := in.Received
	if received.IsZero() {
		received = in.Amount
	}
	change := decimal.Zero
	if received.IsNegative() {
		return Payment{}, invalidPayment("Received amount cannot be negative")
	}
	if in.Method.AllowsChange {
		if received.LessThan(in.Amount) {
			return Payment{}, invalidPayment(fmt.Sprintf("Received %s does not cover the amount %s",
				received.StringFixed(2), in.Amount.StringFixed(2)))
		}
		change = received.Sub(in.Amount)
	} else {
		received = in.Amount
	}

	return Payment{
		ID:         uuid.New(),
		SessionID:  sessionID,
		SaleID:     saleID,
		MethodCode: in.Method.Code,
		Kind:       in.Method.Kind,
		Amount:     in.Amount,
		Received:   received,
		Change:     change,
		Commission: in.Method.Commission(in.Amount),
		Reference:  reference,
		CardLast4:  last4,
		CardHolder: strings.TrimSpace(in.CardHolder),
	}, nil
}

func invalidPayment(msg string) error {
	return shared.NewDomainError(shared.ErrInvalidPayment.Code, msg)
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
