package pos

import (
	"time"

	"github.com/felicita/backend/internal/domain/pos"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenSessionRequest opens a cash shift on a terminal
type OpenSessionRequest struct {
	TerminalID    uuid.UUID       `json:"terminal_id" validate:"required"`
	SessionNumber string          `json:"session_number" validate:"required,max=50"`
	CashierID     uuid.UUID       `json:"cashier_id" validate:"required"`
	OpeningFloat  decimal.Decimal `json:"opening_float"`
	Notes         string          `json:"notes" validate:"max=500"`
}

// PaymentRequest is one tender of a sale
type PaymentRequest struct {
	MethodCode string          `json:"method_code" validate:"required,max=20"`
	Amount     decimal.Decimal `json:"amount"`
	Received   decimal.Decimal `json:"received"`
	Reference  string          `json:"reference" validate:"max=100"`
	CardLast4  string          `json:"card_last4" validate:"omitempty,len=4,numeric"`
	CardHolder string          `json:"card_holder" validate:"max=100"`
}

// RecordSalePaymentRequest records the tenders of one sale
type RecordSalePaymentRequest struct {
	SaleID   uuid.UUID        `json:"sale_id" validate:"required"`
	Payments []PaymentRequest `json:"payments" validate:"required,min=1,dive"`
}

// CloseSessionRequest closes a shift with the counted cash
type CloseSessionRequest struct {
	ActualCash decimal.Decimal `json:"actual_cash"`
	Notes      string          `json:"notes" validate:"max=500"`
}

// PaymentMethodRequest creates or updates a payment method
type PaymentMethodRequest struct {
	Code              string           `json:"code" validate:"required,max=20"`
	Name              string           `json:"name" validate:"required,max=100"`
	Kind              string           `json:"kind" validate:"required"`
	RequiresReference *bool            `json:"requires_reference"`
	CommissionPercent *decimal.Decimal `json:"commission_percent"`
	CommissionFixed   *decimal.Decimal `json:"commission_fixed"`
	Active            *bool            `json:"active"`
}

// SessionListFilter represents filter options for session list
type SessionListFilter struct {
	TerminalID *uuid.UUID `json:"terminal_id"`
	Status     string     `json:"status" validate:"omitempty,oneof=OPEN SUSPENDED CLOSING CLOSED"`
	Page       int        `json:"page" validate:"gte=0"`
	PageSize   int        `json:"page_size" validate:"gte=0,lte=100"`
}

// PaymentResponse is the read model of a recorded payment
type PaymentResponse struct {
	ID         uuid.UUID       `json:"id"`
	SaleID     uuid.UUID       `json:"sale_id"`
	MethodCode string          `json:"method_code"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Received   decimal.Decimal `json:"received"`
	Change     decimal.Decimal `json:"change"`
	Commission decimal.Decimal `json:"commission"`
	Reference  string          `json:"reference,omitempty"`
	CardLast4  string          `json:"card_last4,omitempty"`
}

// SessionResponse is the read model of a cash session
type SessionResponse struct {
	ID            uuid.UUID        `json:"id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	TerminalID    uuid.UUID        `json:"terminal_id"`
	SessionNumber string           `json:"session_number"`
	CashierID     uuid.UUID        `json:"cashier_id"`
	Status        string           `json:"status"`
	Currency      string           `json:"currency"`
	OpeningFloat  decimal.Decimal  `json:"opening_float"`
	CashTotal     decimal.Decimal  `json:"cash_total"`
	CardTotal     decimal.Decimal  `json:"card_total"`
	TransferTotal decimal.Decimal  `json:"transfer_total"`
	OtherTotal    decimal.Decimal  `json:"other_total"`
	ChangeGiven   decimal.Decimal  `json:"change_given"`
	Commissions   decimal.Decimal  `json:"commissions"`
	SaleCount     int              `json:"sale_count"`
	ExpectedCash  decimal.Decimal  `json:"expected_cash"`
	ActualCash    *decimal.Decimal `json:"actual_cash,omitempty"`
	Variance      *decimal.Decimal `json:"variance,omitempty"`
	OpeningNotes  string           `json:"opening_notes,omitempty"`
	ClosingNotes  string           `json:"closing_notes,omitempty"`
	OpenedAt      time.Time        `json:"opened_at"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty"`
	Version       int              `json:"version"`
}

// PaymentMethodResponse is the read model of a payment method
type PaymentMethodResponse struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Kind              string          `json:"kind"`
	Bucket            string          `json:"bucket"`
	RequiresReference bool            `json:"requires_reference"`
	AllowsChange      bool            `json:"allows_change"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	CommissionFixed   decimal.Decimal `json:"commission_fixed"`
	Active            bool            `json:"active"`
}

// ToSessionResponse converts a domain session to a response DTO
func ToSessionResponse(s *pos.CashSession) SessionResponse {
	return SessionResponse{
		ID:            s.ID,
		TenantID:      s.TenantID,
		TerminalID:    s.TerminalID,
		SessionNumber: s.SessionNumber,
		CashierID:     s.CashierID,
		Status:        string(s.Status),
		Currency:      string(s.Currency),
		OpeningFloat:  s.OpeningFloat,
		CashTotal:     s.CashTotal,
		CardTotal:     s.CardTotal,
		TransferTotal: s.TransferTotal,
		OtherTotal:    s.OtherTotal,
		ChangeGiven:   s.ChangeGiven,
		Commissions:   s.Commissions,
		SaleCount:     s.SaleCount,
		ExpectedCash:  s.ExpectedCash,
		ActualCash:    s.ActualCash,
		Variance:      s.Variance,
		OpeningNotes:  s.OpeningNotes,
		ClosingNotes:  s.ClosingNotes,
		OpenedAt:      s.OpenedAt,
		ClosedAt:      s.ClosedAt,
		Version:       s.Version,
	}
}

// ToPaymentResponse converts a domain payment to a response DTO
func ToPaymentResponse(p pos.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		SaleID:     p.SaleID,
		MethodCode: p.MethodCode,
		Kind:       string(p.Kind),
		Amount:     p.Amount,
		Received:   p.Received,
		Change:     p.Change,
		Commission: p.Commission,
		Reference:  p.Reference,
		CardLast4:  p.CardLast4,
	}
}

// ToPaymentMethodResponse converts a domain payment method to a response DTO
func ToPaymentMethodResponse(m pos.PaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{
		Code:              m.Code,
		Name:              m.Name,
		Kind:              string(m.Kind),
		Bucket:            string(m.Bucket()),
		RequiresReference: m.RequiresReference,
		AllowsChange:      m.AllowsChange,
		CommissionPercent: m.CommissionPercent,
		CommissionFixed:   m.CommissionFixed,
		Active:            m.Active,
	}
}
