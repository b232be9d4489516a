package pos

import (
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeCashSession = "CashSession"

// Event type constants
const (
	EventTypeCashSessionOpened    = "CashSessionOpened"
	EventTypeSalePaymentRecorded  = "SalePaymentRecorded"
	EventTypeCashSessionSuspended = "CashSessionSuspended"
	EventTypeCashSessionResumed   = "CashSessionResumed"
	EventTypeCashSessionClosed    = "CashSessionClosed"
)

// CashSessionOpenedEvent is raised when a shift starts
type CashSessionOpenedEvent struct {
	shared.BaseDomainEvent
	SessionID     uuid.UUID       `json:"session_id"`
	TerminalID    uuid.UUID       `json:"terminal_id"`
	SessionNumber string          `json:"session_number"`
	CashierID     uuid.UUID       `json:"cashier_id"`
	OpeningFloat  decimal.Decimal `json:"opening_float"`
}

// NewCashSessionOpenedEvent creates a new CashSessionOpenedEvent
func NewCashSessionOpenedEvent(s *CashSession) *CashSessionOpenedEvent {
	return &CashSessionOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCashSessionOpened, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
		TerminalID:      s.TerminalID,
		SessionNumber:   s.SessionNumber,
		CashierID:       s.CashierID,
		OpeningFloat:    s.OpeningFloat,
	}
}

// SalePaymentRecordedEvent is raised when the tenders of a sale are recorded
type SalePaymentRecordedEvent struct {
	shared.BaseDomainEvent
	SessionID    uuid.UUID       `json:"session_id"`
	SaleID       uuid.UUID       `json:"sale_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentCount int             `json:"payment_count"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	SaleCount    int             `json:"sale_count"`
}

// NewSalePaymentRecordedEvent creates a new SalePaymentRecordedEvent
func NewSalePaymentRecordedEvent(s *CashSession, saleID uuid.UUID, amount decimal.Decimal, paymentCount int) *SalePaymentRecordedEvent {
	return &SalePaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalePaymentRecorded, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
		SaleID:          saleID,
		Amount:          amount,
		PaymentCount:    paymentCount,
		ExpectedCash:    s.ExpectedCash,
		SaleCount:       s.SaleCount,
	}
}

// CashSessionSuspendedEvent is raised when a shift is paused
type CashSessionSuspendedEvent struct {
	shared.BaseDomainEvent
	SessionID uuid.UUID `json:"session_id"`
}

// NewCashSessionSuspendedEvent creates a new CashSessionSuspendedEvent
func NewCashSessionSuspendedEvent(s *CashSession) *CashSessionSuspendedEvent {
	return &CashSessionSuspendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCashSessionSuspended, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
	}
}

// CashSessionResumedEvent is raised when a suspended shift reopens
type CashSessionResumedEvent struct {
	shared.BaseDomainEvent
	SessionID uuid.UUID `json:"session_id"`
}

// NewCashSessionResumedEvent creates a new CashSessionResumedEvent
func NewCashSessionResumedEvent(s *CashSession) *CashSessionResumedEvent {
	return &CashSessionResumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCashSessionResumed, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
	}
}

// CashSessionClosedEvent carries the final reconciliation figures
type CashSessionClosedEvent struct {
	shared.BaseDomainEvent
	SessionID    uuid.UUID       `json:"session_id"`
	TerminalID   uuid.UUID       `json:"terminal_id"`
	SaleCount    int             `json:"sale_count"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	ActualCash   decimal.Decimal `json:"actual_cash"`
	Variance     decimal.Decimal `json:"variance"`
}

// NewCashSessionClosedEvent creates a new CashSessionClosedEvent
func NewCashSessionClosedEvent(s *CashSession) *CashSessionClosedEvent {
	evt := &CashSessionClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCashSessionClosed, AggregateTypeCashSession, s.ID, s.TenantID),
		SessionID:       s.ID,
		TerminalID:      s.TerminalID,
		SaleCount:       s.SaleCount,
		TotalSales:      s.TotalSales(),
		ExpectedCash:    s.ExpectedCash,
	}
	if s.ActualCash != nil {
		evt.ActualCash = *s.ActualCash
	}
	if s.Variance != nil {
		evt.Variance = *s.Variance
	}
	return evt
}
