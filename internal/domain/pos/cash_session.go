package pos

import (
	"fmt"
	"strings"
	"time"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus represents the state of a cash session
type SessionStatus string

const (
	SessionStatusOpen      SessionStatus = "OPEN"
	SessionStatusSuspended SessionStatus = "SUSPENDED"
	SessionStatusClosing   SessionStatus = "CLOSING"
	SessionStatusClosed    SessionStatus = "CLOSED"
)

// IsValid checks if the status is a valid SessionStatus
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusOpen, SessionStatusSuspended, SessionStatusClosing, SessionStatusClosed:
		return true
	}
	return false
}

// String returns the string representation of SessionStatus
func (s SessionStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	switch s {
	case SessionStatusOpen:
		return target == SessionStatusSuspended || target == SessionStatusClosing
	case SessionStatusSuspended:
		return target == SessionStatusOpen
	case SessionStatusClosing:
		return target == SessionStatusClosed
	}
	return false
}

// VarianceLevel classifies the cash difference found at close
type VarianceLevel string

const (
	VarianceNormal   VarianceLevel = "normal"
	VarianceWarning  VarianceLevel = "warning"
	VarianceCritical VarianceLevel = "critical"
)

// VarianceThresholds bound the normal and warning variance levels (absolute values)
type VarianceThresholds struct {
	Warning  decimal.Decimal
	Critical decimal.Decimal
}

// DefaultVarianceThresholds returns 1.00 / 10.00
func DefaultVarianceThresholds() VarianceThresholds {
	return VarianceThresholds{
		Warning:  decimal.NewFromInt(1),
		Critical: decimal.NewFromInt(10),
	}
}

// Classify returns the level of a variance
func (t VarianceThresholds) Classify(variance decimal.Decimal) VarianceLevel {
	abs := variance.Abs()
	switch {
	case abs.LessThanOrEqual(t.Warning):
		return VarianceNormal
	case abs.LessThanOrEqual(t.Critical):
		return VarianceWarning
	default:
		return VarianceCritical
	}
}

// CashSession is one cashier shift on a point-of-sale terminal
type CashSession struct {
	shared.TenantAggregateRoot
	TerminalID    uuid.UUID
	SessionNumber string
	CashierID     uuid.UUID
	Currency      valueobject.Currency
	OpeningFloat  decimal.Decimal
	CashTotal     decimal.Decimal
	CardTotal     decimal.Decimal
	TransferTotal decimal.Decimal
	OtherTotal    decimal.Decimal
	ChangeGiven   decimal.Decimal
	Commissions   decimal.Decimal
	SaleCount     int
	ExpectedCash  decimal.Decimal
	ActualCash    *decimal.Decimal
	Variance      *decimal.Decimal
	Status        SessionStatus
	OpeningNotes  string
	ClosingNotes  string
	OpenedAt      time.Time
	SuspendedAt   *time.Time
	ClosingAt     *time.Time
	ClosedAt      *time.Time
	Payments      []Payment
}

// OpenCashSession opens a shift with the counted opening float
func OpenCashSession(tenantID, terminalID uuid.UUID, sessionNumber string, cashierID uuid.UUID, openingFloat decimal.Decimal, notes string) (*CashSession, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if terminalID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TERMINAL", "Terminal ID cannot be empty")
	}
	if cashierID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CASHIER", "Cashier ID cannot be empty")
	}
	sessionNumber = strings.TrimSpace(sessionNumber)
	if sessionNumber == "" || len(sessionNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_SESSION_NUMBER", "Session number must be between 1 and 50 characters")
	}
	if openingFloat.IsNegative() {
		return nil, shared.NewDomainError("INVALID_OPENING_FLOAT", "Opening float cannot be negative")
	}
	if !openingFloat.Equal(valueobject.RoundMoney(openingFloat)) {
		return nil, shared.NewDomainError("INVALID_OPENING_FLOAT",
			fmt.Sprintf("Opening float cannot have more than %d decimal places", valueobject.MoneyPlaces))
	}

	s := &CashSession{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		TerminalID:          terminalID,
		SessionNumber:       sessionNumber,
		CashierID:           cashierID,
		Currency:            valueobject.DefaultCurrency,
		OpeningFloat:        openingFloat,
		CashTotal:           decimal.Zero,
		CardTotal:           decimal.Zero,
		TransferTotal:       decimal.Zero,
		OtherTotal:          decimal.Zero,
		ChangeGiven:         decimal.Zero,
		Commissions:         decimal.Zero,
		ExpectedCash:        openingFloat,
		Status:              SessionStatusOpen,
		OpeningNotes:        strings.TrimSpace(notes),
		OpenedAt:            time.Now(),
		Payments:            make([]Payment, 0),
	}
	s.AddDomainEvent(NewCashSessionOpenedEvent(s))
	return s, nil
}

func (s *CashSession) ensureAccepting() error {
	switch s.Status {
	case SessionStatusOpen:
		return nil
	case SessionStatusSuspended:
		return shared.NewDomainError(shared.ErrSessionSuspended.Code,
			fmt.Sprintf("Session %s is suspended", s.SessionNumber))
	default:
		return shared.NewDomainError(shared.ErrSessionClosed.Code,
			fmt.Sprintf("Session %s no longer accepts payments (%s)", s.SessionNumber, s.Status))
	}
}

// RecordSalePayment adds the tenders of one completed sale to the running totals.
// Every tender is validated before any total changes.
func (s *CashSession) RecordSalePayment(saleID uuid.UUID, inputs ...PaymentInput) ([]Payment, error) {
	if err := s.ensureAccepting(); err != nil {
		return nil, err
	}
	if saleID == uuid.Nil {
		return nil, shared.NewDomainError(shared.ErrInvalidPayment.Code, "Sale ID cannot be empty")
	}
	if len(inputs) == 0 {
		return nil, shared.NewDomainError(shared.ErrInvalidPayment.Code, "A sale needs at least one payment")
	}

	payments := make([]Payment, 0, len(inputs))
	cash, card, transfer, other := s.CashTotal, s.CardTotal, s.TransferTotal, s.OtherTotal
	expected, change, commissions := s.ExpectedCash, s.ChangeGiven, s.Commissions
	saleTotal := decimal.Zero
	for i, in := range inputs {
		p, err := NewPayment(s.ID, saleID, in)
		if err != nil {
			return nil, shared.NewDomainError(shared.CodeOf(err), fmt.Sprintf("Payment %d: %s", i+1, err.Error()))
		}
		switch p.Bucket() {
		case BucketCash:
			cash = cash.Add(p.Amount)
			expected = expected.Add(p.Amount)
		case BucketCard:
			card = card.Add(p.Amount)
		case BucketTransfer:
			transfer = transfer.Add(p.Amount)
		default:
			other = other.Add(p.Amount)
		}
		change = change.Add(p.Change)
		commissions = commissions.Add(p.Commission)
		saleTotal = saleTotal.Add(p.Amount)
		payments = append(payments, p)
	}
	if !valueobject.FitsMoney(cash, card, transfer, other, expected) {
		return nil, shared.NewDomainError(shared.ErrRoundingOverflow.Code, "Session totals exceed the representable amount")
	}

	s.CashTotal, s.CardTotal, s.TransferTotal, s.OtherTotal = cash, card, transfer, other
	s.ExpectedCash, s.ChangeGiven, s.Commissions = expected, change, commissions
	s.SaleCount++
	s.Payments = append(s.Payments, payments...)
	s.Touch()
	s.AddDomainEvent(NewSalePaymentRecordedEvent(s, saleID, saleTotal, len(payments)))
	return payments, nil
}

// Suspend pauses the shift; payments are refused until it resumes
func (s *CashSession) Suspend() error {
	if !s.Status.CanTransitionTo(SessionStatusSuspended) {
		return s.transitionError("suspend")
	}
	now := time.Now()
	s.Status = SessionStatusSuspended
	s.SuspendedAt = &now
	s.Touch()
	s.AddDomainEvent(NewCashSessionSuspendedEvent(s))
	return nil
}

// Resume reopens a suspended shift
func (s *CashSession) Resume() error {
	if !s.Status.CanTransitionTo(SessionStatusOpen) {
		return s.transitionError("resume")
	}
	s.Status = SessionStatusOpen
	s.SuspendedAt = nil
	s.Touch()
	s.AddDomainEvent(NewCashSessionResumedEvent(s))
	return nil
}

// BeginClose moves the shift to CLOSING; from here on every payment is rejected
func (s *CashSession) BeginClose() error {
	switch s.Status {
	case SessionStatusOpen:
	case SessionStatusClosing:
		return shared.NewDomainError(shared.ErrSessionAlreadyClosing.Code,
			fmt.Sprintf("Session %s is already closing", s.SessionNumber))
	case SessionStatusClosed:
		return shared.NewDomainError(shared.ErrSessionClosed.Code,
			fmt.Sprintf("Session %s is closed", s.SessionNumber))
	default:
		return s.transitionError("close")
	}
	now := time.Now()
	s.Status = SessionStatusClosing
	s.ClosingAt = &now
	s.Touch()
	return nil
}

// FinishClose records the counted cash and computes the variance
func (s *CashSession) FinishClose(actualCash decimal.Decimal, notes string) error {
	if s.Status == SessionStatusClosed {
		return shared.NewDomainError(shared.ErrSessionClosed.Code,
			fmt.Sprintf("Session %s is closed", s.SessionNumber))
	}
	if !s.Status.CanTransitionTo(SessionStatusClosed) {
		return s.transitionError("finish closing")
	}
	if err := ValidateActualCash(actualCash); err != nil {
		return err
	}

	now := time.Now()
	variance := actualCash.Sub(s.ExpectedCash)
	s.ActualCash = &actualCash
	s.Variance = &variance
	s.ClosingNotes = strings.TrimSpace(notes)
	s.Status = SessionStatusClosed
	s.ClosedAt = &now
	s.Touch()
	s.AddDomainEvent(NewCashSessionClosedEvent(s))
	return nil
}

// Close runs BeginClose and FinishClose in one step
func (s *CashSession) Close(actualCash decimal.Decimal, notes string) error {
	if err := ValidateActualCash(actualCash); err != nil {
		return err
	}
	if err := s.BeginClose(); err != nil {
		return err
	}
	return s.FinishClose(actualCash, notes)
}

// IsClosed returns true once the session is immutable
func (s *CashSession) IsClosed() bool {
	return s.Status == SessionStatusClosed
}

// TotalSales returns the sum of every bucket
func (s *CashSession) TotalSales() decimal.Decimal {
	return s.CashTotal.Add(s.CardTotal).Add(s.TransferTotal).Add(s.OtherTotal)
}

// CloseSummary is the reconciliation report of a session
type CloseSummary struct {
	SessionID     uuid.UUID                  `json:"session_id"`
	SessionNumber string                     `json:"session_number"`
	Status        SessionStatus              `json:"status"`
	OpeningFloat  decimal.Decimal            `json:"opening_float"`
	CashTotal     decimal.Decimal            `json:"cash_total"`
	CardTotal     decimal.Decimal            `json:"card_total"`
	TransferTotal decimal.Decimal            `json:"transfer_total"`
	OtherTotal    decimal.Decimal            `json:"other_total"`
	TotalSales    decimal.Decimal            `json:"total_sales"`
	Commissions   decimal.Decimal            `json:"commissions"`
	SaleCount     int                        `json:"sale_count"`
	ExpectedCash  decimal.Decimal            `json:"expected_cash"`
	ActualCash    *decimal.Decimal           `json:"actual_cash,omitempty"`
	Variance      *decimal.Decimal           `json:"variance,omitempty"`
	VarianceLevel VarianceLevel              `json:"variance_level,omitempty"`
	ByMethod      map[string]decimal.Decimal `json:"by_method"`
}

// Summary builds the reconciliation report; the variance level is set once the session is closed
func (s *CashSession) Summary(thresholds VarianceThresholds) CloseSummary {
	byMethod := make(map[string]decimal.Decimal)
	for _, p := range s.Payments {
		byMethod[p.MethodCode] = byMethod[p.MethodCode].Add(p.Amount)
	}
	summary := CloseSummary{
		SessionID:     s.ID,
		SessionNumber: s.SessionNumber,
		Status:        s.Status,
		OpeningFloat:  s.OpeningFloat,
		CashTotal:     s.CashTotal,
		CardTotal:     s.CardTotal,
		TransferTotal: s.TransferTotal,
		OtherTotal:    s.OtherTotal,
		TotalSales:    s.TotalSales(),
		Commissions:   s.Commissions,
		SaleCount:     s.SaleCount,
		ExpectedCash:  s.ExpectedCash,
		ActualCash:    s.ActualCash,
		Variance:      s.Variance,
		ByMethod:      byMethod,
	}
	if s.Variance != nil {
		summary.VarianceLevel = thresholds.Classify(*s.Variance)
	}
	return summary
}

// ValidateActualCash checks a counted cash amount before a session is closed
func ValidateActualCash(actualCash decimal.Decimal) error {
	if actualCash.IsNegative() {
		return shared.NewDomainError("INVALID_ACTUAL_CASH", "Counted cash cannot be negative")
	}
	if !actualCash.Equal(valueobject.RoundMoney(actualCash)) {
		return shared.NewDomainError("INVALID_ACTUAL_CASH",
			fmt.Sprintf("Counted cash cannot have more than %d decimal places", valueobject.MoneyPlaces))
	}
	return nil
}

func (s *CashSession) transitionError(action string) error {
	return shared.NewDomainError(shared.ErrInvalidStateTransition.Code,
		fmt.Sprintf("Cannot %s a session in %s status", action, s.Status))
}
