package models

import (
	"time"

	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashSessionModel is the persistence model for the CashSession aggregate
type CashSessionModel struct {
	TenantAggregateModel
	TerminalID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	SessionNumber string           `gorm:"type:varchar(50);not null"`
	CashierID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	Currency      string           `gorm:"type:varchar(3);not null"`
	OpeningFloat  decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	CashTotal     decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	CardTotal     decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	TransferTotal decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	OtherTotal    decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	ChangeGiven   decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	Commissions   decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	SaleCount     int              `gorm:"not null;default:0"`
	ExpectedCash  decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	ActualCash    *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Variance      *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Status        string           `gorm:"type:varchar(20);not null;index"`
	OpeningNotes  string           `gorm:"type:varchar(500)"`
	ClosingNotes  string           `gorm:"type:varchar(500)"`
	OpenedAt      time.Time        `gorm:"not null"`
	SuspendedAt   *time.Time
	ClosingAt     *time.Time
	ClosedAt      *time.Time
	Payments      []CashPaymentModel `gorm:"foreignKey:SessionID;references:ID"`
}

// TableName returns the table name for GORM
func (CashSessionModel) TableName() string {
	return "cash_sessions"
}

// CashPaymentModel is one tender recorded in a cash session; rows are append-only
type CashPaymentModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	SessionID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Seq        int             `gorm:"not null"`
	SaleID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	MethodCode string          `gorm:"type:varchar(20);not null"`
	Kind       string          `gorm:"type:varchar(20);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Received   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Change     decimal.Decimal `gorm:"column:change_amount;type:decimal(18,2);not null;default:0"`
	Commission decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Reference  string          `gorm:"type:varchar(100)"`
	CardLast4  string          `gorm:"type:varchar(4)"`
	CardHolder string          `gorm:"type:varchar(100)"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CashPaymentModel) TableName() string {
	return "cash_session_payments"
}

// CashSessionModelFromDomain creates a persistence model from a domain CashSession
func CashSessionModelFromDomain(s *pos.CashSession) *CashSessionModel {
	m := &CashSessionModel{
		TerminalID:    s.TerminalID,
		SessionNumber: s.SessionNumber,
		CashierID:     s.CashierID,
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
		Status:        string(s.Status),
		OpeningNotes:  s.OpeningNotes,
		ClosingNotes:  s.ClosingNotes,
		OpenedAt:      s.OpenedAt,
		SuspendedAt:   s.SuspendedAt,
		ClosingAt:     s.ClosingAt,
		ClosedAt:      s.ClosedAt,
		Payments:      make([]CashPaymentModel, len(s.Payments)),
	}
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	for i := range s.Payments {
		m.Payments[i] = *CashPaymentModelFromDomain(&s.Payments[i], s.UpdatedAt)
		m.Payments[i].Seq = i + 1
	}
	return m
}

// ToDomain converts the persistence model to a domain CashSession
func (m *CashSessionModel) ToDomain() *pos.CashSession {
	s := &pos.CashSession{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		TerminalID:          m.TerminalID,
		SessionNumber:       m.SessionNumber,
		CashierID:           m.CashierID,
		Currency:            valueobject.Currency(m.Currency),
		OpeningFloat:        m.OpeningFloat,
		CashTotal:           m.CashTotal,
		CardTotal:           m.CardTotal,
		TransferTotal:       m.TransferTotal,
		OtherTotal:          m.OtherTotal,
		ChangeGiven:         m.ChangeGiven,
		Commissions:         m.Commissions,
		SaleCount:           m.SaleCount,
		ExpectedCash:        m.ExpectedCash,
		ActualCash:          m.ActualCash,
		Variance:            m.Variance,
		Status:              pos.SessionStatus(m.Status),
		OpeningNotes:        m.OpeningNotes,
		ClosingNotes:        m.ClosingNotes,
		OpenedAt:            m.OpenedAt,
		SuspendedAt:         m.SuspendedAt,
		ClosingAt:           m.ClosingAt,
		ClosedAt:            m.ClosedAt,
		Payments:            make([]pos.Payment, len(m.Payments)),
	}
	for i := range m.Payments {
		s.Payments[i] = m.Payments[i].ToDomain()
	}
	return s
}

// CashPaymentModelFromDomain creates a persistence model from a domain Payment
func CashPaymentModelFromDomain(p *pos.Payment, recordedAt time.Time) *CashPaymentModel {
	return &CashPaymentModel{
		ID:         p.ID,
		SessionID:  p.SessionID,
		SaleID:     p.SaleID,
		MethodCode: p.MethodCode,
		Kind:       string(p.Kind),
		Amount:     p.Amount,
		Received:   p.Received,
		Change:     p.Change,
		Commission: p.Commission,
		Reference:  p.Reference,
		CardLast4:  p.CardLast4,
		CardHolder: p.CardHolder,
		CreatedAt:  recordedAt,
	}
}

// ToDomain converts the persistence model to a domain Payment
func (m *CashPaymentModel) ToDomain() pos.Payment {
	return pos.Payment{
		ID:         m.ID,
		SessionID:  m.SessionID,
		SaleID:     m.SaleID,
		MethodCode: m.MethodCode,
		Kind:       pos.PaymentKind(m.Kind),
		Amount:     m.Amount,
		Received:   m.Received,
		Change:     m.Change,
		Commission: m.Commission,
		Reference:  m.Reference,
		CardLast4:  m.CardLast4,
		CardHolder: m.CardHolder,
	}
}

// PaymentMethodModel is the persistence model for a tenant's payment method
type PaymentMethodModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_payment_methods_tenant_code,priority:1"`
	Code              string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_payment_methods_tenant_code,priority:2"`
	Name              string          `gorm:"type:varchar(100);not null"`
	Kind              string          `gorm:"type:varchar(20);not null"`
	RequiresReference bool            `gorm:"not null"`
	AllowsChange      bool            `gorm:"not null"`
	CommissionPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	CommissionFixed   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Active            bool            `gorm:"not null"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentMethodModel) TableName() string {
	return "payment_methods"
}

// PaymentMethodModelFromDomain creates a persistence model from a domain PaymentMethod
func PaymentMethodModelFromDomain(tenantID uuid.UUID, pm *pos.PaymentMethod) *PaymentMethodModel {
	return &PaymentMethodModel{
		TenantID:          tenantID,
		Code:              pm.Code,
		Name:              pm.Name,
		Kind:              string(pm.Kind),
		RequiresReference: pm.RequiresReference,
		AllowsChange:      pm.AllowsChange,
		CommissionPercent: pm.CommissionPercent,
		CommissionFixed:   pm.CommissionFixed,
		Active:            pm.Active,
	}
}

// ToDomain converts the persistence model to a domain PaymentMethod
func (m *PaymentMethodModel) ToDomain() pos.PaymentMethod {
	return pos.PaymentMethod{
		Code:              m.Code,
		Name:              m.Name,
		Kind:              pos.PaymentKind(m.Kind),
		RequiresReference: m.RequiresReference,
		AllowsChange:      m.AllowsChange,
		CommissionPercent: m.CommissionPercent,
		CommissionFixed:   m.CommissionFixed,
		Active:            m.Active,
	}
}
