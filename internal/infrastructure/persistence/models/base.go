package models

import (
	"time"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantAggregateModel carries the persistence columns shared by every
// tenant-scoped aggregate: identity, timestamps, optimistic-lock version and owner.
type TenantAggregateModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	Version   int        `gorm:"not null;default:1"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// FromDomainTenantAggregateRoot populates the columns from a domain aggregate root
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.ID = t.ID
	m.TenantID = t.TenantID
	m.CreatedBy = t.CreatedBy
	m.Version = t.Version
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// TenantAggregateRoot rebuilds the domain aggregate root. Pending events start empty.
func (m *TenantAggregateModel) TenantAggregateRoot() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		TenantID:  m.TenantID,
		CreatedBy: m.CreatedBy,
	}
}

// FiscalModels lists every table of the fiscal core, in dependency order.
// Production schemas come from the SQL migrations; this list feeds AutoMigrate
// in tests.
func FiscalModels() []any {
	return []any{
		&NumberingSeriesModel{},
		&FiscalDocumentModel{},
		&FiscalDocumentLineModel{},
		&CashSessionModel{},
		&CashPaymentModel{},
		&PaymentMethodModel{},
		&AuditLogModel{},
	}
}
