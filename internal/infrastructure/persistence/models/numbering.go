package models

import (
	"time"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
)

// NumberingSeriesModel is the persistence model for the Series aggregate.
// current_number is the last number handed out. Uniqueness of
// (tenant_id, document_type, code) is enforced by the schema migration.
type NumberingSeriesModel struct {
	TenantAggregateModel
	DocumentType  string `gorm:"type:varchar(2);not null;index:idx_numbering_series_code,priority:1"`
	Code          string `gorm:"type:varchar(4);not null;index:idx_numbering_series_code,priority:2"`
	CurrentNumber int64  `gorm:"not null;default:0"`
	MaxNumber     int64  `gorm:"not null"`
	Active        bool   `gorm:"not null"`
	PointOfSale   string `gorm:"type:varchar(100)"`
	Description   string `gorm:"type:varchar(200)"`
	DeactivatedAt *time.Time
}

// TableName returns the table name for GORM
func (NumberingSeriesModel) TableName() string {
	return "numbering_series"
}

// ToDomain converts the persistence model to a domain Series
func (m *NumberingSeriesModel) ToDomain() *numbering.Series {
	return &numbering.Series{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		DocumentType:        valueobject.DocumentType(m.DocumentType),
		Code:                m.Code,
		CurrentNumber:       m.CurrentNumber,
		MaxNumber:           m.MaxNumber,
		Active:              m.Active,
		PointOfSale:         m.PointOfSale,
		Description:         m.Description,
		DeactivatedAt:       m.DeactivatedAt,
	}
}

// NumberingSeriesModelFromDomain creates a persistence model from a domain Series
func NumberingSeriesModelFromDomain(s *numbering.Series) *NumberingSeriesModel {
	m := &NumberingSeriesModel{
		DocumentType:  string(s.DocumentType),
		Code:          s.Code,
		CurrentNumber: s.CurrentNumber,
		MaxNumber:     s.MaxNumber,
		Active:        s.Active,
		PointOfSale:   s.PointOfSale,
		Description:   s.Description,
		DeactivatedAt: s.DeactivatedAt,
	}
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	return m
}
