package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogModel stores one domain event of the fiscal core. Rows are only
// ever inserted; event_id is unique so a redelivered event adds nothing.
type AuditLogModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string    `gorm:"type:varchar(100);not null"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_fiscal_audit_aggregate,priority:1"`
	AggregateType string    `gorm:"type:varchar(50);not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null;index:idx_fiscal_audit_aggregate,priority:2"`
	OccurredAt    time.Time `gorm:"not null"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	RecordedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "fiscal_audit_log"
}
