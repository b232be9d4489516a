package event

import (
	"context"

	"github.com/felicita/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditStore implements AuditStore on the fiscal_audit_log table
type GormAuditStore struct {
	db *gorm.DB
}

// NewGormAuditStore creates a new GORM-based audit store
func NewGormAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{db: db}
}

// Append inserts the entry unless its event is already recorded
func (s *GormAuditStore) Append(ctx context.Context, entry *AuditEntry) error {
	model := &models.AuditLogModel{
		ID:            entry.ID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		TenantID:      entry.TenantID,
		AggregateType: entry.AggregateType,
		AggregateID:   entry.AggregateID,
		OccurredAt:    entry.OccurredAt,
		Payload:       entry.Payload,
		RecordedAt:    entry.RecordedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(model).Error
}

// FindByAggregate lists the entries of one aggregate in occurrence order
func (s *GormAuditStore) FindByAggregate(ctx context.Context, tenantID, aggregateID uuid.UUID) ([]AuditEntry, error) {
	var rows []models.AuditLogModel
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND aggregate_id = ?", tenantID, aggregateID).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]AuditEntry, len(rows))
	for i, m := range rows {
		entries[i] = AuditEntry{
			ID:            m.ID,
			EventID:       m.EventID,
			EventType:     m.EventType,
			TenantID:      m.TenantID,
			AggregateType: m.AggregateType,
			AggregateID:   m.AggregateID,
			OccurredAt:    m.OccurredAt,
			Payload:       m.Payload,
			RecordedAt:    m.RecordedAt,
		}
	}
	return entries, nil
}

// Ensure GormAuditStore implements AuditStore
var _ AuditStore = (*GormAuditStore)(nil)
