package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCashSessionRepository implements CashSessionRepository using GORM
type GormCashSessionRepository struct {
	db *gorm.DB
}

// NewGormCashSessionRepository creates a new GormCashSessionRepository
func NewGormCashSessionRepository(db *gorm.DB) *GormCashSessionRepository {
	return &GormCashSessionRepository{db: db}
}

func orderedPayments(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func (r *GormCashSessionRepository) findOne(query *gorm.DB) (*pos.CashSession, error) {
	var model models.CashSessionModel
	if err := query.Preload("Payments", orderedPayments).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a session by ID for a specific tenant
func (r *GormCashSessionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*pos.CashSession, error) {
	return r.findOne(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindOpenByTerminal finds the session not yet closed on a terminal
func (r *GormCashSessionRepository) FindOpenByTerminal(ctx context.Context, tenantID, terminalID uuid.UUID) (*pos.CashSession, error) {
	return r.findOne(r.db.WithContext(ctx).
		Where("tenant_id = ? AND terminal_id = ? AND status <> ?", tenantID, terminalID, string(pos.SessionStatusClosed)).
		Order("opened_at DESC"))
}

// FindAllForTenant lists sessions of a tenant. Payments are not loaded.
func (r *GormCashSessionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]pos.CashSession, error) {
	query := r.db.WithContext(ctx).Model(&models.CashSessionModel{}).Scopes(TenantScope(tenantID))
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "terminal_id":
			query = query.Where("terminal_id = ?", value)
		case "cashier_id":
			query = query.Where("cashier_id = ?", value)
		}
	}

	var rows []models.CashSessionModel
	if err := applyPagination(query, filter, CashSessionSortFields, "opened_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	sessions := make([]pos.CashSession, len(rows))
	for i := range rows {
		sessions[i] = *rows[i].ToDomain()
	}
	return sessions, nil
}

// Create persists a newly opened session
func (r *GormCashSessionRepository) Create(ctx context.Context, session *pos.CashSession) error {
	return r.db.WithContext(ctx).Create(models.CashSessionModelFromDomain(session)).Error
}

// Update locks the session row, applies fn, writes the totals back and
// appends the payments fn added. When fn fails nothing is written.
func (r *GormCashSessionRepository) Update(ctx context.Context, tenantID, id uuid.UUID, fn pos.SessionMutator) (*pos.CashSession, error) {
	var session *pos.CashSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.CashSessionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("tenant_id = ? AND id = ?", tenantID, id).
			First(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		s, err := r.findOne(tx.Where("id = ?", id))
		if err != nil {
			return err
		}
		stored := len(s.Payments)
		if err := fn(s); err != nil {
			return err
		}

		previous := s.Version
		s.IncrementVersion()
		model := models.CashSessionModelFromDomain(s)
		result := tx.Model(&models.CashSessionModel{}).
			Where("id = ? AND version = ?", id, previous).
			Updates(map[string]interface{}{
				"cash_total":     model.CashTotal,
				"card_total":     model.CardTotal,
				"transfer_total": model.TransferTotal,
				"other_total":    model.OtherTotal,
				"change_given":   model.ChangeGiven,
				"commissions":    model.Commissions,
				"sale_count":     model.SaleCount,
				"expected_cash":  model.ExpectedCash,
				"actual_cash":    model.ActualCash,
				"variance":       model.Variance,
				"status":         model.Status,
				"closing_notes":  model.ClosingNotes,
				"suspended_at":   model.SuspendedAt,
				"closing_at":     model.ClosingAt,
				"closed_at":      model.ClosedAt,
				"version":        model.Version,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The cash session has been modified concurrently")
		}

		if added := model.Payments[stored:]; len(added) > 0 {
			if err := tx.Create(&added).Error; err != nil {
				return err
			}
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Ensure GormCashSessionRepository implements CashSessionRepository
var _ pos.CashSessionRepository = (*GormCashSessionRepository)(nil)

// GormPaymentMethodRepository implements PaymentMethodRepository using GORM
type GormPaymentMethodRepository struct {
	db *gorm.DB
}

// NewGormPaymentMethodRepository creates a new GormPaymentMethodRepository
func NewGormPaymentMethodRepository(db *gorm.DB) *GormPaymentMethodRepository {
	return &GormPaymentMethodRepository{db: db}
}

// FindByCode finds a payment method by code for a tenant
func (r *GormPaymentMethodRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*pos.PaymentMethod, error) {
	var model models.PaymentMethodModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	pm := model.ToDomain()
	return &pm, nil
}

// FindAllForTenant lists the payment methods of a tenant ordered by code
func (r *GormPaymentMethodRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]pos.PaymentMethod, error) {
	var rows []models.PaymentMethodModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	methods := make([]pos.PaymentMethod, len(rows))
	for i := range rows {
		methods[i] = rows[i].ToDomain()
	}
	return methods, nil
}

// Save creates or updates a payment method, keyed by (tenant, code)
func (r *GormPaymentMethodRepository) Save(ctx context.Context, tenantID uuid.UUID, method *pos.PaymentMethod) error {
	model := models.PaymentMethodModelFromDomain(tenantID, method)
	model.ID = uuid.New()
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "kind", "requires_reference", "allows_change",
				"commission_percent", "commission_fixed", "active", "updated_at",
			}),
		}).
		Create(model).Error
}

// Ensure GormPaymentMethodRepository implements PaymentMethodRepository
var _ pos.PaymentMethodRepository = (*GormPaymentMethodRepository)(nil)
