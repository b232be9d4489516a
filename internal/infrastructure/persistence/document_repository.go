package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

func (r *GormDocumentRepository) findOne(query *gorm.DB) (invoicing.Document, error) {
	var model models.FiscalDocumentModel
	if err := query.Preload("Lines", orderedLines).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByID finds a document by ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (invoicing.Document, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForTenant finds a document by ID for a specific tenant
func (r *GormDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (invoicing.Document, error) {
	return r.findOne(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindForUpdate locks the document row first and then loads it with its lines.
// The lock lasts until the surrounding transaction ends.
func (r *GormDocumentRepository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (invoicing.Document, error) {
	db := r.db.WithContext(ctx)
	var locked models.FiscalDocumentModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&locked).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.findOne(db.Where("id = ?", id))
}

// FindByFullNumber finds a numbered document by its series-number string
func (r *GormDocumentRepository) FindByFullNumber(ctx context.Context, tenantID uuid.UUID, fullNumber string) (invoicing.Document, error) {
	return r.findOne(r.db.WithContext(ctx).
		Where("tenant_id = ? AND full_number = ?", tenantID, fullNumber).
		Order("created_at ASC"))
}

// FindAllForTenant lists documents of a tenant and the total matching count
func (r *GormDocumentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]invoicing.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FiscalDocumentModel{}).Scopes(TenantScope(tenantID))
	for key, value := range filter.Filters {
		switch key {
		case "document_type":
			query = query.Where("document_type = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "series_code":
			query = query.Where("series_code = ?", value)
		case "customer_id":
			query = query.Where("customer_id = ?", value)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.FiscalDocumentModel
	if err := applyPagination(query, filter, DocumentSortFields, "created_at").
		Preload("Lines", orderedLines).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	docs := make([]invoicing.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, nil
}

// Create persists a new draft document with its lines
func (r *GormDocumentRepository) Create(ctx context.Context, doc invoicing.Document) error {
	model, err := models.FiscalDocumentModelFromDomain(doc)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Document already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check).
// The line set is rewritten when the document still accepts edits.
func (r *GormDocumentRepository) SaveWithLock(ctx context.Context, doc invoicing.Document) error {
	h := doc.Header()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var currentVersion int
		if err := tx.Model(&models.FiscalDocumentModel{}).
			Where("id = ?", h.ID).
			Select("version").
			Scan(&currentVersion).Error; err != nil {
			return err
		}
		if currentVersion == 0 {
			return shared.ErrNotFound
		}
		if currentVersion != h.Version {
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The document has been modified by another operation")
		}

		model, err := models.FiscalDocumentModelFromDomain(doc)
		if err != nil {
			return err
		}
		model.Version = currentVersion + 1
		model.UpdatedAt = time.Now()

		result := tx.Model(&models.FiscalDocumentModel{}).
			Where("id = ? AND version = ?", h.ID, currentVersion).
			Updates(documentColumns(model))
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return shared.NewDomainError(numbering.ErrNumberingInvariant.Code, "Document number is already assigned")
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The document has been modified by another operation")
		}

		if h.CanModify() {
			if err := tx.Where("document_id = ?", h.ID).Delete(&models.FiscalDocumentLineModel{}).Error; err != nil {
				return err
			}
			if len(model.Lines) > 0 {
				if err := tx.Create(&model.Lines).Error; err != nil {
					return err
				}
			}
		}

		h.Version = model.Version
		h.UpdatedAt = model.UpdatedAt
		return nil
	})
}

func documentColumns(m *models.FiscalDocumentModel) map[string]interface{} {
	return map[string]interface{}{
		"number":                   m.Number,
		"full_number":              m.FullNumber,
		"customer_id":              m.CustomerID,
		"customer_identity_type":   m.CustomerIdentityType,
		"customer_identity_number": m.CustomerIdentityNumber,
		"customer_name":            m.CustomerName,
		"customer_address":         m.CustomerAddress,
		"currency":                 m.Currency,
		"exchange_rate":            m.ExchangeRate,
		"due_date":                 m.DueDate,
		"global_discount":          m.GlobalDiscount,
		"surcharge":                m.Surcharge,
		"other_taxes":              m.OtherTaxes,
		"detraction_percent":       m.DetractionPercent,
		"taxed_base":               m.TaxedBase,
		"exempt_base":              m.ExemptBase,
		"unaffected_base":          m.UnaffectedBase,
		"export_base":              m.ExportBase,
		"subtotal":                 m.Subtotal,
		"tax_total":                m.TaxTotal,
		"grand_total":              m.GrandTotal,
		"detraction":               m.Detraction,
		"status":                   m.Status,
		"authority_response":       m.AuthorityResponse,
		"content_hash":             m.ContentHash,
		"submission_count":         m.SubmissionCount,
		"correcting_document_id":   m.CorrectingDocumentID,
		"void_reason":              m.VoidReason,
		"notes":                    m.Notes,
		"validated_at":             m.ValidatedAt,
		"submitted_at":             m.SubmittedAt,
		"resolved_at":              m.ResolvedAt,
		"voided_at":                m.VoidedAt,
		"operation_type":           m.OperationType,
		"purchase_order":           m.PurchaseOrder,
		"payment_condition":        m.PaymentCondition,
		"credit_days":              m.CreditDays,
		"detraction_code":          m.DetractionCode,
		"anonymous_limit":          m.AnonymousLimit,
		"version":                  m.Version,
		"updated_at":               m.UpdatedAt,
	}
}

// NumberTaken reports whether a number of the series is already held by a document
func (r *GormDocumentRepository) NumberTaken(ctx context.Context, seriesID uuid.UUID, number int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.FiscalDocumentModel{}).
		Where("series_id = ? AND number = ?", seriesID, number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure GormDocumentRepository implements DocumentRepository
var _ invoicing.DocumentRepository = (*GormDocumentRepository)(nil)
