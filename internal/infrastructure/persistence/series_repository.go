package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSeriesRepository implements SeriesRepository using GORM.
// Update holds a row lock (SELECT ... FOR UPDATE) on the series for the whole
// read-modify-write, so two allocations on one series never read the same counter.
type GormSeriesRepository struct {
	db *gorm.DB
}

// NewGormSeriesRepository creates a new GormSeriesRepository
func NewGormSeriesRepository(db *gorm.DB) *GormSeriesRepository {
	return &GormSeriesRepository{db: db}
}

// FindByID finds a series by ID
func (r *GormSeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	var model models.NumberingSeriesModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a series by its (tenant, document type, code) triple
func (r *GormSeriesRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, docType valueobject.DocumentType, code string) (*numbering.Series, error) {
	var model models.NumberingSeriesModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ? AND code = ?", tenantID, string(docType), code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists the series of a tenant
func (r *GormSeriesRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]numbering.Series, error) {
	query := r.db.WithContext(ctx).Model(&models.NumberingSeriesModel{}).Scopes(TenantScope(tenantID))
	for key, value := range filter.Filters {
		switch key {
		case "document_type":
			query = query.Where("document_type = ?", value)
		case "active":
			query = query.Where("active = ?", value)
		}
	}
	query = applyPagination(query, filter, SeriesSortFields, "code")

	var rows []models.NumberingSeriesModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	series := make([]numbering.Series, len(rows))
	for i := range rows {
		series[i] = *rows[i].ToDomain()
	}
	return series, nil
}

// Create persists a new series
func (r *GormSeriesRepository) Create(ctx context.Context, series *numbering.Series) error {
	if _, err := r.FindByCode(ctx, series.TenantID, series.DocumentType, series.Code); err == nil {
		return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Series "+series.Code+" already exists")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if err := r.db.WithContext(ctx).Create(models.NumberingSeriesModelFromDomain(series)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Series "+series.Code+" already exists")
		}
		return err
	}
	return nil
}

// Update locks the series row, applies fn and writes the result back.
// When fn fails nothing is written and the lock is released.
func (r *GormSeriesRepository) Update(ctx context.Context, id uuid.UUID, fn numbering.SeriesMutator) (*numbering.Series, error) {
	var series *numbering.Series
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.NumberingSeriesModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		s := model.ToDomain()
		if err := fn(s); err != nil {
			return err
		}

		previous := s.Version
		s.IncrementVersion()
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = time.Now()
		}
		result := tx.Model(&models.NumberingSeriesModel{}).
			Where("id = ? AND version = ?", id, previous).
			Updates(map[string]interface{}{
				"current_number": s.CurrentNumber,
				"max_number":     s.MaxNumber,
				"active":         s.Active,
				"point_of_sale":  s.PointOfSale,
				"description":    s.Description,
				"deactivated_at": s.DeactivatedAt,
				"version":        s.Version,
				"updated_at":     s.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The series has been modified concurrently")
		}
		series = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// Ensure GormSeriesRepository implements SeriesRepository
var _ numbering.SeriesRepository = (*GormSeriesRepository)(nil)
