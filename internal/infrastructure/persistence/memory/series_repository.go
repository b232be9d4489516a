package memory

import (
	"context"
	"fmt"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// SeriesRepository implements numbering.SeriesRepository on a Store.
// Update runs the whole read-modify-write under the store lock.
type SeriesRepository struct {
	store *Store
}

// NewSeriesRepository creates a SeriesRepository
func NewSeriesRepository(store *Store) *SeriesRepository {
	return &SeriesRepository{store: store}
}

// FindByID finds a series by ID
func (r *SeriesRepository) FindByID(_ context.Context, id uuid.UUID) (*numbering.Series, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.series[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneSeries(s), nil
}

// FindByCode finds a series by its (tenant, document type, code) triple
func (r *SeriesRepository) FindByCode(_ context.Context, tenantID uuid.UUID, docType valueobject.DocumentType, code string) (*numbering.Series, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if s := r.store.seriesByCode(tenantID, docType, code); s != nil {
		return cloneSeries(s), nil
	}
	return nil, shared.ErrNotFound
}

func (st *Store) seriesByCode(tenantID uuid.UUID, docType valueobject.DocumentType, code string) *numbering.Series {
	for _, s := range st.series {
		if s.TenantID == tenantID && s.DocumentType == docType && s.Code == code {
			return s
		}
	}
	return nil
}

// FindAllForTenant lists the series of a tenant. Sorting honours code,
// document_type and current_number; anything else sorts by code.
func (r *SeriesRepository) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]numbering.Series, error) {
	r.store.mu.RLock()
	items := make([]numbering.Series, 0)
	for _, s := range r.store.series {
		if s.TenantID != tenantID || !matches(filter.Filters, "document_type", string(s.DocumentType)) {
			continue
		}
		if active, ok := filter.Filters["active"].(bool); ok && s.Active != active {
			continue
		}
		items = append(items, *cloneSeries(s))
	}
	r.store.mu.RUnlock()

	var less func(a, b numbering.Series) bool
	switch filter.OrderBy {
	case "document_type":
		less = func(a, b numbering.Series) bool { return a.DocumentType < b.DocumentType }
	case "current_number":
		less = func(a, b numbering.Series) bool { return a.CurrentNumber < b.CurrentNumber }
	case "created_at":
		less = func(a, b numbering.Series) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		less = func(a, b numbering.Series) bool { return a.Code < b.Code }
	}
	sortBy(items, isDesc(filter), less)
	return page(items, filter), nil
}

// Create persists a new series
func (r *SeriesRepository) Create(_ context.Context, series *numbering.Series) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.checkNewSeries(series); err != nil {
		return err
	}
	r.store.series[series.ID] = cloneSeries(series)
	return nil
}

func (st *Store) checkNewSeries(series *numbering.Series) error {
	if _, exists := st.series[series.ID]; exists || st.seriesByCode(series.TenantID, series.DocumentType, series.Code) != nil {
		return shared.NewDomainError(shared.ErrAlreadyExists.Code, fmt.Sprintf("Series %s already exists", series.Code))
	}
	return nil
}

// Update applies fn to a copy of the series and stores it when fn succeeds
func (r *SeriesRepository) Update(_ context.Context, id uuid.UUID, fn numbering.SeriesMutator) (*numbering.Series, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.series[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	s := cloneSeries(current)
	if err := fn(s); err != nil {
		return nil, err
	}
	s.IncrementVersion()
	r.store.series[id] = cloneSeries(s)
	return s, nil
}

// Ensure SeriesRepository implements SeriesRepository
var _ numbering.SeriesRepository = (*SeriesRepository)(nil)
