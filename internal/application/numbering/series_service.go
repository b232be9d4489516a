package numbering

import (
	"context"
	"errors"
	"strings"

	"github.com/felicita/backend/internal/application/validation"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllocationRecorder records allocation outcomes
type AllocationRecorder interface {
	RecordAllocation(ctx context.Context, tenantID uuid.UUID, seriesCode string, err error)
}

// SeriesService manages numbering series and hands out numbers for documents
// issued outside the document lifecycle (e.g. contingency batches).
type SeriesService struct {
	repo             numbering.SeriesRepository
	documentSeries   numbering.SeriesRepository
	allocator        *numbering.Allocator
	defaultMaxNumber int64
	eventPublisher   shared.EventPublisher
	metrics          AllocationRecorder
	logger           *zap.Logger
}

// NewSeriesService creates a new SeriesService.
// A non-positive defaultMaxNumber selects numbering.DefaultMaxNumber.
func NewSeriesService(repo numbering.SeriesRepository, defaultMaxNumber int64, logger *zap.Logger) *SeriesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeriesService{
		repo:             repo,
		allocator:        numbering.NewAllocator(repo),
		defaultMaxNumber: defaultMaxNumber,
		logger:           logger,
	}
}

// SetEventPublisher sets the event publisher
func (s *SeriesService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDocumentSeries names the repository documents number from when it is
// not the one this service manages. Create then refuses codes already taken
// there: two counters for one code would issue the same number twice.
func (s *SeriesService) SetDocumentSeries(repo numbering.SeriesRepository) {
	s.documentSeries = repo
}

// SetMetrics sets the allocation recorder
func (s *SeriesService) SetMetrics(metrics AllocationRecorder) {
	s.metrics = metrics
}

// Create opens a new series
func (s *SeriesService) Create(ctx context.Context, tenantID uuid.UUID, req CreateSeriesRequest) (*SeriesResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	maxNumber := req.MaxNumber
	if maxNumber == 0 {
		maxNumber = s.defaultMaxNumber
	}
	docType := valueobject.DocumentType(req.DocumentType)
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	if _, err := s.repo.FindByCode(ctx, tenantID, docType, code); err == nil {
		return nil, shared.NewDomainError(shared.ErrAlreadyExists.Code, "Series "+code+" already exists for "+docType.Label())
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if s.documentSeries != nil {
		if _, err := s.documentSeries.FindByCode(ctx, tenantID, docType, code); err == nil {
			return nil, shared.NewDomainError(shared.ErrAlreadyExists.Code,
				"Series "+code+" numbers "+docType.Label()+" documents and cannot be allocated standalone")
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}

	series, err := numbering.NewSeries(tenantID, docType, code, maxNumber)
	if err != nil {
		return nil, err
	}
	series.PointOfSale = req.PointOfSale
	series.Description = req.Description

	if err := s.repo.Create(ctx, series); err != nil {
		return nil, err
	}
	s.logger.Info("numbering series created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("series_id", series.ID.String()),
		zap.String("code", series.Code),
		zap.String("document_type", req.DocumentType),
	)
	s.publish(ctx, series.GetDomainEvents())
	series.ClearDomainEvents()

	response := ToSeriesResponse(series)
	return &response, nil
}

// GetByID retrieves a series by ID
func (s *SeriesService) GetByID(ctx context.Context, tenantID, seriesID uuid.UUID) (*SeriesResponse, error) {
	series, err := s.findForTenant(ctx, tenantID, seriesID)
	if err != nil {
		return nil, err
	}
	response := ToSeriesResponse(series)
	return &response, nil
}

// List retrieves the series of a tenant
func (s *SeriesService) List(ctx context.Context, tenantID uuid.UUID, filter SeriesListFilter) ([]SeriesResponse, error) {
	if err := validation.Struct(filter); err != nil {
		return nil, err
	}
	domainFilter := shared.DefaultFilter()
	domainFilter.OrderBy = "code"
	domainFilter.OrderDir = "asc"
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.DocumentType != "" {
		domainFilter.Filters["document_type"] = filter.DocumentType
	}
	if filter.Active != nil {
		domainFilter.Filters["active"] = *filter.Active
	}

	series, err := s.repo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}
	responses := make([]SeriesResponse, len(series))
	for i := range series {
		responses[i] = ToSeriesResponse(&series[i])
	}
	return responses, nil
}

// Allocate hands out the next number of a series
func (s *SeriesService) Allocate(ctx context.Context, tenantID, seriesID uuid.UUID) (*AllocationResponse, error) {
	series, err := s.findForTenant(ctx, tenantID, seriesID)
	if err != nil {
		return nil, err
	}
	alloc, err := s.allocator.Allocate(ctx, seriesID)
	if s.metrics != nil {
		s.metrics.RecordAllocation(ctx, tenantID, series.Code, err)
	}
	if err != nil {
		level := s.logger.Warn
		if errors.Is(err, shared.ErrSeriesExhausted) {
			level = s.logger.Error
		}
		level("number allocation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("series", series.Code),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Debug("number allocated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("full_number", alloc.FullNumber),
	)
	s.publish(ctx, alloc.Events)

	response := ToAllocationResponse(alloc)
	return &response, nil
}

// Peek returns the display number the next allocation would produce
func (s *SeriesService) Peek(ctx context.Context, tenantID, seriesID uuid.UUID) (string, error) {
	if _, err := s.findForTenant(ctx, tenantID, seriesID); err != nil {
		return "", err
	}
	return s.allocator.Peek(ctx, seriesID)
}

// Deactivate stops allocation on a series
func (s *SeriesService) Deactivate(ctx context.Context, tenantID, seriesID uuid.UUID) (*SeriesResponse, error) {
	return s.update(ctx, tenantID, seriesID, "deactivated", (*numbering.Series).Deactivate)
}

// Activate re-enables allocation on a series
func (s *SeriesService) Activate(ctx context.Context, tenantID, seriesID uuid.UUID) (*SeriesResponse, error) {
	return s.update(ctx, tenantID, seriesID, "activated", (*numbering.Series).Activate)
}

// RaiseCeiling lifts the maximum number of a series
func (s *SeriesService) RaiseCeiling(ctx context.Context, tenantID, seriesID uuid.UUID, req RaiseCeilingRequest) (*SeriesResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.update(ctx, tenantID, seriesID, "ceiling raised", func(series *numbering.Series) error {
		return series.RaiseCeiling(req.MaxNumber)
	})
}

func (s *SeriesService) update(ctx context.Context, tenantID, seriesID uuid.UUID, what string, fn numbering.SeriesMutator) (*SeriesResponse, error) {
	var events []shared.DomainEvent
	series, err := s.repo.Update(ctx, seriesID, func(series *numbering.Series) error {
		if series.TenantID != tenantID {
			return shared.ErrNotFound
		}
		if err := fn(series); err != nil {
			return err
		}
		events = series.GetDomainEvents()
		series.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("numbering series "+what,
		zap.String("tenant_id", tenantID.String()),
		zap.String("series_id", seriesID.String()),
		zap.String("code", series.Code),
	)
	s.publish(ctx, events)

	response := ToSeriesResponse(series)
	return &response, nil
}

func (s *SeriesService) findForTenant(ctx context.Context, tenantID, seriesID uuid.UUID) (*numbering.Series, error) {
	series, err := s.repo.FindByID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if series.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return series, nil
}

func (s *SeriesService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish series events", zap.Error(err))
	}
}
