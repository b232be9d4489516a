package numbering

import (
	"context"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// SeriesMutator changes a series loaded under an exclusive lock.
// Returning an error discards every change made by the mutator.
type SeriesMutator func(s *Series) error

// SeriesRepository defines the interface for series persistence
type SeriesRepository interface {
	// FindByID finds a series by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Series, error)

	// FindByCode finds a series by its (tenant, document type, code) triple
	FindByCode(ctx context.Context, tenantID uuid.UUID, docType valueobject.DocumentType, code string) (*Series, error)

	// FindAllForTenant lists the series of a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Series, error)

	// Create persists a new series; fails with ALREADY_EXISTS when the triple is taken
	Create(ctx context.Context, series *Series) error

	// Update performs an atomic read-modify-write on one series.
	// Calls for the same series are serialized; different series proceed independently.
	Update(ctx context.Context, id uuid.UUID, fn SeriesMutator) (*Series, error)
}
