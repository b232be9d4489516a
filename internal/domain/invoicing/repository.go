package invoicing

import (
	"context"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentRepository defines the interface for fiscal document persistence
type DocumentRepository interface {
	// FindByID finds a document by ID
	FindByID(ctx context.Context, id uuid.UUID) (Document, error)

	// FindByIDForTenant finds a document by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (Document, error)

	// FindForUpdate loads a document holding a row lock until the surrounding transaction ends
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Document, error)

	// FindByFullNumber finds a numbered document by its series-number string
	FindByFullNumber(ctx context.Context, tenantID uuid.UUID, fullNumber string) (Document, error)

	// FindAllForTenant lists documents of a tenant and the total matching count
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Document, int64, error)

	// Create persists a new draft document with its lines
	Create(ctx context.Context, doc Document) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, doc Document) error

	// NumberTaken reports whether a number of the series is already held by a document
	NumberTaken(ctx context.Context, seriesID uuid.UUID, number int64) (bool, error)
}
