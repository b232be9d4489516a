package pos

import (
	"context"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SessionMutator changes a session loaded under an exclusive lock.
// Returning an error discards every change made by the mutator.
type SessionMutator func(s *CashSession) error

// CashSessionRepository defines the interface for cash session persistence
type CashSessionRepository interface {
	// FindByIDForTenant finds a session by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*CashSession, error)

	// FindOpenByTerminal finds the session not yet closed on a terminal
	FindOpenByTerminal(ctx context.Context, tenantID, terminalID uuid.UUID) (*CashSession, error)

	// FindAllForTenant lists sessions of a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]CashSession, error)

	// Create persists a newly opened session
	Create(ctx context.Context, session *CashSession) error

	// Update performs an atomic read-modify-write on one session,
	// persisting the new totals and any payments appended by fn
	Update(ctx context.Context, tenantID, id uuid.UUID, fn SessionMutator) (*CashSession, error)
}

// PaymentMethodRepository defines the interface for payment method persistence
type PaymentMethodRepository interface {
	// FindByCode finds a payment method by code for a tenant
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*PaymentMethod, error)

	// FindAllForTenant lists the payment methods of a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]PaymentMethod, error)

	// Save creates or updates a payment method
	Save(ctx context.Context, tenantID uuid.UUID, method *PaymentMethod) error
}
