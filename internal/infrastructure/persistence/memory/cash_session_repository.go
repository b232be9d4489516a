package memory

import (
	"context"

	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CashSessionRepository implements pos.CashSessionRepository on a Store
type CashSessionRepository struct {
	store *Store
}

// NewCashSessionRepository creates a CashSessionRepository
func NewCashSessionRepository(store *Store) *CashSessionRepository {
	return &CashSessionRepository{store: store}
}

// FindByIDForTenant finds a session by ID for a specific tenant
func (r *CashSessionRepository) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*pos.CashSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return cloneSession(s), nil
}

// FindOpenByTerminal finds the most recent session not yet closed on a terminal
func (r *CashSessionRepository) FindOpenByTerminal(_ context.Context, tenantID, terminalID uuid.UUID) (*pos.CashSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var found *pos.CashSession
	for _, s := range r.store.sessions {
		if s.TenantID != tenantID || s.TerminalID != terminalID || s.Status == pos.SessionStatusClosed {
			continue
		}
		if found == nil || s.OpenedAt.After(found.OpenedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, shared.ErrNotFound
	}
	return cloneSession(found), nil
}

// FindAllForTenant lists sessions of a tenant, newest first unless the filter
// asks for ascending order
func (r *CashSessionRepository) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]pos.CashSession, error) {
	r.store.mu.RLock()
	items := make([]pos.CashSession, 0)
	for _, s := range r.store.sessions {
		if s.TenantID != tenantID ||
			!matches(filter.Filters, "status", string(s.Status)) ||
			!matches(filter.Filters, "terminal_id", s.TerminalID.String()) ||
			!matches(filter.Filters, "cashier_id", s.CashierID.String()) {
			continue
		}
		items = append(items, *cloneSession(s))
	}
	r.store.mu.RUnlock()

	var less func(a, b pos.CashSession) bool
	if filter.OrderBy == "session_number" {
		less = func(a, b pos.CashSession) bool { return a.SessionNumber < b.SessionNumber }
	} else {
		less = func(a, b pos.CashSession) bool { return a.OpenedAt.Before(b.OpenedAt) }
	}
	sortBy(items, filter.OrderDir == "" || isDesc(filter), less)
	return page(items, filter), nil
}

// Create persists a newly opened session
func (r *CashSessionRepository) Create(_ context.Context, session *pos.CashSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.sessions[session.ID]; exists {
		return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Cash session already exists")
	}
	r.store.sessions[session.ID] = cloneSession(session)
	return nil
}

// Update applies fn to a copy of the session under the store lock and keeps
// the result when fn succeeds
func (r *CashSessionRepository) Update(_ context.Context, tenantID, id uuid.UUID, fn pos.SessionMutator) (*pos.CashSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.sessions[id]
	if !ok || current.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	s := cloneSession(current)
	if err := fn(s); err != nil {
		return nil, err
	}
	s.IncrementVersion()
	r.store.sessions[id] = cloneSession(s)
	return s, nil
}

// Ensure CashSessionRepository implements CashSessionRepository
var _ pos.CashSessionRepository = (*CashSessionRepository)(nil)

// PaymentMethodRepository implements pos.PaymentMethodRepository on a Store
type PaymentMethodRepository struct {
	store *Store
}

// NewPaymentMethodRepository creates a PaymentMethodRepository
func NewPaymentMethodRepository(store *Store) *PaymentMethodRepository {
	return &PaymentMethodRepository{store: store}
}

// FindByCode finds a payment method by code for a tenant
func (r *PaymentMethodRepository) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (*pos.PaymentMethod, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.methods[tenantID][code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

// FindAllForTenant lists the payment methods of a tenant ordered by code
func (r *PaymentMethodRepository) FindAllForTenant(_ context.Context, tenantID uuid.UUID) ([]pos.PaymentMethod, error) {
	r.store.mu.RLock()
	methods := make([]pos.PaymentMethod, 0, len(r.store.methods[tenantID]))
	for _, m := range r.store.methods[tenantID] {
		methods = append(methods, m)
	}
	r.store.mu.RUnlock()
	sortBy(methods, false, func(a, b pos.PaymentMethod) bool { return a.Code < b.Code })
	return methods, nil
}

// Save creates or replaces a payment method, keyed by (tenant, code)
func (r *PaymentMethodRepository) Save(_ context.Context, tenantID uuid.UUID, method *pos.PaymentMethod) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.methods[tenantID] == nil {
		r.store.methods[tenantID] = make(map[string]pos.PaymentMethod)
	}
	r.store.methods[tenantID][method.Code] = *method
	return nil
}

// Ensure PaymentMethodRepository implements PaymentMethodRepository
var _ pos.PaymentMethodRepository = (*PaymentMethodRepository)(nil)
