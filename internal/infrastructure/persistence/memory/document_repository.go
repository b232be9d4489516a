package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentRepository implements invoicing.DocumentRepository on a Store.
// FindForUpdate takes no lock of its own; TransactionScope serializes commands.
type DocumentRepository struct {
	store *Store
}

// NewDocumentRepository creates a DocumentRepository
func NewDocumentRepository(store *Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

// FindByID finds a document by ID
func (r *DocumentRepository) FindByID(_ context.Context, id uuid.UUID) (invoicing.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	doc, ok := r.store.documents[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return mustClone(doc), nil
}

// FindByIDForTenant finds a document by ID for a specific tenant
func (r *DocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (invoicing.Document, error) {
	doc, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Header().TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return doc, nil
}

// FindForUpdate loads a document for a command running in a TransactionScope
func (r *DocumentRepository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (invoicing.Document, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

// FindByFullNumber finds a numbered document by its series-number string
func (r *DocumentRepository) FindByFullNumber(_ context.Context, tenantID uuid.UUID, fullNumber string) (invoicing.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var found invoicing.Document
	for _, doc := range r.store.documents {
		h := doc.Header()
		if h.TenantID != tenantID || h.FullNumber != fullNumber {
			continue
		}
		if found == nil || h.CreatedAt.Before(found.Header().CreatedAt) {
			found = doc
		}
	}
	if found == nil {
		return nil, shared.ErrNotFound
	}
	return mustClone(found), nil
}

// FindAllForTenant lists documents of a tenant and the total matching count
func (r *DocumentRepository) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]invoicing.Document, int64, error) {
	r.store.mu.RLock()
	items := make([]invoicing.Document, 0)
	for _, doc := range r.store.documents {
		h := doc.Header()
		if h.TenantID != tenantID ||
			!matches(filter.Filters, "document_type", string(h.DocumentType)) ||
			!matches(filter.Filters, "status", string(h.Status)) ||
			!matches(filter.Filters, "series_code", h.SeriesCode) {
			continue
		}
		items = append(items, mustClone(doc))
	}
	r.store.mu.RUnlock()

	var less func(a, b invoicing.Document) bool
	switch filter.OrderBy {
	case "full_number":
		less = func(a, b invoicing.Document) bool { return a.Header().FullNumber < b.Header().FullNumber }
	case "grand_total":
		less = func(a, b invoicing.Document) bool {
			return a.CurrentTotals().GrandTotal.LessThan(b.CurrentTotals().GrandTotal)
		}
	case "issue_date":
		less = func(a, b invoicing.Document) bool { return a.Header().IssueDate.Before(b.Header().IssueDate) }
	default:
		less = func(a, b invoicing.Document) bool { return a.Header().CreatedAt.Before(b.Header().CreatedAt) }
	}
	sortBy(items, isDesc(filter), less)
	return page(items, filter), int64(len(items)), nil
}

// Create persists a new draft document
func (r *DocumentRepository) Create(_ context.Context, doc invoicing.Document) error {
	c, err := cloneDocument(doc)
	if err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.documents[doc.Header().ID]; exists {
		return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Document already exists")
	}
	r.store.documents[doc.Header().ID] = c
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *DocumentRepository) SaveWithLock(_ context.Context, doc invoicing.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.documents[doc.Header().ID]
	if !ok {
		return shared.ErrNotFound
	}
	return r.store.save(doc, current.Header().Version, r.store.documents)
}

// save checks version and number uniqueness against current and writes doc into target
func (st *Store) save(doc invoicing.Document, currentVersion int, target map[uuid.UUID]invoicing.Document) error {
	h := doc.Header()
	if currentVersion != h.Version {
		return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The document has been modified by another operation")
	}
	if h.Number != nil {
		if st.numberTaken(h.SeriesID, *h.Number, h.ID, target) {
			return shared.NewDomainError(numbering.ErrNumberingInvariant.Code,
				fmt.Sprintf("Document number %s is already assigned", h.FullNumber))
		}
	}
	c, err := cloneDocument(doc)
	if err != nil {
		return err
	}
	now := time.Now()
	c.Header().Version = h.Version + 1
	c.Header().UpdatedAt = now
	target[h.ID] = c
	h.Version++
	h.UpdatedAt = now
	return nil
}

// numberTaken reports whether a document other than self holds number in a series,
// in overlay or among the committed documents
func (st *Store) numberTaken(seriesID uuid.UUID, number int64, self uuid.UUID, overlay map[uuid.UUID]invoicing.Document) bool {
	for _, m := range []map[uuid.UUID]invoicing.Document{overlay, st.documents} {
		for id, doc := range m {
			h := doc.Header()
			if id != self && h.SeriesID == seriesID && h.Number != nil && *h.Number == number {
				return true
			}
		}
	}
	return false
}

// NumberTaken reports whether a number of the series is already held by a document
func (r *DocumentRepository) NumberTaken(_ context.Context, seriesID uuid.UUID, number int64) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.numberTaken(seriesID, number, uuid.Nil, nil), nil
}

// Ensure DocumentRepository implements DocumentRepository
var _ invoicing.DocumentRepository = (*DocumentRepository)(nil)
