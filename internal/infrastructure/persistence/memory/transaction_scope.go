package memory

import (
	"context"

	appinvoicing "github.com/felicita/backend/internal/application/invoicing"
	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// TransactionScope implements the invoicing TransactionScope on a Store.
// Commands run one at a time. Their writes are staged and applied in one step
// when fn succeeds, so a failed command leaves the store as it was.
type TransactionScope struct {
	store *Store
}

// NewTransactionScope creates a TransactionScope
func NewTransactionScope(store *Store) *TransactionScope {
	return &TransactionScope{store: store}
}

// Execute runs fn against staged repositories and commits the staged writes
// if fn returns nil
func (s *TransactionScope) Execute(ctx context.Context, fn func(repos appinvoicing.TransactionalRepositories) error) error {
	s.store.commandMu.Lock()
	defer s.store.commandMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &stagedTx{
		store:       s.store,
		series:      make(map[uuid.UUID]*numbering.Series),
		seriesBase:  make(map[uuid.UUID]int),
		documents:   make(map[uuid.UUID]invoicing.Document),
		documentVer: make(map[uuid.UUID]int),
	}
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

// stagedTx buffers the writes of one command. The base maps remember the
// committed version each staged aggregate was read at; zero marks a creation.
type stagedTx struct {
	store       *Store
	series      map[uuid.UUID]*numbering.Series
	seriesBase  map[uuid.UUID]int
	documents   map[uuid.UUID]invoicing.Document
	documentVer map[uuid.UUID]int
}

func (t *stagedTx) DocumentRepo() invoicing.DocumentRepository {
	return &stagedDocumentRepository{DocumentRepository: NewDocumentRepository(t.store), tx: t}
}

func (t *stagedTx) SeriesRepo() numbering.SeriesRepository {
	return &stagedSeriesRepository{SeriesRepository: NewSeriesRepository(t.store), tx: t}
}

func (t *stagedTx) commit() error {
	st := t.store
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range t.series {
		base := t.seriesBase[id]
		current, exists := st.series[id]
		switch {
		case base == 0:
			if err := st.checkNewSeries(s); err != nil {
				return err
			}
		case !exists:
			return shared.ErrNotFound
		case current.Version != base:
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The series has been modified concurrently")
		}
	}
	for id := range t.documents {
		base := t.documentVer[id]
		current, exists := st.documents[id]
		switch {
		case base == 0 && exists:
			return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Document already exists")
		case base != 0 && !exists:
			return shared.ErrNotFound
		case base != 0 && current.Header().Version != base:
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "The document has been modified by another operation")
		}
	}

	for id, s := range t.series {
		st.series[id] = cloneSeries(s)
	}
	for id, doc := range t.documents {
		st.documents[id] = mustClone(doc)
	}
	return nil
}

type stagedSeriesRepository struct {
	*SeriesRepository
	tx *stagedTx
}

func (r *stagedSeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	if s, ok := r.tx.series[id]; ok {
		return cloneSeries(s), nil
	}
	return r.SeriesRepository.FindByID(ctx, id)
}

func (r *stagedSeriesRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, docType valueobject.DocumentType, code string) (*numbering.Series, error) {
	for _, s := range r.tx.series {
		if s.TenantID == tenantID && s.DocumentType == docType && s.Code == code {
			return cloneSeries(s), nil
		}
	}
	return r.SeriesRepository.FindByCode(ctx, tenantID, docType, code)
}

func (r *stagedSeriesRepository) Create(_ context.Context, series *numbering.Series) error {
	r.tx.store.mu.RLock()
	err := r.tx.store.checkNewSeries(series)
	r.tx.store.mu.RUnlock()
	if err != nil {
		return err
	}
	r.tx.series[series.ID] = cloneSeries(series)
	r.tx.seriesBase[series.ID] = 0
	return nil
}

func (r *stagedSeriesRepository) Update(ctx context.Context, id uuid.UUID, fn numbering.SeriesMutator) (*numbering.Series, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, staged := r.tx.series[id]; !staged {
		r.tx.seriesBase[id] = current.Version
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	current.IncrementVersion()
	r.tx.series[id] = cloneSeries(current)
	return current, nil
}

type stagedDocumentRepository struct {
	*DocumentRepository
	tx *stagedTx
}

func (r *stagedDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (invoicing.Document, error) {
	if doc, ok := r.tx.documents[id]; ok {
		return mustClone(doc), nil
	}
	return r.DocumentRepository.FindByID(ctx, id)
}

func (r *stagedDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (invoicing.Document, error) {
	doc, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Header().TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return doc, nil
}

func (r *stagedDocumentRepository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (invoicing.Document, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *stagedDocumentRepository) FindByFullNumber(ctx context.Context, tenantID uuid.UUID, fullNumber string) (invoicing.Document, error) {
	for _, doc := range r.tx.documents {
		if h := doc.Header(); h.TenantID == tenantID && h.FullNumber == fullNumber {
			return mustClone(doc), nil
		}
	}
	return r.DocumentRepository.FindByFullNumber(ctx, tenantID, fullNumber)
}

func (r *stagedDocumentRepository) Create(_ context.Context, doc invoicing.Document) error {
	id := doc.Header().ID
	r.tx.store.mu.RLock()
	_, exists := r.tx.store.documents[id]
	r.tx.store.mu.RUnlock()
	if _, staged := r.tx.documents[id]; exists || staged {
		return shared.NewDomainError(shared.ErrAlreadyExists.Code, "Document already exists")
	}
	c, err := cloneDocument(doc)
	if err != nil {
		return err
	}
	r.tx.documents[id] = c
	r.tx.documentVer[id] = 0
	return nil
}

func (r *stagedDocumentRepository) SaveWithLock(_ context.Context, doc invoicing.Document) error {
	id := doc.Header().ID
	st := r.tx.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	current, staged := r.tx.documents[id]
	if !staged {
		committed, ok := st.documents[id]
		if !ok {
			return shared.ErrNotFound
		}
		current = committed
		r.tx.documentVer[id] = committed.Header().Version
	}
	return st.save(doc, current.Header().Version, r.tx.documents)
}

func (r *stagedDocumentRepository) NumberTaken(_ context.Context, seriesID uuid.UUID, number int64) (bool, error) {
	r.tx.store.mu.RLock()
	defer r.tx.store.mu.RUnlock()
	return r.tx.store.numberTaken(seriesID, number, uuid.Nil, r.tx.documents), nil
}

// Ensure TransactionScope implements TransactionScope
var _ appinvoicing.TransactionScope = (*TransactionScope)(nil)

// Ensure stagedTx implements TransactionalRepositories
var _ appinvoicing.TransactionalRepositories = (*stagedTx)(nil)
