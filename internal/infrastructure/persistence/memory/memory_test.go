package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	appinvoicing "github.com/felicita/backend/internal/application/invoicing"
	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/domain/taxation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *Store
	series   *numbering.Series
	docs     *DocumentRepository
	scope    *TransactionScope
	tenantID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewStore()
	tenantID := uuid.New()
	series, err := numbering.NewSeries(tenantID, valueobject.DocumentTypeInvoice, "F001", 0)
	require.NoError(t, err)
	require.NoError(t, NewSeriesRepository(store).Create(context.Background(), series))
	return &fixture{
		store:    store,
		series:   series,
		docs:     NewDocumentRepository(store),
		scope:    NewTransactionScope(store),
		tenantID: tenantID,
	}
}

func (f *fixture) draft(t *testing.T, withLine bool) *invoicing.Invoice {
	t.Helper()
	party, err := valueobject.NewParty(valueobject.IdentityRUC, "20100070970", "Supermercados Peruanos S.A.", "Av. Morro Solar 1086")
	require.NoError(t, err)
	inv, err := invoicing.NewInvoice(f.tenantID, invoicing.SeriesRef{ID: f.series.ID, Code: "F001"}, party, valueobject.PEN, decimal.Zero)
	require.NoError(t, err)
	if withLine {
		_, err = inv.AddLine(invoicing.LineSpec{
			Description:    "Aceite vegetal 1L",
			Quantity:       decimal.NewFromInt(3),
			UnitPrice:      decimal.RequireFromString("8.90"),
			UnitDiscount:   decimal.Zero,
			TaxabilityCode: taxation.TaxedOnerous,
			TaxRate:        taxation.DefaultIGVRate,
		})
		require.NoError(t, err)
	}
	require.NoError(t, f.docs.Create(context.Background(), inv))
	return inv
}

func (f *fixture) submit(ctx context.Context, id uuid.UUID, after func() error) (invoicing.Document, error) {
	var out invoicing.Document
	err := f.scope.Execute(ctx, func(repos appinvoicing.TransactionalRepositories) error {
		doc, err := repos.DocumentRepo().FindForUpdate(ctx, f.tenantID, id)
		if err != nil {
			return err
		}
		if doc.CurrentStatus() == invoicing.DocumentStatusDraft {
			if err := doc.Validate(); err != nil {
				return err
			}
		}
		allocator := numbering.NewAllocator(repos.SeriesRepo()).WithGuard(repos.DocumentRepo())
		if err := doc.Submit(ctx, allocator); err != nil {
			return err
		}
		if err := repos.DocumentRepo().SaveWithLock(ctx, doc); err != nil {
			return err
		}
		if after != nil {
			if err := after(); err != nil {
				return err
			}
		}
		out = doc
		return nil
	})
	return out, err
}

func (f *fixture) currentNumber(t *testing.T) int64 {
	t.Helper()
	s, err := NewSeriesRepository(f.store).FindByID(context.Background(), f.series.ID)
	require.NoError(t, err)
	return s.CurrentNumber
}

func TestTransactionScope_CommitsOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draft(t, true)

	doc, err := f.submit(ctx, inv.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "F001-00000001", doc.Header().FullNumber)

	stored, err := f.docs.FindByFullNumber(ctx, f.tenantID, "F001-00000001")
	require.NoError(t, err)
	assert.Equal(t, invoicing.DocumentStatusSubmitted, stored.CurrentStatus())
	assert.Equal(t, doc.Header().Version, stored.Header().Version)
	assert.Equal(t, int64(1), f.currentNumber(t))
}

func TestTransactionScope_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draft(t, true)
	boom := errors.New("transport down")

	_, err := f.submit(ctx, inv.ID, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int64(0), f.currentNumber(t))
	stored, err := f.docs.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.DocumentStatusDraft, stored.CurrentStatus())
	assert.Nil(t, stored.Header().Number)

	// the next successful submission still gets the first number
	doc, err := f.submit(ctx, inv.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "F001-00000001", doc.Header().FullNumber)
}

func TestTransactionScope_ConcurrentSubmissionsAreGapless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 25
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.draft(t, true).ID
	}
	// every fifth submission fails after allocating
	failing := errors.New("rejected by caller")

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			var after func() error
			if i%5 == 0 {
				after = func() error { return failing }
			}
			_, _ = f.submit(ctx, id, after)
		}(i, id)
	}
	wg.Wait()

	numbers := make(map[int64]bool)
	docs, total, err := f.docs.FindAllForTenant(ctx, f.tenantID, shared.Filter{})
	require.NoError(t, err)
	require.Equal(t, int64(n), total)
	for _, d := range docs {
		if num := d.Header().Number; num != nil {
			assert.False(t, numbers[*num], "number %d assigned twice", *num)
			numbers[*num] = true
		}
	}
	submitted := n - n/5
	assert.Len(t, numbers, submitted)
	for k := int64(1); k <= int64(submitted); k++ {
		assert.True(t, numbers[k], "gap at %d", k)
	}
	assert.Equal(t, int64(submitted), f.currentNumber(t))
}

func TestTransactionScope_ConflictWithOutsideWriter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draft(t, true)

	_, err := f.submit(ctx, inv.ID, func() error {
		// an allocation outside the scope moves the committed series on
		_, err := numbering.NewAllocator(NewSeriesRepository(f.store)).Allocate(ctx, f.series.ID)
		return err
	})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	stored, err := f.docs.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.DocumentStatusDraft, stored.CurrentStatus())
}

func TestDocumentRepository_CopiesValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draft(t, true)

	inv.Lines[0].Description = "changed outside"
	stored, err := f.docs.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aceite vegetal 1L", stored.Header().Lines[0].Description)
	assert.Empty(t, stored.GetDomainEvents())

	t.Run("stale save conflicts", func(t *testing.T) {
		first, err := f.docs.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		second, err := f.docs.FindByID(ctx, inv.ID)
		require.NoError(t, err)

		require.NoError(t, f.docs.SaveWithLock(ctx, first))
		assert.ErrorIs(t, f.docs.SaveWithLock(ctx, second), shared.ErrConcurrencyConflict)
	})
}

func TestSeriesRepository(t *testing.T) {
	store := NewStore()
	repo := NewSeriesRepository(store)
	ctx := context.Background()
	tenantID := uuid.New()

	for _, code := range []string{"F002", "F001"} {
		s, err := numbering.NewSeries(tenantID, valueobject.DocumentTypeInvoice, code, 0)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))
	}

	t.Run("duplicate code", func(t *testing.T) {
		s, err := numbering.NewSeries(tenantID, valueobject.DocumentTypeInvoice, "F001", 0)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, s), shared.ErrAlreadyExists)
	})

	t.Run("lists by code", func(t *testing.T) {
		series, err := repo.FindAllForTenant(ctx, tenantID, shared.Filter{OrderBy: "code", OrderDir: "asc"})
		require.NoError(t, err)
		require.Len(t, series, 2)
		assert.Equal(t, "F001", series[0].Code)
	})

	t.Run("concurrent allocation", func(t *testing.T) {
		s, err := repo.FindByCode(ctx, tenantID, valueobject.DocumentTypeInvoice, "F001")
		require.NoError(t, err)
		alloc := numbering.NewAllocator(repo)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := alloc.Allocate(ctx, s.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		after, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), after.CurrentNumber)
		assert.Equal(t, 51, after.Version)
	})
}

func TestCashSessionRepository(t *testing.T) {
	store := NewStore()
	repo := NewCashSessionRepository(store)
	methods := NewPaymentMethodRepository(store)
	ctx := context.Background()
	tenantID, terminalID := uuid.New(), uuid.New()

	for _, m := range pos.DefaultPaymentMethods() {
		m := m
		require.NoError(t, methods.Save(ctx, tenantID, &m))
	}
	cash, err := methods.FindByCode(ctx, tenantID, "EFECTIVO")
	require.NoError(t, err)

	session, err := pos.OpenCashSession(tenantID, terminalID, "T1-0001", uuid.New(), decimal.NewFromInt(50), "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, session))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, tenantID, session.ID, func(s *pos.CashSession) error {
				_, err := s.RecordSalePayment(uuid.New(), pos.PaymentInput{Method: *cash, Amount: decimal.NewFromInt(5), Received: decimal.NewFromInt(5)})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := repo.FindOpenByTerminal(ctx, tenantID, terminalID)
	require.NoError(t, err)
	assert.Len(t, found.Payments, 30)
	assert.True(t, found.ExpectedCash.Equal(decimal.NewFromInt(200)))

	_, err = repo.Update(ctx, tenantID, session.ID, func(s *pos.CashSession) error {
		return s.Close(decimal.NewFromInt(200), "")
	})
	require.NoError(t, err)
	_, err = repo.FindOpenByTerminal(ctx, tenantID, terminalID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	all, err := methods.FindAllForTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, all, len(pos.DefaultPaymentMethods()))
}
