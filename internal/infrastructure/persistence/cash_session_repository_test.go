package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSession(t *testing.T, repo *GormCashSessionRepository, tenantID, terminalID uuid.UUID, float string) *pos.CashSession {
	t.Helper()
	session, err := pos.OpenCashSession(tenantID, terminalID, "CAJA-001", uuid.New(), decimal.RequireFromString(float), "apertura")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), session))
	return session
}

func testMethod(t *testing.T, code string, kind pos.PaymentKind) pos.PaymentMethod {
	t.Helper()
	m, err := pos.NewPaymentMethod(code, code, kind)
	require.NoError(t, err)
	return *m
}

func TestGormCashSessionRepository_CreateAndFind(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormCashSessionRepository(db)
	ctx := context.Background()
	tenantID, terminalID := uuid.New(), uuid.New()

	session := openTestSession(t, repo, tenantID, terminalID, "200.00")

	t.Run("finds by id", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, pos.SessionStatusOpen, found.Status)
		assert.Equal(t, "CAJA-001", found.SessionNumber)
		assert.True(t, found.OpeningFloat.Equal(decimal.NewFromInt(200)))
		assert.True(t, found.ExpectedCash.Equal(decimal.NewFromInt(200)))
		assert.Empty(t, found.Payments)
	})

	t.Run("finds the open session of a terminal", func(t *testing.T) {
		found, err := repo.FindOpenByTerminal(ctx, tenantID, terminalID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, found.ID)

		_, err = repo.FindOpenByTerminal(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("other tenant cannot see the session", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), session.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists sessions", func(t *testing.T) {
		openTestSession(t, repo, tenantID, uuid.New(), "0")
		sessions, err := repo.FindAllForTenant(ctx, tenantID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Len(t, sessions, 2)
	})
}

func TestGormCashSessionRepository_Update(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormCashSessionRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	cash := testMethod(t, "EFECTIVO", pos.PaymentKindCash)
	yape := testMethod(t, "YAPE", pos.PaymentKindYape)

	t.Run("appends payments and persists totals", func(t *testing.T) {
		session := openTestSession(t, repo, tenantID, uuid.New(), "100.00")

		_, err := repo.Update(ctx, tenantID, session.ID, func(s *pos.CashSession) error {
			_, err := s.RecordSalePayment(uuid.New(),
				pos.PaymentInput{Method: cash, Amount: decimal.RequireFromString("30.00"), Received: decimal.RequireFromString("50.00")},
				pos.PaymentInput{Method: yape, Amount: decimal.RequireFromString("20.00"), Reference: "OP-7781"},
			)
			return err
		})
		require.NoError(t, err)

		_, err = repo.Update(ctx, tenantID, session.ID, func(s *pos.CashSession) error {
			_, err := s.RecordSalePayment(uuid.New(),
				pos.PaymentInput{Method: cash, Amount: decimal.RequireFromString("15.00"), Received: decimal.RequireFromString("15.00")},
			)
			return err
		})
		require.NoError(t, err)

		found, err := repo.FindByIDForTenant(ctx, tenantID, session.ID)
		require.NoError(t, err)
		require.Len(t, found.Payments, 3)
		assert.Equal(t, "EFECTIVO", found.Payments[0].MethodCode)
		assert.Equal(t, "YAPE", found.Payments[1].MethodCode)
		assert.Equal(t, "OP-7781", found.Payments[1].Reference)
		assert.True(t, found.Payments[0].Change.Equal(decimal.NewFromInt(20)))
		assert.True(t, found.CashTotal.Equal(decimal.NewFromInt(45)))
		assert.True(t, found.OtherTotal.Equal(decimal.NewFromInt(20)))
		assert.True(t, found.ExpectedCash.Equal(decimal.NewFromInt(145)))
		assert.Equal(t, 2, found.SaleCount)
		assert.Equal(t, 3, found.Version)
	})

	t.Run("closing stores the variance", func(t *testing.T) {
		session := openTestSession(t, repo, tenantID, uuid.New(), "100.00")

		closed, err := repo.Update(ctx, tenantID, session.ID, func(s *pos.CashSession) error {
			return s.Close(decimal.RequireFromString("98.50"), "faltante")
		})
		require.NoError(t, err)
		assert.Equal(t, pos.SessionStatusClosed, closed.Status)

		found, err := repo.FindByIDForTenant(ctx, tenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, pos.SessionStatusClosed, found.Status)
		require.NotNil(t, found.Variance)
		assert.True(t, found.Variance.Equal(decimal.RequireFromString("-1.5")))
		assert.NotNil(t, found.ClosedAt)

		_, err = repo.FindOpenByTerminal(ctx, tenantID, session.TerminalID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejected mutation leaves the row untouched", func(t *testing.T) {
		session := openTestSession(t, repo, tenantID, uuid.New(), "10.00")

		_, err := repo.Update(ctx, tenantID, session.ID, func(s *pos.CashSession) error {
			_, err := s.RecordSalePayment(uuid.New(), pos.PaymentInput{Method: cash, Amount: decimal.Zero})
			return err
		})
		assert.ErrorIs(t, err, shared.ErrInvalidPayment)

		found, err := repo.FindByIDForTenant(ctx, tenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, found.Version)
		assert.Empty(t, found.Payments)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := repo.Update(ctx, tenantID, uuid.New(), func(*pos.CashSession) error { return nil })
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormCashSessionRepository_ConcurrentPayments(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormCashSessionRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	cash := testMethod(t, "EFECTIVO", pos.PaymentKindCash)
	session := openTestSession(t, repo, tenantID, uuid.New(), "0")

	const sales = 15
	var wg sync.WaitGroup
	for i := 0; i < sales; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, tenantID, session.ID, func(s *pos.CashSession) error {
				_, err := s.RecordSalePayment(uuid.New(),
					pos.PaymentInput{Method: cash, Amount: decimal.NewFromInt(10), Received: decimal.NewFromInt(10)})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := repo.FindByIDForTenant(ctx, tenantID, session.ID)
	require.NoError(t, err)
	assert.Len(t, found.Payments, sales)
	assert.Equal(t, sales, found.SaleCount)
	assert.True(t, found.CashTotal.Equal(decimal.NewFromInt(10*sales)))
}

func TestGormPaymentMethodRepository_Save(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormPaymentMethodRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	method := testMethod(t, "VISA", pos.PaymentKindCreditCard)
	require.NoError(t, method.SetCommission(decimal.RequireFromString("3.5"), decimal.Zero))
	require.NoError(t, repo.Save(ctx, tenantID, &method))

	t.Run("finds by code", func(t *testing.T) {
		found, err := repo.FindByCode(ctx, tenantID, "VISA")
		require.NoError(t, err)
		assert.Equal(t, pos.PaymentKindCreditCard, found.Kind)
		assert.True(t, found.CommissionPercent.Equal(decimal.RequireFromString("3.5")))
		assert.True(t, found.Active)
	})

	t.Run("saving again updates in place", func(t *testing.T) {
		method.Active = false
		method.Name = "Visa crédito"
		require.NoError(t, repo.Save(ctx, tenantID, &method))

		methods, err := repo.FindAllForTenant(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, methods, 1)
		assert.False(t, methods[0].Active)
		assert.Equal(t, "Visa crédito", methods[0].Name)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := repo.FindByCode(ctx, tenantID, "NOPE")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
