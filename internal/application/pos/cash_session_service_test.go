package pos

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// sessionStore is a CashSessionRepository fake; Update copies the session so a
// failing mutator leaves the stored state untouched
type sessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]pos.CashSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[uuid.UUID]pos.CashSession)}
}

func (r *sessionStore) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*pos.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (r *sessionStore) FindOpenByTerminal(_ context.Context, tenantID, terminalID uuid.UUID) (*pos.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.TerminalID == terminalID && !s.IsClosed() {
			return &s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *sessionStore) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]pos.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pos.CashSession
	for _, s := range r.sessions {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *sessionStore) Create(_ context.Context, s *pos.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *s
	stored.ClearDomainEvents()
	r.sessions[s.ID] = stored
	return nil
}

func (r *sessionStore) Update(_ context.Context, tenantID, id uuid.UUID, fn pos.SessionMutator) (*pos.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	s.Payments = append([]pos.Payment(nil), s.Payments...)
	if err := fn(&s); err != nil {
		return nil, err
	}
	s.IncrementVersion()
	r.sessions[id] = s
	return &s, nil
}

// methodStore is a PaymentMethodRepository fake
type methodStore struct {
	methods map[string]pos.PaymentMethod
}

func newMethodStore() *methodStore {
	store := &methodStore{methods: make(map[string]pos.PaymentMethod)}
	for _, m := range pos.DefaultPaymentMethods() {
		store.methods[m.Code] = m
	}
	return store
}

func (r *methodStore) FindByCode(_ context.Context, _ uuid.UUID, code string) (*pos.PaymentMethod, error) {
	m, ok := r.methods[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

func (r *methodStore) FindAllForTenant(context.Context, uuid.UUID) ([]pos.PaymentMethod, error) {
	out := make([]pos.PaymentMethod, 0, len(r.methods))
	for _, m := range r.methods {
		out = append(out, m)
	}
	return out, nil
}

func (r *methodStore) Save(_ context.Context, _ uuid.UUID, m *pos.PaymentMethod) error {
	r.methods[m.Code] = *m
	return nil
}

// MockSessionMetrics is a mock implementation of SessionMetrics
type MockSessionMetrics struct {
	mock.Mock
}

func (m *MockSessionMetrics) RecordSessionClosed(ctx context.Context, tenantID uuid.UUID, level string, variance decimal.Decimal) {
	m.Called(ctx, tenantID, level, variance.StringFixed(2))
}

var testTenantID = uuid.New()

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService() (*CashSessionService, *sessionStore, *methodStore) {
	sessions := newSessionStore()
	methods := newMethodStore()
	return NewCashSessionService(sessions, methods, pos.VarianceThresholds{}, zap.NewNop()), sessions, methods
}

func openTestSession(t *testing.T, svc *CashSessionService, float string) *SessionResponse {
	t.Helper()
	resp, err := svc.Open(context.Background(), testTenantID, OpenSessionRequest{
		TerminalID:    uuid.New(),
		SessionNumber: "CAJA01-0001",
		CashierID:     uuid.New(),
		OpeningFloat:  amount(float),
	})
	require.NoError(t, err)
	return resp
}

func TestCashSessionService_Open(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	terminal := uuid.New()
	req := OpenSessionRequest{TerminalID: terminal, SessionNumber: "CAJA01-0001", CashierID: uuid.New(), OpeningFloat: amount("100")}

	resp, err := svc.Open(ctx, testTenantID, req)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", resp.Status)
	assert.Equal(t, "100.00", resp.ExpectedCash.StringFixed(2))

	_, err = svc.Open(ctx, testTenantID, req)
	assert.Equal(t, "SESSION_ALREADY_OPEN", shared.CodeOf(err))

	req.OpeningFloat = amount("-1")
	req.TerminalID = uuid.New()
	_, err = svc.Open(ctx, testTenantID, req)
	assert.Equal(t, "INVALID_OPENING_FLOAT", shared.CodeOf(err))
}

func TestCashSessionService_RecordAndClose(t *testing.T) {
	ctx := context.Background()
	svc, _, methods := newTestService()
	metrics := new(MockSessionMetrics)
	svc.SetMetrics(metrics)
	visa, err := pos.NewPaymentMethod("VISA", "Visa", pos.PaymentKindCreditCard)
	require.NoError(t, err)
	require.NoError(t, visa.SetCommission(amount("3.5"), amount("0.30")))
	methods.methods["VISA"] = *visa

	session := openTestSession(t, svc, "100")

	payments, err := svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
		SaleID: uuid.New(),
		Payments: []PaymentRequest{
			{MethodCode: "efectivo", Amount: amount("150"), Received: amount("200")},
			{MethodCode: "VISA", Amount: amount("80"), Reference: "AUTH-123", CardLast4: "4242"},
		},
	})
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "50.00", payments[0].Change.StringFixed(2))
	assert.Equal(t, "3.10", payments[1].Commission.StringFixed(2))

	_, err = svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
		SaleID:   uuid.New(),
		Payments: []PaymentRequest{{MethodCode: "EFECTIVO", Amount: amount("100")}},
	})
	require.NoError(t, err)

	metrics.On("RecordSessionClosed", ctx, testTenantID, "normal", "0.00").Return()
	summary, err := svc.Close(ctx, testTenantID, session.ID, CloseSessionRequest{ActualCash: amount("350"), Notes: "Cuadre sin diferencias"})
	require.NoError(t, err)
	assert.Equal(t, pos.SessionStatusClosed, summary.Status)
	assert.Equal(t, "350.00", summary.ExpectedCash.StringFixed(2))
	assert.Equal(t, "330.00", summary.TotalSales.StringFixed(2))
	assert.Equal(t, 2, summary.SaleCount)
	assert.Equal(t, pos.VarianceNormal, summary.VarianceLevel)
	assert.Equal(t, "250.00", summary.ByMethod["EFECTIVO"].StringFixed(2))
	metrics.AssertExpectations(t)

	_, err = svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
		SaleID:   uuid.New(),
		Payments: []PaymentRequest{{MethodCode: "EFECTIVO", Amount: amount("10")}},
	})
	assert.True(t, errors.Is(err, shared.ErrSessionClosed))

	_, err = svc.Close(ctx, testTenantID, session.ID, CloseSessionRequest{ActualCash: amount("350")})
	assert.True(t, errors.Is(err, shared.ErrSessionClosed))
}

func TestCashSessionService_RecordSalePayment_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown method", func(t *testing.T) {
		svc, _, _ := newTestService()
		session := openTestSession(t, svc, "0")

		_, err := svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
			SaleID:   uuid.New(),
			Payments: []PaymentRequest{{MethodCode: "BITCOIN", Amount: amount("10")}},
		})

		assert.True(t, errors.Is(err, shared.ErrInvalidPayment))
	})

	t.Run("one invalid tender rejects the whole sale", func(t *testing.T) {
		svc, _, _ := newTestService()
		session := openTestSession(t, svc, "0")

		_, err := svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
			SaleID: uuid.New(),
			Payments: []PaymentRequest{
				{MethodCode: "EFECTIVO", Amount: amount("10")},
				{MethodCode: "YAPE", Amount: amount("5")},
			},
		})
		assert.True(t, errors.Is(err, shared.ErrInvalidPayment))

		got, err := svc.GetByID(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.True(t, got.CashTotal.IsZero())
		assert.Equal(t, 0, got.SaleCount)
	})

	t.Run("cash tender short of the amount is rejected", func(t *testing.T) {
		svc, _, _ := newTestService()
		session := openTestSession(t, svc, "0")

		_, err := svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
			SaleID:   uuid.New(),
			Payments: []PaymentRequest{{MethodCode: "EFECTIVO", Amount: amount("50"), Received: amount("20")}},
		})
		assert.True(t, errors.Is(err, shared.ErrInvalidPayment))

		got, err := svc.GetByID(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.True(t, got.ExpectedCash.IsZero())
		assert.Equal(t, 0, got.SaleCount)
	})

	t.Run("suspended session", func(t *testing.T) {
		svc, _, _ := newTestService()
		session := openTestSession(t, svc, "0")
		resp, err := svc.Suspend(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "SUSPENDED", resp.Status)

		_, err = svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
			SaleID:   uuid.New(),
			Payments: []PaymentRequest{{MethodCode: "EFECTIVO", Amount: amount("10")}},
		})
		assert.True(t, errors.Is(err, shared.ErrSessionSuspended))

		resp, err = svc.Resume(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "OPEN", resp.Status)
	})
}

func TestCashSessionService_Close(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid counted cash leaves the session open", func(t *testing.T) {
		svc, _, _ := newTestService()
		session := openTestSession(t, svc, "50")

		_, err := svc.Close(ctx, testTenantID, session.ID, CloseSessionRequest{ActualCash: amount("-5")})
		assert.Equal(t, "INVALID_ACTUAL_CASH", shared.CodeOf(err))

		got, err := svc.GetByID(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "OPEN", got.Status)
	})

	t.Run("a second close on a closing session is rejected", func(t *testing.T) {
		svc, sessions, _ := newTestService()
		session := openTestSession(t, svc, "50")
		_, err := sessions.Update(ctx, testTenantID, session.ID, func(s *pos.CashSession) error {
			return s.BeginClose()
		})
		require.NoError(t, err)

		_, err = svc.Close(ctx, testTenantID, session.ID, CloseSessionRequest{ActualCash: amount("40")})
		assert.True(t, errors.Is(err, shared.ErrSessionAlreadyClosing))

		got, err := svc.GetByID(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "CLOSING", got.Status)
		assert.Nil(t, got.ActualCash)
		assert.Nil(t, got.Variance)
		assert.Equal(t, "50.00", got.ExpectedCash.StringFixed(2))
	})

	t.Run("a session left in closing is finished explicitly", func(t *testing.T) {
		svc, sessions, _ := newTestService()
		session := openTestSession(t, svc, "50")
		_, err := sessions.Update(ctx, testTenantID, session.ID, func(s *pos.CashSession) error {
			return s.BeginClose()
		})
		require.NoError(t, err)

		summary, err := svc.FinishClose(ctx, testTenantID, session.ID, CloseSessionRequest{ActualCash: amount("35")})
		require.NoError(t, err)
		assert.Equal(t, "-15.00", summary.Variance.StringFixed(2))
		assert.Equal(t, pos.VarianceCritical, summary.VarianceLevel)
	})

	t.Run("finish close needs a closing session", func(t *testing.T) {
		svc, _, _ := newTestService()
		session := openTestSession(t, svc, "50")

		_, err := svc.FinishClose(ctx, testTenantID, session.ID, CloseSessionRequest{ActualCash: amount("50")})
		assert.Error(t, err)

		got, err := svc.GetByID(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "OPEN", got.Status)
	})

	t.Run("payments racing a close never change the closed figures", func(t *testing.T) {
		svc, _, _ := newTestService()
		session := openTestSession(t, svc, "0")

		var wg sync.WaitGroup
		var summary *pos.CloseSummary
		wg.Add(21)
		for i := 0; i < 20; i++ {
			go func() {
				defer wg.Done()
				_, _ = svc.RecordSalePayment(ctx, testTenantID, session.ID, RecordSalePaymentRequest{
					SaleID:   uuid.New(),
					Payments: []PaymentRequest{{MethodCode: "EFECTIVO", Amount: amount("1")}},
				})
			}()
		}
		go func() {
			defer wg.Done()
			s, err := svc.Close(ctx, testTenantID, session.ID, CloseSessionRequest{ActualCash: amount("0")})
			if err == nil {
				summary = s
			}
		}()
		wg.Wait()

		require.NotNil(t, summary)
		final, err := svc.GetByID(ctx, testTenantID, session.ID)
		require.NoError(t, err)
		assert.True(t, final.CashTotal.Equal(summary.CashTotal))
		assert.Equal(t, summary.SaleCount, final.SaleCount)
		assert.True(t, summary.Variance.Equal(summary.ExpectedCash.Neg()))
	})
}

func TestCashSessionService_PaymentMethods(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	pct := amount("2.5")

	resp, err := svc.SavePaymentMethod(ctx, testTenantID, PaymentMethodRequest{
		Code:              "izipay",
		Name:              "Izipay",
		Kind:              string(pos.PaymentKindDebitCard),
		CommissionPercent: &pct,
	})
	require.NoError(t, err)
	assert.Equal(t, "IZIPAY", resp.Code)
	assert.Equal(t, "card", resp.Bucket)
	assert.True(t, resp.RequiresReference)

	all, err := svc.ListPaymentMethods(ctx, testTenantID)
	require.NoError(t, err)
	assert.Len(t, all, len(pos.DefaultPaymentMethods())+1)

	_, err = svc.SavePaymentMethod(ctx, testTenantID, PaymentMethodRequest{Code: "X", Name: "X", Kind: "bitcoin"})
	assert.Equal(t, "INVALID_PAYMENT_METHOD", shared.CodeOf(err))
}
