package pos

import (
	"errors"
	"testing"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cashMethod(t *testing.T) PaymentMethod {
	t.Helper()
	m, err := NewPaymentMethod("EFECTIVO", "Efectivo", PaymentKindCash)
	require.NoError(t, err)
	return *m
}

func cardMethod(t *testing.T) PaymentMethod {
	t.Helper()
	m, err := NewPaymentMethod("VISA", "Visa crédito", PaymentKindCreditCard)
	require.NoError(t, err)
	require.NoError(t, m.SetCommission(dec("3.5"), dec("0.30")))
	return *m
}

func openSession(t *testing.T, float string) *CashSession {
	t.Helper()
	s, err := OpenCashSession(uuid.New(), uuid.New(), "CAJA1-0001", uuid.New(), dec(float), "turno mañana")
	require.NoError(t, err)
	return s
}

func cash(t *testing.T, amount string) PaymentInput {
	return PaymentInput{Method: cashMethod(t), Amount: dec(amount)}
}

func card(t *testing.T, amount string) PaymentInput {
	return PaymentInput{Method: cardMethod(t), Amount: dec(amount), Reference: "AUTH-123", CardLast4: "4242"}
}

func TestOpenCashSession(t *testing.T) {
	s := openSession(t, "100.00")

	assert.Equal(t, SessionStatusOpen, s.Status)
	assert.True(t, s.ExpectedCash.Equal(dec("100.00")))
	assert.Equal(t, 0, s.SaleCount)
	require.Len(t, s.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeCashSessionOpened, s.GetDomainEvents()[0].EventType())
}

func TestOpenCashSession_Errors(t *testing.T) {
	tests := []struct {
		name  string
		num   string
		float string
		code  string
	}{
		{"negative float", "S1", "-1", "INVALID_OPENING_FLOAT"},
		{"float precision", "S1", "10.001", "INVALID_OPENING_FLOAT"},
		{"empty number", " ", "0", "INVALID_SESSION_NUMBER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenCashSession(uuid.New(), uuid.New(), tt.num, uuid.New(), dec(tt.float), "")
			assert.Equal(t, tt.code, shared.CodeOf(err))
		})
	}
}

func TestCashSession_ReconcileScenario(t *testing.T) {
	s := openSession(t, "100.00")

	_, err := s.RecordSalePayment(uuid.New(), cash(t, "150.00"))
	require.NoError(t, err)
	_, err = s.RecordSalePayment(uuid.New(), cash(t, "100.00"), card(t, "80.00"))
	require.NoError(t, err)

	assert.True(t, s.CashTotal.Equal(dec("250.00")))
	assert.True(t, s.CardTotal.Equal(dec("80.00")))
	assert.True(t, s.ExpectedCash.Equal(dec("350.00")))
	assert.Equal(t, 2, s.SaleCount)

	require.NoError(t, s.Close(dec("350.00"), "sin novedad"))
	assert.Equal(t, SessionStatusClosed, s.Status)
	require.NotNil(t, s.Variance)
	assert.True(t, s.Variance.IsZero())

	summary := s.Summary(DefaultVarianceThresholds())
	assert.Equal(t, VarianceNormal, summary.VarianceLevel)
	assert.True(t, summary.TotalSales.Equal(dec("330.00")))
	assert.True(t, summary.ByMethod["EFECTIVO"].Equal(dec("250.00")))
	assert.True(t, summary.ByMethod["VISA"].Equal(dec("80.00")))
	assert.True(t, summary.Commissions.Equal(dec("3.10")), summary.Commissions.String())
}

func TestCashSession_ChangeDoesNotAffectExpectedCash(t *testing.T) {
	s := openSession(t, "50.00")
	payments, err := s.RecordSalePayment(uuid.New(), PaymentInput{Method: cashMethod(t), Amount: dec("37.50"), Received: dec("50.00")})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Change.Equal(dec("12.50")))
	assert.True(t, s.ExpectedCash.Equal(dec("87.50")))
	assert.True(t, s.ChangeGiven.Equal(dec("12.50")))
}

func TestCashSession_OtherBuckets(t *testing.T) {
	s := openSession(t, "0")
	transfer, err := NewPaymentMethod("TRANSFER", "Transferencia", PaymentKindTransfer)
	require.NoError(t, err)
	yape, err := NewPaymentMethod("YAPE", "Yape", PaymentKindYape)
	require.NoError(t, err)

	_, err = s.RecordSalePayment(uuid.New(),
		PaymentInput{Method: *transfer, Amount: dec("20.00"), Reference: "OP-1"},
		PaymentInput{Method: *yape, Amount: dec("15.00"), Reference: "987654321"},
	)
	require.NoError(t, err)
	assert.True(t, s.TransferTotal.Equal(dec("20.00")))
	assert.True(t, s.OtherTotal.Equal(dec("15.00")))
	assert.True(t, s.ExpectedCash.IsZero())
}

func TestCashSession_InvalidPaymentLeavesTotals(t *testing.T) {
	s := openSession(t, "100.00")

	noRef := card(t, "80.00")
	noRef.Reference = ""
	_, err := s.RecordSalePayment(uuid.New(), cash(t, "20.00"), noRef)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidPayment))
	assert.True(t, s.CashTotal.IsZero())
	assert.True(t, s.ExpectedCash.Equal(dec("100.00")))
	assert.Equal(t, 0, s.SaleCount)
	assert.Empty(t, s.Payments)

	_, err = s.RecordSalePayment(uuid.New(), cash(t, "0"))
	assert.True(t, errors.Is(err, shared.ErrInvalidPayment))
	_, err = s.RecordSalePayment(uuid.New())
	assert.True(t, errors.Is(err, shared.ErrInvalidPayment))
}

func TestCashSession_PaymentAfterClose(t *testing.T) {
	s := openSession(t, "100.00")
	require.NoError(t, s.Close(dec("98.00"), "faltante"))

	_, err := s.RecordSalePayment(uuid.New(), cash(t, "10.00"))
	assert.True(t, errors.Is(err, shared.ErrSessionClosed))
	assert.True(t, s.Variance.Equal(dec("-2.00")))
	assert.Equal(t, VarianceWarning, s.Summary(DefaultVarianceThresholds()).VarianceLevel)

	err = s.Close(dec("100.00"), "")
	assert.True(t, errors.Is(err, shared.ErrSessionClosed))
	assert.True(t, s.ActualCash.Equal(dec("98.00")))
}

func TestCashSession_ClosingRejectsPayments(t *testing.T) {
	s := openSession(t, "100.00")
	require.NoError(t, s.BeginClose())

	_, err := s.RecordSalePayment(uuid.New(), cash(t, "10.00"))
	assert.True(t, errors.Is(err, shared.ErrSessionClosed))

	err = s.BeginClose()
	assert.True(t, errors.Is(err, shared.ErrSessionAlreadyClosing))

	require.NoError(t, s.FinishClose(dec("100.00"), ""))
	assert.Equal(t, SessionStatusClosed, s.Status)
}

func TestCashSession_SuspendResume(t *testing.T) {
	s := openSession(t, "100.00")
	require.NoError(t, s.Suspend())

	_, err := s.RecordSalePayment(uuid.New(), cash(t, "10.00"))
	assert.True(t, errors.Is(err, shared.ErrSessionSuspended))

	err = s.Close(dec("100.00"), "")
	assert.True(t, errors.Is(err, shared.ErrInvalidStateTransition))
	assert.Equal(t, SessionStatusSuspended, s.Status)

	require.NoError(t, s.Resume())
	_, err = s.RecordSalePayment(uuid.New(), cash(t, "10.00"))
	require.NoError(t, err)
	assert.True(t, s.ExpectedCash.Equal(dec("110.00")))

	assert.True(t, errors.Is(s.Resume(), shared.ErrInvalidStateTransition))
}

func TestCashSession_CloseValidatesBeforeMutating(t *testing.T) {
	s := openSession(t, "100.00")
	err := s.Close(dec("100.005"), "")
	assert.Equal(t, "INVALID_ACTUAL_CASH", shared.CodeOf(err))
	assert.Equal(t, SessionStatusOpen, s.Status)
}

func TestVarianceThresholds_Classify(t *testing.T) {
	th := DefaultVarianceThresholds()
	tests := []struct {
		variance string
		level    VarianceLevel
	}{
		{"0", VarianceNormal},
		{"1.00", VarianceNormal},
		{"-1.00", VarianceNormal},
		{"1.01", VarianceWarning},
		{"-10.00", VarianceWarning},
		{"10.01", VarianceCritical},
		{"-250", VarianceCritical},
	}
	for _, tt := range tests {
		t.Run(tt.variance, func(t *testing.T) {
			assert.Equal(t, tt.level, th.Classify(dec(tt.variance)))
		})
	}
}
