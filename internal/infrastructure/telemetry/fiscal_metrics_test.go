package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestNewFiscalMetrics_NilMeter(t *testing.T) {
	_, err := NewFiscalMetrics(nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestFiscalMetrics_RecordAllocation(t *testing.T) {
	provider, reader := newManualMeter(t)
	fm, err := NewFiscalMetrics(provider.Meter("fiscal"), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	tenantID := uuid.New()

	fm.RecordAllocation(ctx, tenantID, "F001", nil)
	fm.RecordAllocation(ctx, tenantID, "F001", nil)
	fm.RecordAllocation(ctx, tenantID, "F001", shared.ErrSeriesExhausted)
	fm.RecordAllocation(ctx, tenantID, "B001", shared.NewDomainError("SERIES_INACTIVE", "series B001 is inactive"))
	fm.RecordAllocation(ctx, tenantID, "B001", shared.ErrConcurrencyConflict)
	fm.RecordAllocation(ctx, tenantID, "B001", errors.New("connection reset"))

	byOutcome := sumByAttr(t, collect(t, reader)["fiscal_number_allocations_total"], AttrOutcome)
	assert.Equal(t, map[string]int64{
		OutcomeAllocated: 2,
		OutcomeExhausted: 1,
		OutcomeInactive:  1,
		OutcomeConflict:  1,
		OutcomeError:     1,
	}, byOutcome)
}

func TestFiscalMetrics_RecordTransition(t *testing.T) {
	provider, reader := newManualMeter(t)
	fm, err := NewFiscalMetrics(provider.Meter("fiscal"), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	tenantID := uuid.New()

	fm.RecordTransition(ctx, tenantID, "01", "DRAFT", "VALIDATED")
	fm.RecordTransition(ctx, tenantID, "01", "VALIDATED", "SUBMITTED")
	fm.RecordTransition(ctx, tenantID, "03", "VALIDATED", "SUBMITTED")

	byTarget := sumByAttr(t, collect(t, reader)["fiscal_document_transitions_total"], AttrToStatus)
	assert.Equal(t, map[string]int64{"VALIDATED": 1, "SUBMITTED": 2}, byTarget)
}

func TestFiscalMetrics_RecordSessionClosed(t *testing.T) {
	provider, reader := newManualMeter(t)
	fm, err := NewFiscalMetrics(provider.Meter("fiscal"), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	tenantID := uuid.New()

	fm.RecordSessionClosed(ctx, tenantID, "normal", decimal.Zero)
	fm.RecordSessionClosed(ctx, tenantID, "critical", decimal.RequireFromString("-120.50"))

	metrics := collect(t, reader)
	assert.Equal(t, map[string]int64{"normal": 1, "critical": 1},
		sumByAttr(t, metrics["fiscal_cash_sessions_closed_total"], AttrVarianceLevel))

	hist, ok := metrics["fiscal_cash_session_variance_abs"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total float64
	for _, dp := range hist.DataPoints {
		total += dp.Sum
	}
	assert.InDelta(t, 120.5, total, 1e-9)
}
