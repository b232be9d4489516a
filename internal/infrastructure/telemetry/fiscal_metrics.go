package telemetry

import (
	"context"
	"errors"

	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when FiscalMetrics is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Allocation outcomes used as the outcome attribute.
const (
	OutcomeAllocated = "allocated"
	OutcomeExhausted = "exhausted"
	OutcomeInactive  = "inactive"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

// FiscalMetrics records number allocation, document transitions and cash
// session reconciliation. It satisfies the recorder interfaces of the
// invoicing, numbering and pos application services.
type FiscalMetrics struct {
	logger *zap.Logger

	allocationsTotal   *Counter
	transitionsTotal   *Counter
	sessionsClosed     *Counter
	sessionVarianceAbs *Histogram
}

// NewFiscalMetrics registers the fiscal instruments on meter.
func NewFiscalMetrics(meter metric.Meter, logger *zap.Logger) (*FiscalMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fm := &FiscalMetrics{logger: logger}
	var err error

	fm.allocationsTotal, err = NewCounter(meter,
		"fiscal_number_allocations_total",
		"Number allocation attempts by outcome",
		"{allocations}",
	)
	if err != nil {
		return nil, err
	}

	fm.transitionsTotal, err = NewCounter(meter,
		"fiscal_document_transitions_total",
		"Fiscal document lifecycle transitions",
		"{transitions}",
	)
	if err != nil {
		return nil, err
	}

	fm.sessionsClosed, err = NewCounter(meter,
		"fiscal_cash_sessions_closed_total",
		"Cash sessions closed by variance level",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	fm.sessionVarianceAbs, err = NewHistogram(meter, HistogramOpts{
		Name:        "fiscal_cash_session_variance_abs",
		Description: "Absolute cash variance at session close",
		Unit:        "{currency}",
		Boundaries:  VarianceBuckets,
	})
	if err != nil {
		return nil, err
	}

	return fm, nil
}

// RecordAllocation counts one allocation attempt. err is the allocation
// result; nil means a number was issued.
func (fm *FiscalMetrics) RecordAllocation(ctx context.Context, tenantID uuid.UUID, seriesCode string, err error) {
	fm.allocationsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrSeriesCode.String(seriesCode),
		AttrOutcome.String(allocationOutcome(err)),
	)
}

// RecordTransition counts one document status change.
func (fm *FiscalMetrics) RecordTransition(ctx context.Context, tenantID uuid.UUID, docType, from, to string) {
	fm.transitionsTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrDocumentType.String(docType),
		AttrFromStatus.String(from),
		AttrToStatus.String(to),
	)
}

// RecordSessionClosed counts a closed session and records the size of its variance.
func (fm *FiscalMetrics) RecordSessionClosed(ctx context.Context, tenantID uuid.UUID, level string, variance decimal.Decimal) {
	fm.sessionsClosed.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrVarianceLevel.String(level),
	)
	abs, _ := variance.Abs().Float64()
	fm.sessionVarianceAbs.Record(ctx, abs,
		AttrTenantID.String(tenantID.String()),
		AttrVarianceLevel.String(level),
	)
	if level == string(pos.VarianceCritical) {
		fm.logger.Warn("cash session closed with critical variance",
			zap.String("tenant_id", tenantID.String()),
			zap.String("variance", variance.StringFixed(2)),
		)
	}
}

func allocationOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAllocated
	case errors.Is(err, shared.ErrSeriesExhausted):
		return OutcomeExhausted
	case errors.Is(err, shared.ErrSeriesInactive):
		return OutcomeInactive
	case errors.Is(err, shared.ErrConcurrencyConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}
