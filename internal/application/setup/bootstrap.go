package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SeriesDefault is a series created for every new tenant
type SeriesDefault struct {
	DocumentType valueobject.DocumentType
	Code         string
	Description  string
}

// DefaultSeries returns the series every tenant starts with
func DefaultSeries() []SeriesDefault {
	return []SeriesDefault{
		{valueobject.DocumentTypeInvoice, "F001", "Facturas"},
		{valueobject.DocumentTypeReceipt, "B001", "Boletas de venta"},
		{valueobject.DocumentTypeCreditNote, "FC01", "Notas de crédito"},
		{valueobject.DocumentTypeDebitNote, "FD01", "Notas de débito"},
	}
}

// SeedResult reports what a seeding run created
type SeedResult struct {
	SeriesCreated  []string
	MethodsCreated []string
}

// Bootstrapper seeds the configuration a tenant needs before issuing documents.
// Seeding is idempotent: existing series and payment methods are left untouched.
type Bootstrapper struct {
	seriesRepo numbering.SeriesRepository
	methodRepo pos.PaymentMethodRepository
	maxNumber  int64
	logger     *zap.Logger
}

// NewBootstrapper creates a new Bootstrapper
func NewBootstrapper(seriesRepo numbering.SeriesRepository, methodRepo pos.PaymentMethodRepository, maxNumber int64, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{
		seriesRepo: seriesRepo,
		methodRepo: methodRepo,
		maxNumber:  maxNumber,
		logger:     logger,
	}
}

// SeedTenant creates the default series and payment methods that are missing
func (b *Bootstrapper) SeedTenant(ctx context.Context, tenantID uuid.UUID) (*SeedResult, error) {
	result := &SeedResult{}

	for _, d := range DefaultSeries() {
		_, err := b.seriesRepo.FindByCode(ctx, tenantID, d.DocumentType, d.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return result, fmt.Errorf("look up series %s: %w", d.Code, err)
		}
		series, err := numbering.NewSeries(tenantID, d.DocumentType, d.Code, b.maxNumber)
		if err != nil {
			return result, err
		}
		series.Description = d.Description
		if err := b.seriesRepo.Create(ctx, series); err != nil {
			return result, fmt.Errorf("create series %s: %w", d.Code, err)
		}
		result.SeriesCreated = append(result.SeriesCreated, d.Code)
	}

	for _, m := range pos.DefaultPaymentMethods() {
		_, err := b.methodRepo.FindByCode(ctx, tenantID, m.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return result, fmt.Errorf("look up payment method %s: %w", m.Code, err)
		}
		method := m
		if err := b.methodRepo.Save(ctx, tenantID, &method); err != nil {
			return result, fmt.Errorf("save payment method %s: %w", m.Code, err)
		}
		result.MethodsCreated = append(result.MethodsCreated, m.Code)
	}

	b.logger.Info("tenant seeded",
		zap.String("tenant_id", tenantID.String()),
		zap.Strings("series", result.SeriesCreated),
		zap.Strings("payment_methods", result.MethodsCreated),
	)
	return result, nil
}
