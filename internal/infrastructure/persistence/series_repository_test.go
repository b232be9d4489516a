package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/shared"
	"github.com/felicita/backend/internal/domain/shared/valueobject"
	"github.com/felicita/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupFiscalTestDB opens an in-memory SQLite database with every fiscal table.
// A single connection keeps the in-memory database shared across goroutines.
func setupFiscalTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.NumberingSeriesModel{},
		&models.FiscalDocumentModel{},
		&models.FiscalDocumentLineModel{},
		&models.CashSessionModel{},
		&models.CashPaymentModel{},
		&models.PaymentMethodModel{},
	)
	require.NoError(t, err)
	return db
}

func createTestSeries(t *testing.T, repo *GormSeriesRepository, tenantID uuid.UUID, code string, maxNumber int64) *numbering.Series {
	t.Helper()
	series, err := numbering.NewSeries(tenantID, valueobject.DocumentTypeInvoice, code, maxNumber)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), series))
	return series
}

func TestGormSeriesRepository_CreateAndFind(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormSeriesRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	series := createTestSeries(t, repo, tenantID, "F001", 0)

	t.Run("finds by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, series.ID)
		require.NoError(t, err)
		assert.Equal(t, "F001", found.Code)
		assert.Equal(t, tenantID, found.TenantID)
		assert.Equal(t, int64(0), found.CurrentNumber)
		assert.Equal(t, numbering.DefaultMaxNumber, found.MaxNumber)
		assert.True(t, found.Active)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("finds by code", func(t *testing.T) {
		found, err := repo.FindByCode(ctx, tenantID, valueobject.DocumentTypeInvoice, "F001")
		require.NoError(t, err)
		assert.Equal(t, series.ID, found.ID)
	})

	t.Run("code lookup is tenant scoped", func(t *testing.T) {
		_, err := repo.FindByCode(ctx, uuid.New(), valueobject.DocumentTypeInvoice, "F001")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		dup, err := numbering.NewSeries(tenantID, valueobject.DocumentTypeInvoice, "F001", 0)
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("same code under another tenant is allowed", func(t *testing.T) {
		other, err := numbering.NewSeries(uuid.New(), valueobject.DocumentTypeInvoice, "F001", 0)
		require.NoError(t, err)
		assert.NoError(t, repo.Create(ctx, other))
	})
}

func TestGormSeriesRepository_FindAllForTenant(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormSeriesRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	createTestSeries(t, repo, tenantID, "F002", 0)
	createTestSeries(t, repo, tenantID, "F001", 0)
	receipt, err := numbering.NewSeries(tenantID, valueobject.DocumentTypeReceipt, "B001", 0)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, receipt))
	createTestSeries(t, repo, uuid.New(), "F009", 0)

	byCode := shared.Filter{Page: 1, PageSize: 20, OrderBy: "code", OrderDir: "asc"}

	t.Run("lists tenant series ordered by code", func(t *testing.T) {
		series, err := repo.FindAllForTenant(ctx, tenantID, byCode)
		require.NoError(t, err)
		require.Len(t, series, 3)
		assert.Equal(t, "B001", series[0].Code)
		assert.Equal(t, "F001", series[1].Code)
		assert.Equal(t, "F002", series[2].Code)
	})

	t.Run("filters by document type", func(t *testing.T) {
		filter := byCode
		filter.Filters = map[string]interface{}{"document_type": string(valueobject.DocumentTypeInvoice)}
		series, err := repo.FindAllForTenant(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Len(t, series, 2)
	})

	t.Run("pages results", func(t *testing.T) {
		filter := byCode
		filter.PageSize = 2
		filter.Page = 2
		series, err := repo.FindAllForTenant(ctx, tenantID, filter)
		require.NoError(t, err)
		require.Len(t, series, 1)
		assert.Equal(t, "F002", series[0].Code)
	})
}

func TestGormSeriesRepository_Update(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormSeriesRepository(db)
	ctx := context.Background()

	t.Run("persists the mutation and bumps the version", func(t *testing.T) {
		series := createTestSeries(t, repo, uuid.New(), "F001", 0)

		updated, err := repo.Update(ctx, series.ID, func(s *numbering.Series) error {
			_, err := s.Allocate()
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated.CurrentNumber)
		assert.Equal(t, 2, updated.Version)

		found, err := repo.FindByID(ctx, series.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), found.CurrentNumber)
		assert.Equal(t, 2, found.Version)
	})

	t.Run("failed mutation writes nothing", func(t *testing.T) {
		series := createTestSeries(t, repo, uuid.New(), "F001", 1)
		alloc := numbering.NewAllocator(repo)

		first, err := alloc.Allocate(ctx, series.ID)
		require.NoError(t, err)
		assert.Equal(t, "F001-00000001", first.FullNumber)

		_, err = alloc.Allocate(ctx, series.ID)
		assert.ErrorIs(t, err, shared.ErrSeriesExhausted)

		found, err := repo.FindByID(ctx, series.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), found.CurrentNumber)
		assert.Equal(t, 2, found.Version)
	})

	t.Run("unknown series", func(t *testing.T) {
		_, err := repo.Update(ctx, uuid.New(), func(*numbering.Series) error { return nil })
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("mutator error is returned as is", func(t *testing.T) {
		series := createTestSeries(t, repo, uuid.New(), "F001", 0)
		boom := errors.New("boom")
		_, err := repo.Update(ctx, series.ID, func(*numbering.Series) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}

func TestGormSeriesRepository_ConcurrentAllocation(t *testing.T) {
	db := setupFiscalTestDB(t)
	repo := NewGormSeriesRepository(db)
	ctx := context.Background()
	series := createTestSeries(t, repo, uuid.New(), "F001", 0)
	alloc := numbering.NewAllocator(repo)

	const workers = 20
	numbers := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := alloc.Allocate(ctx, series.ID)
			if assert.NoError(t, err) {
				numbers <- a.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool, workers)
	for n := range numbers {
		assert.False(t, seen[n], "number %d handed out twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
	for n := int64(1); n <= workers; n++ {
		assert.True(t, seen[n], "number %d missing", n)
	}

	found, err := repo.FindByID(ctx, series.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), found.CurrentNumber)
}
