package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felicita/backend/internal/domain/invoicing"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/infrastructure/migration"
	"github.com/felicita/backend/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresDB starts PostgreSQL in a container and applies the embedded
// migrations. Skipped with -short.
func setupPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fiscal_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrator, err := migration.New(sqlDB, migrations.FS, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	return db
}

func TestPostgres_ConcurrentSubmitsAreGapless(t *testing.T) {
	db := setupPostgresDB(t)
	f := newDocumentFixtureOn(t, db)

	const workers = 15
	drafts := make([]uuid.UUID, workers)
	for i := range drafts {
		drafts[i] = f.draftInvoice(t, taxedLineSpec("1", "100")).ID
	}

	numbers := make(chan int64, workers)
	var wg sync.WaitGroup
	for _, id := range drafts {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			doc, err := f.submit(t, id)
			if assert.NoError(t, err) {
				numbers <- *doc.Header().Number
			}
		}(id)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool, workers)
	for n := range numbers {
		assert.False(t, seen[n], "number %d issued twice", n)
		seen[n] = true
	}
	for n := int64(1); n <= workers; n++ {
		assert.True(t, seen[n], "number %d missing", n)
	}

	series, err := NewGormSeriesRepository(db).FindByID(context.Background(), f.series.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), series.CurrentNumber)
}

func TestPostgres_RoundTripsDocument(t *testing.T) {
	db := setupPostgresDB(t)
	f := newDocumentFixtureOn(t, db)
	ctx := context.Background()

	inv := f.draftInvoice(t, taxedLineSpec("2", "59"), taxedLineSpec("3", "10.50"))
	submitted, err := f.submit(t, inv.ID)
	require.NoError(t, err)

	doc, err := f.repo.FindByFullNumber(ctx, f.tenantID, submitted.Header().FullNumber)
	require.NoError(t, err)
	assert.Equal(t, invoicing.DocumentStatusSubmitted, doc.CurrentStatus())
	require.Len(t, doc.Header().Lines, 2)
	assert.True(t, doc.CurrentTotals().GrandTotal.Equal(inv.CurrentTotals().GrandTotal))

	next, err := numbering.NewAllocator(NewGormSeriesRepository(db)).Peek(ctx, f.series.ID)
	require.NoError(t, err)
	assert.Equal(t, "F001-00000002", next)
}
