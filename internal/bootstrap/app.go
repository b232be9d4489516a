// Package bootstrap assembles the fiscal core from configuration: storage
// backend, event bus with the audit trail, metrics and the application
// services that sit on top of them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	appinvoicing "github.com/felicita/backend/internal/application/invoicing"
	appnumbering "github.com/felicita/backend/internal/application/numbering"
	apppos "github.com/felicita/backend/internal/application/pos"
	"github.com/felicita/backend/internal/application/setup"
	"github.com/felicita/backend/internal/domain/numbering"
	"github.com/felicita/backend/internal/domain/pos"
	"github.com/felicita/backend/internal/infrastructure/cache"
	"github.com/felicita/backend/internal/infrastructure/config"
	"github.com/felicita/backend/internal/infrastructure/event"
	"github.com/felicita/backend/internal/infrastructure/persistence"
	"github.com/felicita/backend/internal/infrastructure/persistence/memory"
	"github.com/felicita/backend/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired services of one process
type App struct {
	Series       *appnumbering.SeriesService
	Documents    *appinvoicing.DocumentService
	CashSessions *apppos.CashSessionService
	Setup        *setup.Bootstrapper

	Bus        *event.InMemoryEventBus
	AuditStore event.AuditStore
	Audit      *event.IdempotentHandler

	logger   *zap.Logger
	closers  []func(context.Context) error
	shutdown bool
}

// Option overrides a dependency New would otherwise open itself
type Option func(*options)

type options struct {
	db          *gorm.DB
	redisClient redis.UniversalClient
}

// WithDatabase uses db instead of opening a connection from config
func WithDatabase(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithRedisClient uses client instead of dialing Redis from config
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) { o.redisClient = client }
}

// stores is the storage half of the wiring, chosen by numbering.backend
type stores struct {
	txScope     appinvoicing.TransactionScope
	series      numbering.SeriesRepository
	seedSeries  numbering.SeriesRepository
	// set when series and seedSeries are different stores
	docSeries   numbering.SeriesRepository
	sessions    pos.CashSessionRepository
	methods     pos.PaymentMethodRepository
	audit       event.AuditStore
	idempotency event.IdempotencyStore
}

// New builds the application. Resources it opened are released by Close,
// in reverse order of creation.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{logger: logger}
	st, err := app.openStores(ctx, cfg, &o)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	metrics, err := app.openTelemetry(ctx, cfg)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	busOpts := []event.BusOption{}
	if cfg.Event.Async {
		busOpts = append(busOpts, event.WithAsyncDelivery(cfg.Event.BufferSize))
	}
	app.Bus = event.NewInMemoryEventBus(logger.Named("event_bus"), busOpts...)
	app.AuditStore = st.audit
	if cfg.Event.AuditEnable {
		serializer := event.NewEventSerializer()
		event.RegisterFiscalEvents(serializer)
		app.Audit = event.NewIdempotentHandler(
			event.NewAuditHandler(st.audit, serializer, logger.Named("audit")),
			st.idempotency,
			event.DefaultIdempotencyTTL,
			logger.Named("audit"),
		)
		app.Bus.Subscribe(app.Audit)
	}
	if err := app.Bus.Start(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	app.closers = append(app.closers, app.Bus.Stop)

	app.Documents = appinvoicing.NewDocumentService(st.txScope, appinvoicing.Settings{
		DefaultTaxRate:        cfg.Tax.DefaultRate,
		AnonymousReceiptLimit: cfg.Invoicing.AnonymousReceiptLimit,
	}, logger.Named("documents"))
	app.Documents.SetEventPublisher(app.Bus)

	app.Series = appnumbering.NewSeriesService(st.series, cfg.Numbering.DefaultMaxNumber, logger.Named("series"))
	app.Series.SetEventPublisher(app.Bus)
	if st.docSeries != nil {
		app.Series.SetDocumentSeries(st.docSeries)
	}

	app.CashSessions = apppos.NewCashSessionService(st.sessions, st.methods, pos.VarianceThresholds{
		Warning:  cfg.POS.VarianceWarning,
		Critical: cfg.POS.VarianceCritical,
	}, logger.Named("cash_sessions"))
	app.CashSessions.SetEventPublisher(app.Bus)

	if metrics != nil {
		app.Documents.SetMetrics(metrics)
		app.Series.SetMetrics(metrics)
		app.CashSessions.SetMetrics(metrics)
	}

	app.Setup = setup.NewBootstrapper(st.seedSeries, st.methods, cfg.Numbering.DefaultMaxNumber, logger.Named("setup"))

	logger.Info("fiscal core ready",
		zap.String("numbering_backend", cfg.Numbering.Backend),
		zap.Bool("async_events", cfg.Event.Async),
		zap.Bool("audit", cfg.Event.AuditEnable),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
	)
	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config, o *options) (*stores, error) {
	switch cfg.Numbering.Backend {
	case config.NumberingBackendMemory:
		store := memory.NewStore()
		idem := cache.NewInMemoryIdempotencyStore(0)
		a.closers = append(a.closers, func(context.Context) error { return idem.Close() })
		series := memory.NewSeriesRepository(store)
		return &stores{
			txScope:     memory.NewTransactionScope(store),
			series:      series,
			seedSeries:  series,
			sessions:    memory.NewCashSessionRepository(store),
			methods:     memory.NewPaymentMethodRepository(store),
			audit:       event.NewInMemoryAuditStore(),
			idempotency: idem,
		}, nil

	case config.NumberingBackendPostgres, config.NumberingBackendRedis:
		db, err := a.openDatabase(cfg, o)
		if err != nil {
			return nil, err
		}
		repos := persistence.NewRepositories(db)
		st := &stores{
			txScope:    repos.TxScope,
			series:     repos.Series,
			seedSeries: repos.Series,
			sessions:   repos.CashSessions,
			methods:    repos.PaymentMethods,
			audit:      event.NewGormAuditStore(db),
		}
		if cfg.Numbering.Backend == config.NumberingBackendPostgres {
			idem := cache.NewInMemoryIdempotencyStore(0)
			a.closers = append(a.closers, func(context.Context) error { return idem.Close() })
			st.idempotency = idem
			return st, nil
		}

		client, err := a.openRedis(ctx, cfg, o)
		if err != nil {
			return nil, err
		}
		// Standalone series live in Redis; documents keep allocating inside
		// the database transaction so a failed submission never burns a number.
		st.series = cache.NewRedisSeriesRepository(client, cfg.Numbering.RedisKeyPrefix)
		st.docSeries = repos.Series
		st.idempotency = cache.NewRedisIdempotencyStore(client, cfg.Numbering.RedisKeyPrefix)
		return st, nil

	default:
		return nil, fmt.Errorf("unknown numbering backend %q", cfg.Numbering.Backend)
	}
}

func (a *App) openDatabase(cfg *config.Config, o *options) (*gorm.DB, error) {
	db := o.db
	if db == nil {
		database, err := persistence.NewDatabase(&cfg.Database, a.logger.Named("gorm"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return database.Close() })
		db = database.DB
	}

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		SlowQueryThresh: cfg.Telemetry.SlowQueryThresh,
	}, a.logger)
	if err := tracing.Register(db); err != nil {
		return nil, fmt.Errorf("register database tracing: %w", err)
	}
	return db, nil
}

func (a *App) openRedis(ctx context.Context, cfg *config.Config, o *options) (redis.UniversalClient, error) {
	if o.redisClient != nil {
		return o.redisClient, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return client, nil
}

func (a *App) openTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.FiscalMetrics, error) {
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfigFrom(cfg.Telemetry), a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry), a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, mp.Shutdown)
	if !mp.IsEnabled() {
		return nil, nil
	}
	return telemetry.NewFiscalMetrics(mp.Meter("fiscal-core"), a.logger)
}

// Close stops the bus, flushes telemetry and closes connections New opened.
// Calling it twice is a no-op.
func (a *App) Close(ctx context.Context) error {
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("fiscal core shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}
