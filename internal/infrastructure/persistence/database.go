package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felicita/backend/internal/infrastructure/config"
	"github.com/felicita/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database owns the PostgreSQL pool behind the GORM repositories
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

// DatabaseOption adjusts the GORM configuration before the connection opens
type DatabaseOption func(*gorm.Config)

// WithLogLevel sets the level GORM statements are logged at
func WithLogLevel(level gormlogger.LogLevel) DatabaseOption {
	return func(c *gorm.Config) {
		c.Logger = c.Logger.LogMode(level)
	}
}

// NewDatabase connects to PostgreSQL and sizes the pool from cfg.
// Driver errors are translated so unique violations on document numbers
// surface as gorm.ErrDuplicatedKey.
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger, opts ...DatabaseOption) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gormCfg := &gorm.Config{
		Logger:                 logger.NewGormLogger(log, gormlogger.Warn),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database, err := wrap(db)
	if err != nil {
		return nil, err
	}
	database.configurePool(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	log.Info("Database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return database, nil
}

func wrap(db *gorm.DB) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	return &Database{DB: db, sql: sqlDB}, nil
}

func (d *Database) configurePool(cfg *config.DatabaseConfig) {
	d.sql.SetMaxOpenConns(cfg.MaxOpenConns)
	d.sql.SetMaxIdleConns(cfg.MaxIdleConns)
	d.sql.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	d.sql.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

// Ping checks the connection
func (d *Database) Ping(ctx context.Context) error {
	if err := d.sql.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close releases the pool
func (d *Database) Close() error {
	return d.sql.Close()
}

// Stats reports pool usage
func (d *Database) Stats() sql.DBStats {
	return d.sql.Stats()
}

// TenantScope restricts a query to one tenant. A nil tenant panics: an
// unscoped fiscal query would read other tenants' documents.
func TenantScope(tenantID uuid.UUID) func(*gorm.DB) *gorm.DB {
	if tenantID == uuid.Nil {
		panic("persistence: tenant scope requires a tenant id")
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// Repositories bundles the GORM adapters built on one connection
type Repositories struct {
	Series         *GormSeriesRepository
	Documents      *GormDocumentRepository
	CashSessions   *GormCashSessionRepository
	PaymentMethods *GormPaymentMethodRepository
	TxScope        *GormTransactionScope
}

// NewRepositories creates every GORM repository on the given connection
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Series:         NewGormSeriesRepository(db),
		Documents:      NewGormDocumentRepository(db),
		CashSessions:   NewGormCashSessionRepository(db),
		PaymentMethods: NewGormPaymentMethodRepository(db),
		TxScope:        NewGormTransactionScope(db),
	}
}
