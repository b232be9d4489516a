package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Numbering backends
const (
	NumberingBackendPostgres = "postgres"
	NumberingBackendRedis    = "redis"
	NumberingBackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Event     EventConfig
	Telemetry TelemetryConfig
	Numbering NumberingConfig
	Tax       TaxConfig
	POS       POSConfig
	Invoicing InvoicingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// EventConfig holds in-process event bus settings
type EventConfig struct {
	Async       bool
	BufferSize  int
	AuditEnable bool
}

// TelemetryConfig holds OpenTelemetry metrics configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTEL Collector gRPC endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // development only
	ExportInterval    time.Duration
	SamplingRatio     float64
	DBTracing         bool
	SlowQueryThresh   time.Duration
}

// NumberingConfig selects where series counters live.
//
// With the redis backend only the series managed through the series service
// (standalone allocation such as contingency batches) live in Redis. Documents
// always number from the series in PostgreSQL, inside the submission
// transaction, so a Redis series never numbers a document. A Redis series may
// not reuse the code of a PostgreSQL series of the same tenant and type.
type NumberingConfig struct {
	Backend          string // postgres, redis, memory
	DefaultMaxNumber int64
	RedisKeyPrefix   string
}

// TaxConfig holds tax calculation defaults
type TaxConfig struct {
	DefaultRate decimal.Decimal // percent
	MaxAmount   decimal.Decimal
}

// POSConfig holds point-of-sale reconciliation settings
type POSConfig struct {
	VarianceWarning  decimal.Decimal
	VarianceCritical decimal.Decimal
}

// InvoicingConfig holds document issuing settings
type InvoicingConfig struct {
	AnonymousReceiptLimit decimal.Decimal
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FISCAL_ prefix (e.g., FISCAL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Event: EventConfig{
			Async:       v.GetBool("event.async"),
			BufferSize:  v.GetInt("event.buffer_size"),
			AuditEnable: v.GetBool("event.audit_enabled"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			DBTracing:         v.GetBool("telemetry.db_tracing"),
			SlowQueryThresh:   v.GetDuration("telemetry.slow_query_threshold"),
		},
		Numbering: NumberingConfig{
			Backend:          strings.ToLower(v.GetString("numbering.backend")),
			DefaultMaxNumber: v.GetInt64("numbering.default_max_number"),
			RedisKeyPrefix:   v.GetString("numbering.redis_key_prefix"),
		},
	}

	var err error
	if cfg.Tax.DefaultRate, err = decimalSetting(v, "tax.default_rate"); err != nil {
		return nil, err
	}
	if cfg.Tax.MaxAmount, err = decimalSetting(v, "tax.max_amount"); err != nil {
		return nil, err
	}
	if cfg.POS.VarianceWarning, err = decimalSetting(v, "pos.variance_warning"); err != nil {
		return nil, err
	}
	if cfg.POS.VarianceCritical, err = decimalSetting(v, "pos.variance_critical"); err != nil {
		return nil, err
	}
	if cfg.Invoicing.AnonymousReceiptLimit, err = decimalSetting(v, "invoicing.anonymous_receipt_limit"); err != nil {
		return nil, err
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decimalSetting reads a monetary or percentage setting; strings keep full precision
func decimalSetting(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", key, err)
	}
	return d, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fiscal-core"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "fiscal"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Event.BufferSize == 0 {
		cfg.Event.BufferSize = 256
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "fiscal-core"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
	if cfg.Telemetry.SamplingRatio <= 0 || cfg.Telemetry.SamplingRatio > 1 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.SlowQueryThresh == 0 {
		cfg.Telemetry.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Numbering.Backend == "" {
		cfg.Numbering.Backend = NumberingBackendPostgres
	}
	if cfg.Numbering.DefaultMaxNumber == 0 {
		cfg.Numbering.DefaultMaxNumber = 99999999
	}
	if cfg.Numbering.RedisKeyPrefix == "" {
		cfg.Numbering.RedisKeyPrefix = "fiscal"
	}
	if cfg.Tax.DefaultRate.IsZero() {
		cfg.Tax.DefaultRate = decimal.NewFromInt(18)
	}
	if cfg.Tax.MaxAmount.IsZero() {
		cfg.Tax.MaxAmount = decimal.New(1, 12)
	}
	if cfg.POS.VarianceWarning.IsZero() {
		cfg.POS.VarianceWarning = decimal.NewFromInt(1)
	}
	if cfg.POS.VarianceCritical.IsZero() {
		cfg.POS.VarianceCritical = decimal.NewFromInt(10)
	}
	if cfg.Invoicing.AnonymousReceiptLimit.IsZero() {
		cfg.Invoicing.AnonymousReceiptLimit = decimal.NewFromInt(700)
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Numbering.Backend {
	case NumberingBackendPostgres, NumberingBackendRedis, NumberingBackendMemory:
	default:
		return fmt.Errorf("numbering.backend must be one of postgres, redis, memory, got %q", c.Numbering.Backend)
	}
	if c.Numbering.DefaultMaxNumber < 1 || c.Numbering.DefaultMaxNumber > 99999999 {
		return fmt.Errorf("numbering.default_max_number must be between 1 and 99999999")
	}

	hundred := decimal.NewFromInt(100)
	if c.Tax.DefaultRate.IsNegative() || c.Tax.DefaultRate.GreaterThan(hundred) {
		return fmt.Errorf("tax.default_rate must be between 0 and 100, got %s", c.Tax.DefaultRate)
	}
	if !c.Tax.MaxAmount.IsPositive() {
		return fmt.Errorf("tax.max_amount must be positive")
	}
	if c.POS.VarianceWarning.IsNegative() || c.POS.VarianceCritical.LessThan(c.POS.VarianceWarning) {
		return fmt.Errorf("pos.variance_critical (%s) must not be below pos.variance_warning (%s)",
			c.POS.VarianceCritical, c.POS.VarianceWarning)
	}
	if c.Invoicing.AnonymousReceiptLimit.IsNegative() {
		return fmt.Errorf("invoicing.anonymous_receipt_limit cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Numbering.Backend == NumberingBackendMemory {
			return fmt.Errorf("numbering.backend=memory is not allowed in production")
		}
		if c.Telemetry.Enabled && c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
