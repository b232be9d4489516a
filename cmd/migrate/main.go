package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/felicita/backend/internal/bootstrap"
	"github.com/felicita/backend/internal/infrastructure/config"
	"github.com/felicita/backend/internal/infrastructure/logger"
	"github.com/felicita/backend/internal/infrastructure/migration"
	"github.com/felicita/backend/migrations"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	opts := logger.DefaultOptions()
	opts.Level = logLevel
	log, err := logger.New("fiscal-migrate", opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var source fs.FS = migrations.FS
	if migrationsPath != "" {
		source = os.DirFS(migrationsPath)
	}

	switch command {
	case "create":
		// New files go to disk; they are embedded on the next build.
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate create <name> [description]")
		}
		dir := migrationsPath
		if dir == "" {
			dir = defaultMigrationsPath
		}
		mf, err := migration.CreateMigration(dir, args[1], strings.Join(args[2:], " "))
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return

	case "list":
		names, err := migration.ListMigrations(source)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		log.Info("Available migrations", zap.Int("count", len(names)))
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if command == "seed" {
		if err := seed(cfg, log, args[1:]); err != nil {
			log.Fatal("Seeding failed", zap.Error(err))
		}
		return
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, source, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	if err := runMigration(m, log, command, args[1:]); err != nil {
		log.Error("Migration command failed", zap.String("command", command), zap.Error(err))
		printUsage()
		os.Exit(1)
	}
}

func runMigration(m *migration.Migrator, log *zap.Logger, command string, args []string) error {
	switch command {
	case "up":
		return m.Up()

	case "down":
		return m.Down()

	case "step":
		if len(args) < 1 {
			return fmt.Errorf("step count required")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)

	case "goto":
		if len(args) < 1 {
			return fmt.Errorf("version required")
		}
		version, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(version))

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil

	case "check":
		return m.EnsureClean()

	case "force":
		if len(args) < 1 {
			return fmt.Errorf("version required")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.Force(version)

	case "drop":
		if len(args) == 0 || (args[0] != "-confirm" && args[0] != "--confirm") {
			return fmt.Errorf("drop removes every issued document; rerun as 'migrate drop -confirm'")
		}
		return m.Drop()

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// seed provisions the default series and payment methods of a tenant
func seed(cfg *config.Config, log *zap.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("tenant id required. Usage: migrate seed <tenant-uuid>")
	}
	tenantID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid tenant id %q: %w", args[0], err)
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(ctx) }()

	result, err := app.Setup.SeedTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	log.Info("Tenant seeded",
		zap.String("tenant_id", tenantID.String()),
		zap.Strings("series_created", result.SeriesCreated),
		zap.Strings("methods_created", result.MethodsCreated),
	)
	return nil
}

func printUsage() {
	fmt.Println(`Fiscal Core Database Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  check                 Fail when the schema is left dirty
  force <version>       Set the recorded version without migrating
  drop -confirm         Drop all database objects, issued documents included
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations
  seed <tenant-uuid>    Create the default series and payment methods of a tenant

Flags:
  -path string          Migrations directory (default: migrations embedded in the binary)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  FISCAL_DATABASE_HOST, FISCAL_DATABASE_PORT, FISCAL_DATABASE_USER,
  FISCAL_DATABASE_PASSWORD, FISCAL_DATABASE_DBNAME, FISCAL_NUMBERING_BACKEND

Examples:
  migrate up
  migrate step -1
  migrate create add_detraction_accounts "Bank accounts for detraction deposits"
  migrate seed 7d1c3a52-4e8b-4c09-9a55-2f1f0f6f9b10`)
}
