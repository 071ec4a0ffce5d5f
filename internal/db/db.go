// Package db manages the database connection, schema migrations and models
// for the Tripmate server. It supports SQLite (via the modernc pure-Go driver)
// and PostgreSQL. Migrations are embedded in the binary, kept in one directory
// per driver, and applied on startup via golang-migrate.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// modernc pure-Go SQLite driver, no CGO required.
	// Registers itself as "sqlite" in database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Config selects and tunes the backing database. An empty Driver means
// sqlite; DSN ":memory:" gives tests a private database.
type Config struct {
	Driver   string // "sqlite" or "postgres"
	DSN      string
	Logger   *zap.Logger
	LogLevel gormlogger.LogLevel

	// SlowQueryThreshold marks queries as slow in the logs. Zero keeps the
	// default of 200ms; a negative value disables slow query reporting.
	SlowQueryThreshold time.Duration
}

// New connects, migrates the schema and returns the gorm handle.
func New(cfg Config) (*gorm.DB, error) {
	if cfg.Logger == nil {
		return nil, errors.New("db: nil logger")
	}

	gormCfg := &gorm.Config{
		Logger: newZapGORMLogger(cfg.Logger.Named("gorm"), cfg.LogLevel, cfg.SlowQueryThreshold),
		// Timestamps are stored in UTC so SQLite and Postgres agree on
		// ordering and on what comes back over the wire.
		NowFunc: func() time.Time { return time.Now().UTC() },
		// Map driver-specific unique violations to gorm.ErrDuplicatedKey.
		TranslateError: true,
	}

	var (
		gdb     *gorm.DB
		sqlDB   *sql.DB
		err     error
		drvName string
	)

	switch cfg.Driver {
	case "sqlite", "":
		// modernc registers itself as "sqlite"; gorm reuses this pool.
		sqlDB, err = sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("db: opening sqlite %q: %w", cfg.DSN, err)
		}
		// SQLite supports only one writer at a time. A single connection also
		// keeps ":memory:" databases alive for the lifetime of the pool.
		sqlDB.SetMaxOpenConns(1)

		gdb, err = gorm.Open(gormsqlite.Dialector{Conn: sqlDB}, gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: gorm over sqlite: %w", err)
		}
		drvName = "sqlite"

	case "postgres":
		gdb, err = gorm.Open(gormpostgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: opening postgres: %w", err)
		}
		sqlDB, err = gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("db: underlying pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		drvName = "postgres"

	default:
		return nil, fmt.Errorf("db: unknown driver %q", cfg.Driver)
	}

	if err := runMigrations(sqlDB, drvName, cfg.Logger); err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	return gdb, nil
}

// Ping reports whether the database answers.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db: underlying pool: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// runMigrations brings the schema to the latest embedded version. An already
// current schema is not an error.
func runMigrations(sqlDB *sql.DB, driver string, log *zap.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	var target database.Driver
	if driver == "postgres" {
		target, err = migratepg.WithInstance(sqlDB, &migratepg.Config{})
	} else {
		target, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("preparing %s migration target: %w", driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}

	log.Info("schema up to date",
		zap.String("driver", driver),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Close releases the underlying connection pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db: underlying pool: %w", err)
	}
	return sqlDB.Close()
}
