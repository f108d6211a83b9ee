// Package repo is the persistence layer: small context-aware functions over
// *gorm.DB for the catalog, the purchase ledger, download accounting and the
// audit tables. This file opens the store (SQLite or PostgreSQL) and migrates
// the schema.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-filemarket-backend/internal/domain"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured store and installs the OpenTelemetry
// tracing plugin so every query becomes a child span of the request.
func Open(driver, sqlitePath, postgresDSN string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		db, err = OpenSQLite(sqlitePath)
	case DriverPostgres:
		db, err = OpenPostgres(postgresDSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}
	return db, nil
}

// sqlitePragmas are applied to every SQLite connection pool in order.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// Pool sizes per driver. SQLite serializes writers anyway, so a small pool
// just bounds the number of readers.
const (
	sqliteMaxOpen   = 10
	postgresMaxOpen = 25
)

// OpenSQLite opens (or creates) the SQLite file at path. The parent directory
// must exist; otherwise the driver reports a misleading "out of memory (14)".
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	tunePool(db, sqliteMaxOpen)
	return db, nil
}

// OpenPostgres connects with a pgx DSN. TranslateError makes unique
// violations surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	tunePool(db, postgresMaxOpen)
	return db, nil
}

func tunePool(db *gorm.DB, maxOpen int) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(maxOpen, 10))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
}

// activePurchaseIndex guarantees at most one pending-or-approved purchase per
// (user, file). Both SQLite and PostgreSQL support partial indexes.
const activePurchaseIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_purchases_active
	ON purchases (user_id, file_id) WHERE status IN ('pending','approved')`

// AutoMigrate creates or updates all tables and the partial unique index that
// backs duplicate-purchase prevention.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Category{},
		&domain.File{},
		&domain.Purchase{},
		&domain.DownloadRecord{},
		&domain.Invoice{},
		&domain.ActivityLog{},
		&domain.Idempotency{},
	); err != nil {
		return err
	}
	return db.Exec(activePurchaseIndex).Error
}
