// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// startupPragmas are applied once per open handle. WAL and a busy timeout
// keep the single-writer model usable under concurrent API traffic; foreign
// keys must be opted into on sqlite or the tag cascade never fires.
var startupPragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// OpenSQLite opens (or creates) the database at path with pragmas, pool
// tuning, and the OTel tracing plugin installed. A missing parent directory
// fails fast instead of surfacing as sqlite's opaque "out of memory (14)".
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	for _, p := range startupPragmas {
		db.Exec(p)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Summary{},
		&domain.UsageRecord{},
		&domain.SummaryTagSet{},
		&domain.Subscription{},
		&domain.Idempotency{},
	)
}
