// Package db provides the GORM-based local store for chatsync.
// It uses the pure-Go SQLite driver and holds the durable mirror of chat
// sessions, messages, and the pending-operation queue.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agentx-app/chatsync/internal/models"
)

// DB wraps the GORM database connection with chatsync-specific operations.
type DB struct {
	*gorm.DB
	path string
}

// Config holds database configuration options.
type Config struct {
	Path        string
	Debug       bool
	MaxIdleConn int
	MaxOpenConn int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Debug:       false,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
	}
}

// New creates a new database connection and runs migrations.
func New(cfg Config) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	// DELETE journal mode for simpler transaction handling
	// (WAL mode has visibility issues with the pure-Go SQLite driver)
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	wrapped := &DB{DB: db, path: cfg.Path}

	if err := wrapped.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := wrapped.seedClientState(); err != nil {
		return nil, fmt.Errorf("seed client state: %w", err)
	}

	return wrapped, nil
}

// migrate runs GORM auto-migrations for all models.
func (db *DB) migrate() error {
	return db.AutoMigrate(
		&models.Session{},
		&models.Message{},
		&models.PendingOp{},
		&models.ClientState{},
	)
}

// seedClientState inserts the default single-row client state if not present.
func (db *DB) seedClientState() error {
	state := models.ClientState{ID: "default"}
	return db.Where("id = ?", "default").FirstOrCreate(&state).Error
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction executes a function within a database transaction.
// The callback receives a *DB wrapper that uses the transaction.
// If the callback returns an error, the transaction is rolled back.
func (d *DB) Transaction(fc func(tx *DB) error) error {
	return d.DB.Transaction(func(tx *gorm.DB) error {
		wrappedTx := &DB{DB: tx, path: d.path}
		return fc(wrappedTx)
	})
}

// StoreStats provides aggregate statistics about the local mirror.
type StoreStats struct {
	TotalSessions int64     `json:"total_sessions"`
	TotalMessages int64     `json:"total_messages"`
	PendingOps    int64     `json:"pending_ops"`
	UnsyncedRows  int64     `json:"unsynced_rows"`
	DBSizeBytes   int64     `json:"db_size_bytes"`
	LastUpdated   time.Time `json:"last_updated"`
}

// GetStats returns aggregate statistics about the database.
func (db *DB) GetStats() (*StoreStats, error) {
	var stats StoreStats

	if err := db.Model(&models.Session{}).Count(&stats.TotalSessions).Error; err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if err := db.Model(&models.Message{}).Count(&stats.TotalMessages).Error; err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if err := db.Model(&models.PendingOp{}).Count(&stats.PendingOps).Error; err != nil {
		return nil, fmt.Errorf("count pending ops: %w", err)
	}
	if err := db.Model(&models.Message{}).Where("is_synced = ?", false).Count(&stats.UnsyncedRows).Error; err != nil {
		return nil, fmt.Errorf("count unsynced rows: %w", err)
	}

	if info, err := os.Stat(db.path); err == nil {
		stats.DBSizeBytes = info.Size()
	}
	stats.LastUpdated = time.Now()

	return &stats, nil
}
