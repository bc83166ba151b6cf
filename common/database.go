package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"csv-import-export/csvcodec"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Job states shared by import and export jobs.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Package-level settings, replaced by Config.Apply at startup.
var (
	UploadsDir       = "./uploads"
	ExportsDir       = "./exports"
	MaxUploadSize    int64 = 100 << 20
	DefaultDelimiter       = ","
	DefaultOptions         = csvcodec.TrimFields | csvcodec.IgnoreInvalidLines
)

var db *gorm.DB

// Init opens the SQLite database at path and makes it the shared handle
// returned by GetDB.
func Init(path string) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; background jobs and handlers share a single
	// connection, which also keeps ":memory:" databases from splitting.
	sqlDB.SetMaxOpenConns(1)

	db = conn
	return db, nil
}

// TestDBInit opens a fresh in-memory database for tests and migrates the
// job tables.
func TestDBInit() (*gorm.DB, error) {
	conn, err := Init(":memory:")
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateJobs(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// TestDBFree closes the database opened by TestDBInit.
func TestDBFree(conn *gorm.DB) error {
	if db == conn {
		db = nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the handle opened by Init.
func GetDB() *gorm.DB {
	return db
}
