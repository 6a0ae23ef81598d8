package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"brasa/internal/models"
)

var DB *gorm.DB

// Open connects to driver ("sqlite3" or "postgres") at dsn and configures
// the pool. In-memory sqlite databases are held on a single connection.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" && strings.Contains(dsn, ":memory:") {
		db.DB().SetMaxOpenConns(1)
		return db, nil
	}

	// Configure connection pool
	db.DB().SetMaxIdleConns(10)
	db.DB().SetMaxOpenConns(100)
	db.DB().SetConnMaxLifetime(time.Hour)
	return db, nil
}

// InitDB opens the process-wide database and migrates the schema.
func InitDB(driver, dsn string, logMode bool) error {
	db, err := Open(driver, dsn)
	if err != nil {
		return err
	}
	db.LogMode(logMode)
	if err := Migrate(db); err != nil {
		db.Close()
		return err
	}
	DB = db
	return nil
}

// Migrate creates or updates every table and its unique indexes.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Store{},
		&models.StoreTarget{},
		&models.StoreProteinTarget{},
		&models.InvoiceRecord{},
		&models.ConsumptionRecord{},
		&models.GuestCount{},
		&models.PrepLock{},
		&models.WasteComplianceWeek{},
		&models.WasteLogEntry{},
	).Error
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction. The transaction is rolled back when
// fn returns an error or panics.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			log.Printf("[database] transaction rolled back after panic: %v", r)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
