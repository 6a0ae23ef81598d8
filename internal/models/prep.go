package models

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
)

// PrepLock is a finalized prep plan for a store and date. Once created the
// date is permanently locked.
type PrepLock struct {
	gorm.Model
	Reference      string    `gorm:"unique_index"`
	StoreID        uint      `gorm:"unique_index:idx_prep_lock_store_date"`
	Date           string    `gorm:"unique_index:idx_prep_lock_store_date"`
	ForecastGuests int
	TotalWeight    float64
	CostPerGuest   float64
	Snapshot       PlanItems `gorm:"type:text"`
	LockedBy       string
	LockedAt       time.Time
}

// TableName sets the table name for PrepLock
func (PrepLock) TableName() string {
	return "prep_locks"
}

// PrepStatus represents a store's prep state for a date
type PrepStatus string

const (
	PrepStatusPending PrepStatus = "pending"
	PrepStatusLocked  PrepStatus = "locked"
)

// ValidatePrepLock validates a prep lock before it is persisted
func ValidatePrepLock(lock *PrepLock) error {
	if lock.StoreID == 0 {
		return fmt.Errorf("prep lock store is required")
	}
	if _, err := ParseDate(lock.Date, nil); err != nil {
		return err
	}
	if lock.ForecastGuests < 0 {
		return fmt.Errorf("prep lock forecast cannot be negative")
	}
	if len(lock.Snapshot) == 0 {
		return fmt.Errorf("prep lock must have at least one plan item")
	}
	return nil
}
