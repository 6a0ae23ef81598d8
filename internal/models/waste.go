package models

import (
	"strings"
	"time"

	"github.com/jinzhu/gorm"
)

// Shift is the service a waste log is recorded against
type Shift string

const (
	ShiftLunch  Shift = "lunch"
	ShiftDinner Shift = "dinner"
)

// ParseShift accepts "lunch" or "dinner" in any case.
func ParseShift(s string) (Shift, bool) {
	switch Shift(strings.ToLower(strings.TrimSpace(s))) {
	case ShiftLunch:
		return ShiftLunch, true
	case ShiftDinner:
		return ShiftDinner, true
	}
	return "", false
}

// WasteComplianceWeek tracks a store's submissions for the week starting
// on WeekStart (a Monday).
type WasteComplianceWeek struct {
	gorm.Model
	StoreID     uint   `gorm:"unique_index:idx_compliance_store_week"`
	WeekStart   string `gorm:"unique_index:idx_compliance_store_week"`
	LunchCount  int
	DinnerCount int
	IsLocked    bool
}

// WasteLogEntry is the single waste log a store may submit for a date.
type WasteLogEntry struct {
	gorm.Model
	Reference   string     `gorm:"unique_index"`
	StoreID     uint       `gorm:"unique_index:idx_waste_store_date"`
	Date        string     `gorm:"unique_index:idx_waste_store_date"`
	Shift       Shift
	Items       WasteItems `gorm:"type:text"`
	TotalWeight float64
	LoggedBy    string
	LoggedAt    time.Time
}

// TableName sets the table name for WasteLogEntry
func (WasteLogEntry) TableName() string {
	return "waste_logs"
}
