package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// Store is a restaurant location belonging to a company.
type Store struct {
	gorm.Model
	CompanyID string `gorm:"index"`
	Name      string
	Timezone  string
}

// Location returns the store's zone, or fallback when unset or unknown.
func (s Store) Location(fallback *time.Location) *time.Location {
	if s.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// StoreTarget holds a store's per-guest totals. One per store.
type StoreTarget struct {
	gorm.Model
	StoreID             uint `gorm:"unique_index"`
	TotalWeightPerGuest float64
	TotalCostPerGuest   float64
}

// StoreProteinTarget is a store's weight and cost target for one protein.
// Excluded rows are zeroed, never deleted.
type StoreProteinTarget struct {
	gorm.Model
	StoreID      uint   `gorm:"unique_index:idx_store_protein"`
	Protein      string `gorm:"unique_index:idx_store_protein"`
	WeightTarget float64
	CostTarget   float64
	Excluded     bool
}
