package models

import "github.com/jinzhu/gorm"

// InvoiceRecord is a delivered quantity of a protein and what it cost.
type InvoiceRecord struct {
	gorm.Model
	StoreID   uint   `gorm:"index:idx_invoice_store_date"`
	Date      string `gorm:"index:idx_invoice_store_date"`
	Protein   string
	Quantity  float64
	CostTotal float64
	Reference string
}

// ConsumptionRecord is the weight of a protein actually used on a date.
type ConsumptionRecord struct {
	gorm.Model
	StoreID uint   `gorm:"index:idx_consumption_store_date"`
	Date    string `gorm:"index:idx_consumption_store_date"`
	Protein string
	Weight  float64
}

// GuestCount is the number of guests served on a date, per shift.
type GuestCount struct {
	gorm.Model
	StoreID      uint   `gorm:"unique_index:idx_guests_store_date"`
	Date         string `gorm:"unique_index:idx_guests_store_date"`
	LunchGuests  int
	DinnerGuests int
}

// Total returns lunch plus dinner guests.
func (g GuestCount) Total() int {
	return g.LunchGuests + g.DinnerGuests
}
