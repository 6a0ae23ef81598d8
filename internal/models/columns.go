package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// PlanItem is one row of a locked prep plan snapshot.
type PlanItem struct {
	Protein           string  `json:"protein"`
	UnitName          string  `json:"unit_name"`
	UnitWeight        float64 `json:"unit_weight"`
	MixPercentage     float64 `json:"mix_percentage"`
	RecommendedWeight float64 `json:"recommended_weight"`
	RecommendedUnits  int     `json:"recommended_units"`
	Excluded          bool    `json:"excluded,omitempty"`
}

// PlanItems represents a plan snapshot that can be stored in the database
type PlanItems []PlanItem

// Value converts the snapshot to a JSON string for storage
func (p PlanItems) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan converts the database value back to a snapshot
func (p *PlanItems) Scan(value interface{}) error {
	if value == nil {
		*p = PlanItems{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("unsupported type for PlanItems")
	}
}

// WasteItem is one wasted protein line of a waste log.
type WasteItem struct {
	Protein string  `json:"protein"`
	Weight  float64 `json:"weight"`
	Reason  string  `json:"reason"`
	Villain bool    `json:"villain,omitempty"`
}

// WasteItems represents waste lines stored as a JSON column
type WasteItems []WasteItem

func (w WasteItems) Value() (driver.Value, error) {
	if len(w) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (w *WasteItems) Scan(value interface{}) error {
	if value == nil {
		*w = WasteItems{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return errors.New("unsupported type for WasteItems")
	}
}

// TotalWeight sums the weight of every line.
func (w WasteItems) TotalWeight() float64 {
	var total float64
	for _, item := range w {
		total += item.Weight
	}
	return total
}
