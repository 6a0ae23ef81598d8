package prep

import (
	"math"
	"sort"

	"brasa/internal/catalog"
	"brasa/internal/errs"
)

// Entry is one protein line of a prep plan.
type Entry struct {
	Protein           string  `json:"protein"`
	UnitName          string  `json:"unit_name"`
	UnitWeight        float64 `json:"unit_weight"`
	BaseMix           float64 `json:"base_mix"`
	MixPercentage     float64 `json:"mix_percentage"`
	RecommendedWeight float64 `json:"recommended_weight"`
	RecommendedUnits  int     `json:"recommended_units"`
	UnitCost          float64 `json:"unit_cost"`
	Excluded          bool    `json:"excluded,omitempty"`
}

// Plan is a store's prep plan for one date.
type Plan struct {
	StoreID           uint           `json:"store_id"`
	Date              string         `json:"date"`
	ForecastGuests    int            `json:"forecast_guests"`
	WeightPerGuest    float64        `json:"weight_per_guest"`
	TotalWeightTarget float64        `json:"total_weight_target"`
	CostPerGuest      float64        `json:"cost_per_guest"`
	CostTarget        float64        `json:"cost_target"`
	Entries           []Entry        `json:"entries"`
	Excluded          []string       `json:"excluded,omitempty"`
	Briefing          Briefing       `json:"briefing"`
	ReadOnly          bool           `json:"read_only"`
	Lock              *LockInfo      `json:"lock,omitempty"`
	Warnings          []errs.Warning `json:"warnings,omitempty"`
}

// Target is a protein's per-guest weight target and cost per pound.
type Target struct {
	Protein      string
	WeightTarget float64
	UnitCost     float64
}

// Planner turns per-guest targets into weights and prep units.
type Planner struct {
	catalog   *catalog.Catalog
	tolerance float64
}

// NewPlanner creates a Planner. tolerance is the briefing band above the
// cost target.
func NewPlanner(cat *catalog.Catalog, tolerance float64) *Planner {
	return &Planner{catalog: cat, tolerance: tolerance}
}

// Build computes the plan entries for guests at weightPerGuest. Weights are
// split by each target's share of weightPerGuest and units always round up.
func (p *Planner) Build(guests int, weightPerGuest float64, targets []Target) ([]Entry, []errs.Warning, error) {
	if guests < 0 {
		return nil, nil, errs.Invalid("forecast_guests", "cannot be negative")
	}
	if math.IsNaN(weightPerGuest) || weightPerGuest <= 0 {
		return nil, nil, errs.Invalid("weight_per_guest", "must be positive")
	}

	total := float64(guests) * weightPerGuest
	entries := make([]Entry, 0, len(targets))
	var warnings []errs.Warning
	for _, t := range targets {
		if t.WeightTarget < 0 {
			return nil, nil, errs.Invalid("weight_target", "%s is negative", t.Protein)
		}
		mix := t.WeightTarget / weightPerGuest
		e := Entry{
			Protein:       t.Protein,
			BaseMix:       mix,
			MixPercentage: mix * 100,
			UnitCost:      t.UnitCost,
		}
		if w := p.fill(&e, total*mix, guests); w != nil {
			warnings = append(warnings, *w)
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, warnings, nil
}

// fill sets the unit and the recommended weight and units of e.
func (p *Planner) fill(e *Entry, weight float64, guests int) *errs.Warning {
	unit, warn := p.catalog.UnitFor(e.Protein, guests)
	e.UnitName = unit.Name
	e.UnitWeight = unit.Weight
	e.RecommendedWeight = weight
	e.RecommendedUnits = catalog.UnitsFor(weight, unit.Weight)
	return warn
}

// CostPerGuest is the blended cost of the active entries per guest.
func CostPerGuest(entries []Entry, guests int) float64 {
	if guests <= 0 {
		return 0
	}
	var cost float64
	for _, e := range entries {
		if !e.Excluded {
			cost += e.RecommendedWeight * e.UnitCost
		}
	}
	return cost / float64(guests)
}

// sortEntries orders by recommended weight, heaviest first, then by name.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RecommendedWeight != entries[j].RecommendedWeight {
			return entries[i].RecommendedWeight > entries[j].RecommendedWeight
		}
		return entries[i].Protein < entries[j].Protein
	})
}
