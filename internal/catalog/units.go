package catalog

import (
	"errors"
	"math"

	"brasa/internal/errs"
)

// RuleType selects how a unit rule computes the weight of one unit.
type RuleType string

const (
	// RuleFlat is a fixed weight per piece or whole cut.
	RuleFlat RuleType = "flat"
	// RuleSkewer is pieces per skewer times piece weight, over the yield.
	RuleSkewer RuleType = "skewer"
)

// FallbackUnitName labels proteins with no registered rule.
const FallbackUnitName = "Piece/Whole"

// UnitRule converts a protein's weight into discrete prep units.
type UnitRule struct {
	Type             RuleType `json:"type"`
	UnitName         string   `json:"unit_name"`
	UnitWeight       float64  `json:"unit_weight,omitempty"`
	PiecesPerSkewer  int      `json:"pieces_per_skewer,omitempty"`
	PieceWeight      float64  `json:"piece_weight,omitempty"`
	Yield            float64  `json:"yield,omitempty"`
	HighVolumeGuests int      `json:"high_volume_guests,omitempty"`
	HighVolumePieces int      `json:"high_volume_pieces,omitempty"`
}

func (r UnitRule) validate() error {
	switch r.Type {
	case RuleFlat:
		if r.UnitWeight <= 0 {
			return errors.New("flat rule needs a positive unit weight")
		}
	case RuleSkewer:
		if r.PiecesPerSkewer <= 0 || r.PieceWeight <= 0 {
			return errors.New("skewer rule needs pieces per skewer and piece weight")
		}
		if r.Yield < 0 || r.Yield > 1 {
			return errors.New("skewer yield must be within [0, 1]")
		}
	default:
		return errors.New("unknown rule type " + string(r.Type))
	}
	return nil
}

// Weight is the weight of one unit for a day forecasting guests.
func (r UnitRule) Weight(guests int) float64 {
	if r.Type == RuleFlat {
		return r.UnitWeight
	}
	pieces := r.PiecesPerSkewer
	if r.HighVolumeGuests > 0 && r.HighVolumePieces > 0 && guests > r.HighVolumeGuests {
		pieces = r.HighVolumePieces
	}
	w := float64(pieces) * r.PieceWeight
	if r.Yield > 0 {
		w /= r.Yield
	}
	return w
}

// Unit is a resolved unit name and weight for one protein.
type Unit struct {
	Name   string
	Weight float64
}

// UnitFor resolves the prep unit of protein for a day forecasting guests.
// A protein with no rule falls back to one pound per piece and a warning.
func (c *Catalog) UnitFor(protein string, guests int) (Unit, *errs.Warning) {
	rule, ok := c.rules[Normalize(protein)]
	if !ok {
		w := errs.Warn(errs.WarnUnitRuleFallback, protein, "no unit rule, using 1 lb per %s", FallbackUnitName)
		return Unit{Name: FallbackUnitName, Weight: 1}, &w
	}
	name := rule.UnitName
	if name == "" {
		name = FallbackUnitName
	}
	return Unit{Name: name, Weight: rule.Weight(guests)}, nil
}

// UnitsFor returns the number of units covering weight, rounded up so that
// units*unitWeight is never below weight.
func UnitsFor(weight, unitWeight float64) int {
	if weight <= 0 || unitWeight <= 0 {
		return 0
	}
	units := int(math.Ceil(weight / unitWeight))
	for float64(units)*unitWeight < weight {
		units++
	}
	return units
}
