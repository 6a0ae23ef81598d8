package prep

import (
	"fmt"
	"strings"
)

// Level grades a plan's projected cost against the store's target.
type Level string

const (
	LevelOK    Level = "ok"
	LevelTight Level = "tight"
	LevelRisk  Level = "risk"
)

// Briefing is advisory text for the kitchen. It never gates anything.
type Briefing struct {
	Level        Level   `json:"level"`
	CostPerGuest float64 `json:"cost_per_guest"`
	CostTarget   float64 `json:"cost_target"`
	Ceiling      float64 `json:"ceiling"`
	Message      string  `json:"message"`
}

// Brief grades costPerGuest: at or under target is OK, within tolerance
// above it is tight, anything higher is a risk.
func Brief(costPerGuest, target, tolerance float64, excluded []string) Briefing {
	b := Briefing{
		CostPerGuest: costPerGuest,
		CostTarget:   target,
		Ceiling:      target + tolerance,
	}
	switch {
	case costPerGuest > b.Ceiling:
		b.Level = LevelRisk
		b.Message = fmt.Sprintf("Financial risk: projected cost $%.2f per guest is above the $%.2f ceiling. "+
			"Pace premium cuts and push efficient cuts such as drumsticks and pork loin.", costPerGuest, b.Ceiling)
	case costPerGuest > target:
		b.Level = LevelTight
		b.Message = fmt.Sprintf("Tight margin: projected cost $%.2f per guest is over the $%.2f target. "+
			"Watch the premium mix to stay under the ceiling.", costPerGuest, target)
	default:
		b.Level = LevelOK
		b.Message = fmt.Sprintf("On target: projected cost $%.2f per guest is within the $%.2f target.", costPerGuest, target)
	}
	if len(excluded) > 0 {
		b.Message += fmt.Sprintf(" Out today: %s; their share moved to the remaining proteins.", strings.Join(excluded, ", "))
	}
	return b
}
