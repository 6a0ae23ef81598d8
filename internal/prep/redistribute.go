package prep

import (
	"brasa/internal/catalog"
	"brasa/internal/errs"
)

// Redistribute excludes proteins from plan for the current session. The
// remaining base mixes are renormalized so the total target weight is kept;
// excluded entries stay in the list with zeroed recommendations. It always
// starts from the base mix, so re-including a protein needs no history.
func (p *Planner) Redistribute(plan Plan, excluded []string) (Plan, []errs.Warning, error) {
	if plan.ReadOnly {
		return Plan{}, nil, errs.Invalid("plan", "date %s is locked", plan.Date)
	}

	known := make(map[string]bool, len(plan.Entries))
	for _, e := range plan.Entries {
		known[catalog.Normalize(e.Protein)] = true
	}
	out := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		key := catalog.Normalize(name)
		if !known[key] {
			return Plan{}, nil, errs.Invalid("excluded", "protein %q is not in the plan", name)
		}
		out[key] = true
	}

	var activeBase float64
	for _, e := range plan.Entries {
		if !out[catalog.Normalize(e.Protein)] {
			activeBase += e.BaseMix
		}
	}
	if activeBase <= 0 {
		return Plan{}, nil, errs.Invalid("excluded", "at least one protein with a positive mix must remain")
	}

	adjusted := plan
	adjusted.Entries = make([]Entry, len(plan.Entries))
	adjusted.Excluded = nil
	adjusted.TotalWeightTarget = float64(plan.ForecastGuests) * plan.WeightPerGuest

	var warnings []errs.Warning
	for i, e := range plan.Entries {
		e.Excluded = out[catalog.Normalize(e.Protein)]
		if e.Excluded {
			e.MixPercentage = 0
			e.RecommendedWeight = 0
			e.RecommendedUnits = 0
			adjusted.Excluded = append(adjusted.Excluded, e.Protein)
		} else {
			mix := e.BaseMix / activeBase
			e.MixPercentage = mix * 100
			if w := p.fill(&e, adjusted.TotalWeightTarget*mix, plan.ForecastGuests); w != nil {
				warnings = append(warnings, *w)
			}
		}
		adjusted.Entries[i] = e
	}
	sortEntries(adjusted.Entries)

	adjusted.CostPerGuest = CostPerGuest(adjusted.Entries, plan.ForecastGuests)
	adjusted.Briefing = Brief(adjusted.CostPerGuest, plan.CostTarget, p.tolerance, adjusted.Excluded)
	return adjusted, warnings, nil
}
