package prep

import "time"

// Forecaster estimates guests for a date with no forecast: Base plus Step
// per weekday, Sunday being zero.
type Forecaster struct {
	Base int
	Step int
}

// Guests returns the heuristic guest count for date.
func (f Forecaster) Guests(date time.Time) int {
	return f.Base + f.Step*int(date.Weekday())
}
