package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for every store+date key.
const DateLayout = "2006-01-02"

// FormatDate renders t's calendar date in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

// ParseDate parses a "YYYY-MM-DD" date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// WeekStart returns the Monday of the week containing t, as a date key.
func WeekStart(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location()).Format(DateLayout)
}
