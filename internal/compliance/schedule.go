package compliance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"brasa/internal/config"
	"brasa/internal/models"
)

// Window is the kind of waste log a store may submit at a given moment.
type Window string

const (
	WindowLunch  Window = "lunch"
	WindowDinner Window = "dinner"
	WindowAny    Window = "any"
	WindowClosed Window = "closed"
)

// Allows reports whether a log for shift may be submitted in w.
func (w Window) Allows(shift models.Shift) bool {
	switch w {
	case WindowAny:
		return true
	case WindowLunch:
		return shift == models.ShiftLunch
	case WindowDinner:
		return shift == models.ShiftDinner
	}
	return false
}

type interval struct {
	start, end int
	window     Window
}

// Schedule is the weekly table of shift windows. Times are minutes since
// store-local midnight; a window covers [start, end).
type Schedule struct {
	days [7][]interval
}

// NewSchedule builds a schedule from the configured day table. Days missing
// from the table are closed all day.
func NewSchedule(table map[string][]config.WindowConfig) (*Schedule, error) {
	s := &Schedule{}
	for day, windows := range table {
		wd, ok := config.ParseWeekday(day)
		if !ok {
			return nil, fmt.Errorf("schedule: unknown day %q", day)
		}
		for _, w := range windows {
			start, err := config.ParseClock(w.Start)
			if err != nil {
				return nil, fmt.Errorf("schedule: %s: %w", day, err)
			}
			end, err := config.ParseClock(w.End)
			if err != nil {
				return nil, fmt.Errorf("schedule: %s: %w", day, err)
			}
			kind := Window(strings.ToLower(w.Shift))
			switch kind {
			case WindowLunch, WindowDinner, WindowAny:
			default:
				return nil, fmt.Errorf("schedule: %s: unknown shift %q", day, w.Shift)
			}
			if end <= start {
				return nil, fmt.Errorf("schedule: %s: empty window %s-%s", day, w.Start, w.End)
			}
			s.days[wd] = append(s.days[wd], interval{start: start, end: end, window: kind})
		}
		sort.Slice(s.days[wd], func(i, j int) bool { return s.days[wd][i].start < s.days[wd][j].start })
		for i := 1; i < len(s.days[wd]); i++ {
			if s.days[wd][i].start < s.days[wd][i-1].end {
				return nil, fmt.Errorf("schedule: %s has overlapping windows", day)
			}
		}
	}
	return s, nil
}

// Window looks up the window open on day at minute.
func (s *Schedule) Window(day time.Weekday, minute int) Window {
	for _, iv := range s.days[day] {
		if minute >= iv.start && minute < iv.end {
			return iv.window
		}
	}
	return WindowClosed
}

// At returns the window open at t, read in t's location.
func (s *Schedule) At(t time.Time) Window {
	return s.Window(t.Weekday(), t.Hour()*60+t.Minute())
}
