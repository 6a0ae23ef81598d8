package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brasa/internal/config"
	"brasa/internal/models"
)

func defaultSchedule(t *testing.T) *Schedule {
	t.Helper()
	s, err := NewSchedule(config.Default().Schedule)
	require.NoError(t, err)
	return s
}

func clock(h, m int) int { return h*60 + m }

func TestScheduleWindows(t *testing.T) {
	s := defaultSchedule(t)

	tests := []struct {
		day    time.Weekday
		minute int
		want   Window
	}{
		{time.Monday, clock(10, 59), WindowClosed},
		{time.Monday, clock(11, 0), WindowLunch},
		{time.Monday, clock(13, 59), WindowLunch},
		{time.Monday, clock(14, 0), WindowClosed},
		{time.Monday, clock(17, 0), WindowDinner},
		{time.Thursday, clock(21, 29), WindowDinner},
		{time.Thursday, clock(21, 30), WindowClosed},
		{time.Friday, clock(22, 45), WindowDinner},
		{time.Friday, clock(23, 30), WindowClosed},
		{time.Saturday, clock(12, 0), WindowAny},
		{time.Saturday, clock(23, 0), WindowAny},
		{time.Sunday, clock(20, 59), WindowAny},
		{time.Sunday, clock(21, 0), WindowClosed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Window(tt.day, tt.minute), "%s %02d:%02d", tt.day, tt.minute/60, tt.minute%60)
	}
}

func TestScheduleAtUsesLocalTime(t *testing.T) {
	s := defaultSchedule(t)
	cst := time.FixedZone("CST", -6*3600)

	// 18:00 UTC on a Monday is noon in CST
	utc := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, WindowClosed, s.At(utc))
	assert.Equal(t, WindowLunch, s.At(utc.In(cst)))
}

func TestWindowAllows(t *testing.T) {
	assert.True(t, WindowAny.Allows(models.ShiftLunch))
	assert.True(t, WindowAny.Allows(models.ShiftDinner))
	assert.True(t, WindowLunch.Allows(models.ShiftLunch))
	assert.False(t, WindowLunch.Allows(models.ShiftDinner))
	assert.False(t, WindowDinner.Allows(models.ShiftLunch))
	assert.False(t, WindowClosed.Allows(models.ShiftDinner))
}

func TestNewScheduleRejects(t *testing.T) {
	_, err := NewSchedule(map[string][]config.WindowConfig{
		"monday": {{Start: "11:00", End: "15:00", Shift: "lunch"}, {Start: "14:00", End: "20:00", Shift: "dinner"}},
	})
	assert.Error(t, err, "overlap")

	_, err = NewSchedule(map[string][]config.WindowConfig{"monday": {{Start: "11:00", End: "14:00", Shift: "brunch"}}})
	assert.Error(t, err)

	_, err = NewSchedule(map[string][]config.WindowConfig{"funday": {{Start: "11:00", End: "14:00", Shift: "lunch"}}})
	assert.Error(t, err)

	s, err := NewSchedule(nil)
	require.NoError(t, err)
	assert.Equal(t, WindowClosed, s.Window(time.Wednesday, clock(12, 0)))
}
