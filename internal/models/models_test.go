package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanItemsScan(t *testing.T) {
	items := PlanItems{{Protein: "Picanha", UnitName: "Skewers", UnitWeight: 3.5, RecommendedWeight: 10, RecommendedUnits: 3}}
	v, err := items.Value()
	require.NoError(t, err)

	var back PlanItems
	require.NoError(t, back.Scan(v))
	assert.Equal(t, items, back)

	require.NoError(t, back.Scan([]byte(`[]`)))
	assert.Empty(t, back)

	assert.Error(t, back.Scan(42))
}

func TestWasteItemsNilScan(t *testing.T) {
	var items WasteItems
	require.NoError(t, items.Scan(nil))
	assert.NotNil(t, items)
	assert.Empty(t, items)

	v, err := WasteItems{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestWasteItemsTotalWeight(t *testing.T) {
	items := WasteItems{{Protein: "Picanha", Weight: 1.5}, {Protein: "Sausage", Weight: 0.25}}
	assert.InDelta(t, 1.75, items.TotalWeight(), 1e-9)
}

func TestWeekStartIsMonday(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	cases := map[string]string{
		"2026-03-02": "2026-03-02", // Monday
		"2026-03-04": "2026-03-02",
		"2026-03-08": "2026-03-02", // Sunday
		"2026-03-09": "2026-03-09",
		"2026-01-01": "2025-12-29",
	}
	for day, want := range cases {
		d, err := ParseDate(day, loc)
		require.NoError(t, err)
		assert.Equal(t, want, WeekStart(d), day)
	}
}

func TestFormatDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	utc := time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", FormatDate(utc, loc))
	assert.Equal(t, "2026-03-03", FormatDate(utc, nil))
}

func TestParseShift(t *testing.T) {
	s, ok := ParseShift(" Dinner ")
	assert.True(t, ok)
	assert.Equal(t, ShiftDinner, s)

	_, ok = ParseShift("brunch")
	assert.False(t, ok)
}

func TestValidatePrepLock(t *testing.T) {
	lock := &PrepLock{StoreID: 1, Date: "2026-03-02", ForecastGuests: 100, Snapshot: PlanItems{{Protein: "Picanha"}}}
	assert.NoError(t, ValidatePrepLock(lock))

	lock.Date = "03/02/2026"
	assert.Error(t, ValidatePrepLock(lock))
}
