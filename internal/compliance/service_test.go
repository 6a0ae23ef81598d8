package compliance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brasa/internal/config"
	"brasa/internal/database"
	"brasa/internal/errs"
	"brasa/internal/models"
	"brasa/internal/repository"
)

var cst = time.FixedZone("CST", -6*3600)

type fixture struct {
	repo    *repository.GormRepository
	svc     *Service
	now     time.Time
	storeID uint
	otherID uint
}

func newFixture(t *testing.T, wrap func(*repository.GormRepository) Store) *fixture {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	repo := repository.New(db)
	ctx := context.Background()
	addison := &models.Store{CompanyID: "tdb", Name: "Addison"}
	require.NoError(t, repo.SaveStore(ctx, addison))
	dallas := &models.Store{CompanyID: "tdb", Name: "Dallas"}
	require.NoError(t, repo.SaveStore(ctx, dallas))

	schedule, err := NewSchedule(cfg.Schedule)
	require.NoError(t, err)

	// Monday 2026-03-02 12:00 store-local, inside the lunch window
	f := &fixture{repo: repo, now: time.Date(2026, 3, 2, 12, 0, 0, 0, cst), storeID: addison.ID, otherID: dallas.ID}
	var store Store = repo
	if wrap != nil {
		store = wrap(repo)
	}
	f.svc = NewService(store, schedule, SettingsFromConfig(cfg, cst), WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) at(day, hour, minute int) {
	f.now = time.Date(2026, 3, day, hour, minute, 0, 0, cst)
}

func lunchItems() []models.WasteItem {
	return []models.WasteItem{
		{Protein: " Picanha ", Weight: 3, Reason: "trim"},
		{Protein: "Sausage", Weight: 2, Reason: "spoilage"},
		{Protein: "picanha", Weight: 1, Reason: "trim"},
	}
}

func TestComplianceGateExample(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	st, err := f.svc.Status(ctx, f.storeID, "")
	require.NoError(t, err)
	assert.Equal(t, WindowLunch, st.Window)
	assert.True(t, st.CanInputLunch)
	assert.False(t, st.CanInputDinner)
	assert.Equal(t, errs.ReasonNone, st.Reason)

	entry, err := f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch", Items: lunchItems(), LoggedBy: "kitchen"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", entry.Date)
	assert.NotEmpty(t, entry.Reference)
	assert.Equal(t, 6.0, entry.TotalWeight)
	assert.Equal(t, "Picanha", entry.Items[0].Protein)
	assert.True(t, entry.Items[0].Villain)
	assert.False(t, entry.Items[1].Villain)

	for _, shift := range []string{"lunch", "dinner"} {
		f.at(2, 18, 0)
		_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: shift, Items: lunchItems()})
		assert.ErrorIs(t, err, errs.ErrPolicyDenied, shift)
		assert.Equal(t, errs.ReasonAlreadyLoggedToday, errs.ReasonOf(err), shift)
	}

	st, err = f.svc.Status(ctx, f.storeID, "")
	require.NoError(t, err)
	assert.True(t, st.LoggedToday)
	assert.False(t, st.CanInputLunch)
	assert.False(t, st.CanInputDinner)
	assert.Equal(t, errs.ReasonAlreadyLoggedToday, st.Reason)
	assert.Equal(t, "2026-03-02", st.WeekStart)
	assert.Equal(t, 1, st.LunchCount)
	assert.Equal(t, 0, st.DinnerCount)
}

func TestSubmitOutsideWindow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "dinner"})
	assert.Equal(t, errs.ReasonOutsideShiftWindow, errs.ReasonOf(err))

	f.at(2, 15, 0)
	_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch"})
	assert.Equal(t, errs.ReasonOutsideShiftWindow, errs.ReasonOf(err))

	st, err := f.svc.Status(ctx, f.storeID, "")
	require.NoError(t, err)
	assert.Equal(t, WindowClosed, st.Window)
	assert.Equal(t, errs.ReasonOutsideShiftWindow, st.Reason)

	// Saturday accepts either shift
	f.at(7, 13, 0)
	_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "dinner"})
	assert.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "brunch"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch", Date: "2026-03-01"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch", Items: []models.WasteItem{{Protein: "Picanha", Weight: -1}}})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: 404, Shift: "lunch"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestWeeklyLockAndUnlock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CloseWeek(ctx, f.storeID, "2026-03-02")
	assert.ErrorIs(t, err, errs.ErrValidation, "week has not ended")
	_, err = f.svc.CloseWeek(ctx, f.storeID, "2026-02-24")
	assert.ErrorIs(t, err, errs.ErrValidation, "not a Monday")

	res, err := f.svc.CloseWeek(ctx, f.storeID, "2026-02-23")
	require.NoError(t, err)
	assert.True(t, res.Locked)
	res, err = f.svc.CloseWeek(ctx, f.storeID, "2026-02-23")
	require.NoError(t, err)
	assert.True(t, res.Locked)

	_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch"})
	assert.Equal(t, errs.ReasonWeeklyLocked, errs.ReasonOf(err))

	st, err := f.svc.Status(ctx, f.storeID, "")
	require.NoError(t, err)
	assert.True(t, st.WeeklyLocked)
	assert.Equal(t, errs.ReasonWeeklyLocked, st.Reason)
	assert.False(t, st.CanInputLunch)

	n, err := f.svc.Unlock(ctx, f.storeID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch"})
	assert.NoError(t, err)
}

func TestCloseWeekWithQuotaMet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	shifts := []models.Shift{models.ShiftLunch, models.ShiftLunch, models.ShiftLunch, models.ShiftDinner, models.ShiftDinner, models.ShiftDinner}
	for i, shift := range shifts {
		entry := &models.WasteLogEntry{
			Reference: fmt.Sprintf("ref-%d", i),
			StoreID:   f.storeID,
			Date:      fmt.Sprintf("2026-02-%d", 23+i),
			Shift:     shift,
		}
		require.NoError(t, f.repo.CreateWasteLog(ctx, entry, "2026-02-23"))
	}

	res, err := f.svc.CloseWeek(ctx, f.storeID, "2026-02-23")
	require.NoError(t, err)
	assert.False(t, res.Locked)
	assert.Equal(t, 3, res.LunchCount)
	assert.Equal(t, 3, res.DinnerCount)
}

type racyStore struct {
	*repository.GormRepository
}

// GetWasteLog never sees the competing insert, as if it landed after the check.
func (r racyStore) GetWasteLog(ctx context.Context, storeID uint, date string) (*models.WasteLogEntry, error) {
	return nil, fmt.Errorf("waste log: %w", errs.ErrNotFound)
}

func TestLostRaceIsAlreadyLogged(t *testing.T) {
	f := newFixture(t, func(r *repository.GormRepository) Store { return racyStore{r} })
	ctx := context.Background()

	require.NoError(t, f.repo.CreateWasteLog(ctx, &models.WasteLogEntry{Reference: "winner", StoreID: f.storeID, Date: "2026-03-02", Shift: models.ShiftLunch}, "2026-03-02"))

	_, err := f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch"})
	require.Error(t, err)
	assert.Equal(t, errs.ReasonAlreadyLoggedToday, errs.ReasonOf(err))
	assert.ErrorIs(t, err, errs.ErrConflict)

	var denied *errs.PolicyDenied
	assert.True(t, errors.As(err, &denied))

	week, err := f.repo.GetComplianceWeek(ctx, f.storeID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, week.LunchCount, "the losing write is rolled back")
}

func TestWasteAnalysis(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch", Items: lunchItems()})
	require.NoError(t, err)

	st, err := f.svc.Status(ctx, f.storeID, "")
	require.NoError(t, err)
	a := st.Analysis
	assert.Equal(t, 6.0, a.TotalWaste)
	assert.Equal(t, 4.0, a.VillainWaste)
	assert.Equal(t, 150, a.ForecastGuests)
	assert.Equal(t, 264.0, a.Projection)
	assert.Equal(t, 2.27, a.Percent)
	assert.Equal(t, LevelYellow, a.Level)
	assert.False(t, a.Critical)
	assert.Equal(t, []ReasonWeight{{Reason: "trim", Weight: 4}, {Reason: "spoilage", Weight: 2}}, a.Breakdown)

	lock := &models.PrepLock{Reference: "lock", StoreID: f.storeID, Date: "2026-03-02", ForecastGuests: 200}
	require.NoError(t, f.repo.CreatePrepLock(ctx, lock))
	st, err = f.svc.Status(ctx, f.storeID, "")
	require.NoError(t, err)
	assert.Equal(t, 200, st.Analysis.ForecastGuests)
	assert.Equal(t, 1.7, st.Analysis.Percent)
}

func TestStatusForAnotherDay(t *testing.T) {
	f := newFixture(t, nil)
	st, err := f.svc.Status(context.Background(), f.storeID, "2026-03-01")
	require.NoError(t, err)
	assert.False(t, st.CanInputLunch)
	assert.False(t, st.CanInputDinner)
	assert.Contains(t, st.Message, "today")
	assert.Equal(t, LevelMissing, st.Analysis.Level)
	assert.Equal(t, "2026-02-23", st.WeekStart)
}

func TestNetworkWasteAndHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{StoreID: f.storeID, Shift: "lunch", Items: lunchItems()})
	require.NoError(t, err)

	net, err := f.svc.NetworkWaste(ctx, "tdb")
	require.NoError(t, err)
	assert.Equal(t, 2, net.Total)
	assert.Equal(t, 1, net.Reporting)
	assert.Equal(t, 2.27, net.AveragePercent)
	require.Len(t, net.Stores, 2)
	assert.Equal(t, LevelYellow, net.Stores[0].Level)
	assert.Equal(t, LevelMissing, net.Stores[1].Level)

	_, err = f.svc.NetworkWaste(ctx, "nobody")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	days, err := f.svc.History(ctx, f.storeID, "2026-03-01", "2026-03-03")
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.False(t, days[0].Logged)
	assert.True(t, days[1].Logged)
	assert.Equal(t, models.ShiftLunch, days[1].Shift)
	assert.Equal(t, 6.0, days[1].TotalWaste)
	assert.Equal(t, 4.0, days[1].VillainWaste)

	_, err = f.svc.History(ctx, f.storeID, "2026-03-03", "2026-03-01")
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.History(ctx, f.storeID, "2025-01-01", "2026-03-01")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLevels(t *testing.T) {
	s := &Service{settings: Settings{WarningPercent: 1, CriticalPercent: 5}}
	assert.Equal(t, LevelGreen, s.level(0))
	assert.Equal(t, LevelGreen, s.level(1))
	assert.Equal(t, LevelYellow, s.level(1.01))
	assert.Equal(t, LevelYellow, s.level(5))
	assert.Equal(t, LevelRed, s.level(5.01))
}
