package prep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brasa/internal/catalog"
	"brasa/internal/config"
	"brasa/internal/costing"
	"brasa/internal/database"
	"brasa/internal/errs"
	"brasa/internal/models"
	"brasa/internal/repository"
	"brasa/internal/targets"
)

var cst = time.FixedZone("CST", -6*3600)

type serviceFixture struct {
	repo    *repository.GormRepository
	recal   *targets.Recalculator
	svc     *Service
	storeID uint
}

type stubPolisher struct {
	msg string
	err error
}

func (s stubPolisher) Polish(ctx context.Context, plan Plan) (string, error) {
	return s.msg, s.err
}

func newServiceFixture(t *testing.T, opts ...ServiceOption) *serviceFixture {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cat, err := catalog.FromConfig(cfg)
	require.NoError(t, err)
	repo := repository.New(db)
	costs := costing.NewResolver(repo, cfg.Costs)

	ctx := context.Background()
	store := &models.Store{CompanyID: "tdb", Name: "Addison"}
	require.NoError(t, repo.SaveStore(ctx, store))
	require.NoError(t, repo.SaveStore(ctx, &models.Store{CompanyID: "tdb", Name: "Dallas"}))

	// Monday 2026-03-02 09:00 store-local
	now := func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, cst) }
	settings := Settings{
		DefaultWeightPerGuest: cfg.DefaultTotalWeightPerGuest,
		FinancialTarget:       cfg.FinancialTargetPerGuest,
		Location:              cst,
		Forecast:              Forecaster{Base: cfg.Forecast.Base, Step: cfg.Forecast.Step},
	}
	opts = append([]ServiceOption{WithClock(now)}, opts...)
	svc := NewService(repo, NewPlanner(cat, cfg.BriefingTolerance), cat, costs, settings, opts...)
	recal := targets.NewRecalculator(repo, cat, costs, targets.WithClock(now))
	return &serviceFixture{repo: repo, recal: recal, svc: svc, storeID: store.ID}
}

func intPtr(n int) *int { return &n }

func hasWarning(ws []errs.Warning, code errs.WarningCode) bool {
	for _, w := range ws {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestGetPlanDefaultsForecastAndTargets(t *testing.T) {
	f := newServiceFixture(t)

	plan, err := f.svc.GetPlan(context.Background(), PlanRequest{StoreID: f.storeID})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", plan.Date)
	assert.Equal(t, 145, plan.ForecastGuests) // 120 + 25 * Monday
	assert.False(t, plan.ReadOnly)
	assert.True(t, hasWarning(plan.Warnings, errs.WarnForecastDefault))
	assert.True(t, hasWarning(plan.Warnings, errs.WarnTargetsFallback))
	assert.True(t, hasWarning(plan.Warnings, errs.WarnCostFallback))
	assert.Equal(t, 9.92, plan.CostTarget)
	assert.InDelta(t, 145*1.76, plan.TotalWeightTarget, 1e-9)
	assert.NotEmpty(t, plan.Briefing.Message)
}

func TestGetPlanUsesStoreTargets(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.recal.Recalculate(ctx, targets.Request{StoreID: f.storeID, TotalWeightPerGuest: 1.5, ExcludedProteins: []string{"Lamb Chops"}})
	require.NoError(t, err)

	plan, err := f.svc.GetPlan(ctx, PlanRequest{StoreID: f.storeID, Date: "2026-03-03", ForecastGuests: intPtr(300)})
	require.NoError(t, err)
	assert.Len(t, plan.Entries, 14, "permanently excluded proteins are not planned")
	assert.False(t, hasWarning(plan.Warnings, errs.WarnTargetsFallback))

	var sum float64
	for _, e := range plan.Entries {
		sum += e.RecommendedWeight
	}
	assert.InDelta(t, 300*1.5, sum, 1e-6)
}

func TestGetPlanValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetPlan(ctx, PlanRequest{StoreID: f.storeID, ForecastGuests: intPtr(-5)})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.GetPlan(ctx, PlanRequest{StoreID: f.storeID, Date: "tomorrow"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.GetPlan(ctx, PlanRequest{StoreID: 404})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLockIsOneShot(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	lock, err := f.svc.LockPlan(ctx, LockRequest{StoreID: f.storeID, Date: "2026-03-02", ForecastGuests: intPtr(200), Excluded: []string{"Sausage"}, LockedBy: "chef"})
	require.NoError(t, err)
	assert.NotEmpty(t, lock.Reference)
	assert.InDelta(t, 200*1.76, lock.TotalWeight, 1e-6)

	_, err = f.svc.LockPlan(ctx, LockRequest{StoreID: f.storeID, Date: "2026-03-02", ForecastGuests: intPtr(999)})
	assert.ErrorIs(t, err, errs.ErrConflict)

	plan, err := f.svc.GetPlan(ctx, PlanRequest{StoreID: f.storeID, Date: "2026-03-02", ForecastGuests: intPtr(999)})
	require.NoError(t, err)
	assert.True(t, plan.ReadOnly)
	assert.Equal(t, 200, plan.ForecastGuests)
	assert.Equal(t, lock.Reference, plan.Lock.Reference)
	assert.Equal(t, []string{"Sausage"}, plan.Excluded)

	_, err = f.svc.Adjust(ctx, *plan, []string{"Picanha"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLockWithoutForecastUsesWeekdayDefault(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Monday: 120 + 25*1
	lock, err := f.svc.LockPlan(ctx, LockRequest{StoreID: f.storeID, Date: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, 145, lock.ForecastGuests)
	assert.InDelta(t, 145*1.76, lock.TotalWeight, 1e-6)
	assert.Greater(t, lock.CostPerGuest, 0.0)

	plan, err := f.svc.GetPlan(ctx, PlanRequest{StoreID: f.storeID, Date: "2026-03-02"})
	require.NoError(t, err)
	assert.True(t, plan.ReadOnly)
	assert.Equal(t, 145, plan.ForecastGuests)

	entries := []Entry{{Protein: "Picanha", UnitWeight: 3.5, RecommendedWeight: 7, RecommendedUnits: 2}}
	_, err = f.svc.LockPlan(ctx, LockRequest{StoreID: f.storeID, Date: "2026-03-03", Plan: entries})
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.repo.GetPrepLock(ctx, f.storeID, "2026-03-03")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLockWithClientPlan(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan, err := f.svc.GetPlan(ctx, PlanRequest{StoreID: f.storeID, ForecastGuests: intPtr(100)})
	require.NoError(t, err)
	adjusted, err := f.svc.Adjust(ctx, *plan, []string{"Filet Mignon"})
	require.NoError(t, err)

	lock, err := f.svc.LockPlan(ctx, LockRequest{StoreID: f.storeID, ForecastGuests: intPtr(100), Plan: adjusted.Entries})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", lock.Date)
	assert.InDelta(t, adjusted.CostPerGuest, lock.CostPerGuest, 1e-9)

	bad := []Entry{{Protein: "Picanha", UnitWeight: 3.5, RecommendedWeight: 10, RecommendedUnits: 2}}
	_, err = f.svc.LockPlan(ctx, LockRequest{StoreID: f.storeID, Date: "2026-03-03", ForecastGuests: intPtr(10), Plan: bad})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestPolisherFallback(t *testing.T) {
	f := newServiceFixture(t, WithPolisher(stubPolisher{msg: "  Push the drumsticks.  "}))
	plan, err := f.svc.GetPlan(context.Background(), PlanRequest{StoreID: f.storeID, ForecastGuests: intPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, "Push the drumsticks.", plan.Briefing.Message)

	f = newServiceFixture(t, WithPolisher(stubPolisher{err: errors.New("timeout")}))
	plan, err = f.svc.GetPlan(context.Background(), PlanRequest{StoreID: f.storeID, ForecastGuests: intPtr(100)})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Briefing.Message)
	assert.NotEqual(t, "Push the drumsticks.", plan.Briefing.Message)
}

func TestNetworkStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.LockPlan(ctx, LockRequest{StoreID: f.storeID, ForecastGuests: intPtr(150), LockedBy: "gm"})
	require.NoError(t, err)

	status, err := f.svc.NetworkStatus(ctx, "tdb", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", status.Date)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 1, status.Submitted)
	assert.Equal(t, models.PrepStatusLocked, status.Stores[0].Status)
	assert.Equal(t, 150, status.Stores[0].ForecastGuests)
	assert.Equal(t, models.PrepStatusPending, status.Stores[1].Status)

	_, err = f.svc.NetworkStatus(ctx, "nobody", "")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
