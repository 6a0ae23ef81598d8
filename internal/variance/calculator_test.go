package variance

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brasa/internal/catalog"
	"brasa/internal/config"
	"brasa/internal/costing"
	"brasa/internal/database"
	"brasa/internal/errs"
	"brasa/internal/models"
	"brasa/internal/repository"
)

type fixture struct {
	repo  *repository.GormRepository
	costs *costing.Resolver
	calc  *Calculator
}

func newFixture(t *testing.T, topN int) *fixture {
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
	calc := NewCalculator(repo, cat, costs, Settings{
		DefaultWeightPerGuest: cfg.DefaultTotalWeightPerGuest,
		FinancialTarget:       cfg.FinancialTargetPerGuest,
		TopN:                  topN,
	}, nil)
	return &fixture{repo: repo, costs: costs, calc: calc}
}

func (f *fixture) store(t *testing.T, company, name string) uint {
	t.Helper()
	s := &models.Store{CompanyID: company, Name: name}
	require.NoError(t, f.repo.SaveStore(context.Background(), s))
	return s.ID
}

func (f *fixture) invoice(t *testing.T, storeID uint, protein string, price float64) {
	t.Helper()
	_, err := f.costs.AddInvoice(context.Background(), costing.InvoiceInput{
		StoreID: storeID, Protein: protein, Quantity: 100, PricePerLb: price, Date: "2026-03-01",
	})
	require.NoError(t, err)
}

func (f *fixture) use(t *testing.T, storeID uint, protein string, weight float64) {
	t.Helper()
	_, err := f.calc.RecordConsumption(context.Background(), ConsumptionInput{StoreID: storeID, Date: "2026-03-02", Protein: protein, Weight: weight})
	require.NoError(t, err)
}

func (f *fixture) guests(t *testing.T, storeID uint, lunch, dinner int) {
	t.Helper()
	_, err := f.calc.RecordGuests(context.Background(), GuestInput{StoreID: storeID, Date: "2026-03-02", LunchGuests: lunch, DinnerGuests: dinner})
	require.NoError(t, err)
}

func groupByKey(groups []GroupVariance, key string) GroupVariance {
	for _, g := range groups {
		if g.Group == key {
			return g
		}
	}
	return GroupVariance{}
}

// addison: 100 guests, 160 lb used for $920 against a $9.92 target
func seedAddison(t *testing.T, f *fixture) uint {
	id := f.store(t, "tdb", "Addison")
	require.NoError(t, f.repo.SaveTargets(context.Background(),
		&models.StoreTarget{StoreID: id, TotalWeightPerGuest: 1.76, TotalCostPerGuest: 9.92},
		[]models.StoreProteinTarget{
			{StoreID: id, Protein: "Picanha", WeightTarget: 1.0},
			{StoreID: id, Protein: "Lamb Chops", WeightTarget: 0.5},
			{StoreID: id, Protein: "Sausage", WeightTarget: 0.26},
		}))
	f.invoice(t, id, "Picanha", 6)
	f.invoice(t, id, "Sausage", 2)
	f.invoice(t, id, "Lamb Chops", 10)
	f.use(t, id, "picanha", 110)
	f.use(t, id, "Sausage", 30)
	f.use(t, id, "Lamb Chops", 20)
	f.guests(t, id, 40, 60)
	return id
}

func TestStoreVariance(t *testing.T) {
	f := newFixture(t, 10)
	id := seedAddison(t, f)

	sv, err := f.calc.StoreVariance(context.Background(), id, "2026-03-02", "2026-03-08")
	require.NoError(t, err)
	assert.Equal(t, 100, sv.Guests)
	assert.Equal(t, 160.0, sv.ActualWeight)
	assert.Equal(t, 920.0, sv.ActualCost)
	assert.Equal(t, 1.6, sv.ActualLbsPerGuest)
	assert.Equal(t, -0.16, sv.LbsGuestVariance)
	assert.Equal(t, 9.2, sv.ActualCostPerGuest)
	assert.Equal(t, -0.72, sv.CostGuestVariance)
	assert.Equal(t, -72.0, sv.FinancialImpact)
	assert.False(t, sv.InsufficientData)
	assert.Empty(t, sv.Warnings)

	picanha := groupByKey(sv.Groups, "Picanha")
	assert.Equal(t, 100, picanha.ApplicableGuests)
	assert.Equal(t, 100.0, picanha.Ideal)
	assert.Equal(t, 110.0, picanha.Actual)
	assert.Equal(t, 10.0, picanha.Variance)
	assert.Equal(t, 660.0, picanha.ActualCost)

	lamb := groupByKey(sv.Groups, "Lamb Chops")
	assert.True(t, lamb.DinnerOnly)
	assert.Equal(t, 60, lamb.ApplicableGuests, "dinner-only groups count dinner guests")
	assert.Equal(t, 30.0, lamb.Ideal)
	assert.Equal(t, -10.0, lamb.Variance)
}

func TestStoreVarianceWithoutGuests(t *testing.T) {
	f := newFixture(t, 10)
	id := f.store(t, "tdb", "Plano")
	f.use(t, id, "Picanha", 40)

	sv, err := f.calc.StoreVariance(context.Background(), id, "2026-03-02", "2026-03-02")
	require.NoError(t, err)
	assert.True(t, sv.InsufficientData)
	assert.Zero(t, sv.FinancialImpact)
	assert.Zero(t, sv.ActualLbsPerGuest)
	assert.Equal(t, 40.0, sv.ActualWeight)
	assert.Equal(t, 9.92, sv.TargetCostPerGuest)
	assert.Contains(t, sv.Warnings, errs.Warning{Code: errs.WarnTargetsFallback, Message: fmt.Sprintf("store %d has no targets, using standards", id)})
}

func TestStoreVarianceValidation(t *testing.T) {
	f := newFixture(t, 10)
	id := f.store(t, "tdb", "Addison")
	ctx := context.Background()

	_, err := f.calc.StoreVariance(ctx, id, "2026-03-08", "2026-03-02")
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.calc.StoreVariance(ctx, id, "last week", "2026-03-02")
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.calc.StoreVariance(ctx, 999, "2026-03-02", "2026-03-02")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNetworkVariance(t *testing.T) {
	f := newFixture(t, 10)
	addison := seedAddison(t, f)

	dallas := f.store(t, "tdb", "Dallas")
	f.invoice(t, dallas, "Picanha", 6)
	f.use(t, dallas, "Picanha", 200)
	f.guests(t, dallas, 50, 50)

	plano := f.store(t, "tdb", "Plano")
	f.store(t, "other", "Houston")

	net, err := f.calc.NetworkVariance(context.Background(), "tdb", "2026-03-02", "2026-03-08")
	require.NoError(t, err)
	assert.Len(t, net.Stores, 3)
	assert.Equal(t, 136.0, net.TotalImpact) // -72 + 208
	require.Len(t, net.TopSavers, 1)
	assert.Equal(t, addison, net.TopSavers[0].StoreID)
	require.Len(t, net.TopSpenders, 1)
	assert.Equal(t, dallas, net.TopSpenders[0].StoreID)
	assert.Equal(t, 208.0, net.TopSpenders[0].FinancialImpact)
	assert.Equal(t, []uint{plano}, net.InsufficientData)

	_, err = f.calc.NetworkVariance(context.Background(), "nobody", "2026-03-02", "2026-03-08")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNetworkRankingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := newFixture(t, 3)

	for i := 0; i < 9; i++ {
		id := f.store(t, "tdb", fmt.Sprintf("Store %d", i))
		f.invoice(t, id, "Picanha", 4+rng.Float64()*6)
		f.use(t, id, "Picanha", 50+rng.Float64()*250)
		if i%4 != 3 {
			f.guests(t, id, rng.Intn(80), 1+rng.Intn(120))
		}
	}

	net, err := f.calc.NetworkVariance(context.Background(), "tdb", "2026-03-02", "2026-03-02")
	require.NoError(t, err)

	var sum float64
	for _, s := range net.Stores {
		if s.InsufficientData {
			assert.Zero(t, s.FinancialImpact)
		}
		sum += s.FinancialImpact
	}
	assert.InDelta(t, sum, net.TotalImpact, 1e-6)
	assert.Len(t, net.InsufficientData, 2)

	assert.LessOrEqual(t, len(net.TopSavers), 3)
	assert.LessOrEqual(t, len(net.TopSpenders), 3)
	for i, s := range net.TopSavers {
		assert.Negative(t, s.FinancialImpact)
		if i > 0 {
			assert.LessOrEqual(t, net.TopSavers[i-1].FinancialImpact, s.FinancialImpact)
		}
	}
	for i, s := range net.TopSpenders {
		assert.Positive(t, s.FinancialImpact)
		if i > 0 {
			assert.GreaterOrEqual(t, net.TopSpenders[i-1].FinancialImpact, s.FinancialImpact)
		}
	}
}

func TestRecordConsumptionAndGuests(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	id := f.store(t, "tdb", "Addison")

	rec, err := f.calc.RecordConsumption(ctx, ConsumptionInput{StoreID: id, Date: "2026-03-02", Protein: " garlic picanha ", Weight: 12})
	require.NoError(t, err)
	assert.Equal(t, "Garlic Picanha", rec.Protein)

	_, err = f.calc.RecordConsumption(ctx, ConsumptionInput{StoreID: id, Date: "2026-03-02", Protein: "Picanha", Weight: -1})
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.calc.RecordConsumption(ctx, ConsumptionInput{StoreID: 404, Date: "2026-03-02", Protein: "Picanha", Weight: 1})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	f.guests(t, id, 10, 20)
	f.guests(t, id, 30, 40)
	counts, err := f.repo.ListGuests(ctx, id, "2026-03-02", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, counts, 1, "a second count for the date replaces the first")
	assert.Equal(t, 70, counts[0].Total())

	_, err = f.calc.RecordGuests(ctx, GuestInput{StoreID: id, Date: "2026-03-02", LunchGuests: -3})
	assert.ErrorIs(t, err, errs.ErrValidation)
}
