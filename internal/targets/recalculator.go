package targets

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"brasa/internal/catalog"
	"brasa/internal/costing"
	"brasa/internal/errs"
	"brasa/internal/models"
	"brasa/internal/monitoring"
)

// weightPlaces and costPlaces are the persisted precisions.
const (
	weightPlaces = 3
	costPlaces   = 2
)

// Store is the slice of the repository the recalculator needs.
type Store interface {
	GetStore(ctx context.Context, id uint) (*models.Store, error)
	GetTargets(ctx context.Context, storeID uint) (*models.StoreTarget, []models.StoreProteinTarget, error)
	SaveTargets(ctx context.Context, target *models.StoreTarget, rows []models.StoreProteinTarget) error
}

// CostResolver resolves per-pound costs for a set of proteins.
type CostResolver interface {
	ResolveAll(ctx context.Context, storeID uint, proteins []string, asOf time.Time) (map[string]costing.Resolution, []errs.Warning, error)
}

// Request asks for a store's targets to be rebuilt.
type Request struct {
	StoreID             uint     `json:"-"`
	TotalWeightPerGuest float64  `json:"total_weight_per_guest"`
	ExcludedProteins    []string `json:"excluded_proteins"`
}

// Result is the persisted target table.
type Result struct {
	Target   models.StoreTarget          `json:"target"`
	Rows     []models.StoreProteinTarget `json:"rows"`
	Warnings []errs.Warning              `json:"warnings,omitempty"`
}

// Recalculator rebuilds a store's per-protein target table in full.
type Recalculator struct {
	store   Store
	catalog *catalog.Catalog
	costs   CostResolver
	now     func() time.Time
	metrics *monitoring.Metrics
}

// Option configures a Recalculator.
type Option func(*Recalculator)

// WithClock overrides the time used as the cost window end.
func WithClock(now func() time.Time) Option {
	return func(r *Recalculator) { r.now = now }
}

// WithMetrics records recalculations and cost data gaps.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Recalculator) { r.metrics = m }
}

// NewRecalculator creates a Recalculator.
func NewRecalculator(store Store, cat *catalog.Catalog, costs CostResolver, opts ...Option) *Recalculator {
	r := &Recalculator{store: store, catalog: cat, costs: costs, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recalculate renormalizes the catalog over the active proteins, scales it
// to the requested total and prices each row. Excluded proteins keep a
// zeroed row. The target total and every row are saved atomically.
func (r *Recalculator) Recalculate(ctx context.Context, req Request) (*Result, error) {
	total := req.TotalWeightPerGuest
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return nil, errs.Invalid("total_weight_per_guest", "must be a positive number")
	}
	if _, err := r.store.GetStore(ctx, req.StoreID); err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(req.ExcludedProteins))
	for _, p := range req.ExcludedProteins {
		if _, ok := r.catalog.Lookup(p); !ok {
			return nil, errs.Invalid("excluded_proteins", "unknown protein %q", p)
		}
		excluded[catalog.Normalize(p)] = true
	}

	standards := r.catalog.Standards()
	var active []catalog.Standard
	activeBase := decimal.Zero
	for _, s := range standards {
		if excluded[catalog.Normalize(s.Protein)] {
			continue
		}
		active = append(active, s)
		activeBase = activeBase.Add(decimal.NewFromFloat(s.BaseFraction))
	}
	if !activeBase.IsPositive() {
		return nil, errs.Invalid("excluded_proteins", "no active protein has a positive base fraction")
	}

	names := make([]string, len(active))
	for i, s := range active {
		names[i] = s.Protein
	}
	costs, warnings, err := r.costs.ResolveAll(ctx, req.StoreID, names, r.now())
	if err != nil {
		return nil, err
	}

	totalDec := decimal.NewFromFloat(total)
	ratios := make([]decimal.Decimal, len(active))
	for i, s := range active {
		ratios[i] = decimal.NewFromFloat(s.BaseFraction).Div(activeBase)
	}
	rounded := allocate(totalDec.Round(weightPlaces), ratios, weightPlaces)

	rows := make([]models.StoreProteinTarget, 0, len(standards))
	totalCost := decimal.Zero
	for i, s := range active {
		unitCost := decimal.NewFromFloat(costs[s.Protein].UnitCost)
		contribution := ratios[i].Mul(totalDec).Mul(unitCost)
		totalCost = totalCost.Add(contribution)
		rows = append(rows, models.StoreProteinTarget{
			StoreID:      req.StoreID,
			Protein:      s.Protein,
			WeightTarget: rounded[i].InexactFloat64(),
			CostTarget:   contribution.Round(costPlaces).InexactFloat64(),
		})
	}
	for _, s := range standards {
		if excluded[catalog.Normalize(s.Protein)] {
			rows = append(rows, models.StoreProteinTarget{StoreID: req.StoreID, Protein: s.Protein, Excluded: true})
		}
	}

	target := &models.StoreTarget{
		StoreID:             req.StoreID,
		TotalWeightPerGuest: totalDec.Round(weightPlaces).InexactFloat64(),
		TotalCostPerGuest:   totalCost.Round(costPlaces).InexactFloat64(),
	}
	if err := r.store.SaveTargets(ctx, target, rows); err != nil {
		return nil, fmt.Errorf("failed to save targets for store %d: %w", req.StoreID, err)
	}
	r.metrics.TargetsRecalculated()
	r.metrics.DataGaps(warnings)

	for _, w := range warnings {
		log.Printf("[targets] store %d: %s", req.StoreID, w)
	}
	log.Printf("[targets] store %d recalculated: %.3f lb/guest, $%.2f/guest, %d active, %d excluded",
		req.StoreID, target.TotalWeightPerGuest, target.TotalCostPerGuest, len(active), len(excluded))

	return &Result{Target: *target, Rows: rows, Warnings: warnings}, nil
}

// Get returns the persisted targets of a store.
func (r *Recalculator) Get(ctx context.Context, storeID uint) (*Result, error) {
	target, rows, err := r.store.GetTargets(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return &Result{Target: *target, Rows: rows}, nil
}

// allocate splits total across ratios at the given decimal places so the
// parts sum exactly to total. Leftover minor units go to the largest
// remainders, ties to the earlier entry.
func allocate(total decimal.Decimal, ratios []decimal.Decimal, places int32) []decimal.Decimal {
	scale := decimal.New(1, places)
	units := total.Mul(scale).Round(0)

	parts := make([]decimal.Decimal, len(ratios))
	type rem struct {
		idx  int
		frac decimal.Decimal
	}
	rems := make([]rem, len(ratios))
	assigned := decimal.Zero
	for i, ratio := range ratios {
		exact := units.Mul(ratio)
		floor := exact.Floor()
		parts[i] = floor
		assigned = assigned.Add(floor)
		rems[i] = rem{idx: i, frac: exact.Sub(floor)}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac.GreaterThan(rems[b].frac) })

	left := units.Sub(assigned).IntPart()
	for i := 0; i < len(rems) && left > 0; i++ {
		parts[rems[i].idx] = parts[rems[i].idx].Add(decimal.NewFromInt(1))
		left--
	}
	for i := range parts {
		parts[i] = parts[i].Div(scale)
	}
	return parts
}
