package variance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"brasa/internal/catalog"
	"brasa/internal/costing"
	"brasa/internal/errs"
	"brasa/internal/models"
	"brasa/internal/monitoring"
)

// Store is the slice of the repository the calculator needs.
type Store interface {
	GetStore(ctx context.Context, id uint) (*models.Store, error)
	ListStores(ctx context.Context, companyID string) ([]models.Store, error)
	GetTargets(ctx context.Context, storeID uint) (*models.StoreTarget, []models.StoreProteinTarget, error)
	AddConsumption(ctx context.Context, rec *models.ConsumptionRecord) error
	ListConsumption(ctx context.Context, storeID uint, from, to string) ([]models.ConsumptionRecord, error)
	SaveGuests(ctx context.Context, rec *models.GuestCount) error
	ListGuests(ctx context.Context, storeID uint, from, to string) ([]models.GuestCount, error)
}

// CostResolver resolves per-pound costs for a set of proteins.
type CostResolver interface {
	ResolveAll(ctx context.Context, storeID uint, proteins []string, asOf time.Time) (map[string]costing.Resolution, []errs.Warning, error)
}

// Settings are the fallbacks and limits of the calculator.
type Settings struct {
	DefaultWeightPerGuest float64
	FinancialTarget       float64
	TopN                  int
}

// Calculator compares actual protein usage with target usage.
type Calculator struct {
	store    Store
	catalog  *catalog.Catalog
	costs    CostResolver
	settings Settings
	metrics  *monitoring.Metrics
}

// NewCalculator creates a Calculator. metrics may be nil.
func NewCalculator(store Store, cat *catalog.Catalog, costs CostResolver, settings Settings, metrics *monitoring.Metrics) *Calculator {
	if settings.TopN <= 0 {
		settings.TopN = 10
	}
	return &Calculator{store: store, catalog: cat, costs: costs, settings: settings, metrics: metrics}
}

// GroupVariance is actual against ideal usage of one protein group.
type GroupVariance struct {
	Group            string   `json:"group"`
	Members          []string `json:"members"`
	DinnerOnly       bool     `json:"dinner_only"`
	ApplicableGuests int      `json:"applicable_guests"`
	WeightTarget     float64  `json:"weight_target"`
	Ideal            float64  `json:"ideal"`
	Actual           float64  `json:"actual"`
	Variance         float64  `json:"variance"`
	ActualCost       float64  `json:"actual_cost"`
}

// StoreVariance is a store's usage and financial impact over a period.
// FinancialImpact is negative for savings and positive for overspend.
type StoreVariance struct {
	StoreID            uint            `json:"store_id"`
	Name               string          `json:"name"`
	From               string          `json:"from"`
	To                 string          `json:"to"`
	Guests             int             `json:"guests"`
	LunchGuests        int             `json:"lunch_guests"`
	DinnerGuests       int             `json:"dinner_guests"`
	ActualWeight       float64         `json:"actual_weight"`
	ActualCost         float64         `json:"actual_cost"`
	ActualLbsPerGuest  float64         `json:"actual_lbs_per_guest"`
	TargetLbsPerGuest  float64         `json:"target_lbs_per_guest"`
	LbsGuestVariance   float64         `json:"lbs_guest_variance"`
	ActualCostPerGuest float64         `json:"actual_cost_per_guest"`
	TargetCostPerGuest float64         `json:"target_cost_per_guest"`
	CostGuestVariance  float64         `json:"cost_guest_variance"`
	FinancialImpact    float64         `json:"financial_impact"`
	InsufficientData   bool            `json:"insufficient_data"`
	Groups             []GroupVariance `json:"groups"`
	Warnings           []errs.Warning  `json:"warnings,omitempty"`
}

// StoreImpact is a store's line in the network ranking.
type StoreImpact struct {
	StoreID           uint    `json:"store_id"`
	Name              string  `json:"name"`
	Guests            int     `json:"guests"`
	LbsGuestVariance  float64 `json:"lbs_guest_variance"`
	CostGuestVariance float64 `json:"cost_guest_variance"`
	FinancialImpact   float64 `json:"financial_impact"`
	InsufficientData  bool    `json:"insufficient_data"`
}

// NetworkImpact aggregates store impacts across a company.
type NetworkImpact struct {
	CompanyID        string        `json:"company_id"`
	From             string        `json:"from"`
	To               string        `json:"to"`
	TotalImpact      float64       `json:"total_impact"`
	Stores           []StoreImpact `json:"stores"`
	TopSavers        []StoreImpact `json:"top_savers"`
	TopSpenders      []StoreImpact `json:"top_spenders"`
	InsufficientData []uint        `json:"insufficient_data"`
}

func validRange(from, to string) (time.Time, error) {
	if _, err := models.ParseDate(from, nil); err != nil {
		return time.Time{}, errs.Invalid("from", "%v", err)
	}
	end, err := models.ParseDate(to, nil)
	if err != nil {
		return time.Time{}, errs.Invalid("to", "%v", err)
	}
	if to < from {
		return time.Time{}, errs.Invalid("to", "is before from")
	}
	return end, nil
}

type storeTargets struct {
	weightPerGuest float64
	costPerGuest   float64
	byProtein      map[string]float64
}

func (c *Calculator) loadTargets(ctx context.Context, storeID uint) (storeTargets, *errs.Warning, error) {
	t := storeTargets{byProtein: make(map[string]float64)}
	target, rows, err := c.store.GetTargets(ctx, storeID)
	if errors.Is(err, errs.ErrNotFound) {
		t.weightPerGuest = c.settings.DefaultWeightPerGuest
		t.costPerGuest = c.settings.FinancialTarget
		baseline := c.catalog.BaselineTotal()
		for _, s := range c.catalog.Standards() {
			t.byProtein[catalog.Normalize(s.Protein)] = s.BaseFraction / baseline * t.weightPerGuest
		}
		w := errs.Warn(errs.WarnTargetsFallback, "", "store %d has no targets, using standards", storeID)
		return t, &w, nil
	}
	if err != nil {
		return t, nil, err
	}
	t.weightPerGuest = target.TotalWeightPerGuest
	t.costPerGuest = target.TotalCostPerGuest
	if t.costPerGuest <= 0 {
		t.costPerGuest = c.settings.FinancialTarget
	}
	for _, row := range rows {
		t.byProtein[catalog.Normalize(row.Protein)] = row.WeightTarget
	}
	return t, nil, nil
}

// StoreVariance computes a store's variance between from and to inclusive.
func (c *Calculator) StoreVariance(ctx context.Context, storeID uint, from, to string) (*StoreVariance, error) {
	end, err := validRange(from, to)
	if err != nil {
		return nil, err
	}
	store, err := c.store.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return c.storeVariance(ctx, store, from, to, end)
}

func (c *Calculator) storeVariance(ctx context.Context, store *models.Store, from, to string, end time.Time) (*StoreVariance, error) {
	out := &StoreVariance{StoreID: store.ID, Name: store.Name, From: from, To: to}

	targets, warn, err := c.loadTargets(ctx, store.ID)
	if err != nil {
		return nil, err
	}
	if warn != nil {
		out.Warnings = append(out.Warnings, *warn)
	}
	out.TargetLbsPerGuest = targets.weightPerGuest
	out.TargetCostPerGuest = targets.costPerGuest

	guests, err := c.store.ListGuests(ctx, store.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load guests for store %d: %w", store.ID, err)
	}
	for _, g := range guests {
		out.LunchGuests += g.LunchGuests
		out.DinnerGuests += g.DinnerGuests
	}
	out.Guests = out.LunchGuests + out.DinnerGuests

	records, err := c.store.ListConsumption(ctx, store.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumption for store %d: %w", store.ID, err)
	}
	actualByProtein := make(map[string]float64)
	var names []string
	spelling := make(map[string]string)
	for _, rec := range records {
		key := catalog.Normalize(rec.Protein)
		if _, seen := spelling[key]; !seen {
			spelling[key] = rec.Protein
			names = append(names, rec.Protein)
		}
		actualByProtein[key] += rec.Weight
	}

	costs, costWarnings, err := c.costs.ResolveAll(ctx, store.ID, names, end)
	if err != nil {
		return nil, err
	}
	out.Warnings = append(out.Warnings, costWarnings...)

	groups := make(map[string]*GroupVariance)
	var order []string
	group := func(protein string) *GroupVariance {
		g := c.catalog.GroupOf(protein)
		gv, ok := groups[g.Key]
		if !ok {
			gv = &GroupVariance{Group: g.Key, Members: g.Members, DinnerOnly: g.DinnerOnly}
			for _, m := range g.Members {
				gv.WeightTarget += targets.byProtein[catalog.Normalize(m)]
			}
			gv.ApplicableGuests = out.Guests
			if g.DinnerOnly {
				gv.ApplicableGuests = out.DinnerGuests
			}
			gv.Ideal = float64(gv.ApplicableGuests) * gv.WeightTarget
			groups[g.Key] = gv
			order = append(order, g.Key)
		}
		return gv
	}

	for _, g := range c.catalog.Groups() {
		group(g.Members[0])
	}

	actualWeight := decimal.Zero
	actualCost := decimal.Zero
	for _, name := range names {
		key := catalog.Normalize(name)
		weight := decimal.NewFromFloat(actualByProtein[key])
		cost := weight.Mul(decimal.NewFromFloat(costs[name].UnitCost))

		gv := group(name)
		gv.Actual += actualByProtein[key]
		gv.ActualCost += cost.InexactFloat64()
		actualWeight = actualWeight.Add(weight)
		actualCost = actualCost.Add(cost)
	}

	for _, key := range order {
		gv := groups[key]
		gv.Variance = round(gv.Actual-gv.Ideal, 3)
		gv.Actual = round(gv.Actual, 3)
		gv.Ideal = round(gv.Ideal, 3)
		gv.ActualCost = round(gv.ActualCost, 2)
		out.Groups = append(out.Groups, *gv)
	}

	out.ActualWeight = actualWeight.Round(3).InexactFloat64()
	out.ActualCost = actualCost.Round(2).InexactFloat64()

	if out.Guests == 0 {
		out.InsufficientData = true
		log.Printf("[variance] store %d has no guests between %s and %s", store.ID, from, to)
	} else {
		g := decimal.NewFromInt(int64(out.Guests))
		lbsPerGuest := actualWeight.Div(g)
		costPerGuest := actualCost.Div(g)
		costVariance := costPerGuest.Sub(decimal.NewFromFloat(out.TargetCostPerGuest))

		out.ActualLbsPerGuest = lbsPerGuest.Round(3).InexactFloat64()
		out.ActualCostPerGuest = costPerGuest.Round(2).InexactFloat64()
		out.LbsGuestVariance = lbsPerGuest.Sub(decimal.NewFromFloat(out.TargetLbsPerGuest)).Round(3).InexactFloat64()
		out.CostGuestVariance = costVariance.Round(2).InexactFloat64()
		out.FinancialImpact = costVariance.Mul(g).Round(2).InexactFloat64()
	}

	c.metrics.DataGaps(out.Warnings)
	return out, nil
}

// NetworkVariance aggregates every store of a company. Stores with no guests
// are reported as insufficient data and left out of the rankings.
func (c *Calculator) NetworkVariance(ctx context.Context, companyID, from, to string) (*NetworkImpact, error) {
	end, err := validRange(from, to)
	if err != nil {
		return nil, err
	}
	stores, err := c.store.ListStores(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("company %q: %w", companyID, errs.ErrNotFound)
	}

	out := &NetworkImpact{
		CompanyID:        companyID,
		From:             from,
		To:               to,
		Stores:           []StoreImpact{},
		TopSavers:        []StoreImpact{},
		TopSpenders:      []StoreImpact{},
		InsufficientData: []uint{},
	}
	total := decimal.Zero
	for i := range stores {
		sv, err := c.storeVariance(ctx, &stores[i], from, to, end)
		if err != nil {
			return nil, err
		}
		impact := StoreImpact{
			StoreID:           sv.StoreID,
			Name:              sv.Name,
			Guests:            sv.Guests,
			LbsGuestVariance:  sv.LbsGuestVariance,
			CostGuestVariance: sv.CostGuestVariance,
			FinancialImpact:   sv.FinancialImpact,
			InsufficientData:  sv.InsufficientData,
		}
		out.Stores = append(out.Stores, impact)
		if sv.InsufficientData {
			out.InsufficientData = append(out.InsufficientData, sv.StoreID)
			continue
		}
		total = total.Add(decimal.NewFromFloat(sv.FinancialImpact))
		switch {
		case sv.FinancialImpact < 0:
			out.TopSavers = append(out.TopSavers, impact)
		case sv.FinancialImpact > 0:
			out.TopSpenders = append(out.TopSpenders, impact)
		}
	}

	sort.SliceStable(out.TopSavers, func(i, j int) bool {
		return out.TopSavers[i].FinancialImpact < out.TopSavers[j].FinancialImpact
	})
	sort.SliceStable(out.TopSpenders, func(i, j int) bool {
		return out.TopSpenders[i].FinancialImpact > out.TopSpenders[j].FinancialImpact
	})
	if len(out.TopSavers) > c.settings.TopN {
		out.TopSavers = out.TopSavers[:c.settings.TopN]
	}
	if len(out.TopSpenders) > c.settings.TopN {
		out.TopSpenders = out.TopSpenders[:c.settings.TopN]
	}

	out.TotalImpact = total.Round(2).InexactFloat64()
	c.metrics.NetworkImpact(companyID, out.TotalImpact)
	log.Printf("[variance] company %s %s..%s: %d stores, impact $%.2f", companyID, from, to, len(stores), out.TotalImpact)
	return out, nil
}

// ConsumptionInput is a protein weight used by a store on a date.
type ConsumptionInput struct {
	StoreID uint    `json:"-"`
	Date    string  `json:"date"`
	Protein string  `json:"protein"`
	Weight  float64 `json:"weight"`
}

// RecordConsumption stores actual usage.
func (c *Calculator) RecordConsumption(ctx context.Context, in ConsumptionInput) (*models.ConsumptionRecord, error) {
	if strings.TrimSpace(in.Protein) == "" {
		return nil, errs.Invalid("protein", "is required")
	}
	if in.Weight < 0 {
		return nil, errs.Invalid("weight", "cannot be negative")
	}
	if _, err := models.ParseDate(in.Date, nil); err != nil {
		return nil, errs.Invalid("date", "%v", err)
	}
	if _, err := c.store.GetStore(ctx, in.StoreID); err != nil {
		return nil, err
	}
	protein := strings.TrimSpace(in.Protein)
	if canonical, ok := c.catalog.Canonical(protein); ok {
		protein = canonical
	}
	rec := &models.ConsumptionRecord{StoreID: in.StoreID, Date: in.Date, Protein: protein, Weight: in.Weight}
	if err := c.store.AddConsumption(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record consumption: %w", err)
	}
	return rec, nil
}

// GuestInput is a store's guest count for a date.
type GuestInput struct {
	StoreID      uint   `json:"-"`
	Date         string `json:"date"`
	LunchGuests  int    `json:"lunch_guests"`
	DinnerGuests int    `json:"dinner_guests"`
}

// RecordGuests stores or replaces the guest count for a date.
func (c *Calculator) RecordGuests(ctx context.Context, in GuestInput) (*models.GuestCount, error) {
	if in.LunchGuests < 0 || in.DinnerGuests < 0 {
		return nil, errs.Invalid("guests", "cannot be negative")
	}
	if _, err := models.ParseDate(in.Date, nil); err != nil {
		return nil, errs.Invalid("date", "%v", err)
	}
	if _, err := c.store.GetStore(ctx, in.StoreID); err != nil {
		return nil, err
	}
	rec := &models.GuestCount{StoreID: in.StoreID, Date: in.Date, LunchGuests: in.LunchGuests, DinnerGuests: in.DinnerGuests}
	if err := c.store.SaveGuests(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record guests: %w", err)
	}
	return rec, nil
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
