package costing

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"brasa/internal/catalog"
	"brasa/internal/config"
	"brasa/internal/errs"
	"brasa/internal/models"
)

// InvoiceStore is the slice of the repository the resolver needs.
type InvoiceStore interface {
	AddInvoice(ctx context.Context, rec *models.InvoiceRecord) error
	ListInvoices(ctx context.Context, storeID uint, from, to string) ([]models.InvoiceRecord, error)
}

// Source tells where a resolved cost came from.
type Source string

const (
	SourceInvoices Source = "invoices"
	SourceFallback Source = "fallback"
	SourceDefault  Source = "default"
)

// Resolution is the unit cost of a protein per pound.
type Resolution struct {
	Protein     string  `json:"protein"`
	UnitCost    float64 `json:"unit_cost"`
	Source      Source  `json:"source"`
	TotalWeight float64 `json:"total_weight"`
	TotalCost   float64 `json:"total_cost"`
}

// Resolver computes trailing weighted-average costs from invoice history.
type Resolver struct {
	store        InvoiceStore
	fallback     map[string]float64
	defaultCost  float64
	lookbackDays int
}

// NewResolver creates a resolver. Fallback keys are matched case-insensitively.
func NewResolver(store InvoiceStore, cfg config.CostConfig) *Resolver {
	fallback := make(map[string]float64, len(cfg.Fallback))
	for k, v := range cfg.Fallback {
		fallback[catalog.Normalize(k)] = v
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = 90
	}
	return &Resolver{
		store:        store,
		fallback:     fallback,
		defaultCost:  cfg.Default,
		lookbackDays: lookback,
	}
}

// LookbackDays is the length of the trailing window.
func (r *Resolver) LookbackDays() int {
	return r.lookbackDays
}

type sample struct {
	weight decimal.Decimal
	cost   decimal.Decimal
}

func (r *Resolver) window(ctx context.Context, storeID uint, asOf time.Time) (map[string]*sample, error) {
	// lookbackDays calendar days ending on asOf, both ends inclusive.
	from := asOf.AddDate(0, 0, -(r.lookbackDays - 1)).Format(models.DateLayout)
	to := asOf.Format(models.DateLayout)
	recs, err := r.store.ListInvoices(ctx, storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices for store %d: %w", storeID, err)
	}
	samples := make(map[string]*sample)
	for _, rec := range recs {
		if rec.Quantity <= 0 {
			continue
		}
		key := catalog.Normalize(rec.Protein)
		s, ok := samples[key]
		if !ok {
			s = &sample{}
			samples[key] = s
		}
		s.weight = s.weight.Add(decimal.NewFromFloat(rec.Quantity))
		s.cost = s.cost.Add(decimal.NewFromFloat(rec.CostTotal))
	}
	return samples, nil
}

func (r *Resolver) resolve(protein string, samples map[string]*sample) (Resolution, *errs.Warning) {
	key := catalog.Normalize(protein)
	if s, ok := samples[key]; ok && s.weight.IsPositive() {
		return Resolution{
			Protein:     protein,
			UnitCost:    s.cost.Div(s.weight).InexactFloat64(),
			Source:      SourceInvoices,
			TotalWeight: s.weight.InexactFloat64(),
			TotalCost:   s.cost.InexactFloat64(),
		}, nil
	}
	if cost, ok := r.fallback[key]; ok {
		w := errs.Warn(errs.WarnCostFallback, protein, "no invoices in the last %d days, using fallback $%.2f/lb", r.lookbackDays, cost)
		return Resolution{Protein: protein, UnitCost: cost, Source: SourceFallback}, &w
	}
	w := errs.Warn(errs.WarnCostDefault, protein, "no invoices and no fallback cost, using default $%.2f/lb", r.defaultCost)
	return Resolution{Protein: protein, UnitCost: r.defaultCost, Source: SourceDefault}, &w
}

// Resolve returns the cost per pound of protein for a store as of asOf.
func (r *Resolver) Resolve(ctx context.Context, storeID uint, protein string, asOf time.Time) (Resolution, *errs.Warning, error) {
	samples, err := r.window(ctx, storeID, asOf)
	if err != nil {
		return Resolution{}, nil, err
	}
	res, warn := r.resolve(protein, samples)
	return res, warn, nil
}

// ResolveAll resolves several proteins against one invoice query.
func (r *Resolver) ResolveAll(ctx context.Context, storeID uint, proteins []string, asOf time.Time) (map[string]Resolution, []errs.Warning, error) {
	samples, err := r.window(ctx, storeID, asOf)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]Resolution, len(proteins))
	var warnings []errs.Warning
	for _, p := range proteins {
		res, warn := r.resolve(p, samples)
		out[p] = res
		if warn != nil {
			warnings = append(warnings, *warn)
		}
	}
	return out, warnings, nil
}

// InvoiceInput is a delivery to record. CostTotal wins over PricePerLb
// when both are set.
type InvoiceInput struct {
	StoreID    uint    `json:"-"`
	Protein    string  `json:"protein"`
	Quantity   float64 `json:"quantity"`
	PricePerLb float64 `json:"price_per_lb"`
	CostTotal  float64 `json:"cost_total"`
	Date       string  `json:"date"`
}

// AddInvoice validates and stores a delivery.
func (r *Resolver) AddInvoice(ctx context.Context, in InvoiceInput) (*models.InvoiceRecord, error) {
	if strings.TrimSpace(in.Protein) == "" {
		return nil, errs.Invalid("protein", "is required")
	}
	if in.Quantity <= 0 {
		return nil, errs.Invalid("quantity", "must be positive")
	}
	if in.PricePerLb < 0 || in.CostTotal < 0 {
		return nil, errs.Invalid("cost", "cannot be negative")
	}
	if _, err := models.ParseDate(in.Date, nil); err != nil {
		return nil, errs.Invalid("date", "%v", err)
	}

	total := decimal.NewFromFloat(in.CostTotal)
	if in.CostTotal == 0 {
		total = decimal.NewFromFloat(in.Quantity).Mul(decimal.NewFromFloat(in.PricePerLb))
	}
	rec := &models.InvoiceRecord{
		StoreID:   in.StoreID,
		Date:      in.Date,
		Protein:   strings.TrimSpace(in.Protein),
		Quantity:  in.Quantity,
		CostTotal: total.Round(2).InexactFloat64(),
		Reference: uuid.NewString(),
	}
	if err := r.store.AddInvoice(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to add invoice: %w", err)
	}
	log.Printf("[costing] store %d invoice %s: %.2f lb %s $%.2f", rec.StoreID, rec.Reference, rec.Quantity, rec.Protein, rec.CostTotal)
	return rec, nil
}

// Average is a protein's weighted-average cost over a date range.
type Average struct {
	Protein         string  `json:"protein"`
	WeightedAverage float64 `json:"weighted_average"`
	TotalWeight     float64 `json:"total_weight"`
	TotalCost       float64 `json:"total_cost"`
	Deliveries      int     `json:"deliveries"`
}

// Averages reports the weighted-average cost of every invoiced protein of a
// store between from and to inclusive, sorted by protein.
func (r *Resolver) Averages(ctx context.Context, storeID uint, from, to string) ([]Average, error) {
	if _, err := models.ParseDate(from, nil); err != nil {
		return nil, errs.Invalid("from", "%v", err)
	}
	if _, err := models.ParseDate(to, nil); err != nil {
		return nil, errs.Invalid("to", "%v", err)
	}
	if to < from {
		return nil, errs.Invalid("to", "is before from")
	}

	recs, err := r.store.ListInvoices(ctx, storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices for store %d: %w", storeID, err)
	}

	type acc struct {
		name       string
		weight     decimal.Decimal
		cost       decimal.Decimal
		deliveries int
	}
	byKey := make(map[string]*acc)
	for _, rec := range recs {
		key := catalog.Normalize(rec.Protein)
		a, ok := byKey[key]
		if !ok {
			a = &acc{name: rec.Protein}
			byKey[key] = a
		}
		a.weight = a.weight.Add(decimal.NewFromFloat(rec.Quantity))
		a.cost = a.cost.Add(decimal.NewFromFloat(rec.CostTotal))
		a.deliveries++
	}

	out := make([]Average, 0, len(byKey))
	for _, a := range byKey {
		avg := Average{
			Protein:     a.name,
			TotalWeight: a.weight.Round(3).InexactFloat64(),
			TotalCost:   a.cost.Round(2).InexactFloat64(),
			Deliveries:  a.deliveries,
		}
		if a.weight.IsPositive() {
			avg.WeightedAverage = a.cost.Div(a.weight).Round(2).InexactFloat64()
		}
		out = append(out, avg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Protein < out[j].Protein })
	return out, nil
}
