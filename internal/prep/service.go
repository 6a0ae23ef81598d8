package prep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"brasa/internal/catalog"
	"brasa/internal/costing"
	"brasa/internal/errs"
	"brasa/internal/models"
	"brasa/internal/monitoring"
)

// Store is the slice of the repository the prep service needs.
type Store interface {
	GetStore(ctx context.Context, id uint) (*models.Store, error)
	ListStores(ctx context.Context, companyID string) ([]models.Store, error)
	GetTargets(ctx context.Context, storeID uint) (*models.StoreTarget, []models.StoreProteinTarget, error)
	CreatePrepLock(ctx context.Context, lock *models.PrepLock) error
	GetPrepLock(ctx context.Context, storeID uint, date string) (*models.PrepLock, error)
	ListPrepLocks(ctx context.Context, storeIDs []uint, date string) ([]models.PrepLock, error)
}

// CostResolver resolves per-pound costs for a set of proteins.
type CostResolver interface {
	ResolveAll(ctx context.Context, storeID uint, proteins []string, asOf time.Time) (map[string]costing.Resolution, []errs.Warning, error)
}

// Polisher rewrites a plan's briefing message. Failures keep the original.
type Polisher interface {
	Polish(ctx context.Context, plan Plan) (string, error)
}

// Settings are the store-independent planning defaults.
type Settings struct {
	DefaultWeightPerGuest float64
	FinancialTarget       float64
	Location              *time.Location
	Forecast              Forecaster
}

// LockInfo describes the lock of a read-only plan.
type LockInfo struct {
	Reference string    `json:"reference"`
	LockedBy  string    `json:"locked_by,omitempty"`
	LockedAt  time.Time `json:"locked_at"`
}

// Service builds, adjusts and locks prep plans.
type Service struct {
	store    Store
	planner  *Planner
	catalog  *catalog.Catalog
	costs    CostResolver
	settings Settings
	now      func() time.Time
	polisher Polisher
	metrics  *monitoring.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithPolisher(p Polisher) ServiceOption {
	return func(s *Service) { s.polisher = p }
}

func WithMetrics(m *monitoring.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a prep Service.
func NewService(store Store, planner *Planner, cat *catalog.Catalog, costs CostResolver, settings Settings, opts ...ServiceOption) *Service {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	s := &Service{
		store:    store,
		planner:  planner,
		catalog:  cat,
		costs:    costs,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlanRequest asks for a store's plan. An empty Date means the store-local
// today; a nil ForecastGuests uses the weekday heuristic.
type PlanRequest struct {
	StoreID        uint
	Date           string
	ForecastGuests *int
}

// resolveDate returns the date key and its midnight in the store's zone.
func (s *Service) resolveDate(store *models.Store, date string) (string, time.Time, error) {
	loc := store.Location(s.settings.Location)
	if date == "" {
		date = models.FormatDate(s.now(), loc)
	}
	day, err := models.ParseDate(date, loc)
	if err != nil {
		return "", time.Time{}, errs.Invalid("date", "%v", err)
	}
	return date, day, nil
}

// GetPlan returns the plan for a store and date, or the locked snapshot
// marked read-only when the date is already locked.
func (s *Service) GetPlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	store, err := s.store.GetStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	date, day, err := s.resolveDate(store, req.Date)
	if err != nil {
		return nil, err
	}

	lock, err := s.store.GetPrepLock(ctx, store.ID, date)
	switch {
	case err == nil:
		return lockedPlan(lock), nil
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	plan, err := s.build(ctx, store, date, day, req.ForecastGuests)
	if err != nil {
		return nil, err
	}
	s.polish(ctx, plan)
	return plan, nil
}

func (s *Service) build(ctx context.Context, store *models.Store, date string, day time.Time, forecast *int) (*Plan, error) {
	var warnings []errs.Warning

	var guests int
	if forecast == nil {
		guests = s.settings.Forecast.Guests(day)
		warnings = append(warnings, errs.Warn(errs.WarnForecastDefault, "",
			"no forecast for %s, using %d guests for %s", date, guests, day.Weekday()))
	} else {
		guests = *forecast
	}
	if guests < 0 {
		return nil, errs.Invalid("forecast_guests", "cannot be negative")
	}

	weightPerGuest, costTarget, targets, warn, err := s.targets(ctx, store.ID)
	if err != nil {
		return nil, err
	}
	if warn != nil {
		warnings = append(warnings, *warn)
	}

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Protein
	}
	costs, costWarnings, err := s.costs.ResolveAll(ctx, store.ID, names, day)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, costWarnings...)
	for i := range targets {
		targets[i].UnitCost = costs[targets[i].Protein].UnitCost
	}

	entries, unitWarnings, err := s.planner.Build(guests, weightPerGuest, targets)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, unitWarnings...)

	plan := &Plan{
		StoreID:           store.ID,
		Date:              date,
		ForecastGuests:    guests,
		WeightPerGuest:    weightPerGuest,
		TotalWeightTarget: float64(guests) * weightPerGuest,
		CostTarget:        costTarget,
		Entries:           entries,
		Warnings:          warnings,
	}
	plan.CostPerGuest = CostPerGuest(entries, guests)
	plan.Briefing = Brief(plan.CostPerGuest, costTarget, s.planner.tolerance, nil)

	for _, w := range warnings {
		log.Printf("[prep] store %d %s: %s", store.ID, date, w)
	}
	s.metrics.DataGaps(warnings)
	s.metrics.PlanCost(plan.CostPerGuest)
	return plan, nil
}

// targets loads the store's active per-guest targets. A store that was never
// recalculated plans from the standards scaled to the default total.
func (s *Service) targets(ctx context.Context, storeID uint) (float64, float64, []Target, *errs.Warning, error) {
	target, rows, err := s.store.GetTargets(ctx, storeID)
	if errors.Is(err, errs.ErrNotFound) {
		total := s.settings.DefaultWeightPerGuest
		baseline := s.catalog.BaselineTotal()
		var targets []Target
		for _, std := range s.catalog.Standards() {
			targets = append(targets, Target{Protein: std.Protein, WeightTarget: std.BaseFraction / baseline * total})
		}
		w := errs.Warn(errs.WarnTargetsFallback, "", "store %d has no targets, using standards at %.2f lb/guest", storeID, total)
		return total, s.settings.FinancialTarget, targets, &w, nil
	}
	if err != nil {
		return 0, 0, nil, nil, err
	}

	var targets []Target
	for _, row := range rows {
		if row.Excluded {
			continue
		}
		targets = append(targets, Target{Protein: row.Protein, WeightTarget: row.WeightTarget})
	}
	costTarget := target.TotalCostPerGuest
	if costTarget <= 0 {
		costTarget = s.settings.FinancialTarget
	}
	return target.TotalWeightPerGuest, costTarget, targets, nil, nil
}

// Adjust applies session exclusions to plan.
func (s *Service) Adjust(ctx context.Context, plan Plan, excluded []string) (*Plan, error) {
	adjusted, warnings, err := s.planner.Redistribute(plan, excluded)
	if err != nil {
		return nil, err
	}
	adjusted.Warnings = mergeWarnings(plan.Warnings, warnings)
	s.polish(ctx, &adjusted)
	return &adjusted, nil
}

func mergeWarnings(a, b []errs.Warning) []errs.Warning {
	seen := make(map[errs.Warning]bool, len(a)+len(b))
	var out []errs.Warning
	for _, list := range [][]errs.Warning{a, b} {
		for _, w := range list {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	return out
}

func (s *Service) polish(ctx context.Context, plan *Plan) {
	if s.polisher == nil {
		return
	}
	msg, err := s.polisher.Polish(ctx, *plan)
	if err != nil {
		log.Printf("[prep] briefing rewrite failed, keeping rule-based text: %v", err)
		return
	}
	if msg = strings.TrimSpace(msg); msg != "" {
		plan.Briefing.Message = msg
	}
}

// LockRequest finalizes a plan. When Plan is empty the server builds it from
// ForecastGuests and Excluded.
type LockRequest struct {
	StoreID        uint     `json:"-"`
	Date           string   `json:"date"`
	ForecastGuests *int     `json:"forecast_guests"`
	Excluded       []string `json:"excluded"`
	Plan           []Entry  `json:"plan"`
	LockedBy       string   `json:"locked_by"`
}

// LockPlan persists the final plan for a store and date. A second lock of
// the same key fails with a ConflictError and leaves the first unchanged.
// Without a forecast the weekday default is used; a client plan must carry
// its forecast.
func (s *Service) LockPlan(ctx context.Context, req LockRequest) (*models.PrepLock, error) {
	store, err := s.store.GetStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	date, day, err := s.resolveDate(store, req.Date)
	if err != nil {
		return nil, err
	}
	if req.ForecastGuests != nil && *req.ForecastGuests < 0 {
		return nil, errs.Invalid("forecast_guests", "cannot be negative")
	}
	if req.ForecastGuests == nil && len(req.Plan) > 0 {
		return nil, errs.Invalid("forecast_guests", "is required with a plan")
	}

	if _, err := s.store.GetPrepLock(ctx, store.ID, date); err == nil {
		s.metrics.Conflict("prep_lock")
		return nil, &errs.ConflictError{Resource: "prep lock", Key: fmt.Sprintf("%d/%s", store.ID, date)}
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	entries := req.Plan
	var guests int
	if req.ForecastGuests != nil {
		guests = *req.ForecastGuests
	}
	if len(entries) == 0 {
		plan, err := s.build(ctx, store, date, day, req.ForecastGuests)
		if err != nil {
			return nil, err
		}
		guests = plan.ForecastGuests
		if len(req.Excluded) > 0 {
			adjusted, _, err := s.planner.Redistribute(*plan, req.Excluded)
			if err != nil {
				return nil, err
			}
			plan = &adjusted
		}
		entries = plan.Entries
	}
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	snapshot := make(models.PlanItems, len(entries))
	var total float64
	for i, e := range entries {
		snapshot[i] = models.PlanItem{
			Protein:           e.Protein,
			UnitName:          e.UnitName,
			UnitWeight:        e.UnitWeight,
			MixPercentage:     e.MixPercentage,
			RecommendedWeight: e.RecommendedWeight,
			RecommendedUnits:  e.RecommendedUnits,
			Excluded:          e.Excluded,
		}
		total += e.RecommendedWeight
	}

	lock := &models.PrepLock{
		Reference:      uuid.NewString(),
		StoreID:        store.ID,
		Date:           date,
		ForecastGuests: guests,
		TotalWeight:    total,
		CostPerGuest:   CostPerGuest(entries, guests),
		Snapshot:       snapshot,
		LockedBy:       req.LockedBy,
		LockedAt:       s.now(),
	}
	if err := models.ValidatePrepLock(lock); err != nil {
		return nil, errs.Invalid("plan", "%v", err)
	}
	if err := s.store.CreatePrepLock(ctx, lock); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			s.metrics.Conflict("prep_lock")
		}
		return nil, err
	}
	log.Printf("[prep] store %d locked %s (%s): %d guests, %.1f lb", store.ID, date, lock.Reference, lock.ForecastGuests, total)
	return lock, nil
}

func validateEntries(entries []Entry) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		key := catalog.Normalize(e.Protein)
		if key == "" {
			return errs.Invalid("plan", "entry with empty protein")
		}
		if seen[key] {
			return errs.Invalid("plan", "duplicate protein %q", e.Protein)
		}
		seen[key] = true
		if math.IsNaN(e.RecommendedWeight) || e.RecommendedWeight < 0 || e.RecommendedUnits < 0 {
			return errs.Invalid("plan", "%s has a negative recommendation", e.Protein)
		}
		if float64(e.RecommendedUnits)*e.UnitWeight < e.RecommendedWeight-1e-9 {
			return errs.Invalid("plan", "%s units do not cover %.2f lb", e.Protein, e.RecommendedWeight)
		}
	}
	return nil
}

func lockedPlan(lock *models.PrepLock) *Plan {
	plan := &Plan{
		StoreID:           lock.StoreID,
		Date:              lock.Date,
		ForecastGuests:    lock.ForecastGuests,
		TotalWeightTarget: lock.TotalWeight,
		CostPerGuest:      lock.CostPerGuest,
		ReadOnly:          true,
		Lock:              &LockInfo{Reference: lock.Reference, LockedBy: lock.LockedBy, LockedAt: lock.LockedAt},
		Entries:           make([]Entry, len(lock.Snapshot)),
	}
	if lock.ForecastGuests > 0 {
		plan.WeightPerGuest = lock.TotalWeight / float64(lock.ForecastGuests)
	}
	for i, item := range lock.Snapshot {
		plan.Entries[i] = Entry{
			Protein:           item.Protein,
			UnitName:          item.UnitName,
			UnitWeight:        item.UnitWeight,
			BaseMix:           item.MixPercentage / 100,
			MixPercentage:     item.MixPercentage,
			RecommendedWeight: item.RecommendedWeight,
			RecommendedUnits:  item.RecommendedUnits,
			Excluded:          item.Excluded,
		}
		if item.Excluded {
			plan.Excluded = append(plan.Excluded, item.Protein)
		}
	}
	return plan
}

// StoreStatus is one store's prep state for a date.
type StoreStatus struct {
	StoreID        uint              `json:"store_id"`
	Name           string            `json:"name"`
	Status         models.PrepStatus `json:"status"`
	ForecastGuests int               `json:"forecast_guests,omitempty"`
	TotalWeight    float64           `json:"total_weight,omitempty"`
	LockedBy       string            `json:"locked_by,omitempty"`
	LockedAt       *time.Time        `json:"locked_at,omitempty"`
}

// NetworkStatus summarizes prep locks across a company.
type NetworkStatus struct {
	CompanyID string        `json:"company_id"`
	Date      string        `json:"date"`
	Submitted int           `json:"submitted"`
	Total     int           `json:"total"`
	Stores    []StoreStatus `json:"stores"`
}

// NetworkStatus reports which stores of a company have locked their plan
// for date. An empty date means today in the default zone.
func (s *Service) NetworkStatus(ctx context.Context, companyID, date string) (*NetworkStatus, error) {
	if date == "" {
		date = models.FormatDate(s.now(), s.settings.Location)
	} else if _, err := models.ParseDate(date, nil); err != nil {
		return nil, errs.Invalid("date", "%v", err)
	}

	stores, err := s.store.ListStores(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("company %q: %w", companyID, errs.ErrNotFound)
	}

	ids := make([]uint, len(stores))
	for i, st := range stores {
		ids[i] = st.ID
	}
	locks, err := s.store.ListPrepLocks(ctx, ids, date)
	if err != nil {
		return nil, err
	}
	byStore := make(map[uint]models.PrepLock, len(locks))
	for _, l := range locks {
		byStore[l.StoreID] = l
	}

	status := &NetworkStatus{CompanyID: companyID, Date: date, Total: len(stores)}
	for _, st := range stores {
		row := StoreStatus{StoreID: st.ID, Name: st.Name, Status: models.PrepStatusPending}
		if l, ok := byStore[st.ID]; ok {
			lockedAt := l.LockedAt
			row.Status = models.PrepStatusLocked
			row.ForecastGuests = l.ForecastGuests
			row.TotalWeight = l.TotalWeight
			row.LockedBy = l.LockedBy
			row.LockedAt = &lockedAt
			status.Submitted++
		}
		status.Stores = append(status.Stores, row)
	}
	return status, nil
}
