package compliance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"brasa/internal/errs"
	"brasa/internal/models"
)

// Level grades a store's waste for a day.
type Level string

const (
	LevelMissing Level = "MISSING"
	LevelGreen   Level = "GREEN"
	LevelYellow  Level = "YELLOW"
	LevelRed     Level = "RED"
)

// maxHistoryDays bounds a history request.
const maxHistoryDays = 366

// ReasonWeight is the waste attributed to one reason.
type ReasonWeight struct {
	Reason string  `json:"reason"`
	Weight float64 `json:"weight"`
}

// Analysis compares a day's waste to the projected prep weight.
type Analysis struct {
	TotalWaste     float64        `json:"total_waste"`
	VillainWaste   float64        `json:"villain_waste"`
	ForecastGuests int            `json:"forecast_guests"`
	WeightPerGuest float64        `json:"weight_per_guest"`
	Projection     float64        `json:"projection"`
	Percent        float64        `json:"percent"`
	Critical       bool           `json:"critical"`
	Level          Level          `json:"level"`
	Breakdown      []ReasonWeight `json:"breakdown"`
}

// analyze grades entry, which may be nil when nothing was logged. The
// forecast is the locked prep forecast when one exists.
func (s *Service) analyze(ctx context.Context, storeID uint, date string, entry *models.WasteLogEntry) (Analysis, error) {
	a := Analysis{
		ForecastGuests: s.settings.AnalysisForecast,
		WeightPerGuest: s.settings.DefaultWeightPerGuest,
		Level:          LevelMissing,
		Breakdown:      []ReasonWeight{},
	}

	lock, err := s.store.GetPrepLock(ctx, storeID, date)
	switch {
	case err == nil:
		a.ForecastGuests = lock.ForecastGuests
	case !errors.Is(err, errs.ErrNotFound):
		return a, err
	}
	target, _, err := s.store.GetTargets(ctx, storeID)
	switch {
	case err == nil && target.TotalWeightPerGuest > 0:
		a.WeightPerGuest = target.TotalWeightPerGuest
	case err != nil && !errors.Is(err, errs.ErrNotFound):
		return a, err
	}

	projection := decimal.NewFromInt(int64(a.ForecastGuests)).Mul(decimal.NewFromFloat(a.WeightPerGuest))
	if projection.LessThan(decimal.NewFromInt(1)) {
		projection = decimal.NewFromInt(100)
	}
	a.Projection = projection.Round(3).InexactFloat64()
	if entry == nil {
		return a, nil
	}

	total := decimal.Zero
	villains := decimal.Zero
	byReason := make(map[string]decimal.Decimal)
	for _, item := range entry.Items {
		w := decimal.NewFromFloat(item.Weight)
		total = total.Add(w)
		if item.Villain {
			villains = villains.Add(w)
		}
		reason := item.Reason
		if reason == "" {
			reason = "unspecified"
		}
		byReason[reason] = byReason[reason].Add(w)
	}
	for reason, w := range byReason {
		a.Breakdown = append(a.Breakdown, ReasonWeight{Reason: reason, Weight: w.Round(3).InexactFloat64()})
	}
	sort.Slice(a.Breakdown, func(i, j int) bool {
		if a.Breakdown[i].Weight != a.Breakdown[j].Weight {
			return a.Breakdown[i].Weight > a.Breakdown[j].Weight
		}
		return a.Breakdown[i].Reason < a.Breakdown[j].Reason
	})

	a.TotalWaste = total.Round(3).InexactFloat64()
	a.VillainWaste = villains.Round(3).InexactFloat64()
	a.Percent = total.Div(projection).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	a.Critical = a.Percent > s.settings.CriticalPercent
	a.Level = s.level(a.Percent)
	return a, nil
}

func (s *Service) level(percent float64) Level {
	switch {
	case percent <= s.settings.WarningPercent:
		return LevelGreen
	case percent <= s.settings.CriticalPercent:
		return LevelYellow
	}
	return LevelRed
}

// StoreWaste is a store's line in the network waste status.
type StoreWaste struct {
	StoreID    uint    `json:"store_id"`
	Name       string  `json:"name"`
	Date       string  `json:"date"`
	Level      Level   `json:"level"`
	TotalWaste float64 `json:"total_waste"`
	Percent    float64 `json:"percent"`
}

// NetworkWaste is today's waste grade of every store of a company.
type NetworkWaste struct {
	CompanyID      string       `json:"company_id"`
	Reporting      int          `json:"reporting"`
	Total          int          `json:"total"`
	AveragePercent float64      `json:"average_percent"`
	Stores         []StoreWaste `json:"stores"`
}

// NetworkWaste grades each store's waste for its own local today. The
// average covers reporting stores only.
func (s *Service) NetworkWaste(ctx context.Context, companyID string) (*NetworkWaste, error) {
	stores, err := s.store.ListStores(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("company %q: %w", companyID, errs.ErrNotFound)
	}

	ids := make([]uint, len(stores))
	days := make([]string, len(stores))
	from, to := "", ""
	for i := range stores {
		ids[i] = stores[i].ID
		_, days[i] = s.localNow(&stores[i])
		if from == "" || days[i] < from {
			from = days[i]
		}
		if days[i] > to {
			to = days[i]
		}
	}
	logs, err := s.store.ListWasteLogs(ctx, ids, from, to)
	if err != nil {
		return nil, err
	}
	type key struct {
		store uint
		date  string
	}
	byKey := make(map[key]*models.WasteLogEntry, len(logs))
	for i := range logs {
		byKey[key{logs[i].StoreID, logs[i].Date}] = &logs[i]
	}

	out := &NetworkWaste{CompanyID: companyID, Total: len(stores), Stores: make([]StoreWaste, 0, len(stores))}
	sum := decimal.Zero
	for i, st := range stores {
		row := StoreWaste{StoreID: st.ID, Name: st.Name, Date: days[i], Level: LevelMissing}
		if entry, ok := byKey[key{st.ID, days[i]}]; ok {
			a, err := s.analyze(ctx, st.ID, days[i], entry)
			if err != nil {
				return nil, err
			}
			row.Level = a.Level
			row.TotalWaste = a.TotalWaste
			row.Percent = a.Percent
			out.Reporting++
			sum = sum.Add(decimal.NewFromFloat(a.Percent))
		}
		out.Stores = append(out.Stores, row)
	}
	if out.Reporting > 0 {
		out.AveragePercent = sum.Div(decimal.NewFromInt(int64(out.Reporting))).Round(2).InexactFloat64()
	}
	return out, nil
}

// DayWaste is one day of a store's waste history.
type DayWaste struct {
	Date         string       `json:"date"`
	Logged       bool         `json:"logged"`
	Shift        models.Shift `json:"shift,omitempty"`
	TotalWaste   float64      `json:"total_waste"`
	VillainWaste float64      `json:"villain_waste"`
}

// History lists every day between from and to inclusive with its logged waste.
func (s *Service) History(ctx context.Context, storeID uint, from, to string) ([]DayWaste, error) {
	start, err := models.ParseDate(from, nil)
	if err != nil {
		return nil, errs.Invalid("from", "%v", err)
	}
	end, err := models.ParseDate(to, nil)
	if err != nil {
		return nil, errs.Invalid("to", "%v", err)
	}
	if end.Before(start) {
		return nil, errs.Invalid("to", "is before from")
	}
	if end.Sub(start).Hours()/24 >= maxHistoryDays {
		return nil, errs.Invalid("to", "range is longer than %d days", maxHistoryDays)
	}
	if _, err := s.store.GetStore(ctx, storeID); err != nil {
		return nil, err
	}

	logs, err := s.store.ListWasteLogs(ctx, []uint{storeID}, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]models.WasteLogEntry, len(logs))
	for _, l := range logs {
		byDate[l.Date] = l
	}

	var out []DayWaste
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := models.FormatDate(day, nil)
		row := DayWaste{Date: date}
		if l, ok := byDate[date]; ok {
			row.Logged = true
			row.Shift = l.Shift
			row.TotalWaste = l.TotalWeight
			var villains float64
			for _, item := range l.Items {
				if item.Villain {
					villains += item.Weight
				}
			}
			row.VillainWaste = villains
		}
		out = append(out, row)
	}
	return out, nil
}
