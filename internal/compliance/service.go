package compliance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"brasa/internal/catalog"
	"brasa/internal/config"
	"brasa/internal/errs"
	"brasa/internal/models"
	"brasa/internal/monitoring"
)

// Store is the slice of the repository the compliance service needs.
type Store interface {
	GetStore(ctx context.Context, id uint) (*models.Store, error)
	ListStores(ctx context.Context, companyID string) ([]models.Store, error)
	GetTargets(ctx context.Context, storeID uint) (*models.StoreTarget, []models.StoreProteinTarget, error)
	GetPrepLock(ctx context.Context, storeID uint, date string) (*models.PrepLock, error)
	CreateWasteLog(ctx context.Context, entry *models.WasteLogEntry, weekStart string) error
	GetWasteLog(ctx context.Context, storeID uint, date string) (*models.WasteLogEntry, error)
	ListWasteLogs(ctx context.Context, storeIDs []uint, from, to string) ([]models.WasteLogEntry, error)
	GetComplianceWeek(ctx context.Context, storeID uint, weekStart string) (*models.WasteComplianceWeek, error)
	IsStoreLocked(ctx context.Context, storeID uint) (bool, error)
	LockWeek(ctx context.Context, storeID uint, weekStart string) error
	UnlockStore(ctx context.Context, storeID uint) (int64, error)
}

// Settings are the quotas and thresholds of the compliance rules.
type Settings struct {
	LunchQuota            int
	DinnerQuota           int
	CriticalPercent       float64
	WarningPercent        float64
	AnalysisForecast      int
	DefaultWeightPerGuest float64
	Villains              []string
	Location              *time.Location
}

// SettingsFromConfig reads the compliance settings from cfg.
func SettingsFromConfig(cfg *config.Config, loc *time.Location) Settings {
	return Settings{
		LunchQuota:            cfg.Compliance.LunchQuota,
		DinnerQuota:           cfg.Compliance.DinnerQuota,
		CriticalPercent:       cfg.Compliance.WasteCriticalPercent,
		WarningPercent:        cfg.Compliance.WasteWarningPercent,
		AnalysisForecast:      cfg.Compliance.AnalysisForecastGuest,
		DefaultWeightPerGuest: cfg.DefaultTotalWeightPerGuest,
		Villains:              cfg.Compliance.Villains,
		Location:              loc,
	}
}

// Service enforces the waste log rules and reports compliance state.
type Service struct {
	store    Store
	schedule *Schedule
	settings Settings
	villains map[string]bool
	now      func() time.Time
	metrics  *monitoring.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a compliance Service.
func NewService(store Store, schedule *Schedule, settings Settings, opts ...Option) *Service {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	s := &Service{
		store:    store,
		schedule: schedule,
		settings: settings,
		villains: make(map[string]bool, len(settings.Villains)),
		now:      time.Now,
	}
	for _, v := range settings.Villains {
		s.villains[catalog.Normalize(v)] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// localNow returns the store-local time and calendar date.
func (s *Service) localNow(store *models.Store) (time.Time, string) {
	now := s.now().In(store.Location(s.settings.Location))
	return now, models.FormatDate(now, nil)
}

// SubmitRequest is a waste log for a store. An empty Date means today.
type SubmitRequest struct {
	StoreID  uint               `json:"-"`
	Date     string             `json:"date"`
	Shift    string             `json:"shift"`
	Items    []models.WasteItem `json:"items"`
	LoggedBy string             `json:"logged_by"`
}

func validateItems(items []models.WasteItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.Protein) == "" {
			return errs.Invalid(fmt.Sprintf("items[%d].protein", i), "is required")
		}
		if item.Weight < 0 {
			return errs.Invalid(fmt.Sprintf("items[%d].weight", i), "cannot be negative")
		}
	}
	return nil
}

// Submit records a waste log. A log is accepted only if the store is not
// weekly-locked, nothing was logged for the date in any shift, and the
// current window allows the shift. Rules are checked in that order.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.WasteLogEntry, error) {
	shift, ok := models.ParseShift(req.Shift)
	if !ok {
		return nil, errs.Invalid("shift", "must be lunch or dinner")
	}
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	store, err := s.store.GetStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	now, today := s.localNow(store)
	if req.Date == "" {
		req.Date = today
	}
	if _, err := models.ParseDate(req.Date, nil); err != nil {
		return nil, errs.Invalid("date", "%v", err)
	}
	if req.Date != today {
		return nil, errs.Invalid("date", "waste can only be logged for today (%s)", today)
	}

	if err := s.gate(ctx, store.ID, today, s.schedule.At(now), shift); err != nil {
		s.metrics.PolicyDenied(errs.ReasonOf(err))
		log.Printf("[compliance] store %d %s %s rejected: %v", store.ID, today, shift, err)
		return nil, err
	}

	items := make(models.WasteItems, len(req.Items))
	for i, item := range req.Items {
		item.Protein = strings.TrimSpace(item.Protein)
		item.Reason = strings.TrimSpace(item.Reason)
		item.Villain = s.villains[catalog.Normalize(item.Protein)]
		items[i] = item
	}
	entry := &models.WasteLogEntry{
		Reference:   uuid.NewString(),
		StoreID:     store.ID,
		Date:        today,
		Shift:       shift,
		Items:       items,
		TotalWeight: items.TotalWeight(),
		LoggedBy:    req.LoggedBy,
		LoggedAt:    now,
	}

	if err := s.store.CreateWasteLog(ctx, entry, models.WeekStart(now)); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			s.metrics.Conflict("waste_log")
			s.metrics.PolicyDenied(errs.ReasonAlreadyLoggedToday)
			return nil, errs.Deny(errs.ReasonAlreadyLoggedToday, "a waste log already exists for today", err)
		}
		return nil, fmt.Errorf("failed to save waste log: %w", err)
	}

	s.metrics.WasteLogged(string(shift))
	log.Printf("[compliance] store %d logged %s waste for %s: %.2f lb (%s)", store.ID, shift, today, entry.TotalWeight, entry.Reference)
	return entry, nil
}

func (s *Service) gate(ctx context.Context, storeID uint, today string, window Window, shift models.Shift) error {
	locked, err := s.store.IsStoreLocked(ctx, storeID)
	if err != nil {
		return err
	}
	if locked {
		return errs.Deny(errs.ReasonWeeklyLocked, "weekly quota missed, waste input is locked until an administrator unlocks the store", nil)
	}

	_, err = s.store.GetWasteLog(ctx, storeID, today)
	switch {
	case err == nil:
		return errs.Deny(errs.ReasonAlreadyLoggedToday, "a waste log already exists for today", nil)
	case !errors.Is(err, errs.ErrNotFound):
		return err
	}

	if !window.Allows(shift) {
		return errs.Deny(errs.ReasonOutsideShiftWindow, fmt.Sprintf("the %s window is not open (current window: %s)", shift, window), nil)
	}
	return nil
}

// Status is the read-time compliance state of a store for a date.
type Status struct {
	StoreID        uint                  `json:"store_id"`
	Date           string                `json:"date"`
	Today          string                `json:"today"`
	Window         Window                `json:"window"`
	CanInputLunch  bool                  `json:"can_input_lunch"`
	CanInputDinner bool                  `json:"can_input_dinner"`
	LoggedToday    bool                  `json:"logged_today"`
	Log            *models.WasteLogEntry `json:"log,omitempty"`
	WeekStart      string                `json:"week_start"`
	LunchCount     int                   `json:"lunch_count"`
	DinnerCount    int                   `json:"dinner_count"`
	LunchQuota     int                   `json:"lunch_quota"`
	DinnerQuota    int                   `json:"dinner_quota"`
	WeeklyLocked   bool                  `json:"weekly_locked"`
	Reason         errs.Reason           `json:"reason,omitempty"`
	Message        string                `json:"message"`
	Analysis       Analysis              `json:"analysis"`
}

// Status reports whether a store can log waste and why not. An empty date
// means today; any other date is reported but never open for input.
func (s *Service) Status(ctx context.Context, storeID uint, date string) (*Status, error) {
	store, err := s.store.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	now, today := s.localNow(store)
	if date == "" {
		date = today
	}
	day, err := models.ParseDate(date, nil)
	if err != nil {
		return nil, errs.Invalid("date", "%v", err)
	}

	st := &Status{
		StoreID:     store.ID,
		Date:        date,
		Today:       today,
		Window:      s.schedule.At(now),
		WeekStart:   models.WeekStart(day),
		LunchQuota:  s.settings.LunchQuota,
		DinnerQuota: s.settings.DinnerQuota,
	}

	if st.WeeklyLocked, err = s.store.IsStoreLocked(ctx, store.ID); err != nil {
		return nil, err
	}
	week, err := s.store.GetComplianceWeek(ctx, store.ID, st.WeekStart)
	switch {
	case err == nil:
		st.LunchCount = week.LunchCount
		st.DinnerCount = week.DinnerCount
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	entry, err := s.store.GetWasteLog(ctx, store.ID, date)
	switch {
	case err == nil:
		st.LoggedToday = true
		st.Log = entry
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	open := date == today && !st.WeeklyLocked && !st.LoggedToday
	st.CanInputLunch = open && st.Window.Allows(models.ShiftLunch)
	st.CanInputDinner = open && st.Window.Allows(models.ShiftDinner)

	switch {
	case st.WeeklyLocked:
		st.Reason = errs.ReasonWeeklyLocked
		st.Message = "Waste input is locked: the weekly quota was missed. Contact an administrator."
	case st.LoggedToday:
		st.Reason = errs.ReasonAlreadyLoggedToday
		st.Message = fmt.Sprintf("Waste for %s was already logged at %s.", date, entry.Shift)
	case date != today:
		st.Message = fmt.Sprintf("Waste can only be logged for today (%s).", today)
	case st.Window == WindowClosed:
		st.Reason = errs.ReasonOutsideShiftWindow
		st.Message = "No shift window is open right now."
	case st.CanInputLunch && st.CanInputDinner:
		st.Message = "Log waste for either shift."
	case st.CanInputLunch:
		st.Message = "Lunch window is open."
	default:
		st.Message = "Dinner window is open."
	}

	if st.Analysis, err = s.analyze(ctx, store.ID, date, entry); err != nil {
		return nil, err
	}
	return st, nil
}

// CloseResult is the outcome of evaluating a finished week.
type CloseResult struct {
	StoreID     uint   `json:"store_id"`
	WeekStart   string `json:"week_start"`
	LunchCount  int    `json:"lunch_count"`
	DinnerCount int    `json:"dinner_count"`
	Locked      bool   `json:"locked"`
}

// CloseWeek locks the store when the week starting on weekStart has ended
// with fewer submissions than the quotas. Closing twice is harmless.
func (s *Service) CloseWeek(ctx context.Context, storeID uint, weekStart string) (*CloseResult, error) {
	store, err := s.store.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	loc := store.Location(s.settings.Location)
	start, err := models.ParseDate(weekStart, loc)
	if err != nil {
		return nil, errs.Invalid("week_start", "%v", err)
	}
	if models.WeekStart(start) != weekStart {
		return nil, errs.Invalid("week_start", "%s is not a Monday", weekStart)
	}
	if s.now().Before(start.AddDate(0, 0, 7)) {
		return nil, errs.Invalid("week_start", "week of %s has not ended", weekStart)
	}

	res := &CloseResult{StoreID: store.ID, WeekStart: weekStart}
	week, err := s.store.GetComplianceWeek(ctx, store.ID, weekStart)
	switch {
	case err == nil:
		res.LunchCount = week.LunchCount
		res.DinnerCount = week.DinnerCount
		res.Locked = week.IsLocked
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	if res.LunchCount < s.settings.LunchQuota || res.DinnerCount < s.settings.DinnerQuota {
		if err := s.store.LockWeek(ctx, store.ID, weekStart); err != nil {
			return nil, fmt.Errorf("failed to lock week %s: %w", weekStart, err)
		}
		if !res.Locked {
			log.Printf("[compliance] store %d locked: week %s had %d lunch and %d dinner logs", store.ID, weekStart, res.LunchCount, res.DinnerCount)
		}
		res.Locked = true
	}
	return res, nil
}

// Unlock clears every weekly lock of a store and returns how many were set.
func (s *Service) Unlock(ctx context.Context, storeID uint) (int64, error) {
	if _, err := s.store.GetStore(ctx, storeID); err != nil {
		return 0, err
	}
	n, err := s.store.UnlockStore(ctx, storeID)
	if err != nil {
		return 0, fmt.Errorf("failed to unlock store %d: %w", storeID, err)
	}
	log.Printf("[compliance] store %d unlocked (%d weeks cleared)", storeID, n)
	return n, nil
}
