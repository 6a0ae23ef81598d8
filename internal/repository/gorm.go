package repository

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"

	"brasa/internal/database"
	"brasa/internal/errs"
	"brasa/internal/models"
)

// GormRepository implements Repository on a gorm connection.
type GormRepository struct {
	db *gorm.DB
}

// New creates a repository on db.
func New(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var _ Repository = (*GormRepository)(nil)

func notFound(err error, what string) error {
	if gorm.IsRecordNotFoundError(err) {
		return fmt.Errorf("%s: %w", what, errs.ErrNotFound)
	}
	return err
}

func (r *GormRepository) SaveStore(ctx context.Context, store *models.Store) error {
	return r.db.Save(store).Error
}

func (r *GormRepository) GetStore(ctx context.Context, id uint) (*models.Store, error) {
	var store models.Store
	if err := r.db.Where("id = ?", id).First(&store).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("store %d", id))
	}
	return &store, nil
}

func (r *GormRepository) ListStores(ctx context.Context, companyID string) ([]models.Store, error) {
	var stores []models.Store
	q := r.db.Order("id")
	if companyID != "" {
		q = q.Where("company_id = ?", companyID)
	}
	if err := q.Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// GetTargets returns errs.ErrNotFound when the store was never recalculated.
func (r *GormRepository) GetTargets(ctx context.Context, storeID uint) (*models.StoreTarget, []models.StoreProteinTarget, error) {
	var target models.StoreTarget
	if err := r.db.Where("store_id = ?", storeID).First(&target).Error; err != nil {
		return nil, nil, notFound(err, fmt.Sprintf("targets for store %d", storeID))
	}
	var rows []models.StoreProteinTarget
	if err := r.db.Where("store_id = ?", storeID).Order("id").Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	return &target, rows, nil
}

// SaveTargets upserts the store total and every protein row in one
// transaction, so readers never see a partially renormalized mix. Stored
// rows missing from rows are zeroed and excluded.
func (r *GormRepository) SaveTargets(ctx context.Context, target *models.StoreTarget, rows []models.StoreProteinTarget) error {
	return database.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var saved models.StoreTarget
		err := tx.Where(models.StoreTarget{StoreID: target.StoreID}).
			Assign(map[string]interface{}{
				"total_weight_per_guest": target.TotalWeightPerGuest,
				"total_cost_per_guest":   target.TotalCostPerGuest,
			}).
			FirstOrCreate(&saved).Error
		if err != nil {
			return fmt.Errorf("failed to save store target: %w", err)
		}
		*target = saved

		for i := range rows {
			row := &rows[i]
			var savedRow models.StoreProteinTarget
			err := tx.Where(models.StoreProteinTarget{StoreID: row.StoreID, Protein: row.Protein}).
				Assign(map[string]interface{}{
					"weight_target": row.WeightTarget,
					"cost_target":   row.CostTarget,
					"excluded":      row.Excluded,
				}).
				FirstOrCreate(&savedRow).Error
			if err != nil {
				return fmt.Errorf("failed to save target for %s: %w", row.Protein, err)
			}
			*row = savedRow
		}

		// Proteins no longer in the catalog stay on file as excluded, zeroed rows.
		stale := tx.Model(&models.StoreProteinTarget{}).Where("store_id = ?", target.StoreID)
		if len(rows) > 0 {
			proteins := make([]string, len(rows))
			for i, row := range rows {
				proteins[i] = row.Protein
			}
			stale = stale.Where("protein NOT IN (?)", proteins)
		}
		err = stale.Updates(map[string]interface{}{
			"weight_target": 0,
			"cost_target":   0,
			"excluded":      true,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to retire stale targets: %w", err)
		}
		return nil
	})
}

func (r *GormRepository) AddInvoice(ctx context.Context, rec *models.InvoiceRecord) error {
	return r.db.Create(rec).Error
}

func (r *GormRepository) ListInvoices(ctx context.Context, storeID uint, from, to string) ([]models.InvoiceRecord, error) {
	var recs []models.InvoiceRecord
	err := r.db.Where("store_id = ? AND date >= ? AND date <= ?", storeID, from, to).
		Order("date, id").Find(&recs).Error
	return recs, err
}

func (r *GormRepository) AddConsumption(ctx context.Context, rec *models.ConsumptionRecord) error {
	return r.db.Create(rec).Error
}

func (r *GormRepository) ListConsumption(ctx context.Context, storeID uint, from, to string) ([]models.ConsumptionRecord, error) {
	var recs []models.ConsumptionRecord
	err := r.db.Where("store_id = ? AND date >= ? AND date <= ?", storeID, from, to).
		Order("date, id").Find(&recs).Error
	return recs, err
}

// SaveGuests replaces the guest count for the record's store and date.
func (r *GormRepository) SaveGuests(ctx context.Context, rec *models.GuestCount) error {
	var saved models.GuestCount
	err := r.db.Where(models.GuestCount{StoreID: rec.StoreID, Date: rec.Date}).
		Assign(map[string]interface{}{
			"lunch_guests":  rec.LunchGuests,
			"dinner_guests": rec.DinnerGuests,
		}).
		FirstOrCreate(&saved).Error
	if err != nil {
		return err
	}
	*rec = saved
	return nil
}

func (r *GormRepository) ListGuests(ctx context.Context, storeID uint, from, to string) ([]models.GuestCount, error) {
	var recs []models.GuestCount
	err := r.db.Where("store_id = ? AND date >= ? AND date <= ?", storeID, from, to).
		Order("date").Find(&recs).Error
	return recs, err
}

// CreatePrepLock relies on the unique (store_id, date) index so that of two
// racing lock attempts exactly one wins.
func (r *GormRepository) CreatePrepLock(ctx context.Context, lock *models.PrepLock) error {
	if err := r.db.Create(lock).Error; err != nil {
		return conflictOr(err, "prep lock", lock.StoreID, lock.Date)
	}
	return nil
}

func (r *GormRepository) GetPrepLock(ctx context.Context, storeID uint, date string) (*models.PrepLock, error) {
	var lock models.PrepLock
	if err := r.db.Where("store_id = ? AND date = ?", storeID, date).First(&lock).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("prep lock %d/%s", storeID, date))
	}
	return &lock, nil
}

func (r *GormRepository) ListPrepLocks(ctx context.Context, storeIDs []uint, date string) ([]models.PrepLock, error) {
	var locks []models.PrepLock
	if len(storeIDs) == 0 {
		return locks, nil
	}
	err := r.db.Where("store_id IN (?) AND date = ?", storeIDs, date).Order("store_id").Find(&locks).Error
	return locks, err
}

func (r *GormRepository) CreateWasteLog(ctx context.Context, entry *models.WasteLogEntry, weekStart string) error {
	column := "lunch_count"
	if entry.Shift == models.ShiftDinner {
		column = "dinner_count"
	}

	return database.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return conflictOr(err, "waste log", entry.StoreID, entry.Date)
		}

		var week models.WasteComplianceWeek
		err := tx.Where(models.WasteComplianceWeek{StoreID: entry.StoreID, WeekStart: weekStart}).
			FirstOrCreate(&week).Error
		if err != nil {
			return fmt.Errorf("failed to load compliance week: %w", err)
		}
		err = tx.Model(&week).UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
		if err != nil {
			return fmt.Errorf("failed to bump %s: %w", column, err)
		}
		return nil
	})
}

func (r *GormRepository) GetWasteLog(ctx context.Context, storeID uint, date string) (*models.WasteLogEntry, error) {
	var entry models.WasteLogEntry
	if err := r.db.Where("store_id = ? AND date = ?", storeID, date).First(&entry).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("waste log %d/%s", storeID, date))
	}
	return &entry, nil
}

func (r *GormRepository) ListWasteLogs(ctx context.Context, storeIDs []uint, from, to string) ([]models.WasteLogEntry, error) {
	var entries []models.WasteLogEntry
	if len(storeIDs) == 0 {
		return entries, nil
	}
	err := r.db.Where("store_id IN (?) AND date >= ? AND date <= ?", storeIDs, from, to).
		Order("date, store_id").Find(&entries).Error
	return entries, err
}

func (r *GormRepository) GetComplianceWeek(ctx context.Context, storeID uint, weekStart string) (*models.WasteComplianceWeek, error) {
	var week models.WasteComplianceWeek
	if err := r.db.Where("store_id = ? AND week_start = ?", storeID, weekStart).First(&week).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("compliance week %d/%s", storeID, weekStart))
	}
	return &week, nil
}

func (r *GormRepository) IsStoreLocked(ctx context.Context, storeID uint) (bool, error) {
	var count int
	err := r.db.Model(&models.WasteComplianceWeek{}).
		Where("store_id = ? AND is_locked = ?", storeID, true).Count(&count).Error
	return count > 0, err
}

func (r *GormRepository) LockWeek(ctx context.Context, storeID uint, weekStart string) error {
	var week models.WasteComplianceWeek
	return r.db.Where(models.WasteComplianceWeek{StoreID: storeID, WeekStart: weekStart}).
		Assign(map[string]interface{}{"is_locked": true}).
		FirstOrCreate(&week).Error
}

func (r *GormRepository) UnlockStore(ctx context.Context, storeID uint) (int64, error) {
	res := r.db.Model(&models.WasteComplianceWeek{}).
		Where("store_id = ? AND is_locked = ?", storeID, true).
		UpdateColumn("is_locked", false)
	return res.RowsAffected, res.Error
}
