package repository

import (
	"context"

	"brasa/internal/models"
)

// Repository is the persistence boundary for every engine table. Lookups of
// a single row return errs.ErrNotFound when it is absent; inserts on a unique
// store+date key return an *errs.ConflictError when they lose.
type Repository interface {
	SaveStore(ctx context.Context, store *models.Store) error
	GetStore(ctx context.Context, id uint) (*models.Store, error)
	ListStores(ctx context.Context, companyID string) ([]models.Store, error)

	GetTargets(ctx context.Context, storeID uint) (*models.StoreTarget, []models.StoreProteinTarget, error)
	SaveTargets(ctx context.Context, target *models.StoreTarget, rows []models.StoreProteinTarget) error

	AddInvoice(ctx context.Context, rec *models.InvoiceRecord) error
	ListInvoices(ctx context.Context, storeID uint, from, to string) ([]models.InvoiceRecord, error)

	AddConsumption(ctx context.Context, rec *models.ConsumptionRecord) error
	ListConsumption(ctx context.Context, storeID uint, from, to string) ([]models.ConsumptionRecord, error)
	SaveGuests(ctx context.Context, rec *models.GuestCount) error
	ListGuests(ctx context.Context, storeID uint, from, to string) ([]models.GuestCount, error)

	CreatePrepLock(ctx context.Context, lock *models.PrepLock) error
	GetPrepLock(ctx context.Context, storeID uint, date string) (*models.PrepLock, error)
	ListPrepLocks(ctx context.Context, storeIDs []uint, date string) ([]models.PrepLock, error)

	// CreateWasteLog inserts entry and bumps the counter of its shift on the
	// week starting weekStart, atomically.
	CreateWasteLog(ctx context.Context, entry *models.WasteLogEntry, weekStart string) error
	GetWasteLog(ctx context.Context, storeID uint, date string) (*models.WasteLogEntry, error)
	ListWasteLogs(ctx context.Context, storeIDs []uint, from, to string) ([]models.WasteLogEntry, error)

	GetComplianceWeek(ctx context.Context, storeID uint, weekStart string) (*models.WasteComplianceWeek, error)
	// IsStoreLocked reports whether any week of the store is locked.
	IsStoreLocked(ctx context.Context, storeID uint) (bool, error)
	LockWeek(ctx context.Context, storeID uint, weekStart string) error
	// UnlockStore clears every lock flag of the store and returns how many
	// weeks were unlocked.
	UnlockStore(ctx context.Context, storeID uint) (int64, error)
}
