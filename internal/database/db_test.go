package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brasa/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x")
	assert.Error(t, err)
}

func TestMigrateCreatesUniqueStoreDateIndex(t *testing.T) {
	db := openTestDB(t)

	first := models.PrepLock{Reference: "a", StoreID: 1, Date: "2026-03-02", Snapshot: models.PlanItems{{Protein: "Picanha"}}}
	require.NoError(t, db.Create(&first).Error)

	second := models.PrepLock{Reference: "b", StoreID: 1, Date: "2026-03-02", Snapshot: models.PlanItems{{Protein: "Sausage"}}}
	assert.Error(t, db.Create(&second).Error)

	other := models.PrepLock{Reference: "c", StoreID: 2, Date: "2026-03-02", Snapshot: models.PlanItems{{Protein: "Sausage"}}}
	assert.NoError(t, db.Create(&other).Error)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Store{CompanyID: "tdb", Name: "Addison"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Model(&models.Store{}).Count(&count).Error)
	assert.Equal(t, 0, count)
}

func TestWithTxCommits(t *testing.T) {
	db := openTestDB(t)

	err := WithTx(context.Background(), db, func(tx *gorm.DB) error {
		return tx.Create(&models.Store{CompanyID: "tdb", Name: "Addison"}).Error
	})
	require.NoError(t, err)

	var stores []models.Store
	require.NoError(t, db.Find(&stores).Error)
	require.Len(t, stores, 1)
	assert.Equal(t, "Addison", stores[0].Name)
}
