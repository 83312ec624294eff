package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := openTestDB(t)

	for _, m := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(m))
	}
	assert.True(t, db.Migrator().HasIndex(&models.AdminStatusChangeRequest{}, "idx_status_change_pending"))
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, Migrate(db))
}

func TestPendingUniqueIndex(t *testing.T) {
	db := openTestDB(t)

	requester := models.User{Username: "req", Email: "req@example.com", Password: "x", IsAdmin: true}
	target := models.User{Username: "tgt", Email: "tgt@example.com", Password: "x"}
	require.NoError(t, db.Create(&requester).Error)
	require.NoError(t, db.Create(&target).Error)

	first := models.AdminStatusChangeRequest{
		RequestingUserID: requester.ID,
		TargetUserID:     target.ID,
		Action:           models.StatusChangeActionPromote,
		Status:           models.StatusChangeStatusPending,
	}
	require.NoError(t, db.Create(&first).Error)

	dup := first
	dup.ID = 0
	err := db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	// A resolved request no longer blocks a new pending one.
	require.NoError(t, db.Model(&first).Update("status", models.StatusChangeStatusRejected).Error)
	dup.ID = 0
	assert.NoError(t, db.Create(&dup).Error)

	// The opposite action is a different key.
	demote := models.AdminStatusChangeRequest{
		RequestingUserID: requester.ID,
		TargetUserID:     target.ID,
		Action:           models.StatusChangeActionDemote,
		Status:           models.StatusChangeStatusPending,
	}
	assert.NoError(t, db.Create(&demote).Error)
}

func TestPing(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil))
	assert.NoError(t, Ping(context.Background(), openTestDB(t)))
}

func TestCustomGormLogger_LogMode(t *testing.T) {
	l := NewGormLogger(logger.Warn)
	silent := l.LogMode(logger.Silent).(*CustomGormLogger)
	assert.Equal(t, logger.Silent, silent.Config.LogLevel)
	assert.Equal(t, logger.Warn, l.Config.LogLevel)

	assert.NotPanics(t, func() {
		l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
		l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	})
}
