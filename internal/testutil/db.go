// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"quill/internal/database"
	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB opens a migrated in-memory SQLite database. The pool is pinned to one
// connection because every new connection to ":memory:" is a fresh empty database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with the given role and random identity fields.
func CreateUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()

	user := &models.User{
		Username:     gofakeit.Username() + gofakeit.DigitN(6),
		Fullname:     gofakeit.Name(),
		Email:        gofakeit.DigitN(8) + "." + gofakeit.Email(),
		Password:     "not-a-real-hash",
		IsAdmin:      role.IsAdmin(),
		IsSuperAdmin: role.IsSuperAdmin(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Caller returns the identity the workflow receives for user.
func Caller(user *models.User) models.Caller {
	return models.Caller{UserID: user.ID, Role: user.Role()}
}
