package service

import (
	"context"
	"testing"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBulkAction(t *testing.T) {
	for _, raw := range []string{"promote", "demote", "delete"} {
		action, ok := ParseBulkAction(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, BulkAction(raw), action)
	}
	_, ok := ParseBulkAction("ban")
	assert.False(t, ok)
}

func TestBulkApply(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewBulkUserService(repository.NewUserRepository(db))
	super := testutil.CreateUser(t, db, models.RoleSuperAdmin)
	a := testutil.CreateUser(t, db, models.RoleRegular)
	b := testutil.CreateUser(t, db, models.RoleRegular)
	ctx := context.Background()

	t.Run("promote with duplicates and a missing id", func(t *testing.T) {
		res, err := svc.Apply(ctx, testutil.Caller(super), []uint{a.ID, b.ID, a.ID, 9999}, "promote")
		require.NoError(t, err)
		require.Len(t, res.Results, 3)
		assert.Equal(t, 2, res.Succeeded)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, a.ID, res.Results[0].UserID)
		assert.Equal(t, b.ID, res.Results[1].UserID)
		assert.False(t, res.Results[2].Success)
		assert.Equal(t, "User not found", res.Results[2].Error)

		var reloaded models.User
		require.NoError(t, db.First(&reloaded, b.ID).Error)
		assert.True(t, reloaded.IsAdmin)
	})

	t.Run("demote refuses the caller", func(t *testing.T) {
		res, err := svc.Apply(ctx, testutil.Caller(super), []uint{super.ID, a.ID}, "demote")
		require.NoError(t, err)
		assert.False(t, res.Results[0].Success)
		assert.Equal(t, "You cannot demote yourself", res.Results[0].Error)
		assert.True(t, res.Results[1].Success)
	})

	t.Run("delete refuses the caller", func(t *testing.T) {
		res, err := svc.Apply(ctx, testutil.Caller(super), []uint{super.ID, b.ID}, "delete")
		require.NoError(t, err)
		assert.False(t, res.Results[0].Success)
		assert.True(t, res.Results[1].Success)

		var n int64
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", b.ID).Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := svc.Apply(ctx, testutil.Caller(super), []uint{a.ID}, "ban")
		assertCode(t, err, models.CodeValidation)

		_, err = svc.Apply(ctx, testutil.Caller(super), nil, "promote")
		assertCode(t, err, models.CodeValidation)

		ids := make([]uint, maxBulkUsers+1)
		for i := range ids {
			ids[i] = uint(i + 1)
		}
		_, err = svc.Apply(ctx, testutil.Caller(super), ids, "promote")
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("requires super admin", func(t *testing.T) {
		admin := testutil.CreateUser(t, db, models.RoleAdmin)
		_, err := svc.Apply(ctx, testutil.Caller(admin), []uint{a.ID}, "demote")
		assertCode(t, err, models.CodeForbidden)
	})
}
