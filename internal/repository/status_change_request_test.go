package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type requestFixture struct {
	db        *gorm.DB
	repo      StatusChangeRequestRepository
	requester *models.User
	target    *models.User
	reviewer  *models.User
}

func newRequestFixture(t *testing.T) *requestFixture {
	db := testutil.NewTestDB(t)
	return &requestFixture{
		db:        db,
		repo:      NewStatusChangeRequestRepository(db),
		requester: testutil.CreateUser(t, db, models.RoleAdmin),
		target:    testutil.CreateUser(t, db, models.RoleRegular),
		reviewer:  testutil.CreateUser(t, db, models.RoleSuperAdmin),
	}
}

func (f *requestFixture) pending(t *testing.T, action models.StatusChangeAction) *models.AdminStatusChangeRequest {
	req := &models.AdminStatusChangeRequest{
		RequestingUserID: f.requester.ID,
		TargetUserID:     f.target.ID,
		Action:           action,
		Status:           models.StatusChangeStatusPending,
	}
	require.NoError(t, f.repo.Create(context.Background(), req))
	return req
}

func TestStatusChangeRequestRepository_CreateConflict(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	f.pending(t, models.StatusChangeActionPromote)

	found, err := f.repo.FindPending(ctx, f.requester.ID, f.target.ID, models.StatusChangeActionPromote)
	require.NoError(t, err)
	require.NotNil(t, found)

	dup := &models.AdminStatusChangeRequest{
		RequestingUserID: f.requester.ID,
		TargetUserID:     f.target.ID,
		Action:           models.StatusChangeActionPromote,
		Status:           models.StatusChangeStatusPending,
	}
	err = f.repo.Create(ctx, dup)
	assert.True(t, models.HasCode(err, models.CodeConflict))

	none, err := f.repo.FindPending(ctx, f.requester.ID, f.target.ID, models.StatusChangeActionDemote)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStatusChangeRequestRepository_Approve(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	req := f.pending(t, models.StatusChangeActionPromote)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	approved, err := f.repo.Approve(ctx, req.ID, f.reviewer.ID, at)
	require.NoError(t, err)
	assert.Equal(t, models.StatusChangeStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedByUserID)
	assert.Equal(t, f.reviewer.ID, *approved.ReviewedByUserID)
	require.NotNil(t, approved.ReviewedAt)
	assert.True(t, approved.ReviewedAt.Equal(at))
	require.NotNil(t, approved.ReviewedByUser)
	assert.Equal(t, f.reviewer.Username, approved.ReviewedByUser.Username)

	var target models.User
	require.NoError(t, f.db.First(&target, f.target.ID).Error)
	assert.True(t, target.IsAdmin)

	_, err = f.repo.Approve(ctx, req.ID, f.reviewer.ID, at)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	_, err = f.repo.Reject(ctx, req.ID, f.reviewer.ID, at, "late")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestStatusChangeRequestRepository_ApproveVanishedTargetRollsBack(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	req := f.pending(t, models.StatusChangeActionPromote)

	require.NoError(t, f.db.Delete(&models.User{}, f.target.ID).Error)

	_, err := f.repo.Approve(ctx, req.ID, f.reviewer.ID, time.Now())
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	stored, err := f.repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusChangeStatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedByUserID)
	assert.Nil(t, stored.ReviewedAt)
}

func TestStatusChangeRequestRepository_Reject(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	req := f.pending(t, models.StatusChangeActionPromote)

	rejected, err := f.repo.Reject(ctx, req.ID, f.reviewer.ID, time.Now(), "insufficient justification")
	require.NoError(t, err)
	assert.Equal(t, models.StatusChangeStatusRejected, rejected.Status)
	assert.Equal(t, "insufficient justification", rejected.Notes)

	var target models.User
	require.NoError(t, f.db.First(&target, f.target.ID).Error)
	assert.False(t, target.IsAdmin)
}

func TestStatusChangeRequestRepository_ConcurrentResolution(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	req := f.pending(t, models.StatusChangeActionPromote)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.repo.Approve(ctx, req.ID, f.reviewer.ID, time.Now())
			} else {
				_, errs[i] = f.repo.Reject(ctx, req.ID, f.reviewer.ID, time.Now(), "")
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, models.HasCode(err, models.CodeNotFound))
		}
	}
	assert.Equal(t, 1, wins)
}

func TestStatusChangeRequestRepository_ListsAndDelete(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	promote := f.pending(t, models.StatusChangeActionPromote)
	demote := f.pending(t, models.StatusChangeActionDemote)
	_, err := f.repo.Reject(ctx, demote.ID, f.reviewer.ID, time.Now(), "no")
	require.NoError(t, err)

	pending, err := f.repo.ListByStatus(ctx, models.StatusChangeStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, promote.ID, pending[0].ID)
	require.NotNil(t, pending[0].RequestingUser)
	require.NotNil(t, pending[0].TargetUser)
	assert.Equal(t, f.target.Email, pending[0].TargetUser.Email)

	mine, err := f.repo.ListByRequester(ctx, f.requester.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	require.NoError(t, f.repo.Delete(ctx, demote.ID))
	assert.True(t, models.HasCode(f.repo.Delete(ctx, demote.ID), models.CodeNotFound))

	require.NoError(t, f.repo.SetNotes(ctx, promote.ID, "Email not sent"))
	stored, err := f.repo.GetByID(ctx, promote.ID)
	require.NoError(t, err)
	assert.Equal(t, "Email not sent", stored.Notes)
}
