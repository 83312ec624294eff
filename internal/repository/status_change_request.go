package repository

import (
	"context"
	"errors"
	"time"

	"quill/internal/cache"
	"quill/internal/models"

	"gorm.io/gorm"
)

// StatusChangeRequestRepository defines persistence operations for admin status-change requests.
type StatusChangeRequestRepository interface {
	Create(ctx context.Context, req *models.AdminStatusChangeRequest) error
	GetByID(ctx context.Context, id uint) (*models.AdminStatusChangeRequest, error)
	FindPending(ctx context.Context, requesterID, targetID uint, action models.StatusChangeAction) (*models.AdminStatusChangeRequest, error)
	ListByStatus(ctx context.Context, status models.StatusChangeStatus) ([]models.AdminStatusChangeRequest, error)
	ListByRequester(ctx context.Context, requesterID uint) ([]models.AdminStatusChangeRequest, error)
	SetNotes(ctx context.Context, id uint, notes string) error
	Approve(ctx context.Context, id, reviewerID uint, at time.Time) (*models.AdminStatusChangeRequest, error)
	Reject(ctx context.Context, id, reviewerID uint, at time.Time, notes string) (*models.AdminStatusChangeRequest, error)
	Delete(ctx context.Context, id uint) error
}

type statusChangeRequestRepository struct {
	db *gorm.DB
}

// NewStatusChangeRequestRepository returns a new StatusChangeRequestRepository implementation.
func NewStatusChangeRequestRepository(db *gorm.DB) StatusChangeRequestRepository {
	return &statusChangeRequestRepository{db: db}
}

func withParticipants(db *gorm.DB) *gorm.DB {
	return db.
		Preload("RequestingUser").
		Preload("TargetUser").
		Preload("ReviewedByUser")
}

// Create inserts a pending request. A concurrent pending row for the same
// (requester, target, action) surfaces as a CONFLICT error.
func (r *statusChangeRequestRepository) Create(ctx context.Context, req *models.AdminStatusChangeRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A similar pending request already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *statusChangeRequestRepository) GetByID(ctx context.Context, id uint) (*models.AdminStatusChangeRequest, error) {
	var req models.AdminStatusChangeRequest
	if err := withParticipants(r.db.WithContext(ctx)).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Status change request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// FindPending returns the caller's pending request for the tuple, or nil if there is none.
func (r *statusChangeRequestRepository) FindPending(ctx context.Context, requesterID, targetID uint, action models.StatusChangeAction) (*models.AdminStatusChangeRequest, error) {
	var req models.AdminStatusChangeRequest
	err := r.db.WithContext(ctx).
		Where("requesting_user_id = ? AND target_user_id = ? AND action = ? AND status = ?",
			requesterID, targetID, action, models.StatusChangeStatusPending).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *statusChangeRequestRepository) ListByStatus(ctx context.Context, status models.StatusChangeStatus) ([]models.AdminStatusChangeRequest, error) {
	var reqs []models.AdminStatusChangeRequest
	if err := withParticipants(r.db.WithContext(ctx)).
		Where("status = ?", status).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *statusChangeRequestRepository) ListByRequester(ctx context.Context, requesterID uint) ([]models.AdminStatusChangeRequest, error) {
	var reqs []models.AdminStatusChangeRequest
	if err := withParticipants(r.db.WithContext(ctx)).
		Where("requesting_user_id = ?", requesterID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *statusChangeRequestRepository) SetNotes(ctx context.Context, id uint, notes string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.AdminStatusChangeRequest{}).
		Where("id = ?", id).
		Update("notes", notes).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Approve moves a pending request to approved and applies its action to the target
// user in one transaction. The status transition is conditional on the row still being
// pending, so concurrent resolutions produce exactly one winner. If the target user is
// gone the transaction rolls back and the request stays pending.
func (r *statusChangeRequestRepository) Approve(ctx context.Context, id, reviewerID uint, at time.Time) (*models.AdminStatusChangeRequest, error) {
	var targetID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, id, models.StatusChangeStatusApproved, reviewerID, at, nil); err != nil {
			return err
		}

		var req models.AdminStatusChangeRequest
		if err := tx.Select("id", "target_user_id", "action").First(&req, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		targetID = req.TargetUserID

		res := tx.Model(&models.User{}).
			Where("id = ?", req.TargetUserID).
			Update("is_admin", req.Action.AdminFlag())
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", req.TargetUserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateUser(ctx, targetID)
	return r.GetByID(ctx, id)
}

// Reject moves a pending request to rejected, storing the reviewer's notes.
func (r *statusChangeRequestRepository) Reject(ctx context.Context, id, reviewerID uint, at time.Time, notes string) (*models.AdminStatusChangeRequest, error) {
	if err := transition(r.db.WithContext(ctx), id, models.StatusChangeStatusRejected, reviewerID, at, &notes); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// transition performs the single conditional UPDATE that takes a request out of pending.
func transition(db *gorm.DB, id uint, to models.StatusChangeStatus, reviewerID uint, at time.Time, notes *string) error {
	updates := map[string]any{
		"status":              to,
		"reviewed_by_user_id": reviewerID,
		"reviewed_at":         at,
	}
	if notes != nil {
		updates["notes"] = *notes
	}

	res := db.Model(&models.AdminStatusChangeRequest{}).
		Where("id = ? AND status = ?", id, models.StatusChangeStatusPending).
		Updates(updates)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotProcessableError()
	}
	return nil
}

// Delete removes the request regardless of status.
func (r *statusChangeRequestRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.AdminStatusChangeRequest{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Status change request", id)
	}
	return nil
}
