package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/repository"
)

type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// ListMine returns the caller's most recent notifications.
func (s *NotificationService) ListMine(ctx context.Context, caller models.Caller, limit int) ([]models.Notification, error) {
	if caller.UserID == 0 {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}
	return s.repo.ListForUser(ctx, caller.UserID, limit)
}

// MarkSeen flags the caller's notifications as seen and reports how many changed.
func (s *NotificationService) MarkSeen(ctx context.Context, caller models.Caller, ids []uint) (int64, error) {
	if caller.UserID == 0 {
		return 0, models.NewUnauthorizedError("Not authenticated")
	}
	if len(ids) > maxPageSize {
		return 0, models.NewValidationError("too many ids")
	}
	return s.repo.MarkSeen(ctx, caller.UserID, ids)
}
