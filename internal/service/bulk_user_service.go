package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
)

const maxBulkUsers = 100

// BulkAction is a directory change applied to every user in a batch.
type BulkAction string

const (
	BulkActionPromote BulkAction = "promote"
	BulkActionDemote  BulkAction = "demote"
	BulkActionDelete  BulkAction = "delete"
)

// ParseBulkAction validates a bulk action name.
func ParseBulkAction(raw string) (BulkAction, bool) {
	switch BulkAction(raw) {
	case BulkActionPromote, BulkActionDemote, BulkActionDelete:
		return BulkAction(raw), true
	}
	return "", false
}

// BulkItemResult is the outcome for one user id.
type BulkItemResult struct {
	UserID  uint   `json:"user_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkResult lists per-id outcomes in input order.
type BulkResult struct {
	Action    BulkAction       `json:"action"`
	Results   []BulkItemResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// BulkUserService applies super-admin batch actions directly to the user directory.
type BulkUserService struct {
	users repository.UserRepository
}

func NewBulkUserService(users repository.UserRepository) *BulkUserService {
	return &BulkUserService{users: users}
}

// Apply runs action against each distinct id. Every id succeeds or fails on its own;
// the caller's own id fails for demote and delete.
func (s *BulkUserService) Apply(ctx context.Context, caller models.Caller, ids []uint, rawAction string) (*BulkResult, error) {
	if !caller.Role.IsSuperAdmin() {
		return nil, models.NewForbiddenError("Super admin access required")
	}
	action, ok := ParseBulkAction(rawAction)
	if !ok {
		return nil, models.NewValidationError("action must be one of promote, demote, delete")
	}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, models.NewValidationError("user_ids must not be empty")
	}
	if len(ids) > maxBulkUsers {
		return nil, models.NewValidationError(fmt.Sprintf("at most %d users per batch", maxBulkUsers))
	}

	out := &BulkResult{Action: action, Results: make([]BulkItemResult, 0, len(ids))}
	for _, id := range ids {
		item := BulkItemResult{UserID: id}
		if err := s.applyOne(ctx, caller, id, action); err != nil {
			item.Error = bulkErrorMessage(err)
			out.Failed++
			observability.BulkUserActions.WithLabelValues(string(action), "failed").Inc()
		} else {
			item.Success = true
			out.Succeeded++
			observability.BulkUserActions.WithLabelValues(string(action), "succeeded").Inc()
		}
		out.Results = append(out.Results, item)
	}

	middleware.Logger.InfoContext(ctx, "bulk user action applied",
		slog.String("action", string(action)),
		slog.Int("succeeded", out.Succeeded),
		slog.Int("failed", out.Failed),
	)
	return out, nil
}

func (s *BulkUserService) applyOne(ctx context.Context, caller models.Caller, id uint, action BulkAction) error {
	if id == 0 {
		return models.NewValidationError("invalid user id")
	}
	switch action {
	case BulkActionPromote:
		_, err := s.users.SetAdminFlag(ctx, id, true)
		return err
	case BulkActionDemote:
		if id == caller.UserID {
			return models.NewSelfDemotionError()
		}
		_, err := s.users.SetAdminFlag(ctx, id, false)
		return err
	case BulkActionDelete:
		if id == caller.UserID {
			return models.NewValidationError("You cannot delete yourself")
		}
		return s.users.Delete(ctx, id)
	}
	return models.NewValidationError("unknown action")
}

func bulkErrorMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == models.CodeNotFound {
			return "User not found"
		}
		if appErr.Code != models.CodeInternal {
			return appErr.Message
		}
	}
	return "Internal error"
}

// dedupeIDs drops repeated ids, keeping the first occurrence.
func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
