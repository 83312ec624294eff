// Package service contains the business logic of the admin API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quill/internal/featureflags"
	"quill/internal/mail"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/ratelimit"
	"quill/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxReasonLen = 1000
	maxNotesLen  = 1000

	statusChangeEmailSubject = "Admin Status Change Request (Pending Approval)"

	notesNoRecipients = "No valid super admin emails found or target user missing."
	notesMailDisabled = "Email not sent: mail transport is not configured."
)

// Notifier is what the workflow needs from the notification layer.
type Notifier interface {
	CreateInAppNotification(ctx context.Context, forUserID uint, payload models.NotificationPayload) error
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// StatusChangeOutcome tells the caller whether a status change happened or awaits review.
type StatusChangeOutcome string

const (
	OutcomeApplied StatusChangeOutcome = "applied"
	OutcomePending StatusChangeOutcome = "pending"
)

// StatusChangeResult is returned by RequestStatusChange. Exactly one of User
// (applied) or Request (pending) is set.
type StatusChangeResult struct {
	Outcome StatusChangeOutcome
	User    *models.User
	Request *models.AdminStatusChangeRequest
}

// StatusChangeInput is a status-change submission.
type StatusChangeInput struct {
	TargetUserID uint
	Action       models.StatusChangeAction
	Reason       string
}

// AdminRequestService runs the admin status-change request workflow.
type AdminRequestService struct {
	users    repository.UserRepository
	requests repository.StatusChangeRequestRepository
	notifier Notifier
	limiter  ratelimit.Limiter
	flags    *featureflags.Manager
	now      func() time.Time
}

// NewAdminRequestService wires the workflow. A nil limiter disables rate limiting.
func NewAdminRequestService(
	users repository.UserRepository,
	requests repository.StatusChangeRequestRepository,
	notifier Notifier,
	limiter ratelimit.Limiter,
	flags *featureflags.Manager,
) *AdminRequestService {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &AdminRequestService{
		users:    users,
		requests: requests,
		notifier: notifier,
		limiter:  limiter,
		flags:    flags,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for review timestamps.
func (s *AdminRequestService) WithClock(now func() time.Time) *AdminRequestService {
	s.now = now
	return s
}

// RequestStatusChange applies the change at once for a super-admin and otherwise files
// a pending request and notifies every super-admin.
//
// When the request is stored but notifying reviewers fails, both the result and a
// NOTIFICATION_FAILED error are returned; the failure is recorded in the request notes.
func (s *AdminRequestService) RequestStatusChange(ctx context.Context, caller models.Caller, in StatusChangeInput) (*StatusChangeResult, error) {
	ctx, span := observability.StartSpan(ctx, "AdminRequestService", "RequestStatusChange",
		attribute.Int64("caller.id", int64(caller.UserID)),
		attribute.Int64("target.id", int64(in.TargetUserID)),
		attribute.String("action", string(in.Action)),
	)
	result, err := s.requestStatusChange(ctx, caller, in)
	if result == nil {
		observability.EndSpan(span, err)
	} else {
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		observability.EndSpan(span, nil)
	}
	return result, err
}

func (s *AdminRequestService) requestStatusChange(ctx context.Context, caller models.Caller, in StatusChangeInput) (*StatusChangeResult, error) {
	if caller.UserID == 0 {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}
	if in.TargetUserID == 0 {
		return nil, models.NewValidationError("user_id is required")
	}
	if !in.Action.Valid() {
		return nil, models.NewValidationError("action must be 'promote' or 'demote'")
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) > maxReasonLen {
		return nil, models.NewValidationError(fmt.Sprintf("Reason too long (max %d characters)", maxReasonLen))
	}

	if caller.Role.IsSuperAdmin() {
		return s.applyDirectly(ctx, caller, in)
	}

	target, err := s.users.GetByID(ctx, in.TargetUserID)
	if err != nil {
		return nil, err
	}

	// A duplicate is reported as a conflict and does not spend the caller's budget.
	existing, err := s.requests.FindPending(ctx, caller.UserID, target.ID, in.Action)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		observability.StatusChangeOutcomes.WithLabelValues("conflict").Inc()
		return nil, models.NewConflictError("A similar pending request already exists")
	}

	allowed, err := s.limiter.Allow(ctx, ratelimit.StatusChangeKey(caller.UserID))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "status change rate limiter unavailable, allowing request",
			slog.String("error", err.Error()))
	} else if !allowed {
		observability.StatusChangeOutcomes.WithLabelValues("rate_limited").Inc()
		return nil, models.NewRateLimitedError("Too many status change requests, please wait before trying again")
	}

	req := &models.AdminStatusChangeRequest{
		RequestingUserID: caller.UserID,
		TargetUserID:     target.ID,
		Action:           in.Action,
		Reason:           reason,
		Status:           models.StatusChangeStatusPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			observability.StatusChangeOutcomes.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "status change request created",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.Uint64("target_user_id", uint64(target.ID)),
		slog.String("action", string(in.Action)),
	)

	result := &StatusChangeResult{Outcome: OutcomePending, Request: req}

	notes, notifyErr := s.notifySuperAdmins(ctx, caller, target, req)
	if notes != "" {
		req.Notes = notes
		if err := s.requests.SetNotes(ctx, req.ID, notes); err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to record notification notes",
				slog.Uint64("request_id", uint64(req.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	if notifyErr != nil {
		observability.StatusChangeOutcomes.WithLabelValues("degraded").Inc()
		middleware.Logger.WarnContext(ctx, "status change request created but notification failed",
			slog.Uint64("request_id", uint64(req.ID)),
			slog.String("error", notifyErr.Error()),
		)
		return result, models.NewNotificationFailedError(notifyErr)
	}

	observability.StatusChangeOutcomes.WithLabelValues(string(OutcomePending)).Inc()
	return result, nil
}

func (s *AdminRequestService) applyDirectly(ctx context.Context, caller models.Caller, in StatusChangeInput) (*StatusChangeResult, error) {
	if in.Action == models.StatusChangeActionDemote && in.TargetUserID == caller.UserID {
		observability.StatusChangeOutcomes.WithLabelValues("self_demotion").Inc()
		return nil, models.NewSelfDemotionError()
	}

	user, err := s.users.SetAdminFlag(ctx, in.TargetUserID, in.Action.AdminFlag())
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "admin flag changed by super admin",
		slog.Uint64("target_user_id", uint64(user.ID)),
		slog.Bool("is_admin", user.IsAdmin),
	)
	observability.StatusChangeOutcomes.WithLabelValues(string(OutcomeApplied)).Inc()
	return &StatusChangeResult{Outcome: OutcomeApplied, User: user}, nil
}

// notifySuperAdmins fans the new request out to every super-admin. It returns the
// notes to record on the request and a non-nil error when delivery failed.
func (s *AdminRequestService) notifySuperAdmins(ctx context.Context, caller models.Caller, target *models.User, req *models.AdminStatusChangeRequest) (string, error) {
	supers, err := s.users.FindSuperAdmins(ctx)
	if err != nil {
		return "Failed to load super admins: " + err.Error(), err
	}

	var notes []string
	var failures []error

	if s.flags.EnabledOrDefault(featureflags.StatusRequestInApp, caller.UserID, true) {
		failed := 0
		for _, super := range supers {
			err := s.notifier.CreateInAppNotification(ctx, super.ID, models.NotificationPayload{
				Type:        models.NotificationTypeAdminStatusRequest,
				ActorUserID: caller.UserID,
				ForRole:     models.RoleSuperAdmin.String(),
				Data: map[string]any{
					"request_id":     req.ID,
					"target_user_id": target.ID,
					"action":         string(req.Action),
				},
			})
			if err != nil {
				failed++
				failures = append(failures, err)
			}
		}
		if failed > 0 {
			notes = append(notes, fmt.Sprintf("Failed to create in-app notification for %d super admin(s).", failed))
		}
	}

	if s.flags.EnabledOrDefault(featureflags.StatusRequestEmail, caller.UserID, true) {
		addresses := contactAddresses(supers)
		if len(addresses) == 0 {
			notes = append(notes, notesNoRecipients)
		} else {
			requester, err := s.users.GetByID(ctx, caller.UserID)
			if err != nil {
				requester = &models.User{ID: caller.UserID, Username: fmt.Sprintf("user #%d", caller.UserID)}
			}
			body := statusChangeEmailBody(requester, target, req.Action)
			if err := s.notifier.SendEmail(ctx, addresses, statusChangeEmailSubject, body); err != nil {
				failures = append(failures, err)
				if errors.Is(err, mail.ErrNotConfigured) {
					notes = append(notes, notesMailDisabled)
				} else {
					notes = append(notes, "Failed to send notification email to super admins. Error: "+err.Error())
				}
			}
		}
	}

	return strings.Join(notes, " "), errors.Join(failures...)
}

func contactAddresses(users []models.User) []string {
	out := make([]string, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		addr := strings.TrimSpace(u.Email)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func statusChangeEmailBody(requester, target *models.User, action models.StatusChangeAction) string {
	direction := "to"
	if action == models.StatusChangeActionDemote {
		direction = "from"
	}
	return fmt.Sprintf(
		"User %s (%s) requested to %s user %s (%s) %s admin status.\n\nPlease review and take action in the admin panel.",
		requester.DisplayName(), requester.Email,
		action,
		target.DisplayName(), target.Email,
		direction,
	)
}

// ApproveRequest applies a pending request's action to its target and marks it approved.
func (s *AdminRequestService) ApproveRequest(ctx context.Context, caller models.Caller, requestID uint) (*models.AdminStatusChangeRequest, error) {
	if !caller.Role.IsSuperAdmin() {
		return nil, models.NewForbiddenError("Super admin access required")
	}
	if requestID == 0 {
		return nil, models.NewNotProcessableError()
	}

	ctx, span := observability.StartSpan(ctx, "AdminRequestService", "ApproveRequest",
		attribute.Int64("request.id", int64(requestID)))
	req, err := s.requests.Approve(ctx, requestID, caller.UserID, s.now().UTC())
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	observability.StatusChangeResolutions.WithLabelValues(string(models.StatusChangeStatusApproved)).Inc()
	middleware.Logger.InfoContext(ctx, "status change request approved",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.Uint64("target_user_id", uint64(req.TargetUserID)),
		slog.String("action", string(req.Action)),
	)
	return req, nil
}

// RejectRequest marks a pending request rejected. The target user is not touched.
func (s *AdminRequestService) RejectRequest(ctx context.Context, caller models.Caller, requestID uint, notes string) (*models.AdminStatusChangeRequest, error) {
	if !caller.Role.IsSuperAdmin() {
		return nil, models.NewForbiddenError("Super admin access required")
	}
	notes = strings.TrimSpace(notes)
	if len(notes) > maxNotesLen {
		return nil, models.NewValidationError(fmt.Sprintf("Notes too long (max %d characters)", maxNotesLen))
	}
	if requestID == 0 {
		return nil, models.NewNotProcessableError()
	}

	req, err := s.requests.Reject(ctx, requestID, caller.UserID, s.now().UTC(), notes)
	if err != nil {
		return nil, err
	}

	observability.StatusChangeResolutions.WithLabelValues(string(models.StatusChangeStatusRejected)).Inc()
	middleware.Logger.InfoContext(ctx, "status change request rejected",
		slog.Uint64("request_id", uint64(req.ID)))
	return req, nil
}

// ListPendingRequests lists requests for review. An empty status means pending.
func (s *AdminRequestService) ListPendingRequests(ctx context.Context, caller models.Caller, status string) ([]models.AdminStatusChangeRequest, error) {
	if !caller.Role.IsSuperAdmin() {
		return nil, models.NewForbiddenError("Super admin access required")
	}
	filter := models.StatusChangeStatusPending
	if status != "" {
		parsed, ok := models.ParseStatusChangeStatus(status)
		if !ok {
			return nil, models.NewValidationError("status must be one of pending, approved, rejected")
		}
		filter = parsed
	}
	return s.requests.ListByStatus(ctx, filter)
}

// ListMyRequests lists every request the caller submitted, newest first.
func (s *AdminRequestService) ListMyRequests(ctx context.Context, caller models.Caller) ([]models.AdminStatusChangeRequest, error) {
	if caller.UserID == 0 {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}
	return s.requests.ListByRequester(ctx, caller.UserID)
}

// DeleteRequest removes a request of any status. Only its requester or a super-admin may.
func (s *AdminRequestService) DeleteRequest(ctx context.Context, caller models.Caller, requestID uint) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequestingUserID != caller.UserID && !caller.Role.IsSuperAdmin() {
		return models.NewForbiddenError("You can only delete your own requests")
	}
	if err := s.requests.Delete(ctx, requestID); err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "status change request deleted",
		slog.Uint64("request_id", uint64(requestID)),
		slog.String("status", string(req.Status)),
	)
	return nil
}
