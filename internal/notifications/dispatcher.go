package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/mail"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"github.com/google/uuid"
)

// Event is the envelope published on a user's channel.
type Event struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification"`
	SentAt       time.Time            `json:"sent_at"`
}

// Dispatcher delivers workflow notifications: in-app records are persisted and then
// published; email goes through a mail.Sender.
type Dispatcher struct {
	store    repository.NotificationRepository
	notifier *Notifier
	sender   mail.Sender
	from     string
}

// NewDispatcher wires a Dispatcher. notifier may be nil when Redis is unavailable;
// sender may be mail.Unconfigured.
func NewDispatcher(store repository.NotificationRepository, notifier *Notifier, sender mail.Sender, from string) *Dispatcher {
	if sender == nil {
		sender = mail.Unconfigured{}
	}
	return &Dispatcher{store: store, notifier: notifier, sender: sender, from: from}
}

// CreateInAppNotification persists the notification for forUserID and publishes it.
// Only persistence failures are returned; a failed publish is logged.
func (d *Dispatcher) CreateInAppNotification(ctx context.Context, forUserID uint, payload models.NotificationPayload) error {
	raw, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	n := &models.Notification{
		Type:              payload.Type,
		NotificationForID: forUserID,
		ActorUserID:       payload.ActorUserID,
		ForRole:           payload.ForRole,
		Payload:           string(raw),
	}
	if err := d.store.Create(ctx, n); err != nil {
		observability.NotificationFailures.WithLabelValues("in_app").Inc()
		return err
	}

	event, err := json.Marshal(Event{
		ID:           uuid.NewString(),
		Type:         string(n.Type),
		Notification: n,
		SentAt:       n.CreatedAt,
	})
	if err != nil {
		return nil
	}
	if err := d.notifier.PublishUser(ctx, forUserID, string(event)); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.Uint64("for_user_id", uint64(forUserID)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// SendEmail sends one message addressed to every recipient.
func (d *Dispatcher) SendEmail(ctx context.Context, to []string, subject, body string) error {
	err := d.sender.Send(ctx, mail.Message{
		From:    d.from,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		observability.NotificationFailures.WithLabelValues("email").Inc()
		return err
	}
	return nil
}
