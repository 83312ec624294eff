package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quill/internal/mail"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "notifications:user:100", UserChannel(100))
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "payload"))
	assert.NoError(t, n.Subscribe(context.Background(), func(string, string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishUser(context.Background(), 1, "payload"))
}

func TestDispatcher_CreateInAppNotification(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := testutil.NewTestDB(t)
	super := testutil.CreateUser(t, db, models.RoleSuperAdmin)
	actor := testutil.CreateUser(t, db, models.RoleAdmin)

	notifier := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	require.NoError(t, notifier.Subscribe(ctx, func(channel, payload string) {
		if channel == UserChannel(super.ID) {
			received <- payload
		}
	}))

	d := NewDispatcher(repository.NewNotificationRepository(db), notifier, nil, "")
	err := d.CreateInAppNotification(ctx, super.ID, models.NotificationPayload{
		Type:        models.NotificationTypeAdminStatusRequest,
		ActorUserID: actor.ID,
		ForRole:     models.RoleSuperAdmin.String(),
		Data:        map[string]any{"request_id": 7, "action": "promote"},
	})
	require.NoError(t, err)

	var stored []models.Notification
	require.NoError(t, db.Where("notification_for_id = ?", super.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, models.NotificationTypeAdminStatusRequest, stored[0].Type)
	assert.Equal(t, "super_admin", stored[0].ForRole)
	assert.JSONEq(t, `{"request_id":7,"action":"promote"}`, stored[0].Payload)

	select {
	case payload := <-received:
		var event Event
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		assert.Equal(t, "admin_status_request", event.Type)
		assert.NotEmpty(t, event.ID)
		require.NotNil(t, event.Notification)
		assert.Equal(t, stored[0].ID, event.Notification.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not published")
	}
}

func TestDispatcher_PublishFailureIsNotReturned(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	db := testutil.NewTestDB(t)
	super := testutil.CreateUser(t, db, models.RoleSuperAdmin)

	d := NewDispatcher(repository.NewNotificationRepository(db), NewNotifier(rdb), nil, "")
	err := d.CreateInAppNotification(context.Background(), super.ID, models.NotificationPayload{
		Type: models.NotificationTypeAdminStatusRequest,
	})
	assert.NoError(t, err)
}

func TestDispatcher_SendEmail(t *testing.T) {
	sender := testutil.NewFakeEmailSender()
	d := NewDispatcher(nil, nil, sender, "noreply@quill.dev")

	require.NoError(t, d.SendEmail(context.Background(), []string{"a@example.com", "b@example.com"}, "Subject", "Body"))
	last := sender.LastSent()
	require.NotNil(t, last)
	assert.Equal(t, "noreply@quill.dev", last.From)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, last.To)

	sender.Err = errors.New("relay down")
	assert.Error(t, d.SendEmail(context.Background(), []string{"a@example.com"}, "s", "b"))
}

func TestDispatcher_UnconfiguredMail(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, "")
	err := d.SendEmail(context.Background(), []string{"a@example.com"}, "s", "b")
	assert.True(t, errors.Is(err, mail.ErrNotConfigured))
}
