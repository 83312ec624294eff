package models

import "time"

// NotificationType identifies what an in-app notification is about.
type NotificationType string

const (
	// NotificationTypeAdminStatusRequest tells super-admins a status-change request awaits review.
	NotificationTypeAdminStatusRequest NotificationType = "admin_status_request"
)

// Notification is an in-app notification record shown in the admin panel.
type Notification struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	Type              NotificationType `gorm:"type:varchar(40);not null;index" json:"type"`
	NotificationForID uint             `gorm:"not null;index" json:"notification_for_id"`
	ActorUserID       uint             `gorm:"not null" json:"actor_user_id"`
	ForRole           string           `gorm:"type:varchar(20)" json:"for_role"`
	Payload           string           `gorm:"type:text" json:"payload"`
	Seen              bool             `gorm:"not null;default:false" json:"seen"`
	CreatedAt         time.Time        `json:"created_at"`
}

// NotificationPayload is the workflow-facing description of an in-app notification.
type NotificationPayload struct {
	Type        NotificationType `json:"type"`
	ActorUserID uint             `json:"actor_user_id"`
	ForRole     string           `json:"for_role,omitempty"`
	Data        map[string]any   `json:"data,omitempty"`
}
