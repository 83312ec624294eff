package models

import "time"

// StatusChangeAction is the admin flag change a request asks for.
type StatusChangeAction string

const (
	// StatusChangeActionPromote sets the target's admin flag.
	StatusChangeActionPromote StatusChangeAction = "promote"
	// StatusChangeActionDemote clears the target's admin flag.
	StatusChangeActionDemote StatusChangeAction = "demote"
)

// Valid reports whether the action is one of the known values.
func (a StatusChangeAction) Valid() bool {
	return a == StatusChangeActionPromote || a == StatusChangeActionDemote
}

// AdminFlag is the value the target's admin flag takes when the action is applied.
func (a StatusChangeAction) AdminFlag() bool {
	return a == StatusChangeActionPromote
}

// StatusChangeActionFor maps a desired admin flag to an action.
func StatusChangeActionFor(admin bool) StatusChangeAction {
	if admin {
		return StatusChangeActionPromote
	}
	return StatusChangeActionDemote
}

// StatusChangeStatus defines lifecycle states for admin status-change requests.
type StatusChangeStatus string

const (
	// StatusChangeStatusPending indicates the request is awaiting super-admin review.
	StatusChangeStatusPending StatusChangeStatus = "pending"
	// StatusChangeStatusApproved indicates the request was applied to the target user.
	StatusChangeStatusApproved StatusChangeStatus = "approved"
	// StatusChangeStatusRejected indicates the request was denied.
	StatusChangeStatusRejected StatusChangeStatus = "rejected"
)

// ParseStatusChangeStatus validates a status filter value.
func ParseStatusChangeStatus(raw string) (StatusChangeStatus, bool) {
	switch StatusChangeStatus(raw) {
	case StatusChangeStatusPending, StatusChangeStatusApproved, StatusChangeStatusRejected:
		return StatusChangeStatus(raw), true
	}
	return "", false
}

// AdminStatusChangeRequest is a non-super-admin's request to change a user's admin flag.
// Only one pending row may exist per (requesting user, target user, action); the
// partial unique index is created in database.Migrate.
type AdminStatusChangeRequest struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	RequestingUserID uint               `gorm:"not null;index" json:"requesting_user_id"`
	RequestingUser   *User              `gorm:"foreignKey:RequestingUserID" json:"requesting_user,omitempty"`
	TargetUserID     uint               `gorm:"not null;index" json:"target_user_id"`
	TargetUser       *User              `gorm:"foreignKey:TargetUserID" json:"target_user,omitempty"`
	Action           StatusChangeAction `gorm:"type:varchar(10);not null" json:"action"`
	Reason           string             `gorm:"type:text" json:"reason"`
	Status           StatusChangeStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedByUserID *uint              `json:"reviewed_by_user_id"`
	ReviewedByUser   *User              `gorm:"foreignKey:ReviewedByUserID" json:"reviewed_by_user,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewed_at"`
	Notes            string             `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (AdminStatusChangeRequest) TableName() string {
	return "admin_status_change_requests"
}

// IsPending reports whether the request still awaits review.
func (r *AdminStatusChangeRequest) IsPending() bool {
	return r.Status == StatusChangeStatusPending
}
