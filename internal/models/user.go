// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the Quill user directory.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:60;uniqueIndex;not null" json:"username"`
	Fullname     string         `gorm:"size:120" json:"fullname"`
	Email        string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password     string         `gorm:"not null" json:"-"`
	IsAdmin      bool           `gorm:"not null;default:false;index" json:"is_admin"`
	IsSuperAdmin bool           `gorm:"not null;default:false;index" json:"is_super_admin"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Role returns the tagged role derived from the stored flags.
func (u *User) Role() Role {
	if u == nil {
		return RoleRegular
	}
	return RoleFor(u.IsAdmin, u.IsSuperAdmin)
}

// UserSummary is the display projection used when a request's participants are resolved.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// Summary projects the user for embedding in list responses.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Fullname: u.Fullname,
		Email:    u.Email,
	}
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Fullname != "" {
		return u.Fullname
	}
	return u.Username
}
