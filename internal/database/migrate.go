package database

import (
	"fmt"

	"quill/internal/middleware"
	"quill/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.AdminStatusChangeRequest{},
		&models.Notification{},
	}
}

// indexStatements are applied after AutoMigrate. Partial indexes are written in the
// subset of SQL that both PostgreSQL and SQLite accept.
var indexStatements = []string{
	// At most one pending request per (requester, target, action).
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_status_change_pending
		ON admin_status_change_requests (requesting_user_id, target_user_id, action)
		WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_users_super_admin
		ON users (is_super_admin) WHERE deleted_at IS NULL`,
}

// Migrate brings the schema up to date for every persistent model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	for _, stmt := range indexStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply index: %w", err)
		}
	}

	middleware.Logger.Info("Database migration completed")
	return nil
}
