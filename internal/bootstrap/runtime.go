// Package bootstrap builds the runtime dependencies shared by the server and the CLIs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/mail"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/ratelimit"
	"quill/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// FixturesPath, when set, loads a YAML user fixture file after migration.
	FixturesPath string
}

// InitRuntime connects to DB and Redis and optionally loads fixtures.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevRootSuperAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root super admin: %w", err)
	}

	if opts.FixturesPath != "" {
		fixtures, err := seed.LoadFixtures(opts.FixturesPath)
		if err != nil {
			return nil, nil, err
		}
		if _, err := seed.ApplyFixtures(db, fixtures); err != nil {
			return nil, nil, fmt.Errorf("failed to apply fixtures: %w", err)
		}
	}

	return db, r, nil
}

// StatusChangeLimiter picks the submission limiter: Redis when available so budgets
// are shared across replicas, process memory otherwise.
func StatusChangeLimiter(cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if cfg.StatusChangeRateLimit <= 0 {
		return ratelimit.Unlimited{}
	}
	if rdb != nil {
		return ratelimit.NewRedisLimiter(rdb, cfg.StatusChangeRateLimit, cfg.StatusChangeRateWindow())
	}
	middleware.Logger.Warn("Redis unavailable, status change rate limit is per process")
	return ratelimit.NewMemoryLimiter(cfg.StatusChangeRateLimit, cfg.StatusChangeRateWindow())
}

// BulkActionLimiter bounds bulk user actions to ten calls per minute per caller.
func BulkActionLimiter(rdb *redis.Client) ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.NewRedisLimiter(rdb, 10, time.Minute)
	}
	return ratelimit.NewMemoryLimiter(10, time.Minute)
}

// MailSender returns the SMTP sender, or mail.Unconfigured when no relay is set.
func MailSender(cfg *config.Config) (mail.Sender, error) {
	if !cfg.MailEnabled() {
		return mail.Unconfigured{}, nil
	}
	return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
}

// ensureDevRootSuperAdmin makes sure a development database has someone able to
// review status change requests.
func ensureDevRootSuperAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "quill_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@quill.local"
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("username = ?", username).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Username:     username,
				Fullname:     "Quill Root",
				Email:        email,
				Password:     string(hashedPassword),
				IsAdmin:      true,
				IsSuperAdmin: true,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&models.User{}).Where("id = ?", root.ID).
				Updates(map[string]any{"is_admin": true, "is_super_admin": true}).Error
		}
	}); err != nil {
		return err
	}

	cache.Invalidate(context.Background(), cache.SuperAdminsKey)
	middleware.Logger.Info("development root super admin ensured", slog.String("email", email))
	return nil
}
