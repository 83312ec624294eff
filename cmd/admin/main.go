// Package main provides admin management utilities for Quill.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"quill/internal/auth"
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote-super <user_id>          - Grant super admin (and admin)")
	fmt.Println("  go run ./cmd/admin demote-super <user_id>           - Revoke super admin")
	fmt.Println("  go run ./cmd/admin list-super-admins                - List all super admins")
	fmt.Println("  go run ./cmd/admin issue-token <user_id> [ttl]      - Print a bearer token (ttl like 24h)")
	fmt.Println("  go run ./cmd/admin set-password <user_id> <pass>    - Replace a user's password")
	fmt.Println("  go run ./cmd/admin watch-notifications              - Print notifications published on Redis")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := os.Args[1]
	if command == "watch-notifications" {
		watchNotifications(cfg)
		return
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	cache.InitRedis(cfg.RedisURL)
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	switch command {
	case "promote-super":
		promoteSuper(ctx, users, argID(2))
	case "demote-super":
		demoteSuper(ctx, users, argID(2))
	case "list-super-admins":
		listSuperAdmins(ctx, users)
	case "issue-token":
		ttl := auth.DefaultTTL
		if len(os.Args) > 3 {
			ttl, err = time.ParseDuration(os.Args[3])
			if err != nil {
				log.Fatalf("Invalid ttl %q: %v", os.Args[3], err)
			}
		}
		issueToken(ctx, cfg, users, argID(2), ttl)
	case "set-password":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		setPassword(ctx, users, argID(2), os.Args[3])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func argID(pos int) uint {
	if len(os.Args) <= pos {
		usage()
		os.Exit(1)
	}
	id, err := strconv.ParseUint(os.Args[pos], 10, 32)
	if err != nil || id == 0 {
		log.Fatalf("Invalid user id %q", os.Args[pos])
	}
	return uint(id)
}

func loadUser(ctx context.Context, users repository.UserRepository, id uint) *models.User {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}
	return user
}

func promoteSuper(ctx context.Context, users repository.UserRepository, id uint) {
	user := loadUser(ctx, users, id)
	if user.IsSuperAdmin {
		fmt.Printf("User %s (ID: %d) is already a super admin\n", user.Username, user.ID)
		return
	}

	if _, err := users.SetAdminFlag(ctx, id, true); err != nil {
		log.Fatalf("Failed to set admin flag: %v", err)
	}
	if _, err := users.SetSuperAdminFlag(ctx, id, true); err != nil {
		log.Fatalf("Failed to promote user: %v", err)
	}
	fmt.Printf("Promoted %s (ID: %d) to super admin\n", user.Username, user.ID)
}

func demoteSuper(ctx context.Context, users repository.UserRepository, id uint) {
	user := loadUser(ctx, users, id)
	if !user.IsSuperAdmin {
		fmt.Printf("User %s (ID: %d) is not a super admin\n", user.Username, user.ID)
		return
	}

	supers, err := users.FindSuperAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch super admins: %v", err)
	}
	if len(supers) <= 1 {
		log.Fatalf("Refusing to demote the last super admin; pending requests could never be reviewed")
	}

	if _, err := users.SetSuperAdminFlag(ctx, id, false); err != nil {
		log.Fatalf("Failed to demote user: %v", err)
	}
	fmt.Printf("Revoked super admin from %s (ID: %d); admin flag kept\n", user.Username, user.ID)
}

func listSuperAdmins(ctx context.Context, users repository.UserRepository) {
	supers, err := users.FindSuperAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch super admins: %v", err)
	}
	if len(supers) == 0 {
		fmt.Println("No super admins found in the system")
		return
	}

	fmt.Printf("Found %d super admin(s):\n", len(supers))
	for _, u := range supers {
		fmt.Printf("  - %s (ID: %d, Email: %s)\n", u.Username, u.ID, u.Email)
	}
}

func issueToken(ctx context.Context, cfg *config.Config, users repository.UserRepository, id uint, ttl time.Duration) {
	user := loadUser(ctx, users, id)
	token, err := auth.IssueToken(cfg.JWTSecret, user.ID, user.Username, ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func setPassword(ctx context.Context, users repository.UserRepository, id uint, password string) {
	if len(password) < 8 {
		log.Fatal("Password must be at least 8 characters")
	}
	user := loadUser(ctx, users, id)
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	if err := users.SetPassword(ctx, user.ID, string(hashed)); err != nil {
		log.Fatalf("Failed to set password: %v", err)
	}
	fmt.Printf("Password updated for %s (ID: %d)\n", user.Username, user.ID)
}

func watchNotifications(cfg *config.Config) {
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()
	if rdb == nil {
		log.Fatal("Redis is not reachable; nothing to watch")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := notifications.NewNotifier(rdb)
	if err := n.Subscribe(ctx, func(channel, payload string) {
		fmt.Printf("[%s] %s\n", channel, payload)
	}); err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	fmt.Println("Watching notifications:user:* (Ctrl+C to stop)")
	<-ctx.Done()
}
