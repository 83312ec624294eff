package seed

import (
	"fmt"
	"log/slog"

	"quill/internal/middleware"
	"quill/internal/models"

	"gorm.io/gorm"
)

// Counts is how many users of each role a demo directory gets.
type Counts struct {
	Regular     int
	Admins      int
	SuperAdmins int
	// PendingRequests is how many pending requests admins file about regular users.
	PendingRequests int
}

// Seeder fills a database with a demo user directory.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder returns a Seeder writing through db.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, factory: f}, nil
}

// ClearAll removes every row the workflow owns, children first.
func (s *Seeder) ClearAll() error {
	for _, model := range []any{&models.Notification{}, &models.AdminStatusChangeRequest{}, &models.User{}} {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Directory creates users per counts and files pending requests from admins about
// regular users. It returns every user created.
func (s *Seeder) Directory(counts Counts) ([]models.User, error) {
	var (
		all      []models.User
		admins   []models.User
		regulars []models.User
	)

	create := func(n int, role models.Role, into *[]models.User) error {
		for i := 0; i < n; i++ {
			u, err := s.factory.CreateUser(role)
			if err != nil {
				return fmt.Errorf("create %s user: %w", role, err)
			}
			*into = append(*into, *u)
			all = append(all, *u)
		}
		return nil
	}

	var supers []models.User
	if err := create(counts.SuperAdmins, models.RoleSuperAdmin, &supers); err != nil {
		return nil, err
	}
	if err := create(counts.Admins, models.RoleAdmin, &admins); err != nil {
		return nil, err
	}
	if err := create(counts.Regular, models.RoleRegular, &regulars); err != nil {
		return nil, err
	}

	filed := 0
	for i := 0; filed < counts.PendingRequests && len(admins) > 0 && i < len(regulars); i++ {
		requester := admins[i%len(admins)]
		if _, err := s.factory.CreatePendingRequest(&requester, &regulars[i], models.StatusChangeActionPromote); err != nil {
			return nil, fmt.Errorf("create pending request: %w", err)
		}
		filed++
	}

	middleware.Logger.Info("seeded user directory",
		slog.Int("users", len(all)),
		slog.Int("super_admins", len(supers)),
		slog.Int("pending_requests", filed),
	)
	return all, nil
}
