package seed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"quill/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixtures is the YAML fixture file format:
//
//	users:
//	  - username: root
//	    email: root@example.com
//	    password: change-me
//	    role: super_admin
type Fixtures struct {
	Users []FixtureUser `yaml:"users"`
}

// FixtureUser is one user entry. Role is regular, admin or super_admin.
type FixtureUser struct {
	Username string `yaml:"username"`
	Fullname string `yaml:"fullname"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// LoadFixtures reads and validates a fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes and validates fixture YAML.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Users))
	for i, u := range f.Users {
		if strings.TrimSpace(u.Username) == "" || strings.TrimSpace(u.Email) == "" {
			return nil, fmt.Errorf("fixture user %d: username and email are required", i)
		}
		if _, ok := models.ParseRole(u.Role); !ok {
			return nil, fmt.Errorf("fixture user %q: unknown role %q", u.Username, u.Role)
		}
		key := strings.ToLower(u.Username)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("fixture user %q listed twice", u.Username)
		}
		seen[key] = struct{}{}
	}
	return &f, nil
}

// ApplyFixtures creates missing fixture users and brings the role flags of existing
// ones (matched by username) in line. It returns how many users were created.
func ApplyFixtures(db *gorm.DB, f *Fixtures) (int, error) {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, fu := range f.Users {
			role, _ := models.ParseRole(fu.Role)

			var existing models.User
			err := tx.Where("username = ?", fu.Username).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				password := fu.Password
				if password == "" {
					password = DefaultPassword
				}
				hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
				if err != nil {
					return fmt.Errorf("hash password for %q: %w", fu.Username, err)
				}
				user := models.User{
					Username:     fu.Username,
					Fullname:     fu.Fullname,
					Email:        strings.ToLower(strings.TrimSpace(fu.Email)),
					Password:     string(hashed),
					IsAdmin:      role.IsAdmin(),
					IsSuperAdmin: role.IsSuperAdmin(),
				}
				if err := tx.Create(&user).Error; err != nil {
					return fmt.Errorf("create %q: %w", fu.Username, err)
				}
				created++
			case err != nil:
				return err
			default:
				if err := tx.Model(&models.User{}).Where("id = ?", existing.ID).Updates(map[string]any{
					"is_admin":       role.IsAdmin(),
					"is_super_admin": role.IsSuperAdmin(),
				}).Error; err != nil {
					return fmt.Errorf("update %q: %w", fu.Username, err)
				}
			}
		}
		return nil
	})
	return created, err
}
