// Package seed provides helpers to create demo data for the admin workflow.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"

	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password given to generated users.
const DefaultPassword = "password123"

// Options tune how entities are generated.
type Options struct {
	// SkipBcrypt stores the plain default password; only for fast local runs.
	SkipBcrypt bool
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	hash string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	f := &Factory{db: db, opts: opts, hash: DefaultPassword}
	if !opts.SkipBcrypt {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash default password: %w", err)
		}
		f.hash = string(hashed)
	}
	return f, nil
}

// CreateUser persists a user with the given role and generated identity fields.
func (f *Factory) CreateUser(role models.Role, overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username:     gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(1000, 9999)),
		Fullname:     gofakeit.Name(),
		Email:        fmt.Sprintf("%d.%s", gofakeit.Number(1000, 9999), gofakeit.Email()),
		Password:     f.hash,
		IsAdmin:      role.IsAdmin(),
		IsSuperAdmin: role.IsSuperAdmin(),
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreatePendingRequest files a pending status change request from requester about target.
func (f *Factory) CreatePendingRequest(requester, target *models.User, action models.StatusChangeAction) (*models.AdminStatusChangeRequest, error) {
	req := &models.AdminStatusChangeRequest{
		RequestingUserID: requester.ID,
		TargetUserID:     target.ID,
		Action:           action,
		Reason:           gofakeit.Sentence(8),
		Status:           models.StatusChangeStatusPending,
	}
	if err := f.db.Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}
