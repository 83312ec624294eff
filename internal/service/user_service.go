package service

import (
	"context"
	"fmt"
	"strings"

	"quill/internal/models"
	"quill/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	searchLimit     = 50
	maxSearchLen    = 100
)

type UserService struct {
	userRepo repository.UserRepository
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total_users"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ListUsers returns a page of users for admins. page is 1-based; search, when set,
// keeps users whose username, email or full name contains it.
func (s *UserService) ListUsers(ctx context.Context, caller models.Caller, search string, page, limit int) (*UserPage, error) {
	if !caller.Role.IsAdmin() {
		return nil, models.NewForbiddenError("Admin access required")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	users, err := s.userRepo.List(ctx, search, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.userRepo.Count(ctx, search)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}

	return &UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

// SearchUsers finds up to 50 users matching query. A blank query finds nobody.
func (s *UserService) SearchUsers(ctx context.Context, caller models.Caller, query string) ([]models.User, error) {
	if !caller.Role.IsAdmin() {
		return nil, models.NewForbiddenError("Admin access required")
	}
	if strings.TrimSpace(query) == "" {
		return []models.User{}, nil
	}
	if len(query) > maxSearchLen {
		return nil, models.NewValidationError(fmt.Sprintf("Search query too long (max %d characters)", maxSearchLen))
	}

	users, err := s.userRepo.List(ctx, query, searchLimit, 0)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
