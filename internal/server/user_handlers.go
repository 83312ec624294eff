package server

import (
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin-users
// @Produce json
// @Param q query string false "Filter by username, email or full name"
// @Param page query int false "1-based page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} service.UserPage
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page, err := s.users.ListUsers(c.UserContext(), callerFrom(c), c.Query("q"), c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// SearchUsers handles POST /api/admin/search-users
// @Summary Find users to act on
// @Tags admin-users
// @Accept json
// @Produce json
// @Param request body object{query=string} true "Substring of username, email or full name"
// @Success 200 {object} object{users=[]models.User}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/search-users [post]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	users, err := s.users.SearchUsers(c.UserContext(), callerFrom(c), req.Query)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// BulkUserAction handles POST /api/admin/bulk-user-action
// @Summary Apply an action to many users
// @Description Super-admin only. Each id succeeds or fails on its own.
// @Tags admin-users
// @Accept json
// @Produce json
// @Param request body object{user_ids=[]int,action=string} true "Ids and one of promote, demote, delete"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/bulk-user-action [post]
func (s *Server) BulkUserAction(c *fiber.Ctx) error {
	var req struct {
		UserIDs       []uint `json:"user_ids"`
		LegacyUserIDs []uint `json:"userIds"`
		Action        string `json:"action"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	ids := req.UserIDs
	if len(ids) == 0 {
		ids = req.LegacyUserIDs
	}

	result, err := s.bulkUsers.Apply(c.UserContext(), callerFrom(c), ids, req.Action)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
