package server

import (
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyNotifications handles GET /api/admin/notifications
// @Summary List my notifications
// @Tags admin-notifications
// @Produce json
// @Param limit query int false "Max items (default 50)"
// @Success 200 {array} models.Notification
// @Security BearerAuth
// @Router /admin/notifications [get]
func (s *Server) GetMyNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	list, err := s.notifications.ListMine(c.UserContext(), callerFrom(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// MarkNotificationsSeen handles POST /api/admin/notifications/seen
// @Summary Mark notifications as seen
// @Tags admin-notifications
// @Accept json
// @Produce json
// @Param request body object{ids=[]int} true "Notification ids"
// @Success 200 {object} object{updated=int}
// @Security BearerAuth
// @Router /admin/notifications/seen [post]
func (s *Server) MarkNotificationsSeen(c *fiber.Ctx) error {
	var req struct {
		IDs []uint `json:"ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	n, err := s.notifications.MarkSeen(c.UserContext(), callerFrom(c), req.IDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
