package server

import (
	"quill/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Show status-change notification flags
// @Description Configured rule and effective state for the calling super-admin of the flags that gate reviewer email and in-app notifications.
// @Tags admin-status
// @Produce json
// @Success 200 {object} object{flags=[]featureflags.State}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	caller := callerFrom(c)

	states := make([]featureflags.State, 0, len(featureflags.Workflow))
	for _, name := range featureflags.Workflow {
		states = append(states, s.featureFlags.Describe(name, caller.UserID, true))
	}
	return c.JSON(fiber.Map{"flags": states})
}
