package server

import (
	"strings"

	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

type setAdminRequest struct {
	UserID       uint   `json:"user_id"`
	LegacyUserID uint   `json:"userId"`
	Admin        *bool  `json:"admin"`
	Action       string `json:"action"`
	Reason       string `json:"reason"`
}

func (r setAdminRequest) input() (service.StatusChangeInput, bool) {
	in := service.StatusChangeInput{
		TargetUserID: r.UserID,
		Reason:       r.Reason,
	}
	if in.TargetUserID == 0 {
		in.TargetUserID = r.LegacyUserID
	}
	switch {
	case r.Action != "":
		in.Action = models.StatusChangeAction(strings.ToLower(strings.TrimSpace(r.Action)))
	case r.Admin != nil:
		in.Action = models.StatusChangeActionFor(*r.Admin)
	default:
		return in, false
	}
	return in, true
}

// SetAdminStatus handles POST /api/admin/set-admin.
// @Summary Request an admin status change
// @Description Super-admins change the admin flag immediately. Everyone else files a pending request that super-admins are notified about.
// @Tags admin-status
// @Accept json
// @Produce json
// @Param request body object{user_id=int,admin=bool,action=string,reason=string} true "Target user and desired change"
// @Success 200 {object} object{outcome=string,user=models.User}
// @Success 202 {object} object{outcome=string,message=string,request=models.AdminStatusChangeRequest}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/set-admin [post]
func (s *Server) SetAdminStatus(c *fiber.Ctx) error {
	var req setAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	in, ok := req.input()
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Either admin or action is required"))
	}

	result, err := s.adminRequests.RequestStatusChange(c.UserContext(), callerFrom(c), in)
	if result == nil {
		return respondError(c, err)
	}

	if result.Outcome == service.OutcomeApplied {
		return c.JSON(fiber.Map{
			"outcome": result.Outcome,
			"user":    result.User,
		})
	}

	body := fiber.Map{
		"outcome": result.Outcome,
		"message": "Request created. Awaiting super admin approval.",
		"request": result.Request,
	}
	if err != nil {
		body["warning"] = "Request created, but super admins could not be notified."
		body["code"] = models.CodeNotificationFailed
	}
	return c.Status(fiber.StatusAccepted).JSON(body)
}

// GetStatusChangeRequests handles GET /api/admin/status-change-requests.
// @Summary List status change requests
// @Tags admin-status
// @Produce json
// @Param status query string false "pending (default), approved or rejected"
// @Success 200 {array} models.AdminStatusChangeRequest
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/status-change-requests [get]
func (s *Server) GetStatusChangeRequests(c *fiber.Ctx) error {
	requests, err := s.adminRequests.ListPendingRequests(c.UserContext(), callerFrom(c), strings.TrimSpace(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// ApproveStatusChangeRequest handles POST /api/admin/status-change-requests/:id/approve.
// @Summary Approve a status change request
// @Tags admin-status
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} models.AdminStatusChangeRequest
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/status-change-requests/{id}/approve [post]
func (s *Server) ApproveStatusChangeRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, err := s.adminRequests.ApproveRequest(c.UserContext(), callerFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Request approved and user status updated.",
		"request": req,
	})
}

// RejectStatusChangeRequest handles POST /api/admin/status-change-requests/:id/reject.
// @Summary Reject a status change request
// @Tags admin-status
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param request body object{notes=string} false "Reviewer notes"
// @Success 200 {object} models.AdminStatusChangeRequest
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/status-change-requests/{id}/reject [post]
func (s *Server) RejectStatusChangeRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var body struct {
		Notes string `json:"notes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	req, err := s.adminRequests.RejectRequest(c.UserContext(), callerFrom(c), id, body.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Request rejected.",
		"request": req,
	})
}

// GetMyStatusChangeRequests handles GET /api/admin/my-status-change-requests.
// @Summary List my status change requests
// @Tags admin-status
// @Produce json
// @Success 200 {array} models.AdminStatusChangeRequest
// @Security BearerAuth
// @Router /admin/my-status-change-requests [get]
func (s *Server) GetMyStatusChangeRequests(c *fiber.Ctx) error {
	requests, err := s.adminRequests.ListMyRequests(c.UserContext(), callerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// DeleteStatusChangeRequest handles DELETE /api/admin/status-change-requests/:id.
// @Summary Delete a status change request
// @Description The requester or any super-admin may delete a request in any status.
// @Tags admin-status
// @Param id path int true "Request ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/status-change-requests/{id} [delete]
func (s *Server) DeleteStatusChangeRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.adminRequests.DeleteRequest(c.UserContext(), callerFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Request deleted."})
}
