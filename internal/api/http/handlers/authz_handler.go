package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AuthzHandler answers permission questions for UI gating.
type AuthzHandler struct {
	service *service.TicketService
}

// NewAuthzHandler constructs handler.
func NewAuthzHandler(ticketService *service.TicketService) *AuthzHandler {
	return &AuthzHandler{service: ticketService}
}

// Check POST /authz/check. Unknown subjects are answered with allowed=false.
func (h *AuthzHandler) Check(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AuthzCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	subject, _ := authz.ParseSubject(req.Subject)
	actor := principal.Actor()
	allowed := h.service.Authorize(authz.Request{
		Role:    actor.Role,
		Action:  authz.Action(req.Action),
		Subject: subject,
		OwnerID: req.OwnerID,
		ActorID: actor.ID,
	})
	return c.JSON(fiber.Map{"data": fiber.Map{
		"role":    actor.Role,
		"action":  req.Action,
		"subject": req.Subject,
		"allowed": allowed,
	}})
}
