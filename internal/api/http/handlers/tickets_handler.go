package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	service *service.TicketService
	now     func() time.Time
}

// NewTicketsHandler constructs handler. A nil clock uses time.Now.
func NewTicketsHandler(ticketService *service.TicketService, clock func() time.Time) *TicketsHandler {
	if clock == nil {
		clock = time.Now
	}
	return &TicketsHandler{service: ticketService, now: clock}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	input := service.CreateTicketInput{
		RequesterID:  req.RequesterID,
		Priority:     domain.TicketPriority(req.Priority),
		CategoryID:   req.CategoryID,
		Title:        req.Title,
		Description:  req.Description,
		TicketNumber: req.TicketNumber,
	}
	now := h.now()
	ticket, err := h.service.CreateTicket(c.UserContext(), input, principal.Actor(), now)
	if err != nil {
		return err
	}
	report := h.service.ComplianceStatus(ticket, now)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, &report)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), principal.Actor(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i], nil))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id. The response carries compliance evaluated now.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	report := h.service.ComplianceStatus(ticket, h.now())
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, &report)})
}

// Transition POST /tickets/:id/transitions.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ev, err := lifecycle.ParseEvent(strings.ToLower(strings.TrimSpace(req.Event)))
	if err != nil {
		return err
	}
	now := h.now()
	ticket, err := h.service.Transition(c.UserContext(), c.Params("id"), principal.Actor(), ev, now)
	if err != nil {
		return err
	}
	report := h.service.ComplianceStatus(ticket, now)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, &report)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	ticket, err := h.service.Assign(c.UserContext(), c.Params("id"), principal.Actor(), req.AssigneeID, h.now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, nil)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), c.Params("id"), principal.Actor(), h.now()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.NewCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), c.Params("id"), principal.Actor(),
		service.AddCommentInput{Body: req.Body, Internal: req.Internal}, h.now())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// DeleteComment DELETE /tickets/:id/comments/:commentId.
func (h *TicketsHandler) DeleteComment(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteComment(c.UserContext(), c.Params("id"), c.Params("commentId"), principal.Actor(), h.now()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if search := c.Query("q"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
