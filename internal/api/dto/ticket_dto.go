package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// CreateTicketRequest payload. RequesterID defaults to the caller.
type CreateTicketRequest struct {
	RequesterID  string  `json:"requester_id" validate:"omitempty,max=64"`
	Priority     string  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	CategoryID   *string `json:"category_id" validate:"omitempty,max=64"`
	Title        string  `json:"title" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=10000"`
	TicketNumber string  `json:"ticket_number" validate:"omitempty,startswith=TKT-"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Event string `json:"event" validate:"required"`
}

// AssignRequest payload. An empty assignee clears the assignment.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"omitempty,max=64"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string `json:"body" validate:"required,max=10000"`
	Internal bool   `json:"internal"`
}

// AuthzCheckRequest payload.
type AuthzCheckRequest struct {
	Action  string `json:"action" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	OwnerID string `json:"owner_id"`
}

// TicketResponse is the ticket representation.
type TicketResponse struct {
	ID                    string                `json:"id"`
	TicketNumber          string                `json:"ticket_number"`
	RequesterID           string                `json:"requester_id"`
	AssignedTo            *string               `json:"assigned_to"`
	CategoryID            *string               `json:"category_id"`
	Title                 string                `json:"title"`
	Description           string                `json:"description"`
	Status                domain.TicketStatus   `json:"status"`
	Priority              domain.TicketPriority `json:"priority"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	FirstResponseAt       *time.Time            `json:"first_response_at"`
	ResolvedAt            *time.Time            `json:"resolved_at"`
	ClosedAt              *time.Time            `json:"closed_at"`
	FirstResponseDeadline time.Time             `json:"first_response_deadline"`
	ResolutionDeadline    time.Time             `json:"resolution_deadline"`
	Compliance            *ComplianceResponse   `json:"compliance,omitempty"`
}

// ComplianceResponse is the derived SLA state.
type ComplianceResponse struct {
	FirstResponse sla.Status `json:"first_response_status"`
	Resolution    sla.Status `json:"resolution_status"`
	Overdue       bool       `json:"overdue"`
	EvaluatedAt   time.Time  `json:"evaluated_at"`
}

// CommentResponse represents a thread message.
type CommentResponse struct {
	ID         string      `json:"id"`
	TicketID   string      `json:"ticket_id"`
	AuthorID   string      `json:"author_id"`
	AuthorRole domain.Role `json:"author_role"`
	Body       string      `json:"body"`
	Internal   bool        `json:"internal"`
	CreatedAt  time.Time   `json:"created_at"`
}

// HistoryResponse is an audit entry.
type HistoryResponse struct {
	ID            string                  `json:"id"`
	ChangedByID   string                  `json:"changed_by_id"`
	ChangedByRole domain.Role             `json:"changed_by_role"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	OldValue      map[string]any          `json:"old_value,omitempty"`
	NewValue      map[string]any          `json:"new_value,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// NewTicketResponse maps a ticket, attaching compliance when report is non-nil.
func NewTicketResponse(t *domain.Ticket, report *sla.Report) TicketResponse {
	resp := TicketResponse{
		ID:                    t.ID,
		TicketNumber:          t.TicketNumber,
		RequesterID:           t.RequesterID,
		AssignedTo:            t.AssignedTo,
		CategoryID:            t.CategoryID,
		Title:                 t.Title,
		Description:           t.Description,
		Status:                t.Status,
		Priority:              t.Priority,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		FirstResponseAt:       t.FirstResponseAt,
		ResolvedAt:            t.ResolvedAt,
		ClosedAt:              t.ClosedAt,
		FirstResponseDeadline: t.FirstResponseDeadline,
		ResolutionDeadline:    t.ResolutionDeadline,
	}
	if report != nil {
		resp.Compliance = &ComplianceResponse{
			FirstResponse: report.FirstResponse,
			Resolution:    report.Resolution,
			Overdue:       report.Overdue,
			EvaluatedAt:   report.EvaluatedAt,
		}
	}
	return resp
}

// NewCommentResponse maps a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		AuthorID:   c.AuthorID,
		AuthorRole: c.AuthorRole,
		Body:       c.Body,
		Internal:   c.Internal,
		CreatedAt:  c.CreatedAt,
	}
}

// NewHistoryResponse maps an audit entry.
func NewHistoryResponse(h *domain.TicketHistory) HistoryResponse {
	return HistoryResponse{
		ID:            h.ID,
		ChangedByID:   h.ChangedByID,
		ChangedByRole: h.ChangedByRole,
		ChangeType:    h.ChangeType,
		OldValue:      h.OldValue,
		NewValue:      h.NewValue,
		CreatedAt:     h.CreatedAt,
	}
}
