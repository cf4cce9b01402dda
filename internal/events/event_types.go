package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventCommentAdded        EventType = "comment_added"
	EventCommentDeleted      EventType = "comment_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   any          `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Event     string              `json:"event"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee *string `json:"new_assignee,omitempty"`
}

// CommentPayload payload for comment_added and comment_deleted.
type CommentPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	Internal    bool   `json:"internal"`
	BodyPreview string `json:"body_preview,omitempty"`
}
