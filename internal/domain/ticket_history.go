package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus        TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee      TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeCommentDelete TicketChangeType = "COMMENT_DELETE"
	ChangeTypeDelete        TicketChangeType = "TICKET_DELETE"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByID   string
	ChangedByRole Role
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
