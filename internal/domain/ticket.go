package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusOnHold     TicketStatus = "on_hold"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusOnHold, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Priorities lists every priority tier from least to most urgent.
var Priorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, candidate := range Priorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// FirstResponseAt and ResolvedAt are boundary timestamps: set at most once and
// never cleared. Deadlines are fixed at creation from Priority and CreatedAt.
type Ticket struct {
	ID                    string
	TicketNumber          string
	RequesterID           string
	AssignedTo            *string
	CategoryID            *string
	Title                 string
	Description           string
	Status                TicketStatus
	Priority              TicketPriority
	CreatedAt             time.Time
	UpdatedAt             time.Time
	FirstResponseAt       *time.Time
	ResolvedAt            *time.Time
	ClosedAt              *time.Time
	DeletedAt             *time.Time
	FirstResponseDeadline time.Time
	ResolutionDeadline    time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AssignedTo = cloneString(t.AssignedTo)
	c.CategoryID = cloneString(t.CategoryID)
	c.FirstResponseAt = cloneTime(t.FirstResponseAt)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	c.DeletedAt = cloneTime(t.DeletedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
