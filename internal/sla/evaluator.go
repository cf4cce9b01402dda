package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Status is the compliance state of a single SLA target.
type Status string

const (
	StatusMet      Status = "MET"
	StatusBreached Status = "BREACHED"
	StatusPending  Status = "PENDING"
)

// Report is the derived compliance view of a ticket at EvaluatedAt.
type Report struct {
	FirstResponse Status
	Resolution    Status
	Overdue       bool
	EvaluatedAt   time.Time
}

// Evaluate classifies both targets against the same instant.
func Evaluate(ticket *domain.Ticket, now time.Time) Report {
	return Report{
		FirstResponse: classify(ticket.FirstResponseAt, ticket.FirstResponseDeadline, now),
		Resolution:    classify(ticket.ResolvedAt, ticket.ResolutionDeadline, now),
		Overdue:       overdue(ticket, now),
		EvaluatedAt:   now,
	}
}

func classify(at *time.Time, deadline, now time.Time) Status {
	switch {
	case at != nil && !at.After(deadline):
		return StatusMet
	case at != nil:
		return StatusBreached
	case now.After(deadline):
		return StatusBreached
	default:
		return StatusPending
	}
}

// overdue flags tickets still being worked whose resolution deadline has passed.
func overdue(ticket *domain.Ticket, now time.Time) bool {
	if ticket.ResolvedAt != nil {
		return false
	}
	if ticket.Status != domain.TicketStatusOpen && ticket.Status != domain.TicketStatusInProgress {
		return false
	}
	return ticket.ResolutionDeadline.Before(now)
}
