// Package lifecycle validates and applies ticket status transitions.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Event names a requested status change.
type Event string

const (
	EventStart   Event = "start"
	EventHold    Event = "hold"
	EventResume  Event = "resume"
	EventResolve Event = "resolve"
	EventClose   Event = "close"
	EventReopen  Event = "reopen"
)

type rule struct {
	from domain.TicketStatus
	to   domain.TicketStatus
}

var rules = map[Event]rule{
	EventStart:   {from: domain.TicketStatusOpen, to: domain.TicketStatusInProgress},
	EventHold:    {from: domain.TicketStatusInProgress, to: domain.TicketStatusOnHold},
	EventResume:  {from: domain.TicketStatusOnHold, to: domain.TicketStatusInProgress},
	EventResolve: {from: domain.TicketStatusInProgress, to: domain.TicketStatusResolved},
	EventClose:   {from: domain.TicketStatusResolved, to: domain.TicketStatusClosed},
	EventReopen:  {from: domain.TicketStatusResolved, to: domain.TicketStatusInProgress},
}

// ParseEvent validates a raw event name.
func ParseEvent(raw string) (Event, error) {
	ev := Event(raw)
	if _, ok := rules[ev]; !ok {
		return "", fmt.Errorf("%w: unknown event %q", domain.ErrValidation, raw)
	}
	return ev, nil
}

// RequiredAction is the ticket permission an actor needs to fire ev.
func RequiredAction(ev Event) authz.Action {
	if ev == EventClose {
		return authz.ActionClose
	}
	return authz.ActionUpdate
}

// Options tune the policy-dependent parts of the machine.
type Options struct {
	// AllowReopen enables resolved -> in_progress. Closed stays terminal regardless.
	AllowReopen bool
}

// StateMachine applies events to tickets. It holds no mutable state.
type StateMachine struct {
	opts Options
}

// New builds a StateMachine.
func New(opts Options) *StateMachine {
	return &StateMachine{opts: opts}
}

// CanTransition reports whether any enabled event moves from -> to.
func (m *StateMachine) CanTransition(from, to domain.TicketStatus) bool {
	for ev, r := range rules {
		if r.from == from && r.to == to && m.enabled(ev) {
			return true
		}
	}
	return false
}

// Apply validates ev against ticket's current status and returns the updated
// copy. The input ticket is never modified.
func (m *StateMachine) Apply(ticket *domain.Ticket, ev Event, now time.Time) (*domain.Ticket, error) {
	r, ok := rules[ev]
	if !ok || !m.enabled(ev) {
		return nil, fmt.Errorf("%w: event %q not allowed", domain.ErrInvalidTransition, ev)
	}
	if ev == EventResolve && ticket.Status == domain.TicketStatusResolved {
		return ticket.Clone(), nil
	}
	if ticket.Status != r.from {
		return nil, fmt.Errorf("%w: cannot %s a ticket in status %s", domain.ErrInvalidTransition, ev, ticket.Status)
	}
	if now.Before(ticket.CreatedAt) {
		return nil, fmt.Errorf("%w: transition time %s precedes creation %s", domain.ErrInvariantViolation, now.Format(time.RFC3339), ticket.CreatedAt.Format(time.RFC3339))
	}

	next := ticket.Clone()
	next.Status = r.to
	next.UpdatedAt = now

	switch r.to {
	case domain.TicketStatusInProgress:
		if next.FirstResponseAt == nil {
			next.FirstResponseAt = &now
		}
	case domain.TicketStatusResolved:
		if next.ResolvedAt == nil {
			next.ResolvedAt = &now
		}
	case domain.TicketStatusClosed:
		next.ClosedAt = &now
	}
	return next, nil
}

// RecordResponse stamps FirstResponseAt when it is unset and reports whether
// anything changed.
func RecordResponse(ticket *domain.Ticket, now time.Time) bool {
	if ticket.FirstResponseAt != nil {
		return false
	}
	ticket.FirstResponseAt = &now
	ticket.UpdatedAt = now
	return true
}

func (m *StateMachine) enabled(ev Event) bool {
	return ev != EventReopen || m.opts.AllowReopen
}
