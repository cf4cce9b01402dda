// Package sla holds the priority-tiered service level policy and the rules
// that derive deadlines and compliance state from it.
package sla

import (
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Policy is the pair of windows applied to one priority tier.
type Policy struct {
	FirstResponse time.Duration
	Resolution    time.Duration
}

// PolicyTable maps priorities to their windows. It is read-only once built.
type PolicyTable struct {
	entries map[domain.TicketPriority]Policy
}

// Deadlines are the two targets stamped on a ticket at creation.
type Deadlines struct {
	FirstResponse time.Time
	Resolution    time.Time
}

// DefaultPolicyTable returns the shipped tiers.
func DefaultPolicyTable() PolicyTable {
	table, err := NewPolicyTable(map[domain.TicketPriority]Policy{
		domain.TicketPriorityUrgent: {FirstResponse: 2 * time.Hour, Resolution: 8 * time.Hour},
		domain.TicketPriorityHigh:   {FirstResponse: 4 * time.Hour, Resolution: 2 * 24 * time.Hour},
		domain.TicketPriorityMedium: {FirstResponse: 8 * time.Hour, Resolution: 5 * 24 * time.Hour},
		domain.TicketPriorityLow:    {FirstResponse: 24 * time.Hour, Resolution: 10 * 24 * time.Hour},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// NewPolicyTable validates and copies entries. Both windows must be positive and
// the resolution window must exceed the first-response window.
func NewPolicyTable(entries map[domain.TicketPriority]Policy) (PolicyTable, error) {
	copied := make(map[domain.TicketPriority]Policy, len(entries))
	for priority, policy := range entries {
		if policy.FirstResponse <= 0 || policy.Resolution <= 0 {
			return PolicyTable{}, fmt.Errorf("%w: sla windows for %q must be positive", domain.ErrConfiguration, priority)
		}
		if policy.Resolution <= policy.FirstResponse {
			return PolicyTable{}, fmt.Errorf("%w: resolution window for %q must exceed first response window", domain.ErrConfiguration, priority)
		}
		copied[priority] = policy
	}
	return PolicyTable{entries: copied}, nil
}

// Lookup returns the windows for a priority.
func (t PolicyTable) Lookup(priority domain.TicketPriority) (Policy, error) {
	policy, ok := t.entries[priority]
	if !ok {
		return Policy{}, fmt.Errorf("%w: no sla policy for priority %q", domain.ErrConfiguration, priority)
	}
	return policy, nil
}

// Deadlines computes the first-response and resolution deadlines for a ticket
// created at createdAt.
func (t PolicyTable) Deadlines(priority domain.TicketPriority, createdAt time.Time) (Deadlines, error) {
	policy, err := t.Lookup(priority)
	if err != nil {
		return Deadlines{}, err
	}
	return Deadlines{
		FirstResponse: createdAt.Add(policy.FirstResponse),
		Resolution:    createdAt.Add(policy.Resolution),
	}, nil
}
