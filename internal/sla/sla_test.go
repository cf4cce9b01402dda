package sla

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var created = time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC)

func TestDefaultPolicyTable_Deadlines(t *testing.T) {
	table := DefaultPolicyTable()

	cases := []struct {
		priority          domain.TicketPriority
		wantFirstResponse time.Duration
		wantResolution    time.Duration
	}{
		{domain.TicketPriorityUrgent, 2 * time.Hour, 8 * time.Hour},
		{domain.TicketPriorityHigh, 4 * time.Hour, 48 * time.Hour},
		{domain.TicketPriorityMedium, 8 * time.Hour, 120 * time.Hour},
		{domain.TicketPriorityLow, 24 * time.Hour, 240 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(string(tc.priority), func(t *testing.T) {
			got, err := table.Deadlines(tc.priority, created)
			require.NoError(t, err)
			assert.Equal(t, created.Add(tc.wantFirstResponse), got.FirstResponse)
			assert.Equal(t, created.Add(tc.wantResolution), got.Resolution)
		})
	}
}

func TestDefaultPolicyTable_ResolutionExceedsFirstResponse(t *testing.T) {
	table := DefaultPolicyTable()
	for _, priority := range domain.Priorities {
		got, err := table.Deadlines(priority, created)
		require.NoError(t, err)
		assert.Truef(t, got.Resolution.Sub(created) > got.FirstResponse.Sub(created), "priority %s", priority)
	}
}

func TestDeadlines_UnknownPriority(t *testing.T) {
	_, err := DefaultPolicyTable().Deadlines("critical", created)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewPolicyTable_RejectsInvalidWindows(t *testing.T) {
	_, err := NewPolicyTable(map[domain.TicketPriority]Policy{
		domain.TicketPriorityLow: {FirstResponse: time.Hour, Resolution: time.Hour},
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewPolicyTable(map[domain.TicketPriority]Policy{
		domain.TicketPriorityLow: {FirstResponse: 0, Resolution: time.Hour},
	})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func urgentTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	deadlines, err := DefaultPolicyTable().Deadlines(domain.TicketPriorityUrgent, created)
	require.NoError(t, err)
	return &domain.Ticket{
		Status:                domain.TicketStatusOpen,
		Priority:              domain.TicketPriorityUrgent,
		CreatedAt:             created,
		FirstResponseDeadline: deadlines.FirstResponse,
		ResolutionDeadline:    deadlines.Resolution,
	}
}

func TestEvaluate_UrgentWithoutResponseBreachesAfterThreeHours(t *testing.T) {
	ticket := urgentTicket(t)

	report := Evaluate(ticket, created.Add(3*time.Hour))

	assert.Equal(t, StatusBreached, report.FirstResponse)
	assert.Equal(t, StatusPending, report.Resolution)
	assert.False(t, report.Overdue)
}

func TestEvaluate_Classification(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := created.Add(d)
		return &v
	}

	cases := []struct {
		name string
		at   *time.Time
		now  time.Duration
		want Status
	}{
		{"recorded before deadline", at(time.Hour), 5 * time.Hour, StatusMet},
		{"recorded exactly at deadline", at(2 * time.Hour), 5 * time.Hour, StatusMet},
		{"recorded after deadline", at(2*time.Hour + time.Second), 5 * time.Hour, StatusBreached},
		{"unset and deadline passed", nil, 2*time.Hour + time.Second, StatusBreached},
		{"unset and deadline reached but not passed", nil, 2 * time.Hour, StatusPending},
		{"unset before deadline", nil, time.Hour, StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ticket := urgentTicket(t)
			ticket.FirstResponseAt = tc.at
			assert.Equal(t, tc.want, Evaluate(ticket, created.Add(tc.now)).FirstResponse)
		})
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	ticket := urgentTicket(t)
	responded := created.Add(30 * time.Minute)
	ticket.FirstResponseAt = &responded
	now := created.Add(9 * time.Hour)

	first := Evaluate(ticket, now)
	second := Evaluate(ticket, now)

	assert.Equal(t, first, second)
	assert.Equal(t, StatusMet, first.FirstResponse)
	assert.Equal(t, StatusBreached, first.Resolution)
}

func TestEvaluate_Overdue(t *testing.T) {
	ticket := urgentTicket(t)
	ticket.Status = domain.TicketStatusInProgress
	assert.True(t, Evaluate(ticket, created.Add(9*time.Hour)).Overdue)

	ticket.Status = domain.TicketStatusOnHold
	assert.False(t, Evaluate(ticket, created.Add(9*time.Hour)).Overdue)

	ticket.Status = domain.TicketStatusResolved
	resolved := created.Add(10 * time.Hour)
	ticket.ResolvedAt = &resolved
	assert.False(t, Evaluate(ticket, created.Add(11*time.Hour)).Overdue)
}
