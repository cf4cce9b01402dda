package lifecycle

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var created = time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC)

func openTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:           "t1",
		TicketNumber: "TKT-20251112-0001",
		Status:       domain.TicketStatusOpen,
		Priority:     domain.TicketPriorityHigh,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestApply_ForwardPath(t *testing.T) {
	m := New(Options{})
	ticket := openTicket()

	steps := []struct {
		event Event
		want  domain.TicketStatus
	}{
		{EventStart, domain.TicketStatusInProgress},
		{EventHold, domain.TicketStatusOnHold},
		{EventResume, domain.TicketStatusInProgress},
		{EventResolve, domain.TicketStatusResolved},
		{EventClose, domain.TicketStatusClosed},
	}

	now := created
	for _, step := range steps {
		now = now.Add(time.Hour)
		next, err := m.Apply(ticket, step.event, now)
		require.NoErrorf(t, err, "event %s", step.event)
		assert.Equal(t, step.want, next.Status)
		ticket = next
	}

	require.NotNil(t, ticket.FirstResponseAt)
	assert.Equal(t, created.Add(time.Hour), *ticket.FirstResponseAt)
	require.NotNil(t, ticket.ResolvedAt)
	assert.Equal(t, created.Add(4*time.Hour), *ticket.ResolvedAt)
	require.NotNil(t, ticket.ClosedAt)
	assert.False(t, ticket.ResolvedAt.Before(ticket.CreatedAt))
}

func TestApply_OpenToClosedRejected(t *testing.T) {
	m := New(Options{AllowReopen: true})
	ticket := openTicket()
	before := ticket.Clone()

	next, err := m.Apply(ticket, EventClose, created.Add(time.Hour))

	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Nil(t, next)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	if diff := cmp.Diff(before, ticket); diff != "" {
		t.Fatalf("ticket mutated by rejected transition (-want +got):\n%s", diff)
	}
}

func TestApply_ResolveTwiceIsIdempotent(t *testing.T) {
	m := New(Options{})
	ticket := openTicket()
	ticket, err := m.Apply(ticket, EventStart, created.Add(time.Hour))
	require.NoError(t, err)
	resolved, err := m.Apply(ticket, EventResolve, created.Add(2*time.Hour))
	require.NoError(t, err)

	again, err := m.Apply(resolved, EventResolve, created.Add(5*time.Hour))

	require.NoError(t, err)
	if diff := cmp.Diff(resolved, again); diff != "" {
		t.Fatalf("second resolve changed the ticket (-want +got):\n%s", diff)
	}
}

func TestApply_DoesNotOverwriteFirstResponse(t *testing.T) {
	m := New(Options{})
	ticket := openTicket()
	responded := created.Add(10 * time.Minute)
	ticket.FirstResponseAt = &responded

	next, err := m.Apply(ticket, EventStart, created.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, responded, *next.FirstResponseAt)
}

func TestApply_ReopenIsPolicy(t *testing.T) {
	resolvedAt := created.Add(2 * time.Hour)
	resolved := openTicket()
	resolved.Status = domain.TicketStatusResolved
	resolved.ResolvedAt = &resolvedAt

	_, err := New(Options{AllowReopen: false}).Apply(resolved, EventReopen, created.Add(3*time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	next, err := New(Options{AllowReopen: true}).Apply(resolved, EventReopen, created.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, next.Status)
	assert.Equal(t, resolvedAt, *next.ResolvedAt, "resolved_at is never cleared")
}

func TestApply_ClosedIsTerminal(t *testing.T) {
	m := New(Options{AllowReopen: true})
	closed := openTicket()
	closed.Status = domain.TicketStatusClosed

	for ev := range rules {
		_, err := m.Apply(closed, ev, created.Add(time.Hour))
		assert.ErrorIsf(t, err, domain.ErrInvalidTransition, "event %s", ev)
	}
}

func TestApply_UnknownEvent(t *testing.T) {
	_, err := New(Options{}).Apply(openTicket(), "escalate", created.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestApply_RejectsTimeBeforeCreation(t *testing.T) {
	_, err := New(Options{}).Apply(openTicket(), EventStart, created.Add(-time.Minute))
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestCanTransition(t *testing.T) {
	strict := New(Options{})
	assert.True(t, strict.CanTransition(domain.TicketStatusOpen, domain.TicketStatusInProgress))
	assert.False(t, strict.CanTransition(domain.TicketStatusOpen, domain.TicketStatusClosed))
	assert.False(t, strict.CanTransition(domain.TicketStatusResolved, domain.TicketStatusInProgress))
	assert.True(t, New(Options{AllowReopen: true}).CanTransition(domain.TicketStatusResolved, domain.TicketStatusInProgress))
	assert.False(t, strict.CanTransition(domain.TicketStatusClosed, domain.TicketStatusOpen))
}

func TestParseEventAndRequiredAction(t *testing.T) {
	ev, err := ParseEvent("resolve")
	require.NoError(t, err)
	assert.Equal(t, EventResolve, ev)
	_, err = ParseEvent("teleport")
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, authz.ActionClose, RequiredAction(EventClose))
	assert.Equal(t, authz.ActionUpdate, RequiredAction(EventResolve))
}

func TestRecordResponse(t *testing.T) {
	ticket := openTicket()
	assert.True(t, RecordResponse(ticket, created.Add(time.Minute)))
	assert.False(t, RecordResponse(ticket, created.Add(time.Hour)))
	assert.Equal(t, created.Add(time.Minute), *ticket.FirstResponseAt)
}
