package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

var created = time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC)

func newTicket(id string) *domain.Ticket {
	return &domain.Ticket{
		ID:          id,
		RequesterID: "u-1",
		Title:       "printer on fire " + id,
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityHigh,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func assigner(t *domain.Ticket) repository.NumberAssigner {
	gen := ticketnumber.NewGenerator(nil)
	return func(ctx context.Context, src ticketnumber.SequenceSource) error {
		return gen.Assign(ctx, t, created, src)
	}
}

func TestTicketCreate_AllocatesSequentialNumbers(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Tickets()

	first, second := newTicket("a"), newTicket("b")
	require.NoError(t, repo.Create(ctx, first, assigner(first)))
	require.NoError(t, repo.Create(ctx, second, assigner(second)))

	assert.Equal(t, "TKT-20251112-0001", first.TicketNumber)
	assert.Equal(t, "TKT-20251112-0002", second.TicketNumber)

	got, err := repo.GetByNumber(ctx, "TKT-20251112-0002")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
}

func TestTicketCreate_DeletedTicketsKeepTheirNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Tickets()

	first := newTicket("a")
	require.NoError(t, repo.Create(ctx, first, assigner(first)))
	_, err := repo.UpdateLocked(ctx, "a", func(cur *domain.Ticket) (*domain.Ticket, error) {
		at := created.Add(time.Minute)
		cur.DeletedAt = &at
		return cur, nil
	})
	require.NoError(t, err)

	next := newTicket("b")
	require.NoError(t, repo.Create(ctx, next, assigner(next)))
	assert.Equal(t, "TKT-20251112-0002", next.TicketNumber)

	_, err = repo.GetByID(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTicketCreate_DuplicateNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Tickets()

	first := newTicket("a")
	first.TicketNumber = "TKT-20251112-0007"
	require.NoError(t, repo.Create(ctx, first, nil))

	dup := newTicket("b")
	dup.TicketNumber = "TKT-20251112-0007"
	err := repo.Create(ctx, dup, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicateTicketNumber)
}

func TestUpdateLocked_ErrorLeavesTicketUntouched(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Tickets()
	ticket := newTicket("a")
	require.NoError(t, repo.Create(ctx, ticket, assigner(ticket)))

	_, err := repo.UpdateLocked(ctx, "a", func(cur *domain.Ticket) (*domain.Ticket, error) {
		cur.Status = domain.TicketStatusClosed
		return nil, domain.ErrInvalidTransition
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)

	_, err = repo.UpdateLocked(ctx, "missing", func(cur *domain.Ticket) (*domain.Ticket, error) { return cur, nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListWithFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Tickets()

	for i, id := range []string{"a", "b", "c"} {
		tk := newTicket(id)
		tk.CreatedAt = created.Add(time.Duration(i) * time.Minute)
		if id == "c" {
			tk.RequesterID = "u-2"
			tk.Priority = domain.TicketPriorityLow
		}
		require.NoError(t, repo.Create(ctx, tk, assigner(tk)))
	}

	requester := "u-1"
	got, err := repo.ListWithFilter(ctx, repository.TicketFilter{RequesterID: &requester})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID, "newest first")

	got, err = repo.ListWithFilter(ctx, repository.TicketFilter{Priorities: []domain.TicketPriority{domain.TicketPriorityLow}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	got, err = repo.ListWithFilter(ctx, repository.TicketFilter{Limit: 1, Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Comments()

	require.NoError(t, repo.Create(ctx, &domain.Comment{ID: "c1", TicketID: "t", Body: "public", CreatedAt: created}))
	require.NoError(t, repo.Create(ctx, &domain.Comment{ID: "c2", TicketID: "t", Body: "note", Internal: true, CreatedAt: created.Add(time.Second)}))

	public, err := repo.ListByTicket(ctx, "t", false)
	require.NoError(t, err)
	assert.Len(t, public, 1)

	all, err := repo.ListByTicket(ctx, "t", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.SoftDelete(ctx, "c1", created.Add(time.Hour)))
	assert.ErrorIs(t, repo.SoftDelete(ctx, "c1", created.Add(time.Hour)), domain.ErrNotFound)
	_, err = repo.GetByID(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUsers_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	u := &domain.User{Name: "Ana", Email: "ana@example.com", Role: domain.RoleUser, Active: true}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEmpty(t, u.ID)

	err := repo.Create(ctx, &domain.User{Email: "ANA@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}
