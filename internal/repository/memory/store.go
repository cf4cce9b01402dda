// Package memory provides in-process repository implementations used when no
// Postgres DSN is configured, and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

// Store keeps every record behind one mutex. Ticket number allocation and the
// insert that consumes it happen under the same lock.
type Store struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	numbers  map[string]string
	comments map[string]*domain.Comment
	history  []domain.TicketHistory
	users    map[string]*domain.User
	emails   map[string]string
	seq      int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tickets:  map[string]*domain.Ticket{},
		numbers:  map[string]string{},
		comments: map[string]*domain.Comment{},
		users:    map[string]*domain.User{},
		emails:   map[string]string{},
	}
}

// Tickets returns the ticket repository view of the store.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Comments returns the comment repository view of the store.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// History returns the history repository view of the store.
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// lockedSequence reads MAX+1 over every stored number for the prefix,
// soft-deleted tickets included. Callers hold s.mu.
type lockedSequence struct {
	s *Store
}

func (l lockedSequence) NextSequence(_ context.Context, dayPrefix string) (int, error) {
	max := 0
	for number := range l.s.numbers {
		if seq, ok := ticketnumber.SequenceOf(number, dayPrefix); ok && seq > max {
			max = seq
		}
	}
	return max + 1, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket, assign repository.NumberAssigner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if assign != nil {
		if err := assign(ctx, lockedSequence{r.s}); err != nil {
			return err
		}
	}
	if _, taken := r.s.numbers[ticket.TicketNumber]; taken {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateTicketNumber, ticket.TicketNumber)
	}
	if _, taken := r.s.tickets[ticket.ID]; taken {
		return fmt.Errorf("ticket %s: %w", ticket.ID, domain.ErrConflict)
	}
	r.s.tickets[ticket.ID] = ticket.Clone()
	r.s.numbers[ticket.TicketNumber] = ticket.ID
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok || t.DeletedAt != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

func (r ticketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	id, ok := r.s.numbers[number]
	r.s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", number, domain.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// UpdateLocked runs fn while holding the store lock; fn must not call back
// into the store.
func (r ticketRepo) UpdateLocked(_ context.Context, id string, fn repository.MutateFunc) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.tickets[id]
	if !ok || current.DeletedAt != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
	}
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	stored := next.Clone()
	stored.ID = current.ID
	stored.TicketNumber = current.TicketNumber
	r.s.tickets[id] = stored
	return next, nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var search string
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	var result []domain.Ticket
	for _, t := range r.s.tickets {
		if t.DeletedAt != nil {
			continue
		}
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		if filter.CreatedFrom != nil && t.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && t.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.TicketNumber), search) {
			continue
		}
		result = append(result, *t.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].TicketNumber > result[j].TicketNumber
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit, offset := page(filter.Limit, filter.Offset)
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.comments[comment.ID]; taken {
		return fmt.Errorf("comment %s: %w", comment.ID, domain.ErrConflict)
	}
	c := *comment
	r.s.comments[c.ID] = &c
	return nil
}

func (r commentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok || c.DeletedAt != nil {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Comment
	for _, c := range r.s.comments {
		if c.TicketID != ticketID || c.DeletedAt != nil || (c.Internal && !includeInternal) {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r commentRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok || c.DeletedAt != nil {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	deleted := at
	c.DeletedAt = &deleted
	return nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	history.ID = strconv.FormatInt(r.s.seq, 10)
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}
	r.s.history = append(r.s.history, *history)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.TicketHistory
	for _, h := range r.s.history {
		if h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	return result, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, taken := r.s.emails[key]; taken {
		return fmt.Errorf("email %s: %w", user.Email, domain.ErrConflict)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	u := *user
	r.s.users[u.ID] = &u
	r.s.emails[key] = u.ID
	return nil
}

func (r userRepo) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrNotFound)
	}
	delete(r.s.emails, strings.ToLower(existing.Email))
	user.UpdatedAt = time.Now().UTC()
	u := *user
	r.s.users[u.ID] = &u
	r.s.emails[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	out := *r.s.users[id]
	return &out, nil
}
