package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

const defaultCreateAttempts = 5

// TicketService coordinates ticket workflows. Every command is authorized
// first, then validated, then applied.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	history     repository.TicketHistoryRepository
	users       repository.UserRepository
	dispatcher  events.Dispatcher
	engine      *authz.Engine
	machine     *lifecycle.StateMachine
	slaTable    sla.PolicyTable
	numbers     *ticketnumber.Generator
	sequence    ticketnumber.SequenceSource
	maxAttempts int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Engine      *authz.Engine
	Machine     *lifecycle.StateMachine
	SLA         sla.PolicyTable
	Numbers     *ticketnumber.Generator
	// Sequence overrides the store's own allocator when set (e.g. Redis INCR).
	Sequence    ticketnumber.SequenceSource
	MaxAttempts int
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	RequesterID  string
	Priority     domain.TicketPriority
	CategoryID   *string
	Title        string
	Description  string
	TicketNumber string
}

// AddCommentInput describes a new comment.
type AddCommentInput struct {
	Body     string
	Internal bool
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	AssignedTo  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		history:     deps.HistoryRepo,
		users:       deps.UserRepo,
		dispatcher:  deps.Dispatcher,
		engine:      deps.Engine,
		machine:     deps.Machine,
		slaTable:    deps.SLA,
		numbers:     deps.Numbers,
		sequence:    deps.Sequence,
		maxAttempts: deps.MaxAttempts,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	if s.engine == nil {
		s.engine = authz.NewEngine(authz.DefaultPolicy())
	}
	if s.machine == nil {
		s.machine = lifecycle.New(lifecycle.Options{AllowReopen: true})
	}
	if s.numbers == nil {
		s.numbers = ticketnumber.NewGenerator(time.UTC)
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultCreateAttempts
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateTicket allocates a ticket number, computes SLA deadlines and persists
// the ticket as one unit. A number collision is retried with a fresh
// allocation; a caller-supplied number that is taken is a conflict.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput, actor domain.Actor, now time.Time) (*domain.Ticket, error) {
	if input.RequesterID == "" {
		input.RequesterID = actor.ID
	}
	if err := s.authorize(actor, authz.ActionCreate, authz.SubjectTicket, input.RequesterID); err != nil {
		return nil, err
	}
	if input.RequesterID != actor.ID {
		if err := s.validateRequester(ctx, input.RequesterID); err != nil {
			return nil, err
		}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, input.Priority)
	}
	supplied := input.TicketNumber != ""
	if supplied {
		if _, _, err := ticketnumber.Parse(input.TicketNumber); err != nil {
			return nil, err
		}
	}

	createdAt := now.UTC()
	deadlines, err := s.slaTable.Deadlines(input.Priority, createdAt)
	if err != nil {
		return nil, err
	}

	var lastErr error
	// After a collision with an external sequence, allocate from the store and
	// raise the external sequence to match.
	fromStore := false
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ticket := &domain.Ticket{
			ID:                    uuid.NewString(),
			TicketNumber:          input.TicketNumber,
			RequesterID:           input.RequesterID,
			CategoryID:            input.CategoryID,
			Title:                 title,
			Description:           strings.TrimSpace(input.Description),
			Status:                domain.TicketStatusOpen,
			Priority:              input.Priority,
			CreatedAt:             createdAt,
			UpdatedAt:             createdAt,
			FirstResponseDeadline: deadlines.FirstResponse,
			ResolutionDeadline:    deadlines.Resolution,
		}
		assign := func(ctx context.Context, src ticketnumber.SequenceSource) error {
			if s.sequence != nil && !fromStore {
				src = s.sequence
			}
			if err := s.numbers.Assign(ctx, ticket, now, src); err != nil {
				return err
			}
			if fromStore && !supplied {
				s.seedSequence(ctx, ticket.TicketNumber)
			}
			return nil
		}

		err := s.tickets.Create(ctx, ticket, assign)
		if err == nil {
			s.metrics.TicketCreated(string(ticket.Priority))
			s.logger.Info("ticket created",
				zap.String("ticket_id", ticket.ID),
				zap.String("ticket_number", ticket.TicketNumber),
				zap.String("priority", string(ticket.Priority)),
				zap.Int("attempt", attempt))
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketCreated,
				TicketID: ticket.ID,
				Actor:    actor,
				Payload: events.TicketCreatedPayload{
					TicketNumber: ticket.TicketNumber,
					Priority:     ticket.Priority,
					Title:        ticket.Title,
				},
			})
			return ticket, nil
		}
		if !errors.Is(err, domain.ErrDuplicateTicketNumber) {
			return nil, err
		}
		if supplied {
			return nil, fmt.Errorf("%w: ticket number %s already exists", domain.ErrConflict, input.TicketNumber)
		}
		lastErr = err
		if s.sequence != nil {
			fromStore = true
		}
		s.metrics.TicketNumberRetry()
		s.logger.Warn("ticket number collision, retrying",
			zap.String("ticket_number", ticket.TicketNumber),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("create ticket after %d attempts: %w", s.maxAttempts, lastErr)
}

// Transition applies a lifecycle event under the ticket's row lock.
// Resolving an already resolved ticket succeeds without side effects.
func (s *TicketService) Transition(ctx context.Context, ticketID string, actor domain.Actor, ev lifecycle.Event, now time.Time) (*domain.Ticket, error) {
	now = now.UTC()
	var before domain.TicketStatus
	updated, err := s.tickets.UpdateLocked(ctx, ticketID, func(current *domain.Ticket) (*domain.Ticket, error) {
		if err := s.authorize(actor, lifecycle.RequiredAction(ev), authz.SubjectTicket, current.RequesterID); err != nil {
			return nil, err
		}
		before = current.Status
		next, err := s.machine.Apply(current, ev, now)
		if err != nil {
			return nil, err
		}
		// Only support staff can respond; a requester moving their own ticket
		// leaves the first response open.
		if current.FirstResponseAt == nil && s.engine.Policy().OwnerScoped(actor.Role) {
			next.FirstResponseAt = nil
		}
		return next, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			s.metrics.Transition(string(ev), "rejected")
			s.logger.Info("transition rejected",
				zap.String("ticket_id", ticketID),
				zap.String("event", string(ev)),
				zap.Error(err))
		}
		return nil, err
	}
	if updated.Status == before {
		s.metrics.Transition(string(ev), "noop")
		return updated, nil
	}

	s.metrics.Transition(string(ev), "applied")
	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      updated.ID,
		ChangedByID:   actor.ID,
		ChangedByRole: actor.Role,
		ChangeType:    domain.ChangeTypeStatus,
		OldValue:      map[string]any{"status": before},
		NewValue:      map[string]any{"status": updated.Status, "event": ev},
		CreatedAt:     now.UTC(),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: updated.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			Event:     string(ev),
			OldStatus: before,
			NewStatus: updated.Status,
		},
	})
	return updated, nil
}

// Assign sets or clears (empty assigneeID) the ticket's assignee. Assignees
// must be active agents or admins.
func (s *TicketService) Assign(ctx context.Context, ticketID string, actor domain.Actor, assigneeID string, now time.Time) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, authz.ActionAssign, authz.SubjectTicket, current.RequesterID); err != nil {
		return nil, err
	}
	if err := s.validateAssignee(ctx, assigneeID); err != nil {
		return nil, err
	}

	var previous *string
	updated, err := s.tickets.UpdateLocked(ctx, ticketID, func(current *domain.Ticket) (*domain.Ticket, error) {
		if current.Status == domain.TicketStatusClosed {
			return nil, fmt.Errorf("%w: ticket %s is closed", domain.ErrInvalidTransition, current.TicketNumber)
		}
		previous = current.AssignedTo
		if assigneeID == "" {
			current.AssignedTo = nil
		} else {
			id := assigneeID
			current.AssignedTo = &id
		}
		current.UpdatedAt = now.UTC()
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      updated.ID,
		ChangedByID:   actor.ID,
		ChangedByRole: actor.Role,
		ChangeType:    domain.ChangeTypeAssignee,
		OldValue:      map[string]any{"assigned_to": previous},
		NewValue:      map[string]any{"assigned_to": updated.AssignedTo},
		CreatedAt:     now.UTC(),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: updated.ID,
		Actor:    actor,
		Payload:  events.TicketAssignedPayload{OldAssignee: previous, NewAssignee: updated.AssignedTo},
	})
	return updated, nil
}

// Delete soft-deletes a ticket. Its number stays reserved.
func (s *TicketService) Delete(ctx context.Context, ticketID string, actor domain.Actor, now time.Time) error {
	updated, err := s.tickets.UpdateLocked(ctx, ticketID, func(current *domain.Ticket) (*domain.Ticket, error) {
		if err := s.authorize(actor, authz.ActionDelete, authz.SubjectTicket, current.RequesterID); err != nil {
			return nil, err
		}
		at := now.UTC()
		current.DeletedAt = &at
		current.UpdatedAt = at
		return current, nil
	})
	if err != nil {
		return err
	}

	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      updated.ID,
		ChangedByID:   actor.ID,
		ChangedByRole: actor.Role,
		ChangeType:    domain.ChangeTypeDelete,
		NewValue:      map[string]any{"deleted_at": updated.DeletedAt},
		CreatedAt:     now.UTC(),
	})
	s.publishEvent(ctx, events.Event{Type: events.EventTicketDeleted, TicketID: updated.ID, Actor: actor})
	return nil
}

// AddComment appends a comment. A public reply from an agent or admin records
// the ticket's first response if none exists yet.
func (s *TicketService) AddComment(ctx context.Context, ticketID string, actor domain.Actor, input AddCommentInput, now time.Time) (*domain.Comment, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, authz.ActionCreate, authz.SubjectComment, ticket.RequesterID); err != nil {
		return nil, err
	}
	if input.Internal && actor.Role == domain.RoleUser {
		return nil, fmt.Errorf("%w: role %q may not post internal comments", domain.ErrUnauthorized, actor.Role)
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", domain.ErrValidation)
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, fmt.Errorf("%w: ticket %s is closed", domain.ErrConflict, ticket.TicketNumber)
	}

	comment := &domain.Comment{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		AuthorRole: actor.Role,
		Body:       body,
		Internal:   input.Internal,
		CreatedAt:  now.UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	if comment.CountsAsResponse() && ticket.FirstResponseAt == nil {
		_, err := s.tickets.UpdateLocked(ctx, ticket.ID, func(current *domain.Ticket) (*domain.Ticket, error) {
			lifecycle.RecordResponse(current, comment.CreatedAt)
			return current, nil
		})
		if err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.CommentPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.AuthorID,
			Internal:    comment.Internal,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// DeleteComment soft-deletes a comment of ticketID.
func (s *TicketService) DeleteComment(ctx context.Context, ticketID, commentID string, actor domain.Actor, now time.Time) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, authz.ActionDelete, authz.SubjectComment, ticket.RequesterID); err != nil {
		return err
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.TicketID != ticket.ID {
		return fmt.Errorf("comment %s on ticket %s: %w", commentID, ticketID, domain.ErrNotFound)
	}
	if err := s.comments.SoftDelete(ctx, comment.ID, now.UTC()); err != nil {
		return err
	}

	s.recordHistory(ctx, &domain.TicketHistory{
		TicketID:      ticket.ID,
		ChangedByID:   actor.ID,
		ChangedByRole: actor.Role,
		ChangeType:    domain.ChangeTypeCommentDelete,
		OldValue:      map[string]any{"comment_id": comment.ID, "author_id": comment.AuthorID},
		CreatedAt:     now.UTC(),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentDeleted,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload:  events.CommentPayload{CommentID: comment.ID, AuthorID: comment.AuthorID, Internal: comment.Internal},
	})
	return nil
}

// Get returns a ticket the actor may view.
func (s *TicketService) Get(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, authz.ActionView, authz.SubjectTicket, ticket.RequesterID); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListComments returns the ticket thread. Internal notes are hidden from
// end users.
func (s *TicketService) ListComments(ctx context.Context, ticketID string, actor domain.Actor) ([]domain.Comment, error) {
	ticket, err := s.Get(ctx, ticketID, actor)
	if err != nil {
		return nil, err
	}
	return s.comments.ListByTicket(ctx, ticket.ID, actor.Role != domain.RoleUser)
}

// ListHistory returns the audit trail of a ticket the actor may view.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string, actor domain.Actor) ([]domain.TicketHistory, error) {
	ticket, err := s.Get(ctx, ticketID, actor)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	return s.history.ListByTicket(ctx, ticket.ID)
}

// ListTickets lists tickets visible to actor. Owner-scoped roles only see the
// tickets they requested.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		AssignedTo:  filter.AssignedTo,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	owner := ""
	if s.engine.Policy().OwnerScoped(actor.Role) {
		owner = actor.ID
		repoFilter.RequesterID = &owner
	}
	if err := s.authorize(actor, authz.ActionView, authz.SubjectTicket, owner); err != nil {
		return nil, err
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// ComplianceStatus evaluates both SLA targets of ticket at now.
func (s *TicketService) ComplianceStatus(ticket *domain.Ticket, now time.Time) sla.Report {
	report := sla.Evaluate(ticket, now)
	s.metrics.ComplianceEvaluated("first_response", string(report.FirstResponse))
	s.metrics.ComplianceEvaluated("resolution", string(report.Resolution))
	return report
}

// Authorize answers a standalone permission question, e.g. for UI gating.
func (s *TicketService) Authorize(req authz.Request) bool {
	ok := s.engine.Can(req)
	if !ok {
		s.metrics.AuthzDenied(string(req.Role), string(req.Action), string(req.Subject))
	}
	return ok
}

func (s *TicketService) authorize(actor domain.Actor, action authz.Action, subject authz.Subject, ownerID string) error {
	err := s.engine.Authorize(authz.Request{
		Role:    actor.Role,
		Action:  action,
		Subject: subject,
		OwnerID: ownerID,
		ActorID: actor.ID,
	})
	if err != nil {
		s.metrics.AuthzDenied(string(actor.Role), string(action), string(subject))
		s.logger.Info("authorization denied",
			zap.String("actor_id", actor.ID),
			zap.String("role", string(actor.Role)),
			zap.String("action", string(action)),
			zap.String("subject", string(subject)))
	}
	return err
}

func (s *TicketService) validateRequester(ctx context.Context, requesterID string) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, requesterID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: requester %s does not exist", domain.ErrValidation, requesterID)
	}
	if err != nil {
		return err
	}
	if !user.Active {
		return fmt.Errorf("%w: requester %s is inactive", domain.ErrValidation, requesterID)
	}
	return nil
}

func (s *TicketService) seedSequence(ctx context.Context, number string) {
	seeder, ok := s.sequence.(ticketnumber.Seeder)
	if !ok {
		return
	}
	dayPrefix, seq, err := ticketnumber.Parse(number)
	if err == nil {
		err = seeder.Seed(ctx, dayPrefix, seq)
	}
	if err != nil {
		s.logger.Warn("seed ticket sequence failed", zap.String("ticket_number", number), zap.Error(err))
	}
}

func (s *TicketService) validateAssignee(ctx context.Context, assigneeID string) error {
	if assigneeID == "" || s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, assigneeID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: assignee %s does not exist", domain.ErrValidation, assigneeID)
	}
	if err != nil {
		return err
	}
	if !user.Active || (user.Role != domain.RoleAgent && user.Role != domain.RoleAdmin) {
		return fmt.Errorf("%w: assignee %s must be an active agent or admin", domain.ErrValidation, assigneeID)
	}
	return nil
}

func (s *TicketService) recordHistory(ctx context.Context, entry *domain.TicketHistory) {
	if s.history == nil {
		return
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("record ticket history failed",
			zap.String("ticket_id", entry.TicketID),
			zap.String("change_type", string(entry.ChangeType)),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
