package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

const (
	pgUniqueViolation      = "23505"
	pgInvalidText          = "22P02"
	ticketNumberConstraint = "tickets_ticket_number_key"
	ticketColumns          = `id, ticket_number, requester_id, assigned_to, category_id, title, description, status, priority, created_at, updated_at, first_response_at, resolved_at, closed_at, deleted_at, first_response_deadline, resolution_deadline`
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID *string
	AssignedTo  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NumberAssigner stamps a ticket number using the store's sequence source. It
// runs inside the same atomic unit as the insert.
type NumberAssigner func(ctx context.Context, src ticketnumber.SequenceSource) error

// MutateFunc receives the locked current ticket and returns the version to store.
type MutateFunc func(current *domain.Ticket) (*domain.Ticket, error)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create allocates the ticket number through assign and inserts the ticket
	// atomically. A ticket number collision yields domain.ErrDuplicateTicketNumber.
	Create(ctx context.Context, ticket *domain.Ticket, assign NumberAssigner) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	// UpdateLocked serializes mutations of one ticket: fn sees the latest row and
	// no other UpdateLocked on the same id runs until it returns.
	UpdateLocked(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// txSequence allocates MAX+1 for a day prefix while holding a transaction
// scoped advisory lock on that prefix, so concurrent creators for the same day
// queue behind each other until commit.
type txSequence struct {
	tx pgx.Tx
}

func (s txSequence) NextSequence(ctx context.Context, dayPrefix string) (int, error) {
	if _, err := s.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, dayPrefix); err != nil {
		return 0, fmt.Errorf("lock ticket sequence: %w", err)
	}
	const query = `
        SELECT COALESCE(MAX(CAST(SUBSTRING(ticket_number FROM $2::int) AS INTEGER)), 0) + 1
        FROM tickets WHERE ticket_number LIKE $1 || '-%'`
	var next int
	if err := s.tx.QueryRow(ctx, query, dayPrefix, sequenceOffset(dayPrefix)).Scan(&next); err != nil {
		return 0, fmt.Errorf("read ticket sequence: %w", err)
	}
	return next, nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, assign NumberAssigner) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if assign != nil {
		if err := assign(ctx, txSequence{tx: tx}); err != nil {
			return err
		}
	}

	const query = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	if _, err := tx.Exec(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.RequesterID,
		ticket.AssignedTo,
		ticket.CategoryID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.DeletedAt,
		ticket.FirstResponseDeadline,
		ticket.ResolutionDeadline,
	); err != nil {
		return mapTicketWriteError(err)
	}
	return mapTicketWriteError(tx.Commit(ctx))
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	return fetchSingle(ctx, r.pool, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number=$1 AND deleted_at IS NULL`
	return fetchSingle(ctx, r.pool, query, number)
}

func (r *ticketRepository) UpdateLocked(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`
	current, err := fetchSingle(ctx, tx, query, id)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	const update = `
        UPDATE tickets SET assigned_to=$1, status=$2, updated_at=$3, first_response_at=$4,
            resolved_at=$5, closed_at=$6, deleted_at=$7
        WHERE id=$8`
	cmd, err := tx.Exec(ctx, update,
		next.AssignedTo,
		next.Status,
		next.UpdatedAt,
		next.FirstResponseAt,
		next.ResolvedAt,
		next.ClosedAt,
		next.DeletedAt,
		current.ID,
	)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return next, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func fetchSingle(ctx context.Context, q rowQuerier, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
		return nil, fmt.Errorf("ticket %v: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(ticket_number) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.RequesterID,
		&ticket.AssignedTo,
		&ticket.CategoryID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.DeletedAt,
		&ticket.FirstResponseDeadline,
		&ticket.ResolutionDeadline,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func mapTicketWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == ticketNumberConstraint {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateTicketNumber, pgErr.Detail)
	}
	return err
}

// isMalformedID reports a lookup key Postgres could not parse, such as a
// non-UUID id. No row can match it.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidText
}

// sequenceOffset is the 1-based SUBSTRING position of the numeric suffix in
// ticket numbers of dayPrefix ("TKT-20251112" + "-" + "0001").
func sequenceOffset(dayPrefix string) int {
	return len(dayPrefix) + 2
}

func normalizePage(limit, offset int) (int, int) {
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
