package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CommentRepository persists ticket thread messages.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (id, ticket_id, author_id, author_role, body, internal, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		comment.ID,
		comment.TicketID,
		comment.AuthorID,
		comment.AuthorRole,
		comment.Body,
		comment.Internal,
		comment.CreatedAt,
	)
	return err
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, author_id, author_role, body, internal, created_at, deleted_at
        FROM comments WHERE id=$1 AND deleted_at IS NULL`
	comment, err := scanComment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	return comment, err
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	query := `
        SELECT id, ticket_id, author_id, author_role, body, internal, created_at, deleted_at
        FROM comments WHERE ticket_id=$1 AND deleted_at IS NULL`
	if !includeInternal {
		query += ` AND internal = FALSE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *comment)
	}
	return result, rows.Err()
}

func (r *commentRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE comments SET deleted_at=$1 WHERE id=$2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var comment domain.Comment
	if err := row.Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.AuthorID,
		&comment.AuthorRole,
		&comment.Body,
		&comment.Internal,
		&comment.CreatedAt,
		&comment.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &comment, nil
}
