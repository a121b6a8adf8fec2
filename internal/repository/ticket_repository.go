package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unionhall/triage-service/internal/domain"
)

// ErrVersionConflict reports a lost update detected by the optimistic
// version check. Services surface it as CONCURRENT_MODIFICATION.
var ErrVersionConflict = errors.New("version conflict")

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes the ticket if its Version still matches the stored row,
	// then bumps Version. Returns ErrVersionConflict on a stale write.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListRecent(ctx context.Context, limit, offset int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (human_id, title, category, priority, status, raw_text, redacted_text,
            redaction_summary, suggestion, assigned_to, has_sensitive_content, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1)
        RETURNING id, version, submitted_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.HumanID,
		ticket.Title,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.RawText,
		ticket.RedactedText,
		ticket.RedactionSummary,
		ticket.Suggestion,
		ticket.AssignedTo,
		ticket.HasSensitiveContent,
	).Scan(&ticket.ID, &ticket.Version, &ticket.SubmittedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET category=$1, priority=$2, status=$3, redacted_text=$4,
            redaction_summary=$5, suggestion=$6, assigned_to=$7, has_sensitive_content=$8,
            version=version+1, updated_at=NOW()
        WHERE id=$9 AND version=$10`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.RedactedText,
		ticket.RedactionSummary,
		ticket.Suggestion,
		ticket.AssignedTo,
		ticket.HasSensitiveContent,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, human_id, title, category, priority, status, raw_text, redacted_text,
               redaction_summary, suggestion, assigned_to, has_sensitive_content, version,
               submitted_at, updated_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.HumanID,
		&ticket.Title,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.RawText,
		&ticket.RedactedText,
		&ticket.RedactionSummary,
		&ticket.Suggestion,
		&ticket.AssignedTo,
		&ticket.HasSensitiveContent,
		&ticket.Version,
		&ticket.SubmittedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListRecent(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, human_id, title, category, priority, status, raw_text, redacted_text,
               redaction_summary, suggestion, assigned_to, has_sensitive_content, version,
               submitted_at, updated_at
        FROM tickets ORDER BY submitted_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.HumanID,
			&ticket.Title,
			&ticket.Category,
			&ticket.Priority,
			&ticket.Status,
			&ticket.RawText,
			&ticket.RedactedText,
			&ticket.RedactionSummary,
			&ticket.Suggestion,
			&ticket.AssignedTo,
			&ticket.HasSensitiveContent,
			&ticket.Version,
			&ticket.SubmittedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
