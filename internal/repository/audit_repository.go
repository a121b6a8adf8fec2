package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unionhall/triage-service/internal/domain"
)

// AuditRepository stores append-only audit entries. Implementations never
// issue UPDATE or DELETE against the audit store.
type AuditRepository interface {
	// Append persists the entry, assigning its monotonic ID and server
	// timestamp into the passed struct.
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error)
	ListByActor(ctx context.Context, actor domain.ActorType) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates the Postgres-backed repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (ticket_id, actor, actor_name, action, reason, metadata)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.Actor,
		entry.ActorName,
		entry.Action,
		entry.Reason,
		entry.Metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, ticket_id, actor, actor_name, action, reason, metadata, created_at
        FROM audit_entries WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func (r *auditRepository) ListByActor(ctx context.Context, actor domain.ActorType) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, ticket_id, actor, actor_name, action, reason, metadata, created_at
        FROM audit_entries WHERE actor=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, actor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Actor,
			&entry.ActorName,
			&entry.Action,
			&entry.Reason,
			&entry.Metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
