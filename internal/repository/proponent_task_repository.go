package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unionhall/triage-service/internal/domain"
)

// ProponentTaskRepository encapsulates review task persistence.
type ProponentTaskRepository interface {
	Create(ctx context.Context, task *domain.ProponentTask) error
	// Update writes the task if its Version still matches, then bumps it.
	// Returns ErrVersionConflict on a stale write.
	Update(ctx context.Context, task *domain.ProponentTask) error
	GetByID(ctx context.Context, id string) (*domain.ProponentTask, error)
	GetByTicket(ctx context.Context, ticketID string) (*domain.ProponentTask, error)
}

type proponentTaskRepository struct {
	pool *pgxpool.Pool
}

// NewProponentTaskRepository instantiates the Postgres-backed repository.
func NewProponentTaskRepository(pool *pgxpool.Pool) ProponentTaskRepository {
	return &proponentTaskRepository{pool: pool}
}

func (r *proponentTaskRepository) Create(ctx context.Context, task *domain.ProponentTask) error {
	const query = `
        INSERT INTO proponent_tasks (ticket_id, proponent_id, proponent_name, proponent_role,
            proponent_department, response_text, due_date, status, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		task.TicketID,
		task.Proponent.ID,
		task.Proponent.Name,
		task.Proponent.Role,
		task.Proponent.Department,
		task.ResponseText,
		task.DueDate,
		task.Status,
	).Scan(&task.ID, &task.Version, &task.CreatedAt, &task.UpdatedAt)
}

func (r *proponentTaskRepository) Update(ctx context.Context, task *domain.ProponentTask) error {
	const query = `
        UPDATE proponent_tasks SET response_text=$1, status=$2, version=version+1, updated_at=NOW()
        WHERE id=$3 AND version=$4`
	cmd, err := r.pool.Exec(ctx, query,
		task.ResponseText,
		task.Status,
		task.ID,
		task.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	task.Version++
	return nil
}

func (r *proponentTaskRepository) GetByID(ctx context.Context, id string) (*domain.ProponentTask, error) {
	const query = `
        SELECT id, ticket_id, proponent_id, proponent_name, proponent_role, proponent_department,
               response_text, due_date, status, version, created_at, updated_at
        FROM proponent_tasks WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *proponentTaskRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.ProponentTask, error) {
	const query = `
        SELECT id, ticket_id, proponent_id, proponent_name, proponent_role, proponent_department,
               response_text, due_date, status, version, created_at, updated_at
        FROM proponent_tasks WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *proponentTaskRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.ProponentTask, error) {
	var task domain.ProponentTask
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&task.ID,
		&task.TicketID,
		&task.Proponent.ID,
		&task.Proponent.Name,
		&task.Proponent.Role,
		&task.Proponent.Department,
		&task.ResponseText,
		&task.DueDate,
		&task.Status,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}
