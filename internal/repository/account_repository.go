package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unionhall/triage-service/internal/domain"
)

// AccountRepository encapsulates console account persistence.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository instantiates the Postgres-backed repository.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (username, name, password_hash, actor)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		account.Username,
		account.Name,
		account.PasswordHash,
		account.Actor,
	).Scan(&account.ID, &account.CreatedAt)
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	const query = `
        SELECT id, username, name, password_hash, actor, created_at
        FROM accounts WHERE username=$1`
	var account domain.Account
	if err := r.pool.QueryRow(ctx, query, username).Scan(
		&account.ID,
		&account.Username,
		&account.Name,
		&account.PasswordHash,
		&account.Actor,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}
