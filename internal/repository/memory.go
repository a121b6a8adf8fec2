package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unionhall/triage-service/internal/domain"
)

// In-memory repositories back tests and DSN-less local runs. They honor the
// same contracts as the Postgres implementations: optimistic versioning on
// tickets and tasks, append-only monotonic audit storage.

// MemoryTicketRepository is a map-backed TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository builds an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now()
	ticket.Version = 1
	ticket.SubmittedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *MemoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return ErrVersionConflict
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneTicket(stored)
	return &out, nil
}

func (r *MemoryTicketRepository) ListRecent(_ context.Context, limit, offset int) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		all = append(all, cloneTicket(t))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].SubmittedAt.After(all[j].SubmittedAt)
	})
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// MemoryProponentTaskRepository is a map-backed ProponentTaskRepository.
type MemoryProponentTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]domain.ProponentTask
}

// NewMemoryProponentTaskRepository builds an empty store.
func NewMemoryProponentTaskRepository() *MemoryProponentTaskRepository {
	return &MemoryProponentTaskRepository{tasks: make(map[string]domain.ProponentTask)}
}

func (r *MemoryProponentTaskRepository) Create(_ context.Context, task *domain.ProponentTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now()
	task.Version = 1
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryProponentTaskRepository) Update(_ context.Context, task *domain.ProponentTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[task.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != task.Version {
		return ErrVersionConflict
	}
	task.Version++
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = *task
	return nil
}

func (r *MemoryProponentTaskRepository) GetByID(_ context.Context, id string) (*domain.ProponentTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := stored
	return &out, nil
}

func (r *MemoryProponentTaskRepository) GetByTicket(_ context.Context, ticketID string) (*domain.ProponentTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.ProponentTask
	for id := range r.tasks {
		stored := r.tasks[id]
		if stored.TicketID != ticketID {
			continue
		}
		if latest == nil || stored.CreatedAt.After(latest.CreatedAt) {
			copied := stored
			latest = &copied
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	return latest, nil
}

// MemoryAuditRepository is a slice-backed append-only AuditRepository.
// FailAppends forces Append to error, letting tests exercise the
// audit-write-failure path.
type MemoryAuditRepository struct {
	mu          sync.RWMutex
	entries     []domain.AuditEntry
	nextID      int64
	FailAppends bool
}

// NewMemoryAuditRepository builds an empty trail.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{nextID: 1}
}

func (r *MemoryAuditRepository) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAppends {
		return errors.New("audit store unavailable")
	}
	entry.ID = r.nextID
	r.nextID++
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, cloneEntry(*entry))
	return nil
}

func (r *MemoryAuditRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.AuditEntry
	for _, e := range r.entries {
		if e.TicketID != nil && *e.TicketID == ticketID {
			result = append(result, cloneEntry(e))
		}
	}
	return result, nil
}

func (r *MemoryAuditRepository) ListByActor(_ context.Context, actor domain.ActorType) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.AuditEntry
	for _, e := range r.entries {
		if e.Actor == actor {
			result = append(result, cloneEntry(e))
		}
	}
	return result, nil
}

// MemoryAccountRepository is a map-backed AccountRepository.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewMemoryAccountRepository builds an empty store.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]domain.Account)}
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[account.Username]; exists {
		return errors.New("username taken")
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.CreatedAt = time.Now()
	r.accounts[account.Username] = *account
	return nil
}

func (r *MemoryAccountRepository) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.accounts[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := stored
	return &out, nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		t.AssignedTo = &v
	}
	if t.Suggestion != nil {
		s := *t.Suggestion
		s.Reasoning.Factors = append([]string(nil), s.Reasoning.Factors...)
		s.Reasoning.RiskFactors = append([]string(nil), s.Reasoning.RiskFactors...)
		s.ExtractedEntities = append([]domain.ExtractedEntity(nil), s.ExtractedEntities...)
		t.Suggestion = &s
	}
	return t
}

func cloneEntry(e domain.AuditEntry) domain.AuditEntry {
	if e.TicketID != nil {
		v := *e.TicketID
		e.TicketID = &v
	}
	if e.Reason != nil {
		v := *e.Reason
		e.Reason = &v
	}
	if e.Metadata != nil {
		meta := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
	}
	return e
}
