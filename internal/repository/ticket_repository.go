package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickdesk/support-service/internal/domain"
)

// TicketFilter captures listing parameters. A nil CustomerID lists every
// ticket (agent view); a set CustomerID restricts to that customer's tickets.
type TicketFilter struct {
	CustomerID *string
}

// TicketPatch carries the partial-update fields for a ticket. Nil fields are
// left untouched; updated_at is always refreshed.
type TicketPatch struct {
	Status          *domain.TicketStatus
	AssignedAgentID *string
}

// IsEmpty reports whether the patch carries no field.
func (p TicketPatch) IsEmpty() bool {
	return p.Status == nil && p.AssignedAgentID == nil
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	UpdateFields(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (customer_id, title, description, status, priority)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.CustomerID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, customer_id, title, description, status, priority, assigned_agent_id, created_at, updated_at
        FROM tickets WHERE id=$1`

	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id).Scan, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// List returns tickets newest-first. No pagination: callers receive the full
// filtered result set.
func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, customer_id, title, description, status, priority, assigned_agent_id, created_at, updated_at
             FROM tickets`
	args := []any{}
	clauses := []string{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}

	query := base
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// UpdateFields applies the patch in a single UPDATE, refreshing updated_at,
// and returns the stored row. Last write wins; no conflict detection.
func (r *ticketRepository) UpdateFields(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{}

	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.AssignedAgentID != nil {
		args = append(args, *patch.AssignedAgentID)
		sets = append(sets, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`
        UPDATE tickets SET %s
        WHERE id=$%d
        RETURNING id, customer_id, title, description, status, priority, assigned_agent_id, created_at, updated_at`,
		strings.Join(sets, ", "), len(args))

	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, args...).Scan, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTicket(scan func(dest ...any) error, ticket *domain.Ticket) error {
	return scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedAgentID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows.Scan, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
