package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/normahq/norma/internal/domain"
)

// TicketRepository stores escalated questions for the administration.
type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func (r *TicketRepository) Create(ctx context.Context, t *domain.SupportTicket) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO support_tickets (id, tenant_id, user_id, subject, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.TenantID, nullableString(t.UserID), t.Subject, t.Body, t.CreatedAt,
	)
	return err
}

func (r *TicketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SupportTicket, error) {
	var t domain.SupportTicket
	var userID *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, user_id, subject, body, created_at
		 FROM support_tickets WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&t.ID, &t.TenantID, &userID, &t.Subject, &t.Body, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		t.UserID = *userID
	}
	return &t, nil
}

func (r *TicketRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.SupportTicket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, user_id, subject, body, created_at
		 FROM support_tickets WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.SupportTicket
	for rows.Next() {
		var t domain.SupportTicket
		var userID *string
		if err := rows.Scan(&t.ID, &t.TenantID, &userID, &t.Subject, &t.Body, &t.CreatedAt); err != nil {
			return nil, err
		}
		if userID != nil {
			t.UserID = *userID
		}
		results = append(results, &t)
	}
	return results, rows.Err()
}
