package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/normahq/norma/internal/domain"
)

// FeedbackRepository stores answer usefulness ratings for the content
// improvement loop. Write-mostly; the read side is reporting queries run by
// administrators.
type FeedbackRepository struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepository(pool *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{pool: pool}
}

func (r *FeedbackRepository) Create(ctx context.Context, f *domain.FeedbackRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_feedback (id, tenant_id, user_id, question, answer, source_title, source_type, useful, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.TenantID, nullableString(f.UserID), f.Question, f.Answer, nullableString(f.SourceTitle), nullableString(string(f.SourceType)), f.Useful, f.CreatedAt,
	)
	return err
}

// CountByUsefulness aggregates ratings for one tenant.
func (r *FeedbackRepository) CountByUsefulness(ctx context.Context, tenantID string) (useful, notUseful int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE useful),
			COUNT(*) FILTER (WHERE NOT useful)
		 FROM answer_feedback WHERE tenant_id = $1`,
		tenantID,
	).Scan(&useful, &notUseful)
	return useful, notUseful, err
}
