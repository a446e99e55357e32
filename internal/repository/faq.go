package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/pagination"
	"github.com/normahq/norma/internal/service"
)

type FAQRepository struct {
	db dbtx
}

func NewFAQRepository(pool *pgxpool.Pool) *FAQRepository {
	return &FAQRepository{db: pool}
}

func NewFAQRepositoryWithTx(tx pgx.Tx) *FAQRepository {
	return &FAQRepository{db: tx}
}

func (r *FAQRepository) Create(ctx context.Context, f *domain.FAQEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO faqs (id, tenant_id, question, answer, category, article_reference, source_label, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.TenantID, f.Question, f.Answer, nullableString(f.Category), nullableString(f.ArticleReference), nullableString(f.SourceLabel), f.CreatedAt, f.UpdatedAt,
	)
	return err
}

func (r *FAQRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.FAQEntry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, question, answer, category, article_reference, source_label, created_at, updated_at
		 FROM faqs WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	f, err := scanFAQ(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFAQNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *FAQRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.FAQEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, question, answer, category, article_reference, source_label, created_at, updated_at
		 FROM faqs WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFAQRows(rows)
}

func (r *FAQRepository) ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*service.FAQPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, question, answer, category, article_reference, source_label, created_at, updated_at
			 FROM faqs
			 WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			tenantID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, question, answer, category, article_reference, source_label, created_at, updated_at
			 FROM faqs
			 WHERE tenant_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			tenantID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanFAQRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.FAQPageResult{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (r *FAQRepository) Delete(ctx context.Context, tenantID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM faqs WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFAQNotFound
	}
	return nil
}

func scanFAQ(row pgx.Row) (*domain.FAQEntry, error) {
	var f domain.FAQEntry
	var category, articleRef, sourceLabel *string
	if err := row.Scan(&f.ID, &f.TenantID, &f.Question, &f.Answer, &category, &articleRef, &sourceLabel, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if category != nil {
		f.Category = *category
	}
	if articleRef != nil {
		f.ArticleReference = *articleRef
	}
	if sourceLabel != nil {
		f.SourceLabel = *sourceLabel
	}
	return &f, nil
}

func scanFAQRows(rows pgx.Rows) ([]*domain.FAQEntry, error) {
	var results []*domain.FAQEntry
	for rows.Next() {
		f, err := scanFAQ(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, f)
	}
	return results, rows.Err()
}
