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

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, tenant_id, title, category, source_label, storage_key, extracted_text, chunk_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.TenantID, d.Title, nullableString(d.Category), nullableString(d.SourceLabel), nullableString(d.StorageKey), d.ExtractedText, d.ChunkCount, d.CreatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, title, category, source_label, storage_key, extracted_text, chunk_count, created_at
		 FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, title, category, source_label, storage_key, extracted_text, chunk_count, created_at
		 FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, title, category, source_label, storage_key, extracted_text, chunk_count, created_at
			 FROM documents
			 WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			tenantID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, title, category, source_label, storage_key, extracted_text, chunk_count, created_at
			 FROM documents
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

	items, err := scanDocumentRows(rows)
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

	return &service.DocumentPageResult{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (r *DocumentRepository) UpdateChunkCount(ctx context.Context, tenantID, id string, count int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET chunk_count = $1 WHERE tenant_id = $2 AND id = $3`,
		count, tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, tenantID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var category, sourceLabel, storageKey *string
	if err := row.Scan(&d.ID, &d.TenantID, &d.Title, &category, &sourceLabel, &storageKey, &d.ExtractedText, &d.ChunkCount, &d.CreatedAt); err != nil {
		return nil, err
	}
	if category != nil {
		d.Category = *category
	}
	if sourceLabel != nil {
		d.SourceLabel = *sourceLabel
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
