package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/normahq/norma/internal/domain"
)

// ChunkRepository persists indexed knowledge chunks and serves vector search.
// Cosine similarity is computed as 1 - (embedding <=> query); with unit
// normalized vectors on both sides this lands in [0, 1] for related text.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceForParent deletes existing chunks for a source row and inserts the
// replacements. Delete-then-insert keeps re-ingestion idempotent.
func (r *ChunkRepository) ReplaceForParent(ctx context.Context, tenantID, parentID string, chunks []*domain.KnowledgeChunk) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE tenant_id = $1 AND parent_id = $2`,
		tenantID, parentID,
	)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO knowledge_chunks
				(id, tenant_id, source_type, parent_id, chunk_index, content, embedding, title, category, article_reference, source_label, tags, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			c.ID,
			c.TenantID,
			c.SourceType,
			c.ParentID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			nullableString(c.Metadata.Title),
			nullableString(c.Metadata.Category),
			nullableString(c.Metadata.ArticleReference),
			nullableString(c.Metadata.SourceLabel),
			c.Metadata.Tags,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// DeleteByParent removes all chunks indexed from one source row.
func (r *ChunkRepository) DeleteByParent(ctx context.Context, tenantID, parentID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE tenant_id = $1 AND parent_id = $2`,
		tenantID, parentID,
	)
	return err
}

// DeleteByTenant clears the whole index for one tenant.
func (r *ChunkRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE tenant_id = $1`,
		tenantID,
	)
	return err
}

// CountByTenant reports the number of indexed chunks for one tenant.
func (r *ChunkRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_chunks WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	return count, err
}

// Search returns the chunks most similar to the query embedding, filtered to
// one tenant and to scores at or above threshold, best first.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, tenantID string, threshold float32, limit int) ([]domain.RetrievalMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, source_type, parent_id, chunk_index, content, title, category, article_reference, source_label, tags, created_at,
		        1 - (embedding <=> $1) AS score
		 FROM knowledge_chunks
		 WHERE tenant_id = $2 AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, tenantID, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.RetrievalMatch, 0, limit)
	for rows.Next() {
		var m domain.RetrievalMatch
		var title, category, articleRef, sourceLabel *string
		if err := rows.Scan(
			&m.Chunk.ID,
			&m.Chunk.TenantID,
			&m.Chunk.SourceType,
			&m.Chunk.ParentID,
			&m.Chunk.ChunkIndex,
			&m.Chunk.Content,
			&title,
			&category,
			&articleRef,
			&sourceLabel,
			&m.Chunk.Metadata.Tags,
			&m.Chunk.CreatedAt,
			&m.Score,
		); err != nil {
			return nil, err
		}
		if title != nil {
			m.Chunk.Metadata.Title = *title
		}
		if category != nil {
			m.Chunk.Metadata.Category = *category
		}
		if articleRef != nil {
			m.Chunk.Metadata.ArticleReference = *articleRef
		}
		if sourceLabel != nil {
			m.Chunk.Metadata.SourceLabel = *sourceLabel
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}
