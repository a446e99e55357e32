//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/testutil"
)

func newStoredDocument(tenantID string) *domain.Document {
	return &domain.Document{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Title:         "Regolamento Condominiale",
		Category:      "bylaws",
		SourceLabel:   "Regolamento Condominiale",
		StorageKey:    tenantID + "/documents/" + uuid.NewString() + "/regolamento.pdf",
		ExtractedText: "Art. 1 All residents must respect quiet hours between 22:00 and 8:00.",
		ChunkCount:    2,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	d := newStoredDocument("tenant-1")
	require.NoError(t, repo.Create(ctx, d))

	retrieved, err := repo.GetByID(ctx, "tenant-1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Title, retrieved.Title)
	assert.Equal(t, d.StorageKey, retrieved.StorageKey)
	assert.Equal(t, d.ExtractedText, retrieved.ExtractedText)
	assert.Equal(t, d.ChunkCount, retrieved.ChunkCount)
}

func TestDocumentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	_, err := repo.GetByID(ctx, "tenant-1", uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_UpdateChunkCount(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	d := newStoredDocument("tenant-1")
	require.NoError(t, repo.Create(ctx, d))

	require.NoError(t, repo.UpdateChunkCount(ctx, "tenant-1", d.ID, 7))

	retrieved, err := repo.GetByID(ctx, "tenant-1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, retrieved.ChunkCount)
}

func TestDocumentRepository_ListByTenantWithCursor_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	require.NoError(t, repo.Create(ctx, newStoredDocument("tenant-1")))
	require.NoError(t, repo.Create(ctx, newStoredDocument("tenant-1")))
	require.NoError(t, repo.Create(ctx, newStoredDocument("tenant-2")))

	page, err := repo.ListByTenantWithCursor(ctx, "tenant-1", nil, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
	for _, item := range page.Items {
		assert.Equal(t, "tenant-1", item.TenantID)
	}
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	d := newStoredDocument("tenant-1")
	require.NoError(t, repo.Create(ctx, d))

	require.NoError(t, repo.Delete(ctx, "tenant-1", d.ID))

	err := repo.Delete(ctx, "tenant-1", d.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
