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

func TestTicketRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	ticket := &domain.SupportTicket{
		ID:        uuid.NewString(),
		TenantID:  "tenant-1",
		UserID:    "user-5",
		Subject:   "Unanswered question: can I install a heat pump?",
		Body:      "A resident asked a question the assistant could not answer.",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, ticket))

	retrieved, err := repo.GetByID(ctx, "tenant-1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Subject, retrieved.Subject)
	assert.Equal(t, ticket.Body, retrieved.Body)
	assert.Equal(t, "user-5", retrieved.UserID)
}

func TestTicketRepository_Create_AnonymousUser(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	ticket := &domain.SupportTicket{
		ID:        uuid.NewString(),
		TenantID:  "tenant-1",
		Subject:   "Unanswered question: parking rules",
		Body:      "Escalated without a signed-in user.",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, ticket))

	retrieved, err := repo.GetByID(ctx, "tenant-1", ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, retrieved.UserID)
}

func TestTicketRepository_ListByTenant(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTicketRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(ctx, &domain.SupportTicket{
			ID:        uuid.NewString(),
			TenantID:  "tenant-1",
			Subject:   "subject",
			Body:      "body",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.SupportTicket{
		ID:        uuid.NewString(),
		TenantID:  "tenant-2",
		Subject:   "other tenant",
		Body:      "body",
		CreatedAt: base,
	}))

	tickets, err := repo.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestFeedbackRepository_CreateAndCount(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFeedbackRepository(pool)

	records := []struct {
		useful bool
	}{
		{useful: true},
		{useful: true},
		{useful: false},
	}
	for _, rec := range records {
		require.NoError(t, repo.Create(ctx, &domain.FeedbackRecord{
			ID:          uuid.NewString(),
			TenantID:    "tenant-1",
			Question:    "can I keep a dog?",
			Answer:      "Yes, pets are allowed.",
			SourceTitle: "Art. 9",
			SourceType:  domain.SourceTypeFAQ,
			Useful:      rec.useful,
			CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		}))
	}

	useful, notUseful, err := repo.CountByUsefulness(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 2, useful)
	assert.Equal(t, 1, notUseful)

	useful, notUseful, err = repo.CountByUsefulness(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, 0, useful)
	assert.Equal(t, 0, notUseful)
}
