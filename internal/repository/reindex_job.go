package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/normahq/norma/internal/domain"
)

var ErrReindexJobNotFound = errors.New("reindex job not found")

// ReindexJobRepository queues full-index rebuilds. Claiming uses
// FOR UPDATE SKIP LOCKED so concurrent workers never pick the same job, and
// at most one job per tenant can be in flight.
type ReindexJobRepository struct {
	db dbtx
}

func NewReindexJobRepository(pool *pgxpool.Pool) *ReindexJobRepository {
	return &ReindexJobRepository{db: pool}
}

func NewReindexJobRepositoryWithTx(tx pgx.Tx) *ReindexJobRepository {
	return &ReindexJobRepository{db: tx}
}

// Enqueue creates a pending job unless the tenant already has one pending or
// processing, in which case the existing job's ID is returned.
func (r *ReindexJobRepository) Enqueue(ctx context.Context, job *domain.ReindexJob) (string, error) {
	var existing string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM reindex_jobs
		 WHERE tenant_id = $1 AND status IN ($2, $3)
		 LIMIT 1`,
		job.TenantID, domain.ReindexJobStatusPending, domain.ReindexJobStatusProcessing,
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO reindex_jobs (id, tenant_id, status, retries, error, indexed, failed, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.TenantID, job.Status, job.Retries, nullableString(job.Error), job.Indexed, job.Failed, job.CreatedAt, job.ProcessedAt,
	)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func (r *ReindexJobRepository) GetByID(ctx context.Context, id string) (*domain.ReindexJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, status, retries, error, indexed, failed, created_at, processed_at
		 FROM reindex_jobs WHERE id = $1`,
		id,
	)
	job, err := scanReindexJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReindexJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending atomically moves up to limit pending jobs to processing and
// returns them, oldest first.
func (r *ReindexJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.ReindexJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM reindex_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE reindex_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE reindex_jobs.id = cte.id
		 RETURNING reindex_jobs.id, reindex_jobs.tenant_id, reindex_jobs.status, reindex_jobs.retries,
		           reindex_jobs.error, reindex_jobs.indexed, reindex_jobs.failed, reindex_jobs.created_at, reindex_jobs.processed_at`,
		domain.ReindexJobStatusPending, limit, domain.ReindexJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ReindexJob
	for rows.Next() {
		job, err := scanReindexJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Complete records the outcome of a finished run.
func (r *ReindexJobRepository) Complete(ctx context.Context, id string, status domain.ReindexJobStatus, indexed, failed int, errMsg string) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE reindex_jobs
		 SET status = $1, indexed = $2, failed = $3, error = $4, processed_at = $5
		 WHERE id = $6`,
		status, indexed, failed, nullableString(errMsg), now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReindexJobNotFound
	}
	return nil
}

func (r *ReindexJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE reindex_jobs SET retries = retries + 1, status = $1 WHERE id = $2`,
		domain.ReindexJobStatusPending, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReindexJobNotFound
	}
	return nil
}

func scanReindexJob(row pgx.Row) (*domain.ReindexJob, error) {
	var job domain.ReindexJob
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.TenantID, &job.Status, &job.Retries, &errMsg, &job.Indexed, &job.Failed, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
