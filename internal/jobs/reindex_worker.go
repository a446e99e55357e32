package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/service"
)

const (
	// MaxRetries is the maximum number of retries for a failed reindex job
	MaxRetries = 3
)

// ReindexJobRepository defines the interface for reindex job persistence
type ReindexJobRepository interface {
	// ClaimPending atomically claims pending reindex jobs
	ClaimPending(ctx context.Context, limit int) ([]*domain.ReindexJob, error)

	// Complete records the outcome of a finished run
	Complete(ctx context.Context, id string, status domain.ReindexJobStatus, indexed, failed int, errMsg string) error

	// IncrementRetries increments the retry count and requeues the job
	IncrementRetries(ctx context.Context, id string) error
}

// Reindexer rebuilds one tenant's index from its source rows.
type Reindexer interface {
	ReindexAll(ctx context.Context, tenantID string) (*service.ReindexReport, error)
}

// ReindexWorker drains the reindex queue. Jobs are claimed one at a time so
// rebuilds never overlap: an overlap would interleave the delete phase of one
// run with the insert phase of another.
type ReindexWorker struct {
	repo      ReindexJobRepository
	reindexer Reindexer
}

// NewReindexWorker creates a new ReindexWorker instance
func NewReindexWorker(repo ReindexJobRepository, reindexer Reindexer) *ReindexWorker {
	return &ReindexWorker{
		repo:      repo,
		reindexer: reindexer,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ReindexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing reindex job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *ReindexWorker) processJob(ctx context.Context, job *domain.ReindexJob) error {
	log.Printf("Reindexing tenant %s (job %s)", job.TenantID, job.ID)

	report, err := w.reindexer.ReindexAll(ctx, job.TenantID)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	status := domain.ReindexJobStatusCompleted
	var errMsg string
	if report.Failed > 0 {
		errMsg = fmt.Sprintf("%d items failed to reindex", report.Failed)
	}
	if err := w.repo.Complete(ctx, job.ID, status, report.Indexed, report.Failed, errMsg); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	log.Printf("Reindex job %s completed: %d indexed, %d failed", job.ID, report.Indexed, report.Failed)
	return nil
}

func (w *ReindexWorker) handleJobFailure(ctx context.Context, job *domain.ReindexJob, jobErr error) error {
	log.Printf("Reindex job %s failed: %v", job.ID, jobErr)

	if job.Retries+1 >= MaxRetries {
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.Complete(ctx, job.ID, domain.ReindexJobStatusFailed, 0, 0, errMsg); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	}

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	log.Printf("Reindex job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	return nil
}
