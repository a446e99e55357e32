package domain

import "time"

// ReindexJobStatus is the lifecycle state of a queued reindex run.
type ReindexJobStatus string

const (
	ReindexJobStatusPending    ReindexJobStatus = "pending"
	ReindexJobStatusProcessing ReindexJobStatus = "processing"
	ReindexJobStatusCompleted  ReindexJobStatus = "completed"
	ReindexJobStatusFailed     ReindexJobStatus = "failed"
)

// ReindexJob queues a full rebuild of one tenant's index. Reindex runs are
// serialized per tenant through this queue so two rebuilds never interleave
// their delete and insert phases.
type ReindexJob struct {
	ID          string
	TenantID    string
	Status      ReindexJobStatus
	Retries     int
	Error       string
	Indexed     int
	Failed      int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
