package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type reindexJobResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Indexed int    `json:"indexed"`
	Failed  int    `json:"failed"`
	Error   string `json:"error"`
}

// ReindexCmd returns the reindex command. It queues a full rebuild of the
// tenant's index and polls the job until it finishes.
func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the knowledge index",
		Long:  "Queue a full rebuild of the tenant's indexed chunks from its FAQ entries and documents, then wait for the job to finish",
		RunE:  runReindex,
	}

	cmd.Flags().Bool("no-wait", false, "Queue the job and exit without waiting")
	cmd.Flags().Duration("timeout", 10*time.Minute, "Maximum time to wait for the job")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := apiClient.Post("/reindex", nil)
	if err != nil {
		return err
	}

	var queued struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(resp.Data, &queued); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("reindex queued: %s\n", queued.JobID)

	noWait, _ := cmd.Flags().GetBool("no-wait")
	if noWait {
		return nil
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		time.Sleep(2 * time.Second)

		statusResp, err := apiClient.Get("/reindex/" + queued.JobID)
		if err != nil {
			return err
		}

		var job reindexJobResult
		if err := json.Unmarshal(statusResp.Data, &job); err != nil {
			return fmt.Errorf("failed to parse job status: %w", err)
		}

		switch job.Status {
		case "completed":
			fmt.Printf("reindex complete: %d indexed, %d failed\n", job.Indexed, job.Failed)
			if job.Error != "" {
				fmt.Printf("  %s\n", job.Error)
			}
			return nil
		case "failed":
			return fmt.Errorf("reindex failed: %s", job.Error)
		}
	}

	return fmt.Errorf("timed out waiting for reindex job %s", queued.JobID)
}
