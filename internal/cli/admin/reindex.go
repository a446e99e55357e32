package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/normahq/norma/internal/config"
	"github.com/normahq/norma/internal/database"
	"github.com/normahq/norma/internal/extract"
	"github.com/normahq/norma/internal/openai"
	"github.com/normahq/norma/internal/repository"
	"github.com/normahq/norma/internal/service"
)

// ReindexCmd returns the reindex command. It rebuilds one tenant's index
// synchronously, bypassing the queue. Intended for operators running
// one-off rebuilds; the running server uses the queued path.
func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild a tenant's knowledge index",
		Long:  "Delete and regenerate every indexed chunk for a tenant from its stored FAQ entries and documents",
		RunE:  runReindex,
	}

	cmd.Flags().StringP("tenant", "t", "", "Tenant ID to reindex")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("NORMA_OPENAI_API_KEY is required to regenerate embeddings")
	}

	tenantID, _ := cmd.Flags().GetString("tenant")

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	svc := service.NewIngestionService(
		repository.NewFAQRepository(pool),
		repository.NewDocumentRepository(pool),
		repository.NewChunkRepository(pool),
		openai.NewClient(cfg.OpenAIAPIKey),
		extract.NewPDFExtractor(),
		nil,
	)

	report, err := svc.ReindexAll(ctx, tenantID)
	if err != nil {
		return err
	}

	fmt.Printf("reindex complete: %d indexed, %d failed\n", report.Indexed, report.Failed)
	for _, msg := range report.Errors {
		fmt.Printf("  failed: %s\n", msg)
	}
	return nil
}
