package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type documentItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	SourceLabel string `json:"source_label"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
}

type documentListResult struct {
	Items   []documentItem `json:"items"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

// DocumentCmd returns the document command group.
func DocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc"},
		Short:   "Manage knowledge base documents",
	}

	cmd.AddCommand(documentUploadCmd())
	cmd.AddCommand(documentListCmd())
	cmd.AddCommand(documentGetCmd())
	cmd.AddCommand(documentDownloadCmd())
	cmd.AddCommand(documentDeleteCmd())

	return cmd
}

func documentUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload and index a document",
		Long:  "Upload a PDF or text file, extract its text, and index it for retrieval",
		Args:  cobra.ExactArgs(1),
		RunE:  runDocumentUpload,
	}

	cmd.Flags().String("title", "", "Document title (defaults to the filename)")
	cmd.Flags().String("category", "", "Category label")
	cmd.Flags().String("source-label", "", "Source label shown in answers (e.g. 'Regolamento Condominiale')")
	cmd.Flags().Bool("json", false, "Output raw JSON")

	return cmd
}

func runDocumentUpload(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("title")
	category, _ := cmd.Flags().GetString("category")
	sourceLabel, _ := cmd.Flags().GetString("source-label")

	resp, err := apiClient.PostFile("/documents", args[0], map[string]string{
		"title":        title,
		"category":     category,
		"source_label": sourceLabel,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return nil
	}

	var item documentItem
	if err := json.Unmarshal(resp.Data, &item); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("indexed document %s (%d chunks)\n", item.ID, item.ChunkCount)
	return nil
}

func documentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE:  runDocumentList,
	}

	cmd.Flags().String("cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().Int("limit", 20, "Maximum documents per page")
	cmd.Flags().Bool("json", false, "Output raw JSON")

	return cmd
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	cursor, _ := cmd.Flags().GetString("cursor")
	limit, _ := cmd.Flags().GetInt("limit")

	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	resp, err := apiClient.Get("/documents?" + query.Encode())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return nil
	}

	var result documentListResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Items) == 0 {
		fmt.Println("no documents")
		return nil
	}

	for _, item := range result.Items {
		fmt.Printf("%s  %s (%d chunks)\n", item.ID, item.Title, item.ChunkCount)
	}
	if result.HasMore {
		fmt.Printf("\nmore results: --cursor %s\n", result.Cursor)
	}

	return nil
}

func documentGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE:  runDocumentGet,
	}

	cmd.Flags().Bool("json", false, "Output raw JSON")

	return cmd
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := apiClient.Get("/documents/" + args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return nil
	}

	var item documentItem
	if err := json.Unmarshal(resp.Data, &item); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Title:    %s\n", item.Title)
	if item.Category != "" {
		fmt.Printf("Category: %s\n", item.Category)
	}
	if item.SourceLabel != "" {
		fmt.Printf("Source:   %s\n", item.SourceLabel)
	}
	fmt.Printf("Chunks:   %d\n", item.ChunkCount)
	fmt.Printf("Created:  %s\n", item.CreatedAt)

	return nil
}

func documentDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <id>",
		Short: "Print a download URL for the original file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := apiClient.Get("/documents/" + args[0] + "/download")
			if err != nil {
				return err
			}

			var result struct {
				DownloadURL string `json:"download_url"`
			}
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			fmt.Println(result.DownloadURL)
			return nil
		},
	}
}

func documentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := apiClient.Delete("/documents/" + args[0]); err != nil {
				return err
			}

			fmt.Printf("deleted document %s\n", args[0])
			return nil
		},
	}
}
