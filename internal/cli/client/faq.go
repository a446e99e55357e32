package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type faqItem struct {
	ID               string `json:"id"`
	Question         string `json:"question"`
	Answer           string `json:"answer"`
	Category         string `json:"category"`
	ArticleReference string `json:"article_reference"`
	SourceLabel      string `json:"source_label"`
	CreatedAt        string `json:"created_at"`
}

type faqListResult struct {
	Items   []faqItem `json:"items"`
	Cursor  string    `json:"cursor"`
	HasMore bool      `json:"has_more"`
}

// FAQCmd returns the faq command group.
func FAQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "Manage FAQ entries",
	}

	cmd.AddCommand(faqAddCmd())
	cmd.AddCommand(faqListCmd())
	cmd.AddCommand(faqGetCmd())
	cmd.AddCommand(faqDeleteCmd())

	return cmd
}

func faqAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <question> <answer>",
		Short: "Add a FAQ entry",
		Long:  "Create a FAQ entry and index it for retrieval",
		Args:  cobra.ExactArgs(2),
		RunE:  runFAQAdd,
	}

	cmd.Flags().String("category", "", "Category label")
	cmd.Flags().String("article-ref", "", "Regulation article reference (e.g. 'Art. 12')")
	cmd.Flags().String("source-label", "", "Source label shown in answers")
	cmd.Flags().Bool("json", false, "Output raw JSON")

	return cmd
}

func runFAQAdd(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	category, _ := cmd.Flags().GetString("category")
	articleRef, _ := cmd.Flags().GetString("article-ref")
	sourceLabel, _ := cmd.Flags().GetString("source-label")

	resp, err := apiClient.Post("/faqs", map[string]string{
		"question":          args[0],
		"answer":            args[1],
		"category":          category,
		"article_reference": articleRef,
		"source_label":      sourceLabel,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return nil
	}

	var item faqItem
	if err := json.Unmarshal(resp.Data, &item); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("created FAQ %s\n", item.ID)
	return nil
}

func faqListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List FAQ entries",
		RunE:  runFAQList,
	}

	cmd.Flags().String("cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().Int("limit", 20, "Maximum entries per page")
	cmd.Flags().Bool("json", false, "Output raw JSON")

	return cmd
}

func runFAQList(cmd *cobra.Command, args []string) error {
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

	resp, err := apiClient.Get("/faqs?" + query.Encode())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return nil
	}

	var result faqListResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Items) == 0 {
		fmt.Println("no FAQ entries")
		return nil
	}

	for _, item := range result.Items {
		fmt.Printf("%s  %s\n", item.ID, item.Question)
	}
	if result.HasMore {
		fmt.Printf("\nmore results: --cursor %s\n", result.Cursor)
	}

	return nil
}

func faqGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a FAQ entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runFAQGet,
	}

	cmd.Flags().Bool("json", false, "Output raw JSON")

	return cmd
}

func runFAQGet(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := apiClient.Get("/faqs/" + args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return nil
	}

	var item faqItem
	if err := json.Unmarshal(resp.Data, &item); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Question: %s\n", item.Question)
	fmt.Printf("Answer:   %s\n", item.Answer)
	if item.Category != "" {
		fmt.Printf("Category: %s\n", item.Category)
	}
	if item.ArticleReference != "" {
		fmt.Printf("Article:  %s\n", item.ArticleReference)
	}
	if item.SourceLabel != "" {
		fmt.Printf("Source:   %s\n", item.SourceLabel)
	}

	return nil
}

func faqDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a FAQ entry and its indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := apiClient.Delete("/faqs/" + args[0]); err != nil {
				return err
			}

			fmt.Printf("deleted FAQ %s\n", args[0])
			return nil
		},
	}
}
