package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type askResult struct {
	Answer  string `json:"answer"`
	NoMatch bool   `json:"no_match"`
	Sources []struct {
		Type      string `json:"type"`
		Reference string `json:"reference"`
		Label     string `json:"label"`
	} `json:"sources"`
	Options []struct {
		Kind  string `json:"kind"`
		Label string `json:"label"`
	} `json:"options"`
}

// AskCmd returns the ask command for one-shot questions.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a question",
		Long:  "Send a one-shot question to the assistant and print the answer with its sources",
		Args:  cobra.ExactArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().Bool("json", false, "Output raw JSON")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	apiClient, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := apiClient.Post("/ask", map[string]string{"question": args[0]})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return nil
	}

	var result askResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	fmt.Println(result.Answer)

	if len(result.Sources) > 0 {
		fmt.Println()
		for _, s := range result.Sources {
			if s.Reference != "" {
				fmt.Printf("  source: %s (%s)\n", s.Reference, s.Type)
			} else {
				fmt.Printf("  source: %s (%s)\n", s.Label, s.Type)
			}
		}
	}

	if len(result.Options) > 0 {
		fmt.Println()
		for _, o := range result.Options {
			fmt.Printf("  • %s\n", o.Label)
		}
	}

	return nil
}
