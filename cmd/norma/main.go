package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/normahq/norma/internal/cli"
	"github.com/normahq/norma/internal/cli/client"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "norma",
		Short: "Norma client",
		Long:  "Command line client for the Norma condominium assistant API",
	}

	rootCmd.PersistentFlags().String("api-key", "", "API key (overrides NORMA_API_KEY)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides NORMA_API_URL)")

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.FAQCmd())
	rootCmd.AddCommand(client.DocumentCmd())
	rootCmd.AddCommand(client.ReindexCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
