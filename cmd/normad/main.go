package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/normahq/norma/internal/cli"
	"github.com/normahq/norma/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "normad",
		Short: "Norma daemon",
		Long:  "Norma daemon for running the condominium assistant API server and maintenance tasks",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ReindexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
