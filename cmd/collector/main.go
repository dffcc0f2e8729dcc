package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "collector",
		Short: "Scheduled stock data collection from external sources",
		Long: `collector gathers structured records from registered external data
providers, tier by tier, with per-source rate limits, a global concurrency
bound, bounded retries, and per-source health tracking.`,
	}

	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.SourcesCmd())
	rootCmd.AddCommand(cli.HealthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
