package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "contractor-insights",
	Short: "Contractor listing ingestion and enrichment pipeline",
	Long:  "Collects contractor listings from the search API, enriches them with LLM-generated sales insights and narratives, geocodes addresses, and serves the dataset over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
