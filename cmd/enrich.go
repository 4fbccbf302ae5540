package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/contractor-insights/internal/enrich"
	"github.com/sells-group/contractor-insights/pkg/anthropic"
)

var enrichJobs string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run LLM enrichment sweeps over stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		jobs, err := enrich.ParseJobs(enrichJobs)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		e := enrich.New(st, anthropic.NewClient(cfg.Anthropic.Key), enrich.Options{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Enrich.MaxTokens,
			InsightTemp:       cfg.Enrich.InsightTemp,
			EvaluateTemp:      cfg.Enrich.EvaluateTemp,
			RegenerateTemp:    cfg.Enrich.RegenerateTemp,
			LowScoreThreshold: cfg.Enrich.LowScoreThreshold,
			Timeout:           time.Duration(cfg.Enrich.TimeoutSecs) * time.Second,
		})

		return e.Run(ctx, jobs)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichJobs, "jobs", "", "comma-separated sweep selection: insight,evaluate,regenerate,narrative (default all)")
	rootCmd.AddCommand(enrichCmd)
}
