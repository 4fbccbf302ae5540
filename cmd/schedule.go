package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/enrich"
	"github.com/sells-group/contractor-insights/internal/fetcher"
	"github.com/sells-group/contractor-insights/internal/geo"
	"github.com/sells-group/contractor-insights/internal/model"
	"github.com/sells-group/contractor-insights/internal/store"
	"github.com/sells-group/contractor-insights/pkg/anthropic"
)

var scheduleCron string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the collection pipeline on a recurring schedule",
	Long:  "Blocks and triggers a collection run on the configured cron expression, optionally chaining the enrichment and geocoding sweeps after each run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("collect"); err != nil {
			return err
		}
		if cfg.Schedule.RunEnrich {
			if err := cfg.Validate("enrich"); err != nil {
				return err
			}
		}

		expr := scheduleCron
		if expr == "" {
			expr = cfg.Schedule.Cron
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return eris.Wrapf(err, "invalid cron expression %q", expr)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c := cron.New()
		if _, err := c.AddFunc(expr, func() { runScheduledPipeline(ctx, st) }); err != nil {
			return eris.Wrap(err, "schedule pipeline")
		}

		c.Start()
		zap.L().Info("scheduler started", zap.String("cron", expr))

		<-ctx.Done()
		zap.L().Info("scheduler stopping")
		<-c.Stop().Done()
		return nil
	},
}

// runScheduledPipeline executes one full pipeline pass: collect, then the
// optional enrichment and geocoding sweeps. Failures are logged; the
// scheduler keeps running for the next trigger.
func runScheduledPipeline(ctx context.Context, st store.Store) {
	zap.L().Info("scheduled pipeline run starting")

	started := time.Now().UTC()
	records := newFetcher().CollectAll(ctx, fetcher.CollectOptions{
		PageSize:    cfg.Collect.PageSize,
		Total:       cfg.Collect.Total,
		Concurrency: cfg.Collect.Concurrency,
		Geo:         geoFilter(),
	})

	stats, err := st.InsertNew(ctx, records)
	if err != nil {
		zap.L().Error("scheduled insert failed", zap.Error(err))
		return
	}

	finished := time.Now().UTC()
	run := model.CollectionRun{
		ID:                    uuid.New().String(),
		StartedAt:             started,
		FinishedAt:            &finished,
		Fetched:               stats.Fetched,
		Inserted:              stats.Inserted,
		Skipped:               stats.Skipped,
		MissingName:           stats.MissingName,
		MissingRating:         stats.MissingRating,
		MissingPhone:          stats.MissingPhone,
		MissingCertifications: stats.MissingCertifications,
	}
	if err := st.RecordCollectionRun(ctx, run); err != nil {
		zap.L().Warn("failed to record collection run", zap.Error(err))
	}

	if cfg.Schedule.RunEnrich {
		e := enrich.New(st, anthropic.NewClient(cfg.Anthropic.Key), enrich.Options{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Enrich.MaxTokens,
			InsightTemp:       cfg.Enrich.InsightTemp,
			EvaluateTemp:      cfg.Enrich.EvaluateTemp,
			RegenerateTemp:    cfg.Enrich.RegenerateTemp,
			LowScoreThreshold: cfg.Enrich.LowScoreThreshold,
			Timeout:           time.Duration(cfg.Enrich.TimeoutSecs) * time.Second,
		})
		if err := e.Run(ctx, nil); err != nil {
			zap.L().Error("scheduled enrichment failed", zap.Error(err))
		}
	}

	if cfg.Schedule.RunGeocode {
		if err := geo.NewSweeper(st, newGeocoder()).Sweep(ctx); err != nil {
			zap.L().Error("scheduled geocoding failed", zap.Error(err))
		}
	}

	zap.L().Info("scheduled pipeline run complete",
		zap.String("run_id", run.ID),
		zap.Int("inserted", stats.Inserted),
		zap.Duration("elapsed", time.Since(started)),
	)
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron expression (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}
