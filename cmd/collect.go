package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/fetcher"
	"github.com/sells-group/contractor-insights/internal/model"
)

var (
	collectTotal    int
	collectPageSize int
	collectNoGeo    bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch contractor listings and insert new records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("collect"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		total := cfg.Collect.Total
		if collectTotal > 0 {
			total = collectTotal
		}
		pageSize := cfg.Collect.PageSize
		if collectPageSize > 0 {
			pageSize = collectPageSize
		}
		geo := geoFilter()
		if collectNoGeo {
			geo = nil
		}

		started := time.Now().UTC()
		records := newFetcher().CollectAll(ctx, fetcher.CollectOptions{
			PageSize:    pageSize,
			Total:       total,
			Concurrency: cfg.Collect.Concurrency,
			Geo:         geo,
		})

		stats, err := st.InsertNew(ctx, records)
		if err != nil {
			return eris.Wrap(err, "insert records")
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

		zap.L().Info("collection run finished",
			zap.String("run_id", run.ID),
			zap.Int("fetched", stats.Fetched),
			zap.Int("inserted", stats.Inserted),
			zap.Int("skipped", stats.Skipped),
			zap.Int("missing_name", stats.MissingName),
			zap.Int("missing_rating", stats.MissingRating),
			zap.Int("missing_phone", stats.MissingPhone),
			zap.Int("missing_certifications", stats.MissingCertifications),
		)
		return nil
	},
}

func init() {
	collectCmd.Flags().IntVar(&collectTotal, "total", 0, "total records to fetch (default from config)")
	collectCmd.Flags().IntVar(&collectPageSize, "page-size", 0, "records per page (default from config)")
	collectCmd.Flags().BoolVar(&collectNoGeo, "no-geo", false, "disable the geographic filter")
	rootCmd.AddCommand(collectCmd)
}
