package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contractor-insights/internal/model"
)

// CollectOptions parameterizes one full collection run.
type CollectOptions struct {
	PageSize    int
	Total       int
	Concurrency int
	Geo         *GeoFilter
}

// CollectAll fetches every page offset in [0, Total) concurrently, parses each
// page, and merges the results. Individual page failures already surfaced as
// empty pages inside FetchPage, so the merge has partial-success semantics:
// the run completes with whatever pages did arrive.
func (c *Client) CollectAll(ctx context.Context, opts CollectOptions) []model.Contractor {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var offsets []int
	for off := 0; off < opts.Total; off += pageSize {
		offsets = append(offsets, off)
	}

	var (
		mu  sync.Mutex
		all []model.Contractor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, offset := range offsets {
		g.Go(func() error {
			page := c.FetchPage(gctx, offset, pageSize, opts.Geo)
			records := Parse(page)

			mu.Lock()
			all = append(all, records...)
			mu.Unlock()

			zap.L().Info("page fetched",
				zap.Int("offset", offset),
				zap.Int("records", len(records)),
			)
			return nil
		})
	}
	// Workers never return errors; Wait is for completion only.
	_ = g.Wait()

	zap.L().Info("collection complete",
		zap.Int("pages", len(offsets)),
		zap.Int("records", len(all)),
	)
	return all
}
