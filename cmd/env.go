package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/fetcher"
	"github.com/sells-group/contractor-insights/internal/store"
	"github.com/sells-group/contractor-insights/pkg/geocode"
)

// initStore opens the configured database backend and runs migrations.
// Callers should defer st.Close().
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}

// newFetcher builds the search client from config.
func newFetcher() *fetcher.Client {
	return fetcher.NewClient(fetcher.Options{
		URL:       cfg.Search.URL,
		Token:     cfg.Search.Token,
		UserAgent: cfg.Search.UserAgent,
		Timeout:   time.Duration(cfg.Search.TimeoutSecs) * time.Second,
		RateLimit: cfg.Search.RateLimit,
	})
}

// newGeocoder builds the geocoding client from config.
func newGeocoder() geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithTimeout(time.Duration(cfg.Geocode.TimeoutSecs)*time.Second),
	)
}

// geoFilter resolves the configured collection radius, or nil when the
// geographic restriction is disabled.
func geoFilter() *fetcher.GeoFilter {
	if !cfg.Collect.UseGeo {
		return nil
	}
	return &fetcher.GeoFilter{
		Latitude:      cfg.Collect.Latitude,
		Longitude:     cfg.Collect.Longitude,
		DistanceMiles: cfg.Collect.Distance,
	}
}
