// Package geo backfills coordinates for contractor records from their
// city/state/postal address fields.
package geo

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contractor-insights/internal/model"
	"github.com/sells-group/contractor-insights/internal/store"
	"github.com/sells-group/contractor-insights/pkg/geocode"
)

// Sweeper resolves coordinates for every record missing them.
type Sweeper struct {
	store  store.Store
	client geocode.Client
}

// NewSweeper creates a geocoding sweeper.
func NewSweeper(st store.Store, client geocode.Client) *Sweeper {
	return &Sweeper{store: st, client: client}
}

// Address builds the lookup string: the non-empty address components joined
// with commas. A record with no address components yields "".
func Address(c model.Contractor) string {
	var parts []string
	for _, p := range []*string{c.City, c.State, c.PostalCode} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, ", ")
}

// Sweep geocodes every record with missing coordinates. Lookup misses and
// errors leave the coordinates unset for a later pass; only a positive match
// writes. The client enforces the upstream rate limit.
func (s *Sweeper) Sweep(ctx context.Context) error {
	pending, err := s.store.ListGeocodePending(ctx)
	if err != nil {
		return eris.Wrap(err, "geo: list geocode pending")
	}

	var matched, missed, failed int
	for _, c := range pending {
		address := Address(c)

		result, err := s.client.Geocode(ctx, address)
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(ctx.Err(), "geo: sweep canceled")
			}
			zap.L().Warn("geocode failed",
				zap.String("contractor_id", c.ContractorID),
				zap.String("address", address),
				zap.Error(err),
			)
			failed++
			continue
		}
		if !result.Matched {
			zap.L().Info("geocode miss",
				zap.String("contractor_id", c.ContractorID),
				zap.String("address", address),
			)
			missed++
			continue
		}

		if err := s.store.UpdateCoordinates(ctx, c.ContractorID, result.Latitude, result.Longitude); err != nil {
			zap.L().Warn("coordinate write failed",
				zap.String("contractor_id", c.ContractorID),
				zap.Error(err),
			)
			failed++
			continue
		}
		matched++
	}

	zap.L().Info("geocode sweep complete",
		zap.Int("matched", matched),
		zap.Int("missed", missed),
		zap.Int("failed", failed),
	)
	return nil
}
