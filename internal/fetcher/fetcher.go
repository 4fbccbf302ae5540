// Package fetcher pulls contractor listings from the Coveo-backed search API
// and normalizes raw hits into canonical records.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures the search client.
type Options struct {
	URL       string
	Token     string
	UserAgent string
	Timeout   time.Duration
	RateLimit float64 // requests per second against the search endpoint
}

// Client issues paginated search requests.
type Client struct {
	httpClient *http.Client
	opts       Options
	limiter    *rate.Limiter
}

// NewClient creates a search client with the given options.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; DataCollector/1.0)"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 5
	}
	// Fractional rates truncate to burst 0, which would block every Wait.
	burst := int(opts.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), burst),
	}
}

// GeoFilter bounds search results to a radius around a point, restricted to
// US listings.
type GeoFilter struct {
	Latitude      float64
	Longitude     float64
	DistanceMiles float64
}

// RawPage is one page of the search response.
type RawPage struct {
	Results []RawResult `json:"results"`
}

// RawResult is a single search hit: display fields plus the raw attribute bag.
type RawResult struct {
	Title string         `json:"title"`
	URI   string         `json:"uri"`
	Raw   map[string]any `json:"raw"`
}

type queryFunction struct {
	FieldName string `json:"fieldName"`
	Function  string `json:"function"`
}

type searchRequest struct {
	Q               string          `json:"q"`
	NumberOfResults int             `json:"numberOfResults"`
	FirstResult     int             `json:"firstResult"`
	AQ              string          `json:"aq,omitempty"`
	QueryFunctions  []queryFunction `json:"queryFunctions,omitempty"`
}

// metersToMiles converts the dist() output (meters) to miles in the computed
// distance field.
const metersToMiles = 0.000621371

// FetchPage issues one search request for the given offset. A transport or
// non-2xx failure is logged and yields an empty page; a single page failure
// must not abort the batch.
func (c *Client) FetchPage(ctx context.Context, offset, pageSize int, geo *GeoFilter) RawPage {
	page, err := c.searchPage(ctx, offset, pageSize, geo)
	if err != nil {
		zap.L().Error("page fetch failed",
			zap.Int("offset", offset),
			zap.Error(err),
		)
		return RawPage{}
	}
	return page
}

func (c *Client) searchPage(ctx context.Context, offset, pageSize int, geo *GeoFilter) (RawPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return RawPage{}, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	body := searchRequest{
		NumberOfResults: pageSize,
		FirstResult:     offset,
	}
	if geo != nil {
		body.AQ = fmt.Sprintf("@distanceinmiles <= %g AND @gaf_f_country_code = USA", geo.DistanceMiles)
		body.QueryFunctions = []queryFunction{{
			FieldName: "@distanceinmiles",
			Function: fmt.Sprintf("dist(@gaf_latitude, @gaf_longitude, %g, %g)*%g",
				geo.Latitude, geo.Longitude, metersToMiles),
		}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return RawPage{}, eris.Wrap(err, "fetcher: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(payload))
	if err != nil {
		return RawPage{}, eris.Wrap(err, "fetcher: build request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RawPage{}, eris.Wrapf(err, "fetcher: search offset %d", offset)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return RawPage{}, eris.Errorf("fetcher: search offset %d: status %d", offset, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawPage{}, eris.Wrap(err, "fetcher: read body")
	}

	var page RawPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return RawPage{}, eris.Wrap(err, "fetcher: parse response")
	}
	return page, nil
}
