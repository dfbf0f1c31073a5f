package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"earnings-scanner/internal/api"
	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

const (
	alphaVantageBaseURL = "https://www.alphavantage.co/query"
	historyCacheTTL     = 24 * time.Hour
)

// dailyResponse is the TIME_SERIES_DAILY wire format. Values arrive as
// strings, keyed by numbered field names.
type dailyResponse struct {
	Series map[string]struct {
		Close string `json:"4. close"`
	} `json:"Time Series (Daily)"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

// Provider resolves daily close-price series. Ranges for the same symbol
// share one durable cache entry, sub-keyed by range, so a symbol analyzed
// with several lookbacks stays one cache file.
type Provider struct {
	store  cache.Store
	client *api.Client
	apiKey string

	// fetch is swappable in tests to count outbound calls.
	fetch func(ctx context.Context, symbol string) ([]byte, error)
}

// NewProvider creates a history provider backed by the given cache store.
// The API key is read from ALPHA_VANTAGE_API_KEY.
func NewProvider(store cache.Store) *Provider {
	p := &Provider{
		store:  store,
		client: api.NewClient(api.WithTimeout(20*time.Second), api.WithLogging(true)),
		apiKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
	}
	p.fetch = p.fetchDaily
	return p
}

// Resolve returns the daily close series for symbol between fromUnix and
// toUnix (unix seconds, inclusive). Never returns a Go error; the Status
// field distinguishes usable data, thin data, and failure. An inverted range
// is rejected before any cache or network access.
func (p *Provider) Resolve(ctx context.Context, symbol string, fromUnix, toUnix int64) types.HistoricalSeries {
	if fromUnix >= toUnix {
		logger.Warn(ctx, "Rejecting inverted history range", "symbol", symbol, "from", fromUnix, "to", toUnix)
		return types.HistoricalSeries{Status: types.SeriesError}
	}

	cacheKey := "hist-" + symbol
	subKey := fmt.Sprintf("%d-%d", fromUnix, toUnix)

	ranges := make(map[string]types.HistoricalSeries)
	if cache.ReadJSON(p.store, cacheKey, historyCacheTTL, &ranges) {
		if series, ok := ranges[subKey]; ok {
			logger.Debug(ctx, "History cache hit", "symbol", symbol, "range", subKey)
			return series
		}
	}

	body, err := p.fetch(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "History fetch failed", err, "symbol", symbol)
		return types.HistoricalSeries{Status: types.SeriesError}
	}

	series := parseDailySeries(body, fromUnix, toUnix)
	if series.Status == types.SeriesError {
		logger.Warn(ctx, "History response unusable", "symbol", symbol)
		return series
	}

	ranges[subKey] = series
	if err := p.store.Write(cacheKey, ranges); err != nil {
		logger.Warn(ctx, "History cache write failed", "symbol", symbol, "error", err)
	}

	logger.Debug(ctx, "History fetched", "symbol", symbol, "range", subKey, "points", len(series.Closes), "status", series.Status)
	return series
}

func (p *Provider) fetchDaily(ctx context.Context, symbol string) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("ALPHA_VANTAGE_API_KEY not set")
	}

	endpoint := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&symbol=%s&outputsize=compact&apikey=%s",
		alphaVantageBaseURL, url.QueryEscape(symbol), url.QueryEscape(p.apiKey))

	resp, err := p.client.GETWithRetry(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// parseDailySeries extracts the closes falling inside [fromUnix, toUnix] as
// an ascending series. Fewer than two points in range is no_data: a change
// needs a before and an after.
func parseDailySeries(body []byte, fromUnix, toUnix int64) types.HistoricalSeries {
	var wire dailyResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return types.HistoricalSeries{Status: types.SeriesError}
	}
	if wire.ErrorMessage != "" || wire.Note != "" || len(wire.Series) == 0 {
		return types.HistoricalSeries{Status: types.SeriesError}
	}

	type point struct {
		ts    int64
		close float64
	}
	var points []point
	for dateStr, row := range wire.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		ts := date.Unix()
		if ts < fromUnix || ts > toUnix {
			continue
		}
		closeVal, err := strconv.ParseFloat(row.Close, 64)
		if err != nil || closeVal <= 0 {
			continue
		}
		points = append(points, point{ts: ts, close: closeVal})
	}

	if len(points) < 2 {
		return types.HistoricalSeries{Status: types.SeriesNoData}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].ts < points[j].ts })

	series := types.HistoricalSeries{
		Status:     types.SeriesOK,
		Closes:     make([]float64, len(points)),
		Timestamps: make([]int64, len(points)),
	}
	for i, pt := range points {
		series.Closes[i] = pt.close
		series.Timestamps[i] = pt.ts
	}
	return series
}
