package earnings

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"earnings-scanner/internal/api"
	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

const (
	calendarBaseURL  = "https://finnhub.io/api/v1"
	calendarCacheTTL = 3 * 24 * time.Hour
)

// calendarResponse is the earnings calendar wire format.
type calendarResponse struct {
	EarningsCalendar []calendarRow `json:"earningsCalendar"`
}

type calendarRow struct {
	Date   string `json:"date"`
	Symbol string `json:"symbol"`
}

// Provider resolves date ranges to earnings events via the Finnhub calendar
// endpoint, with a durable cache per range. Upstream failure degrades to an
// empty calendar so a scan can still report universe prices.
type Provider struct {
	store  cache.Store
	client *api.Client
	apiKey string
}

// NewProvider creates an earnings provider backed by the given cache store.
// The API key is read from FINNHUB_API_KEY.
func NewProvider(store cache.Store) *Provider {
	return &Provider{
		store:  store,
		client: api.NewClient(api.WithTimeout(20*time.Second), api.WithLogging(true)),
		apiKey: os.Getenv("FINNHUB_API_KEY"),
	}
}

// Resolve returns all earnings events between from and to inclusive, plus
// the number of calendar rows dropped as invalid. Events carry the calendar
// date at midnight UTC. Never returns an error; any failure yields an empty
// slice.
func (p *Provider) Resolve(ctx context.Context, from, to time.Time) ([]types.EarningsEvent, int) {
	fromStr := from.Format("2006-01-02")
	toStr := to.Format("2006-01-02")
	cacheKey := fmt.Sprintf("earnings-%s-%s", fromStr, toStr)

	var cached []types.EarningsEvent
	if cache.ReadJSON(p.store, cacheKey, calendarCacheTTL, &cached) {
		logger.Debug(ctx, "Earnings calendar cache hit", "from", fromStr, "to", toStr, "events", len(cached))
		return cached, 0
	}

	if p.apiKey == "" {
		logger.Warn(ctx, "FINNHUB_API_KEY not set, earnings calendar unavailable")
		return nil, 0
	}

	endpoint := fmt.Sprintf("%s/calendar/earnings?from=%s&to=%s&token=%s",
		calendarBaseURL, fromStr, toStr, url.QueryEscape(p.apiKey))

	resp, err := p.client.GETWithRetry(ctx, endpoint, nil, api.FinnhubHeaders())
	if err != nil {
		logger.ErrorWithErr(ctx, "Earnings calendar fetch failed", err, "from", fromStr, "to", toStr)
		return nil, 0
	}

	var cal calendarResponse
	if err := resp.ParseJSON(&cal); err != nil {
		logger.ErrorWithErr(ctx, "Earnings calendar parse failed", err)
		return nil, 0
	}

	events, invalid := parseRows(ctx, cal.EarningsCalendar)

	if err := p.store.Write(cacheKey, events); err != nil {
		logger.Warn(ctx, "Earnings calendar cache write failed", "error", err)
	}

	logger.Info(ctx, "Earnings calendar fetched",
		"from", fromStr, "to", toStr, "events", len(events), "invalid_rows", invalid)
	return events, invalid
}

// parseRows converts calendar rows to events. Rows missing a symbol or
// carrying an unparseable date are logged and counted, never silently
// dropped.
func parseRows(ctx context.Context, rows []calendarRow) ([]types.EarningsEvent, int) {
	events := make([]types.EarningsEvent, 0, len(rows))
	invalid := 0
	for _, row := range rows {
		if row.Symbol == "" || row.Date == "" {
			logger.Warn(ctx, "Skipping calendar row with missing fields", "symbol", row.Symbol, "date", row.Date)
			invalid++
			continue
		}
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			logger.Warn(ctx, "Skipping calendar row with invalid date", "symbol", row.Symbol, "date", row.Date)
			invalid++
			continue
		}
		events = append(events, types.EarningsEvent{Symbol: row.Symbol, Date: date})
	}
	return events, invalid
}
