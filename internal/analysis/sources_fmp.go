package analysis

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"earnings-scanner/internal/api"
	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/quotes"
)

const (
	fmpV3BaseURL = "https://financialmodelingprep.com/api/v3"
	fmpV4BaseURL = "https://financialmodelingprep.com/api/v4"

	sectorPECacheTTL = 24 * time.Hour
	recentRatingRows = 10
)

// FMPSources serves valuation and analyst data. Every call charges the same
// daily budget as primary quotes, so a long buy analysis cannot starve the
// next scan's quote resolution.
type FMPSources struct {
	client *api.Client
	store  cache.Store
	budget *quotes.CallBudget
	apiKey string
	now    func() time.Time
}

// NewFMPSources creates the FMP-backed valuation and analyst source.
// The API key is read from FMP_API_KEY.
func NewFMPSources(store cache.Store, budget *quotes.CallBudget) *FMPSources {
	return &FMPSources{
		client: api.NewClient(api.WithTimeout(20*time.Second), api.WithLogging(true)),
		store:  store,
		budget: budget,
		apiKey: os.Getenv("FMP_API_KEY"),
	}
}

// get performs one budget-charged GET. Denied when credentials are missing
// or the daily budget is spent.
func (s *FMPSources) get(ctx context.Context, endpoint string) (*api.Response, bool) {
	if s.apiKey == "" || !s.budget.Allow() {
		return nil, false
	}
	s.budget.Record()

	resp, err := s.client.GET(ctx, endpoint)
	if err != nil {
		logger.Warn(ctx, "Fundamentals fetch failed", "error", err)
		return nil, false
	}
	return resp, true
}

// CompanyPE returns the trailing P/E and sector classification for symbol.
func (s *FMPSources) CompanyPE(ctx context.Context, symbol string) (float64, string, bool) {
	resp, ok := s.get(ctx, fmt.Sprintf("%s/ratios-ttm/%s?apikey=%s", fmpV3BaseURL, url.PathEscape(symbol), url.QueryEscape(s.apiKey)))
	if !ok {
		return 0, "", false
	}

	var ratios []struct {
		PERatioTTM float64 `json:"peRatioTTM"`
	}
	if err := resp.ParseJSON(&ratios); err != nil || len(ratios) == 0 || ratios[0].PERatioTTM <= 0 {
		return 0, "", false
	}

	resp, ok = s.get(ctx, fmt.Sprintf("%s/profile/%s?apikey=%s", fmpV3BaseURL, url.PathEscape(symbol), url.QueryEscape(s.apiKey)))
	if !ok {
		return 0, "", false
	}

	var profiles []struct {
		Sector string `json:"sector"`
	}
	if err := resp.ParseJSON(&profiles); err != nil || len(profiles) == 0 || profiles[0].Sector == "" {
		return 0, "", false
	}

	return ratios[0].PERatioTTM, profiles[0].Sector, true
}

// staticSectorPE is the fallback table of sector-average trailing P/E
// multiples used when the live sector ratios are unreachable. Values are
// long-run averages, not live data.
var staticSectorPE = map[string]float64{
	"Technology":             28,
	"Communication Services": 22,
	"Consumer Cyclical":      24,
	"Consumer Defensive":     21,
	"Healthcare":             23,
	"Financial Services":     14,
	"Industrials":            20,
	"Energy":                 12,
	"Utilities":              17,
	"Real Estate":            19,
	"Basic Materials":        15,
}

// defaultSectorPE covers sectors absent from the static table.
const defaultSectorPE = 18

// SectorPeerPE returns the sector's average trailing P/E. The full sector
// table is fetched once and cached for a day; when the live table is
// unreachable a static table of long-run sector averages answers instead.
func (s *FMPSources) SectorPeerPE(ctx context.Context, sector string) (float64, bool) {
	table := make(map[string]float64)
	if !cache.ReadJSON(s.store, "sector-pe", sectorPECacheTTL, &table) {
		fetched, ok := s.fetchSectorTable(ctx)
		if !ok {
			logger.Warn(ctx, "Live sector P/E unavailable, using static averages", "sector", sector)
			if pe, ok := staticSectorPE[sector]; ok {
				return pe, true
			}
			return defaultSectorPE, true
		}
		table = fetched
		if err := s.store.Write("sector-pe", table); err != nil {
			logger.Warn(ctx, "Sector P/E cache write failed", "error", err)
		}
	}

	if pe, ok := table[sector]; ok && pe > 0 {
		return pe, true
	}
	if pe, ok := staticSectorPE[sector]; ok {
		return pe, true
	}
	return defaultSectorPE, true
}

func (s *FMPSources) fetchSectorTable(ctx context.Context) (map[string]float64, bool) {
	now := s.now
	if now == nil {
		now = time.Now
	}
	date := now().Format("2006-01-02")

	resp, ok := s.get(ctx, fmt.Sprintf("%s/sector_price_earning_ratio?date=%s&exchange=NYSE&apikey=%s",
		fmpV4BaseURL, date, url.QueryEscape(s.apiKey)))
	if !ok {
		return nil, false
	}

	// The sector ratio endpoint reports pe as a string.
	var rows []struct {
		Sector string `json:"sector"`
		PE     string `json:"pe"`
	}
	if err := resp.ParseJSON(&rows); err != nil || len(rows) == 0 {
		return nil, false
	}

	table := make(map[string]float64, len(rows))
	for _, row := range rows {
		pe, err := strconv.ParseFloat(row.PE, 64)
		if err != nil || pe <= 0 {
			continue
		}
		table[row.Sector] = pe
	}
	return table, len(table) > 0
}

// Ratings sums the analyst rating counts over the most recent monthly rows.
func (s *FMPSources) Ratings(ctx context.Context, symbol string) (int, int, int, bool) {
	resp, ok := s.get(ctx, fmt.Sprintf("%s/analyst-stock-recommendations/%s?apikey=%s",
		fmpV3BaseURL, url.PathEscape(symbol), url.QueryEscape(s.apiKey)))
	if !ok {
		return 0, 0, 0, false
	}

	var rows []struct {
		Buy        int `json:"analystRatingsbuy"`
		Hold       int `json:"analystRatingsHold"`
		Sell       int `json:"analystRatingsSell"`
		StrongBuy  int `json:"analystRatingsStrongBuy"`
		StrongSell int `json:"analystRatingsStrongSell"`
	}
	if err := resp.ParseJSON(&rows); err != nil || len(rows) == 0 {
		return 0, 0, 0, false
	}

	if len(rows) > recentRatingRows {
		rows = rows[:recentRatingRows]
	}

	var buy, hold, sell int
	for _, row := range rows {
		buy += row.Buy + row.StrongBuy
		hold += row.Hold
		sell += row.Sell + row.StrongSell
	}
	return buy, hold, sell, buy+hold+sell > 0
}

// PriceTargets returns recent published price targets, newest first.
func (s *FMPSources) PriceTargets(ctx context.Context, symbol string) ([]float64, bool) {
	resp, ok := s.get(ctx, fmt.Sprintf("%s/price-target?symbol=%s&apikey=%s",
		fmpV4BaseURL, url.QueryEscape(symbol), url.QueryEscape(s.apiKey)))
	if !ok {
		return nil, false
	}

	var rows []struct {
		PriceTarget float64 `json:"priceTarget"`
	}
	if err := resp.ParseJSON(&rows); err != nil || len(rows) == 0 {
		return nil, false
	}

	targets := make([]float64, 0, len(rows))
	for _, row := range rows {
		targets = append(targets, row.PriceTarget)
	}
	return targets, true
}
