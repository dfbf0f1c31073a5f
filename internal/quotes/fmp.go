package quotes

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"earnings-scanner/internal/api"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

const fmpBaseURL = "https://financialmodelingprep.com/api/v3"

// fmpQuote is the FMP /quote wire format. The endpoint returns an array even
// for a single symbol.
type fmpQuote struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	ChangesPercentage float64 `json:"changesPercentage"`
	Change            float64 `json:"change"`
	PreviousClose     float64 `json:"previousClose"`
	MarketCap         float64 `json:"marketCap"`
}

// FMPSource is the primary quote source. It is the only source that reports
// market cap, so it leads the fallback chain, but every call spends the
// shared daily budget.
type FMPSource struct {
	client *api.Client
	budget *CallBudget
	apiKey string
}

// NewFMPSource creates the primary source charging calls to budget.
// The API key is read from FMP_API_KEY.
func NewFMPSource(budget *CallBudget) *FMPSource {
	return &FMPSource{
		client: api.NewClient(api.WithTimeout(15*time.Second), api.WithLogging(true)),
		budget: budget,
		apiKey: os.Getenv("FMP_API_KEY"),
	}
}

func (s *FMPSource) Name() types.QuoteSourceTag { return types.SourceFMP }

// Resolve fetches a full quote for symbol. Returns false without any network
// traffic when credentials are missing or the daily budget is spent.
func (s *FMPSource) Resolve(ctx context.Context, symbol string) (types.Quote, bool) {
	if s.apiKey == "" {
		return types.Quote{}, false
	}
	if !s.budget.Allow() {
		logger.Debug(ctx, "Daily quote budget exhausted, skipping primary source", "symbol", symbol)
		return types.Quote{}, false
	}

	endpoint := fmt.Sprintf("%s/quote/%s?apikey=%s", fmpBaseURL, url.PathEscape(symbol), url.QueryEscape(s.apiKey))
	s.budget.Record()

	resp, err := s.client.GET(ctx, endpoint)
	if err != nil {
		logger.Warn(ctx, "Primary quote fetch failed", "symbol", symbol, "error", err)
		return types.Quote{}, false
	}

	var rows []fmpQuote
	if err := resp.ParseJSON(&rows); err != nil || len(rows) == 0 {
		logger.Warn(ctx, "Primary quote response empty or malformed", "symbol", symbol, "error", err)
		return types.Quote{}, false
	}

	row := rows[0]
	if row.Price <= 0 {
		return types.Quote{}, false
	}

	return types.Quote{
		Symbol:        symbol,
		Price:         row.Price,
		MarketCap:     row.MarketCap,
		Change:        row.Change,
		ChangePercent: row.ChangesPercentage,
		PreviousClose: row.PreviousClose,
		Name:          row.Name,
		Source:        types.SourceFMP,
		FetchedAt:     time.Now(),
	}, true
}
