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

const finnhubBaseURL = "https://finnhub.io/api/v1"

// finnhubQuote is the /quote wire format: current price, change, percent
// change, previous close. Unknown symbols come back as all zeros rather than
// an HTTP error.
type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	PreviousClose float64 `json:"pc"`
}

// FinnhubSource is the secondary quote source. Price-only: it never reports
// market cap or company name, which downstream consumers must tolerate.
type FinnhubSource struct {
	client *api.Client
	apiKey string
}

// NewFinnhubSource creates the secondary source.
// The API key is read from FINNHUB_API_KEY.
func NewFinnhubSource() *FinnhubSource {
	return &FinnhubSource{
		client: api.NewClient(api.WithTimeout(15*time.Second), api.WithLogging(true)),
		apiKey: os.Getenv("FINNHUB_API_KEY"),
	}
}

func (s *FinnhubSource) Name() types.QuoteSourceTag { return types.SourceFinnhub }

// Resolve fetches a price-only quote for symbol.
func (s *FinnhubSource) Resolve(ctx context.Context, symbol string) (types.Quote, bool) {
	if s.apiKey == "" {
		return types.Quote{}, false
	}

	endpoint := fmt.Sprintf("%s/quote?symbol=%s&token=%s",
		finnhubBaseURL, url.QueryEscape(symbol), url.QueryEscape(s.apiKey))

	resp, err := s.client.GET(ctx, endpoint, api.FinnhubHeaders())
	if err != nil {
		logger.Warn(ctx, "Secondary quote fetch failed", "symbol", symbol, "error", err)
		return types.Quote{}, false
	}

	var q finnhubQuote
	if err := resp.ParseJSON(&q); err != nil {
		logger.Warn(ctx, "Secondary quote parse failed", "symbol", symbol, "error", err)
		return types.Quote{}, false
	}
	if q.Current <= 0 {
		return types.Quote{}, false
	}

	return types.Quote{
		Symbol:        symbol,
		Price:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		PreviousClose: q.PreviousClose,
		Source:        types.SourceFinnhub,
		FetchedAt:     time.Now(),
	}, true
}
