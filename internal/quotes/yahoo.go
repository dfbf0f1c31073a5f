package quotes

import (
	"context"
	"time"

	"github.com/piquette/finance-go/equity"

	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

// YahooSource is the tertiary quote source, backed by the unofficial Yahoo
// Finance API. Keyless, so it is the last resort when both keyed vendors
// cannot serve a symbol.
type YahooSource struct{}

// NewYahooSource creates the tertiary source.
func NewYahooSource() *YahooSource {
	return &YahooSource{}
}

func (s *YahooSource) Name() types.QuoteSourceTag { return types.SourceYahoo }

// Resolve fetches a quote for symbol. The underlying client does not accept
// a context; ctx is checked before the call so a cancelled scan stops here.
func (s *YahooSource) Resolve(ctx context.Context, symbol string) (types.Quote, bool) {
	if ctx.Err() != nil {
		return types.Quote{}, false
	}

	q, err := equity.Get(symbol)
	if err != nil || q == nil {
		logger.Warn(ctx, "Tertiary quote fetch failed", "symbol", symbol, "error", err)
		return types.Quote{}, false
	}
	if q.RegularMarketPrice <= 0 {
		return types.Quote{}, false
	}

	return types.Quote{
		Symbol:        symbol,
		Price:         q.RegularMarketPrice,
		MarketCap:     float64(q.MarketCap),
		Change:        q.RegularMarketChange,
		ChangePercent: q.RegularMarketChangePercent,
		PreviousClose: q.RegularMarketPreviousClose,
		Name:          q.ShortName,
		Source:        types.SourceYahoo,
		FetchedAt:     time.Now(),
	}, true
}
