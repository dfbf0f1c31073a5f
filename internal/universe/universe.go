package universe

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"earnings-scanner/internal/api"
	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

const tickersCacheTTL = 30 * 24 * time.Hour

// validSymbol matches syntactically valid ticker symbols. Upstream listings
// are semi-structured and can emit header rows or malformed entries.
var validSymbol = regexp.MustCompile(`^[A-Z0-9-]{1,6}$`)

// rawSymbol matches symbols as listed upstream, before dots are normalized
// to hyphens (BRK.B -> BRK-B).
var rawSymbol = regexp.MustCompile(`^[A-Z0-9.-]{1,6}$`)

// Registry is the closed set of known universes.
var Registry = map[string]types.Universe{
	"sp500": {
		ID:            "sp500",
		Name:          "S&P 500",
		CachePrefix:   "sp500",
		MinMarketCap:  5_000_000_000,
		GainersTitle:  "Top 5 Positive Changes (Day Before Earnings to Today)",
		LosersTitle:   "Top 5 Drops (Day Before Earnings to Today)",
		UpcomingTitle: "Upcoming S&P 500 Earnings (Next 5 Days, Market Cap > $5B)",
		Default:       true,
	},
	"nasdaq": {
		ID:            "nasdaq",
		Name:          "NASDAQ",
		CachePrefix:   "nasdaq",
		MinMarketCap:  1_000_000_000,
		GainersTitle:  "Top 5 Positive Changes (Last Trading Day to Now)",
		LosersTitle:   "Top 5 Drops (Last Trading Day to Now)",
		UpcomingTitle: "Upcoming NASDAQ Earnings (Next 5 Days)",
	},
}

// Lookup returns the universe for id. Unknown ids are a configuration error.
func Lookup(id string) (types.Universe, error) {
	u, ok := Registry[id]
	if !ok {
		return types.Universe{}, fmt.Errorf("unknown universe: %s", id)
	}
	return u, nil
}

// resolution is the cached shape under "{prefix}-tickers".
type resolution struct {
	Tickers []types.Ticker    `json:"tickers"`
	NameMap map[string]string `json:"name_map"`
}

// Provider resolves universe ids to ticker lists, with a 30-day cache in
// front of the network sources.
type Provider struct {
	store   cache.Store
	client  *api.Client
	timeout time.Duration
}

// NewProvider creates a universe provider backed by the given cache store.
func NewProvider(store cache.Store) *Provider {
	return &Provider{
		store:   store,
		client:  api.NewClient(api.WithTimeout(30*time.Second), api.WithLogging(true)),
		timeout: 30 * time.Second,
	}
}

// Resolve returns the deduplicated, validated tickers of a universe and a
// symbol-to-name map. On cache miss it performs exactly one network
// resolution and writes through.
func (p *Provider) Resolve(ctx context.Context, universeID string) ([]types.Ticker, map[string]string, error) {
	u, err := Lookup(universeID)
	if err != nil {
		return nil, nil, err
	}

	cacheKey := u.CachePrefix + "-tickers"
	var cached resolution
	if cache.ReadJSON(p.store, cacheKey, tickersCacheTTL, &cached) {
		logger.Debug(ctx, "Universe cache hit", "universe", universeID, "tickers", len(cached.Tickers))
		return cached.Tickers, cached.NameMap, nil
	}

	logger.Info(ctx, "Fetching universe tickers from network", "universe", universeID)

	var res resolution
	switch universeID {
	case "sp500":
		res, err = p.fetchSP500(ctx)
	case "nasdaq":
		res, err = p.fetchNasdaq(ctx)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve universe %s: %w", universeID, err)
	}

	if err := p.store.Write(cacheKey, res); err != nil {
		logger.Warn(ctx, "Universe cache write failed", "universe", universeID, "error", err)
	}

	logger.Info(ctx, "Universe resolved", "universe", universeID, "tickers", len(res.Tickers))
	return res.Tickers, res.NameMap, nil
}

// fetchSP500 scrapes the S&P 500 constituents table from Wikipedia.
func (p *Provider) fetchSP500(ctx context.Context) (resolution, error) {
	res := resolution{NameMap: make(map[string]string)}
	seen := make(map[string]bool)

	c := colly.NewCollector(
		colly.AllowedDomains("en.wikipedia.org"),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(p.timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range api.WikipediaHeaders() {
			r.Headers.Set(k, v)
		}
	})

	c.OnHTML("table.wikitable tbody tr", func(e *colly.HTMLElement) {
		cells := e.DOM.Find("td")
		if cells.Length() < 2 {
			return
		}

		symbol := cellText(cells, 0)
		name := cellText(cells, 1)
		if symbol == "" || symbol == "Symbol" || !rawSymbol.MatchString(symbol) {
			return
		}

		ticker := strings.ReplaceAll(symbol, ".", "-")
		if !validSymbol.MatchString(ticker) || seen[ticker] {
			return
		}

		seen[ticker] = true
		res.Tickers = append(res.Tickers, types.Ticker{Symbol: ticker, DisplayName: name})
		res.NameMap[ticker] = name
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit("https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"); err != nil {
		return resolution{}, err
	}
	c.Wait()
	if visitErr != nil {
		return resolution{}, visitErr
	}
	if len(res.Tickers) == 0 {
		return resolution{}, fmt.Errorf("no tickers parsed from constituents table")
	}

	return res, nil
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}

// fetchNasdaq parses the pipe-delimited nasdaqtrader symbol directory.
func (p *Provider) fetchNasdaq(ctx context.Context) (resolution, error) {
	resp, err := p.client.GET(ctx, "https://www.nasdaqtrader.com/dynamic/symdir/nasdaqlisted.txt")
	if err != nil {
		return resolution{}, err
	}

	res := parseSymbolDirectory(resp.String())
	if len(res.Tickers) == 0 {
		return resolution{}, fmt.Errorf("no tickers parsed from symbol directory")
	}

	return res, nil
}

// parseSymbolDirectory parses a pipe-delimited listing file. The first line is
// a column header and the trailer carries the file creation time.
func parseSymbolDirectory(body string) resolution {
	res := resolution{NameMap: make(map[string]string)}
	seen := make(map[string]bool)

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "File Creation Time") || strings.HasPrefix(line, "Symbol|") {
			continue
		}

		cols := strings.Split(line, "|")
		if len(cols) < 2 {
			continue
		}

		symbol := strings.TrimSpace(cols[0])
		name := strings.TrimSpace(cols[1])
		if symbol == "" || name == "" || !validSymbol.MatchString(symbol) || seen[symbol] {
			continue
		}

		seen[symbol] = true
		res.Tickers = append(res.Tickers, types.Ticker{Symbol: symbol, DisplayName: name})
		res.NameMap[symbol] = name
	}

	return res
}
