package scanner

import (
	"context"
	"sort"
	"time"

	"earnings-scanner/internal/interfaces"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/store"
	"earnings-scanner/internal/types"
	"earnings-scanner/internal/universe"
)

// topMovers is how many gainers and losers a scan report shows.
const topMovers = 5

// DiscardCounters records why symbols with recent earnings did not become
// candidates. Reported alongside results so a thin scan is explainable.
type DiscardCounters struct {
	InvalidDate   int `json:"invalid_date"`
	NoQuote       int `json:"no_quote"`
	NoMarketCap   int `json:"no_market_cap"`
	BelowFloor    int `json:"below_floor"`
	NoHistory     int `json:"no_history"`
	NoPriceBefore int `json:"no_price_before"`
}

// ScanResult is a full post-earnings scan of one universe.
type ScanResult struct {
	Universe    types.Universe               `json:"universe"`
	Candidates  []types.OpportunityCandidate `json:"candidates"`
	Gainers     []types.OpportunityCandidate `json:"gainers"`
	Losers      []types.OpportunityCandidate `json:"losers"`
	Discards    DiscardCounters              `json:"discards"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

// Scanner walks a universe's recent earnings reporters and measures each
// one's price move since its last close before the report.
type Scanner struct {
	universes interfaces.UniverseProvider
	earnings  interfaces.EarningsProvider
	quotes    interfaces.QuoteProvider
	history   interfaces.HistoryProvider
	cfg       *store.Config
	now       func() time.Time
}

// New creates a scanner over the given providers.
func New(
	universes interfaces.UniverseProvider,
	earnings interfaces.EarningsProvider,
	quotes interfaces.QuoteProvider,
	history interfaces.HistoryProvider,
	cfg *store.Config,
) *Scanner {
	return &Scanner{
		universes: universes,
		earnings:  earnings,
		quotes:    quotes,
		history:   history,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Scan produces the earnings-move report for one universe as of the given
// date (zero means now). Failures of individual symbols are counted and
// skipped; only a failure to resolve the universe itself is an error.
func (s *Scanner) Scan(ctx context.Context, universeID string, asOf time.Time) (*ScanResult, error) {
	timer := logger.StartOperation(ctx, "scan_universe", "universe", universeID)
	ctx = timer.GetContext()

	u, err := universe.Lookup(universeID)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}

	tickers, names, err := s.universes.Resolve(ctx, universeID)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}

	member := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		member[t.Symbol] = true
	}

	if asOf.IsZero() {
		asOf = s.now()
	}
	windowFrom := asOf.AddDate(0, 0, -s.cfg.Scan.EarningsWindowDays)
	events, invalidRows := s.earnings.Resolve(ctx, windowFrom, asOf)

	// One event per member symbol; the calendar can list a symbol twice
	// when a report slips between days.
	reported := make(map[string]types.EarningsEvent)
	var symbols []string
	for _, ev := range events {
		if !member[ev.Symbol] {
			continue
		}
		if _, seen := reported[ev.Symbol]; seen {
			continue
		}
		reported[ev.Symbol] = ev
		symbols = append(symbols, ev.Symbol)
	}

	logger.Info(ctx, "Earnings reporters in window",
		"universe", universeID, "events", len(events), "members", len(symbols))

	quotes := s.quotes.ResolveBatch(ctx, symbols)

	result := &ScanResult{
		Universe:    u,
		GeneratedAt: asOf,
	}
	result.Discards.InvalidDate = invalidRows

	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		ev := reported[sym]

		q, ok := quotes[sym]
		if !ok {
			result.Discards.NoQuote++
			continue
		}
		if q.MarketCap <= 0 {
			result.Discards.NoMarketCap++
			continue
		}
		if q.MarketCap < u.MinMarketCap {
			result.Discards.BelowFloor++
			continue
		}

		histFrom := ev.Date.AddDate(0, 0, -s.cfg.Scan.HistoryLookbackDays).Unix()
		series := s.history.Resolve(ctx, sym, histFrom, ev.Date.Unix())
		if series.Status != types.SeriesOK {
			result.Discards.NoHistory++
			continue
		}

		before, ok := series.LastCloseBefore(ev.Date.Unix())
		if !ok || before <= 0 {
			result.Discards.NoPriceBefore++
			continue
		}

		name := q.Name
		if name == "" {
			name = names[sym]
		}

		result.Candidates = append(result.Candidates, types.OpportunityCandidate{
			Ticker:              sym,
			Name:                name,
			EarningsDate:        ev.Date,
			MarketCap:           q.MarketCap,
			PriceBeforeEarnings: before,
			PriceNow:            q.Price,
			ChangePercent:       (q.Price - before) / before * 100,
		})
	}

	sort.Slice(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].ChangePercent > result.Candidates[j].ChangePercent
	})

	result.Gainers = topGainers(result.Candidates)
	result.Losers = bottomMovers(result.Candidates)

	timer.End("candidates", len(result.Candidates))
	return result, nil
}

// topGainers returns up to topMovers candidates with positive moves, biggest
// gain first. Candidates must be sorted descending.
func topGainers(sorted []types.OpportunityCandidate) []types.OpportunityCandidate {
	var out []types.OpportunityCandidate
	for _, c := range sorted {
		if c.ChangePercent <= 0 || len(out) == topMovers {
			break
		}
		out = append(out, c)
	}
	return out
}

// bottomMovers returns up to topMovers candidates with negative moves,
// steepest drop first. Candidates must be sorted descending.
func bottomMovers(sorted []types.OpportunityCandidate) []types.OpportunityCandidate {
	var out []types.OpportunityCandidate
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].ChangePercent >= 0 || len(out) == topMovers {
			break
		}
		out = append(out, sorted[i])
	}
	return out
}

// UpcomingEarnings lists near-future earnings for universe members above the
// market-cap floor, soonest first.
func (s *Scanner) UpcomingEarnings(ctx context.Context, universeID string) ([]types.UpcomingEarning, error) {
	u, err := universe.Lookup(universeID)
	if err != nil {
		return nil, err
	}

	tickers, names, err := s.universes.Resolve(ctx, universeID)
	if err != nil {
		return nil, err
	}

	member := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		member[t.Symbol] = true
	}

	now := s.now()
	from := now.AddDate(0, 0, 1)
	to := now.AddDate(0, 0, s.cfg.Scan.UpcomingWindowDays)
	events, _ := s.earnings.Resolve(ctx, from, to)

	seen := make(map[string]bool)
	var symbols []string
	var memberEvents []types.EarningsEvent
	for _, ev := range events {
		if !member[ev.Symbol] || seen[ev.Symbol] {
			continue
		}
		seen[ev.Symbol] = true
		symbols = append(symbols, ev.Symbol)
		memberEvents = append(memberEvents, ev)
	}

	quotes := s.quotes.ResolveBatch(ctx, symbols)

	var upcoming []types.UpcomingEarning
	for _, ev := range memberEvents {
		q, ok := quotes[ev.Symbol]
		if !ok || q.MarketCap < u.MinMarketCap {
			continue
		}
		name := q.Name
		if name == "" {
			name = names[ev.Symbol]
		}
		upcoming = append(upcoming, types.UpcomingEarning{
			Ticker:    ev.Symbol,
			Name:      name,
			Date:      ev.Date,
			MarketCap: q.MarketCap,
		})
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].Date.Before(upcoming[j].Date)
	})

	logger.Info(ctx, "Upcoming earnings resolved", "universe", universeID, "count", len(upcoming))
	return upcoming, nil
}
