package types

import "time"

// Universe identifies a named set of tickers with its own market-cap floor
// and cache namespace.
type Universe struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	CachePrefix  string  `json:"cache_prefix"`
	MinMarketCap float64 `json:"min_market_cap"`

	// Display metadata for the rendered page
	GainersTitle  string `json:"gainers_title"`
	LosersTitle   string `json:"losers_title"`
	UpcomingTitle string `json:"upcoming_title"`
	Default       bool   `json:"default"`
}

// Ticker is one member of a universe. Immutable once resolved.
type Ticker struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
}

// EarningsEvent is one row of the earnings calendar.
type EarningsEvent struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
}

// QuoteSourceTag records which provider served a quote. A quote from a
// fallback source is a valid result, not a degraded one.
type QuoteSourceTag string

const (
	SourceFMP     QuoteSourceTag = "fmp"
	SourceFinnhub QuoteSourceTag = "finnhub"
	SourceYahoo   QuoteSourceTag = "yahoo"
)

// Quote holds the current snapshot for one symbol. Replaced wholesale on
// refresh, never partially updated. MarketCap is zero when the serving
// source does not report it.
type Quote struct {
	Symbol        string         `json:"symbol"`
	Price         float64        `json:"price"`
	MarketCap     float64        `json:"market_cap,omitempty"`
	Change        float64        `json:"change"`
	ChangePercent float64        `json:"change_percent"`
	PreviousClose float64        `json:"previous_close"`
	Name          string         `json:"name,omitempty"`
	Source        QuoteSourceTag `json:"source"`
	FetchedAt     time.Time      `json:"fetched_at"`
}

// SeriesStatus distinguishes "fetched but unusable" from "fetch failed".
// Callers treat both as "skip this candidate"; the split exists for logging.
type SeriesStatus string

const (
	SeriesOK     SeriesStatus = "ok"
	SeriesNoData SeriesStatus = "no_data"
	SeriesError  SeriesStatus = "error"
)

// HistoricalSeries is an ascending daily close-price series.
// Closes[i] is the close at Timestamps[i] (unix seconds).
type HistoricalSeries struct {
	Status     SeriesStatus `json:"s"`
	Closes     []float64    `json:"c"`
	Timestamps []int64      `json:"t"`
}

// LastCloseBefore returns the latest close strictly before the given unix
// timestamp, or false when no such point exists.
func (h HistoricalSeries) LastCloseBefore(unix int64) (float64, bool) {
	for i := len(h.Timestamps) - 1; i >= 0; i-- {
		if h.Timestamps[i] < unix {
			return h.Closes[i], true
		}
	}
	return 0, false
}

// OpportunityCandidate is one (ticker, earnings event) pair that cleared the
// market-cap floor and has valid before/after prices. Derived, never mutated.
type OpportunityCandidate struct {
	Ticker              string    `json:"ticker"`
	Name                string    `json:"name"`
	EarningsDate        time.Time `json:"earnings_date"`
	MarketCap           float64   `json:"market_cap"`
	PriceBeforeEarnings float64   `json:"price_before_earnings"`
	PriceNow            float64   `json:"price_now"`
	ChangePercent       float64   `json:"change_percent"`
}

// UpcomingEarning is a near-future earnings event for a ticker above the
// universe's market-cap floor.
type UpcomingEarning struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	MarketCap float64   `json:"market_cap"`
}

// Signal is the qualitative output of one sub-analyzer.
type Signal string

const (
	SignalPositive Signal = "positive"
	SignalNeutral  Signal = "neutral"
	SignalNegative Signal = "negative"
)

// Emoji renders a signal the way the report pages display it.
func (s Signal) Emoji() string {
	switch s {
	case SignalPositive:
		return "🟢"
	case SignalNegative:
		return "🔴"
	default:
		return "⚪"
	}
}

// SentimentEmoji renders the analyst sentiment scale, where neutral shows as
// a yellow light rather than the empty circle insider activity uses.
func (s Signal) SentimentEmoji() string {
	switch s {
	case SignalPositive:
		return "🟢"
	case SignalNegative:
		return "🔴"
	default:
		return "🟡"
	}
}

// InsiderActivity summarizes buy-coded vs sell-coded insider transactions
// over the trailing window.
type InsiderActivity struct {
	Symbol          string  `json:"symbol"`
	TotalBuyShares  int64   `json:"total_buy_shares"`
	TotalSellShares int64   `json:"total_sell_shares"`
	BuyValue        float64 `json:"buy_value"`
	SellValue       float64 `json:"sell_value"`
	Signal          Signal  `json:"signal"`
	// UsedPriceFallback is set when any transaction was valued at the
	// current market price because the reported price was missing.
	UsedPriceFallback bool `json:"used_price_fallback"`
	HasValidPrices    bool `json:"has_valid_prices"`
}

// ValuationComparison compares a company's trailing P/E to its sector peers.
type ValuationComparison struct {
	Symbol        string  `json:"symbol"`
	CompanyPE     float64 `json:"company_pe"`
	SectorPE      float64 `json:"sector_pe"`
	Sector        string  `json:"sector"`
	IsUndervalued bool    `json:"is_undervalued"`
}

// AnalystView aggregates rating counts and the average price target.
type AnalystView struct {
	Symbol         string  `json:"symbol"`
	BuyRatings     int     `json:"buy_ratings"`
	HoldRatings    int     `json:"hold_ratings"`
	SellRatings    int     `json:"sell_ratings"`
	AvgPriceTarget float64 `json:"avg_price_target"`
	CurrentPrice   float64 `json:"current_price"`
	UpsidePercent  float64 `json:"upside_percent"`
	Sentiment      Signal  `json:"sentiment"`
	IsPositive     bool    `json:"is_positive"`
}

// Criteria are the four independent booleans a buy candidate is scored on.
type Criteria struct {
	DroppedBeyondThreshold bool `json:"dropped_beyond_threshold"`
	InsiderBuying          bool `json:"insider_buying"`
	Undervalued            bool `json:"undervalued"`
	PositiveAnalysts       bool `json:"positive_analysts"`
}

// MetCount counts satisfied criteria.
func (c Criteria) MetCount() int {
	n := 0
	for _, b := range []bool{c.DroppedBeyondThreshold, c.InsiderBuying, c.Undervalued, c.PositiveAnalysts} {
		if b {
			n++
		}
	}
	return n
}

// Recommendation is the final qualitative label for a buy opportunity.
type Recommendation string

const (
	StrongBuy   Recommendation = "Strong Buy"
	ModerateBuy Recommendation = "Moderate Buy"
	Hold        Recommendation = "Hold"
	Avoid       Recommendation = "Avoid"
)

// BuyOpportunity is the fully-scored analysis of one steep dropper.
type BuyOpportunity struct {
	Candidate        OpportunityCandidate `json:"candidate"`
	Insider          InsiderActivity      `json:"insider"`
	Valuation        ValuationComparison  `json:"valuation"`
	Analysts         AnalystView          `json:"analysts"`
	Criteria         Criteria             `json:"criteria"`
	CriteriaMetCount int                  `json:"criteria_met_count"`
	Recommendation   Recommendation       `json:"recommendation"`
	AnalyzedAt       time.Time            `json:"analyzed_at"`
}
