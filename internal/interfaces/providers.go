package interfaces

import (
	"context"
	"time"

	"earnings-scanner/internal/types"
)

// UniverseProvider resolves a universe id to its tickers and display names.
// Unknown universe ids are a fatal configuration error.
type UniverseProvider interface {
	Resolve(ctx context.Context, universeID string) ([]types.Ticker, map[string]string, error)
}

// EarningsProvider resolves a date range to earnings events. Upstream
// failure yields an empty slice; callers cannot tell "no earnings in window"
// from "provider down". invalidRows counts calendar rows dropped for a
// missing symbol or unparseable date; cached ranges were validated when
// stored, so hits report zero.
type EarningsProvider interface {
	Resolve(ctx context.Context, from, to time.Time) (events []types.EarningsEvent, invalidRows int)
}

// QuoteProvider resolves a batch of symbols to quotes. Partial results are
// expected behavior, not an error; symbols no source could serve are simply
// absent from the map.
type QuoteProvider interface {
	ResolveBatch(ctx context.Context, symbols []string) map[string]types.Quote
}

// QuoteSource is one adapter in the ordered quote fallback chain. Resolve
// returns false when the source cannot serve the symbol for any reason.
type QuoteSource interface {
	Name() types.QuoteSourceTag
	Resolve(ctx context.Context, symbol string) (types.Quote, bool)
}

// HistoryProvider resolves a symbol and unix-second range to a daily close
// series. It never returns an error; failures are encoded in the Status.
type HistoryProvider interface {
	Resolve(ctx context.Context, symbol string, fromUnix, toUnix int64) types.HistoricalSeries
}

// InsiderAnalyzer, ValuationAnalyzer, and AnalystAnalyzer are the three
// best-effort sub-analyzers. Each returns a value, never an error; on
// internal failure the result carries a neutral signal.
type InsiderAnalyzer interface {
	Analyze(ctx context.Context, symbol string) types.InsiderActivity
}

type ValuationAnalyzer interface {
	Analyze(ctx context.Context, symbol string) types.ValuationComparison
}

type AnalystAnalyzer interface {
	Analyze(ctx context.Context, symbol string) types.AnalystView
}

// InsiderTransaction is one reported insider trade, normalized from the
// vendor wire format at the adapter boundary.
type InsiderTransaction struct {
	Date            string
	Name            string
	Shares          int64
	Price           float64
	TransactionCode string
}

// InsiderSource provides raw insider transactions for a symbol and window.
type InsiderSource interface {
	Transactions(ctx context.Context, symbol string, from, to time.Time) ([]InsiderTransaction, error)
}

// ValuationSource provides the inputs of the relative-valuation comparison.
type ValuationSource interface {
	// CompanyPE returns the trailing P/E and sector for a symbol. ok is
	// false when no ratio data is available.
	CompanyPE(ctx context.Context, symbol string) (pe float64, sector string, ok bool)

	// SectorPeerPE returns the average trailing P/E of large-cap peers in
	// the sector, from a live screen. ok is false when the screen fails or
	// yields no usable ratios.
	SectorPeerPE(ctx context.Context, sector string) (float64, bool)
}

// AnalystSource provides analyst rating counts and price targets.
type AnalystSource interface {
	Ratings(ctx context.Context, symbol string) (buy, hold, sell int, ok bool)
	PriceTargets(ctx context.Context, symbol string) ([]float64, bool)
}

// PriceLookup resolves the current price for one symbol, typically backed by
// the batch quote provider's cache.
type PriceLookup interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, bool)
}
