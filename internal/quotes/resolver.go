package quotes

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/interfaces"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

const (
	batchCacheKey = "batch-quotes"
	batchCacheTTL = 4 * time.Hour
)

// SourceSlot pairs a quote source with its pacing limiter. A nil limiter
// means unpaced, which only tests use.
type SourceSlot struct {
	Source  interfaces.QuoteSource
	Limiter *rate.Limiter
}

// Resolver serves batch quote requests through an ordered source fallback
// chain fronted by a shared cache. All symbols resolved in a window collapse
// into one cache entry, so repeated scans against a warm cache make zero
// outbound calls.
type Resolver struct {
	store  cache.Store
	budget *CallBudget
	slots  []SourceSlot
}

// NewResolver builds the production chain: the budgeted primary source paced
// at primaryDelay per call, then the two fallbacks paced at fallbackDelay.
func NewResolver(st cache.Store, budget *CallBudget, primaryDelay, fallbackDelay time.Duration) *Resolver {
	fallbackLimiter := rate.NewLimiter(rate.Every(fallbackDelay), 1)
	return &Resolver{
		store:  st,
		budget: budget,
		slots: []SourceSlot{
			{Source: NewFMPSource(budget), Limiter: rate.NewLimiter(rate.Every(primaryDelay), 1)},
			{Source: NewFinnhubSource(), Limiter: fallbackLimiter},
			{Source: NewYahooSource(), Limiter: fallbackLimiter},
		},
	}
}

// NewResolverWithSources builds a resolver over an explicit chain.
func NewResolverWithSources(st cache.Store, budget *CallBudget, slots []SourceSlot) *Resolver {
	return &Resolver{store: st, budget: budget, slots: slots}
}

// ResolveBatch returns quotes for as many of the requested symbols as the
// chain can serve. Misses are absent from the map, not errors. Fresh results
// are merged into the shared cache entry alongside earlier resolutions.
func (r *Resolver) ResolveBatch(ctx context.Context, symbols []string) map[string]types.Quote {
	known := make(map[string]types.Quote)
	cache.ReadJSON(r.store, batchCacheKey, batchCacheTTL, &known)

	result := make(map[string]types.Quote, len(symbols))
	var missing []string
	for _, sym := range symbols {
		if q, ok := known[sym]; ok {
			result[sym] = q
		} else {
			missing = append(missing, sym)
		}
	}

	if len(missing) == 0 {
		logger.Debug(ctx, "Quote batch fully served from cache", "symbols", len(symbols))
		return result
	}

	logger.Info(ctx, "Resolving quotes", "requested", len(symbols), "cached", len(result), "missing", len(missing))

	bySource := make(map[types.QuoteSourceTag]int)
	for _, sym := range missing {
		if ctx.Err() != nil {
			break
		}
		for _, slot := range r.slots {
			if slot.Limiter != nil {
				if err := slot.Limiter.Wait(ctx); err != nil {
					logger.Warn(ctx, "Quote resolution cancelled", "symbol", sym, "error", err)
					break
				}
			}
			q, ok := slot.Source.Resolve(ctx, sym)
			if !ok {
				continue
			}
			known[sym] = q
			result[sym] = q
			bySource[slot.Source.Name()]++
			break
		}
	}

	if err := r.store.Write(batchCacheKey, known); err != nil {
		logger.Warn(ctx, "Quote cache write failed", "error", err)
	}

	logger.Info(ctx, "Quote batch resolved",
		"requested", len(symbols),
		"resolved", len(result),
		"by_source", bySource)
	return result
}

// CurrentPrice resolves the current price for one symbol through the same
// cache and chain as batch resolution.
func (r *Resolver) CurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	quotes := r.ResolveBatch(ctx, []string{symbol})
	q, ok := quotes[symbol]
	if !ok {
		return 0, false
	}
	return q.Price, true
}

// ResolverStatus reports the chain composition, budget state, and how many
// quotes the shared cache entry currently holds.
type ResolverStatus struct {
	Budget       BudgetStatus `json:"budget"`
	Sources      []string     `json:"sources"`
	CachedQuotes int          `json:"cached_quotes"`
}

// Status returns the current resolver status snapshot.
func (r *Resolver) Status() ResolverStatus {
	sources := make([]string, 0, len(r.slots))
	for _, slot := range r.slots {
		sources = append(sources, string(slot.Source.Name()))
	}

	known := make(map[string]types.Quote)
	cache.ReadJSON(r.store, batchCacheKey, batchCacheTTL, &known)

	return ResolverStatus{
		Budget:       r.budget.Status(),
		Sources:      sources,
		CachedQuotes: len(known),
	}
}
