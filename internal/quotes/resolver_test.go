package quotes

import (
	"context"
	"testing"
	"time"

	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/types"
)

// fakeSource serves a fixed set of symbols and counts every Resolve call.
type fakeSource struct {
	tag    types.QuoteSourceTag
	serves map[string]float64
	calls  int
}

func (f *fakeSource) Name() types.QuoteSourceTag { return f.tag }

func (f *fakeSource) Resolve(ctx context.Context, symbol string) (types.Quote, bool) {
	f.calls++
	price, ok := f.serves[symbol]
	if !ok {
		return types.Quote{}, false
	}
	return types.Quote{
		Symbol:    symbol,
		Price:     price,
		Source:    f.tag,
		FetchedAt: time.Now(),
	}, true
}

func newTestResolver(st cache.Store, sources ...*fakeSource) *Resolver {
	slots := make([]SourceSlot, 0, len(sources))
	for _, s := range sources {
		slots = append(slots, SourceSlot{Source: s})
	}
	return NewResolverWithSources(st, NewCallBudget(250, 0.95), slots)
}

func TestResolveBatchFallbackTagging(t *testing.T) {
	primary := &fakeSource{tag: types.SourceFMP, serves: map[string]float64{"AAPL": 180, "MSFT": 410}}
	secondary := &fakeSource{tag: types.SourceFinnhub, serves: map[string]float64{"NVDA": 120, "AMD": 95}}

	r := newTestResolver(cache.NewMemoryStore(), primary, secondary)
	quotes := r.ResolveBatch(context.Background(), []string{"AAPL", "MSFT", "NVDA", "AMD"})

	if len(quotes) != 4 {
		t.Fatalf("expected 4 quotes, got %d", len(quotes))
	}
	for _, sym := range []string{"AAPL", "MSFT"} {
		if quotes[sym].Source != types.SourceFMP {
			t.Errorf("%s: expected primary source tag, got %s", sym, quotes[sym].Source)
		}
	}
	for _, sym := range []string{"NVDA", "AMD"} {
		if quotes[sym].Source != types.SourceFinnhub {
			t.Errorf("%s: expected secondary source tag, got %s", sym, quotes[sym].Source)
		}
	}
}

func TestResolveBatchWarmCacheMakesNoCalls(t *testing.T) {
	st := cache.NewMemoryStore()
	primary := &fakeSource{tag: types.SourceFMP, serves: map[string]float64{"AAPL": 180, "MSFT": 410}}

	r := newTestResolver(st, primary)
	r.ResolveBatch(context.Background(), []string{"AAPL", "MSFT"})

	callsAfterFirst := primary.calls
	if callsAfterFirst != 2 {
		t.Fatalf("expected 2 calls on cold cache, got %d", callsAfterFirst)
	}

	// Second batch over the same symbols must be served entirely from cache.
	quotes := r.ResolveBatch(context.Background(), []string{"AAPL", "MSFT"})
	if primary.calls != callsAfterFirst {
		t.Errorf("expected zero outbound calls on warm cache, got %d more", primary.calls-callsAfterFirst)
	}
	if len(quotes) != 2 {
		t.Errorf("expected 2 quotes from cache, got %d", len(quotes))
	}
}

func TestResolveBatchMergesIntoSharedEntry(t *testing.T) {
	st := cache.NewMemoryStore()
	primary := &fakeSource{tag: types.SourceFMP, serves: map[string]float64{"AAPL": 180, "MSFT": 410, "NVDA": 120}}
	r := newTestResolver(st, primary)

	r.ResolveBatch(context.Background(), []string{"AAPL"})
	r.ResolveBatch(context.Background(), []string{"MSFT"})

	// A third batch spanning both earlier resolutions plus one new symbol
	// only fetches the new one.
	before := primary.calls
	quotes := r.ResolveBatch(context.Background(), []string{"AAPL", "MSFT", "NVDA"})
	if primary.calls-before != 1 {
		t.Errorf("expected exactly 1 outbound call, got %d", primary.calls-before)
	}
	if len(quotes) != 3 {
		t.Errorf("expected 3 quotes, got %d", len(quotes))
	}
}

func TestResolveBatchUnservableSymbolAbsent(t *testing.T) {
	primary := &fakeSource{tag: types.SourceFMP, serves: map[string]float64{"AAPL": 180}}
	secondary := &fakeSource{tag: types.SourceFinnhub, serves: map[string]float64{}}

	r := newTestResolver(cache.NewMemoryStore(), primary, secondary)
	quotes := r.ResolveBatch(context.Background(), []string{"AAPL", "ZZZZ"})

	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	if _, ok := quotes["ZZZZ"]; ok {
		t.Error("unservable symbol must be absent from the result map")
	}
	if secondary.calls != 1 {
		t.Errorf("expected the fallback to be tried once for ZZZZ, got %d calls", secondary.calls)
	}
}

func TestCurrentPrice(t *testing.T) {
	primary := &fakeSource{tag: types.SourceFMP, serves: map[string]float64{"AAPL": 180.5}}
	r := newTestResolver(cache.NewMemoryStore(), primary)

	price, ok := r.CurrentPrice(context.Background(), "AAPL")
	if !ok || price != 180.5 {
		t.Errorf("CurrentPrice = (%.2f, %v), want (180.50, true)", price, ok)
	}

	if _, ok := r.CurrentPrice(context.Background(), "ZZZZ"); ok {
		t.Error("expected miss for unknown symbol")
	}
}
