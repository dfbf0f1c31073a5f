package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/types"
)

func dayUnix(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func sampleBody() []byte {
	return []byte(`{
		"Time Series (Daily)": {
			"2026-08-28": {"1. open": "100", "4. close": "95.50"},
			"2026-08-27": {"1. open": "101", "4. close": "102.00"},
			"2026-08-26": {"1. open": "103", "4. close": "103.25"},
			"2026-08-20": {"1. open": "99",  "4. close": "99.00"}
		}
	}`)
}

func newTestProvider(st cache.Store, body []byte, calls *int) *Provider {
	p := NewProvider(st)
	p.fetch = func(ctx context.Context, symbol string) ([]byte, error) {
		*calls++
		if body == nil {
			return nil, fmt.Errorf("upstream unavailable")
		}
		return body, nil
	}
	return p
}

func TestResolveAscendingSeries(t *testing.T) {
	var calls int
	p := newTestProvider(cache.NewMemoryStore(), sampleBody(), &calls)

	series := p.Resolve(context.Background(), "AAPL", dayUnix(2026, 8, 25), dayUnix(2026, 8, 29))

	if series.Status != types.SeriesOK {
		t.Fatalf("expected ok status, got %s", series.Status)
	}
	if len(series.Closes) != 3 {
		t.Fatalf("expected 3 points in range, got %d", len(series.Closes))
	}
	for i := 1; i < len(series.Timestamps); i++ {
		if series.Timestamps[i] <= series.Timestamps[i-1] {
			t.Fatal("timestamps must be strictly ascending")
		}
	}
	if series.Closes[0] != 103.25 || series.Closes[2] != 95.50 {
		t.Errorf("unexpected closes: %v", series.Closes)
	}
}

func TestResolveInvertedRangeNoIO(t *testing.T) {
	var calls int
	p := newTestProvider(cache.NewMemoryStore(), sampleBody(), &calls)

	from := dayUnix(2026, 8, 29)
	to := dayUnix(2026, 8, 25)
	series := p.Resolve(context.Background(), "AAPL", from, to)

	if series.Status != types.SeriesError {
		t.Errorf("expected error status for inverted range, got %s", series.Status)
	}
	if calls != 0 {
		t.Errorf("inverted range must not reach the network, got %d calls", calls)
	}

	// Equal endpoints are inverted too
	series = p.Resolve(context.Background(), "AAPL", from, from)
	if series.Status != types.SeriesError || calls != 0 {
		t.Errorf("equal endpoints must be rejected without I/O (status=%s calls=%d)", series.Status, calls)
	}
}

func TestResolveThinSeriesIsNoData(t *testing.T) {
	var calls int
	p := newTestProvider(cache.NewMemoryStore(), sampleBody(), &calls)

	// Only 2026-08-20 falls in this range
	series := p.Resolve(context.Background(), "AAPL", dayUnix(2026, 8, 19), dayUnix(2026, 8, 21))
	if series.Status != types.SeriesNoData {
		t.Errorf("expected no_data for single-point range, got %s", series.Status)
	}
}

func TestResolveUpstreamFailure(t *testing.T) {
	var calls int
	p := newTestProvider(cache.NewMemoryStore(), nil, &calls)

	series := p.Resolve(context.Background(), "AAPL", dayUnix(2026, 8, 25), dayUnix(2026, 8, 29))
	if series.Status != types.SeriesError {
		t.Errorf("expected error status on upstream failure, got %s", series.Status)
	}
}

func TestResolveSubKeyedCache(t *testing.T) {
	var calls int
	st := cache.NewMemoryStore()
	p := newTestProvider(st, sampleBody(), &calls)

	from, to := dayUnix(2026, 8, 25), dayUnix(2026, 8, 29)
	p.Resolve(context.Background(), "AAPL", from, to)
	if calls != 1 {
		t.Fatalf("expected 1 call on cold cache, got %d", calls)
	}

	// Same range: served from cache
	p.Resolve(context.Background(), "AAPL", from, to)
	if calls != 1 {
		t.Errorf("expected cache hit for repeated range, got %d calls", calls)
	}

	// Different range for the same symbol: new sub-key, one more call
	p.Resolve(context.Background(), "AAPL", dayUnix(2026, 8, 19), to)
	if calls != 2 {
		t.Errorf("expected 2 calls after new range, got %d", calls)
	}

	// Both ranges now cached under the same symbol entry
	p.Resolve(context.Background(), "AAPL", from, to)
	p.Resolve(context.Background(), "AAPL", dayUnix(2026, 8, 19), to)
	if calls != 2 {
		t.Errorf("expected both ranges cached, got %d calls", calls)
	}
}

func TestParseRateLimitNote(t *testing.T) {
	body := []byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 25 requests per day."}`)
	series := parseDailySeries(body, 0, 1<<62)
	if series.Status != types.SeriesError {
		t.Errorf("expected error status for throttle note, got %s", series.Status)
	}
}

func TestLastCloseBefore(t *testing.T) {
	series := types.HistoricalSeries{
		Status:     types.SeriesOK,
		Closes:     []float64{99, 103.25, 102, 95.5},
		Timestamps: []int64{dayUnix(2026, 8, 20), dayUnix(2026, 8, 26), dayUnix(2026, 8, 27), dayUnix(2026, 8, 28)},
	}

	// Strictly before the earnings timestamp: a close at the exact instant
	// does not count.
	got, ok := series.LastCloseBefore(dayUnix(2026, 8, 27))
	if !ok || got != 103.25 {
		t.Errorf("LastCloseBefore(27th) = (%.2f, %v), want (103.25, true)", got, ok)
	}

	got, ok = series.LastCloseBefore(dayUnix(2026, 8, 29))
	if !ok || got != 95.5 {
		t.Errorf("LastCloseBefore(29th) = (%.2f, %v), want (95.50, true)", got, ok)
	}

	if _, ok := series.LastCloseBefore(dayUnix(2026, 8, 20)); ok {
		t.Error("expected no close strictly before the first timestamp")
	}
}
