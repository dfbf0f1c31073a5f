package scanner

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"earnings-scanner/internal/store"
	"earnings-scanner/internal/types"
)

var scanNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

type fakeUniverses struct {
	tickers []types.Ticker
}

func (f *fakeUniverses) Resolve(ctx context.Context, universeID string) ([]types.Ticker, map[string]string, error) {
	names := make(map[string]string, len(f.tickers))
	for _, t := range f.tickers {
		names[t.Symbol] = t.DisplayName
	}
	return f.tickers, names, nil
}

type fakeEarnings struct {
	events  []types.EarningsEvent
	invalid int
}

func (f *fakeEarnings) Resolve(ctx context.Context, from, to time.Time) ([]types.EarningsEvent, int) {
	var out []types.EarningsEvent
	for _, ev := range f.events {
		if !ev.Date.Before(from) && !ev.Date.After(to) {
			out = append(out, ev)
		}
	}
	return out, f.invalid
}

type fakeQuotes struct {
	quotes map[string]types.Quote
	calls  int
}

func (f *fakeQuotes) ResolveBatch(ctx context.Context, symbols []string) map[string]types.Quote {
	f.calls++
	out := make(map[string]types.Quote)
	for _, sym := range symbols {
		if q, ok := f.quotes[sym]; ok {
			out[sym] = q
		}
	}
	return out
}

type fakeHistory struct {
	series map[string]types.HistoricalSeries
	ranges map[string][2]int64
}

func (f *fakeHistory) Resolve(ctx context.Context, symbol string, fromUnix, toUnix int64) types.HistoricalSeries {
	if f.ranges == nil {
		f.ranges = make(map[string][2]int64)
	}
	f.ranges[symbol] = [2]int64{fromUnix, toUnix}
	s, ok := f.series[symbol]
	if !ok {
		return types.HistoricalSeries{Status: types.SeriesError}
	}
	return s
}

func seriesEndingAt(closes []float64, lastDay time.Time) types.HistoricalSeries {
	s := types.HistoricalSeries{Status: types.SeriesOK}
	for i, c := range closes {
		day := lastDay.AddDate(0, 0, i-len(closes)+1)
		s.Closes = append(s.Closes, c)
		s.Timestamps = append(s.Timestamps, day.Unix())
	}
	return s
}

func newTestScanner(q *fakeQuotes, h *fakeHistory, e *fakeEarnings) *Scanner {
	u := &fakeUniverses{tickers: []types.Ticker{
		{Symbol: "AAPL", DisplayName: "Apple Inc."},
		{Symbol: "MSFT", DisplayName: "Microsoft Corporation"},
		{Symbol: "SMLL", DisplayName: "Small Cap Co"},
		{Symbol: "NOHIST", DisplayName: "No History Inc"},
	}}
	s := New(u, e, q, h, store.DefaultConfig())
	s.now = func() time.Time { return scanNow }
	return s
}

func TestScanEndToEnd(t *testing.T) {
	earningsDay := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	earnings := &fakeEarnings{
		events: []types.EarningsEvent{
			{Symbol: "AAPL", Date: earningsDay},
			{Symbol: "MSFT", Date: earningsDay},
			{Symbol: "SMLL", Date: earningsDay},
			{Symbol: "NOHIST", Date: earningsDay},
			{Symbol: "NOTMEMBER", Date: earningsDay},
		},
		invalid: 2,
	}

	quotes := &fakeQuotes{quotes: map[string]types.Quote{
		"AAPL":   {Symbol: "AAPL", Price: 92, MarketCap: 2.8e12, Name: "Apple Inc.", Source: types.SourceFMP},
		"MSFT":   {Symbol: "MSFT", Price: 105, MarketCap: 3.1e12, Name: "Microsoft Corporation", Source: types.SourceFMP},
		"SMLL":   {Symbol: "SMLL", Price: 10, MarketCap: 2e9, Source: types.SourceFMP},
		"NOHIST": {Symbol: "NOHIST", Price: 50, MarketCap: 9e9, Source: types.SourceFinnhub},
	}}

	// The close on the 25th is the last one strictly before the report.
	history := &fakeHistory{series: map[string]types.HistoricalSeries{
		"AAPL": seriesEndingAt([]float64{101, 100, 95, 92}, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)),
		"MSFT": seriesEndingAt([]float64{99, 100, 103, 105}, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)),
	}}

	s := newTestScanner(quotes, history, earnings)
	result, err := s.Scan(context.Background(), "sp500", scanNow)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(result.Candidates))
	}

	// Sorted descending: AAPL's drop last
	aapl := result.Candidates[1]
	if aapl.Ticker != "AAPL" {
		t.Fatalf("expected AAPL as steepest mover, got %s", aapl.Ticker)
	}
	if aapl.PriceBeforeEarnings != 100 {
		t.Errorf("expected price before earnings 100 (last close strictly before the report), got %.2f", aapl.PriceBeforeEarnings)
	}
	wantChange := (92.0 - 100.0) / 100.0 * 100
	if math.Abs(aapl.ChangePercent-wantChange) > 1e-9 {
		t.Errorf("AAPL change = %.4f, want %.4f", aapl.ChangePercent, wantChange)
	}

	msft := result.Candidates[0]
	if msft.Ticker != "MSFT" || math.Abs(msft.ChangePercent-5.0) > 1e-9 {
		t.Errorf("unexpected MSFT candidate: %+v", msft)
	}

	if len(result.Losers) != 1 || result.Losers[0].Ticker != "AAPL" {
		t.Errorf("unexpected losers: %v", result.Losers)
	}
	if len(result.Gainers) != 1 || result.Gainers[0].Ticker != "MSFT" {
		t.Errorf("unexpected gainers: %v", result.Gainers)
	}

	if result.Discards.BelowFloor != 1 {
		t.Errorf("expected 1 below-floor discard (SMLL), got %d", result.Discards.BelowFloor)
	}
	if result.Discards.NoHistory != 1 {
		t.Errorf("expected 1 no-history discard (NOHIST), got %d", result.Discards.NoHistory)
	}
	if result.Discards.InvalidDate != 2 {
		t.Errorf("expected 2 invalid-date discards from the calendar, got %d", result.Discards.InvalidDate)
	}

	// The history window ends at the earnings date, not the scan date.
	wantRange := [2]int64{earningsDay.AddDate(0, 0, -7).Unix(), earningsDay.Unix()}
	if got := history.ranges["AAPL"]; got != wantRange {
		t.Errorf("AAPL history range = %v, want %v", got, wantRange)
	}
	if quotes.calls != 1 {
		t.Errorf("expected one batch quote call per scan, got %d", quotes.calls)
	}
}

func TestScanUnknownUniverse(t *testing.T) {
	s := newTestScanner(&fakeQuotes{}, &fakeHistory{}, &fakeEarnings{})
	if _, err := s.Scan(context.Background(), "ftse100", scanNow); err == nil {
		t.Fatal("expected error for unknown universe")
	}
}

func TestScanEmptyCalendar(t *testing.T) {
	quotes := &fakeQuotes{quotes: map[string]types.Quote{}}
	s := newTestScanner(quotes, &fakeHistory{}, &fakeEarnings{})

	result, err := s.Scan(context.Background(), "sp500", scanNow)
	if err != nil {
		t.Fatalf("Scan returned error on empty calendar: %v", err)
	}
	if len(result.Candidates) != 0 || len(result.Gainers) != 0 || len(result.Losers) != 0 {
		t.Errorf("expected empty report, got %+v", result)
	}
}

func TestTopAndBottomMoversCap(t *testing.T) {
	// Descending, all negative: -2 .. -16
	var sorted []types.OpportunityCandidate
	for i := 0; i < 8; i++ {
		sorted = append(sorted, types.OpportunityCandidate{
			Ticker:        string(rune('A' + i)),
			ChangePercent: float64(-i-1) * 2,
		})
	}

	losers := bottomMovers(sorted)
	if len(losers) != topMovers {
		t.Fatalf("expected %d losers, got %d", topMovers, len(losers))
	}
	if losers[0].ChangePercent != -16 {
		t.Errorf("expected steepest drop first, got %.1f", losers[0].ChangePercent)
	}
	if len(topGainers(sorted)) != 0 {
		t.Error("expected no gainers among all-negative moves")
	}
}

func TestScanDeterministic(t *testing.T) {
	earningsDay := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	earnings := &fakeEarnings{events: []types.EarningsEvent{
		{Symbol: "AAPL", Date: earningsDay},
		{Symbol: "MSFT", Date: earningsDay},
	}}
	quotes := &fakeQuotes{quotes: map[string]types.Quote{
		"AAPL": {Symbol: "AAPL", Price: 92, MarketCap: 2.8e12, Name: "Apple Inc."},
		"MSFT": {Symbol: "MSFT", Price: 105, MarketCap: 3.1e12, Name: "Microsoft Corporation"},
	}}
	history := &fakeHistory{series: map[string]types.HistoricalSeries{
		"AAPL": seriesEndingAt([]float64{101, 100, 95, 92}, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)),
		"MSFT": seriesEndingAt([]float64{99, 100, 103, 105}, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)),
	}}

	s := newTestScanner(quotes, history, earnings)
	first, err := s.Scan(context.Background(), "sp500", scanNow)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Scan(context.Background(), "sp500", scanNow)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Candidates, second.Candidates) {
		t.Error("repeated scans over unchanged inputs must yield identical candidate lists")
	}
	if quotes.calls != 2 {
		t.Errorf("expected one batch quote call per scan, got %d", quotes.calls)
	}
}

func TestUpcomingEarnings(t *testing.T) {
	earnings := &fakeEarnings{events: []types.EarningsEvent{
		{Symbol: "MSFT", Date: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)},
		{Symbol: "AAPL", Date: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)},
		{Symbol: "SMLL", Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		{Symbol: "FARAWAY", Date: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}}
	quotes := &fakeQuotes{quotes: map[string]types.Quote{
		"AAPL": {Symbol: "AAPL", Price: 180, MarketCap: 2.8e12, Name: "Apple Inc."},
		"MSFT": {Symbol: "MSFT", Price: 410, MarketCap: 3.1e12, Name: "Microsoft Corporation"},
		"SMLL": {Symbol: "SMLL", Price: 10, MarketCap: 2e9},
	}}

	s := newTestScanner(quotes, &fakeHistory{}, earnings)
	upcoming, err := s.UpcomingEarnings(context.Background(), "sp500")
	if err != nil {
		t.Fatalf("UpcomingEarnings returned error: %v", err)
	}

	if len(upcoming) != 2 {
		t.Fatalf("expected 2 upcoming events above the floor, got %d", len(upcoming))
	}
	if upcoming[0].Ticker != "AAPL" || upcoming[1].Ticker != "MSFT" {
		t.Errorf("expected soonest-first ordering, got %v", upcoming)
	}
}
