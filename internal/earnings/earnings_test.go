package earnings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/types"
)

func TestResolveCacheHit(t *testing.T) {
	store := cache.NewMemoryStore()
	from := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	seeded := []types.EarningsEvent{
		{Symbol: "AAPL", Date: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)},
		{Symbol: "MSFT", Date: time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)},
	}
	if err := store.Write("earnings-2026-08-19-2026-08-29", seeded); err != nil {
		t.Fatalf("seeding cache failed: %v", err)
	}

	p := NewProvider(store)
	p.apiKey = "" // a cache hit must not need credentials

	events, invalid := p.Resolve(context.Background(), from, to)
	if len(events) != 2 {
		t.Fatalf("expected 2 cached events, got %d", len(events))
	}
	if events[0].Symbol != "AAPL" || events[1].Symbol != "MSFT" {
		t.Errorf("unexpected events: %v", events)
	}
	if invalid != 0 {
		t.Errorf("cached ranges hold validated events, got %d invalid rows", invalid)
	}
}

func TestResolveWithoutCredentials(t *testing.T) {
	p := NewProvider(cache.NewMemoryStore())
	p.apiKey = ""

	from := time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	events, _ := p.Resolve(context.Background(), from, to)
	if events != nil {
		t.Errorf("expected nil events without credentials, got %v", events)
	}
}

func TestCalendarRowParsing(t *testing.T) {
	raw := []byte(`{"earningsCalendar":[
		{"date":"2026-08-25","symbol":"AAPL","epsActual":1.4},
		{"date":"","symbol":"BAD"},
		{"date":"2026-08-26","symbol":""},
		{"date":"not-a-date","symbol":"MANGLED"}
	]}`)

	var cal calendarResponse
	if err := json.Unmarshal(raw, &cal); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(cal.EarningsCalendar) != 4 {
		t.Fatalf("expected 4 raw rows, got %d", len(cal.EarningsCalendar))
	}

	events, invalid := parseRows(context.Background(), cal.EarningsCalendar)
	if len(events) != 1 || events[0].Symbol != "AAPL" {
		t.Fatalf("expected only AAPL to survive, got %v", events)
	}
	if events[0].Date != time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected event date: %v", events[0].Date)
	}
	if invalid != 3 {
		t.Errorf("expected 3 invalid rows counted, got %d", invalid)
	}
}
