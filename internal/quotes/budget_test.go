package quotes

import (
	"testing"
	"time"
)

func TestBudgetCutoff(t *testing.T) {
	b := NewCallBudget(250, 0.95)

	if got := b.cutoff(); got != 237 {
		t.Fatalf("expected cutoff 237, got %d", got)
	}

	for i := 0; i < 236; i++ {
		if !b.Allow() {
			t.Fatalf("Allow() = false at call %d, before cutoff", i)
		}
		b.Record()
	}

	// 236 used, one below cutoff
	if !b.Allow() {
		t.Fatal("Allow() = false with budget remaining")
	}
	b.Record()

	// 237 used, at cutoff
	if b.Allow() {
		t.Fatal("Allow() = true at cutoff")
	}

	status := b.Status()
	if status.Used != 237 || !status.Exhausted || status.Remaining != 0 {
		t.Errorf("unexpected status at cutoff: %+v", status)
	}
}

func TestBudgetDayRollover(t *testing.T) {
	current := time.Date(2026, 8, 28, 23, 0, 0, 0, time.Local)
	b := NewCallBudget(10, 1.0)
	b.now = func() time.Time { return current }
	b.day = current.Format("2006-01-02")

	for i := 0; i < 10; i++ {
		b.Record()
	}
	if b.Allow() {
		t.Fatal("expected budget exhausted before midnight")
	}

	// Cross local midnight
	current = time.Date(2026, 8, 29, 0, 5, 0, 0, time.Local)
	if !b.Allow() {
		t.Fatal("expected budget reset after local midnight")
	}
	if status := b.Status(); status.Used != 0 {
		t.Errorf("expected used=0 after rollover, got %d", status.Used)
	}
}
