package quotes

import (
	"sync"
	"time"
)

// CallBudget tracks outbound calls against a per-day quota. The counter is
// scoped to the local calendar day and resets on the first check after local
// midnight. Allow denies before the quota is fully spent so a handful of
// calls stay in reserve for retries.
type CallBudget struct {
	mu           sync.Mutex
	limit        int
	stopFraction float64
	used         int
	day          string
	now          func() time.Time
}

// BudgetStatus is a point-in-time snapshot for status reporting.
type BudgetStatus struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Cutoff    int  `json:"cutoff"`
	Remaining int  `json:"remaining"`
	Exhausted bool `json:"exhausted"`
}

// NewCallBudget creates a budget of limit calls per local day, denying once
// stopFraction of the limit is consumed.
func NewCallBudget(limit int, stopFraction float64) *CallBudget {
	b := &CallBudget{
		limit:        limit,
		stopFraction: stopFraction,
		now:          time.Now,
	}
	b.day = b.now().Format("2006-01-02")
	return b
}

func (b *CallBudget) cutoff() int {
	return int(float64(b.limit) * b.stopFraction)
}

// rollover resets the counter when the local day has changed.
// Callers must hold b.mu.
func (b *CallBudget) rollover() {
	today := b.now().Format("2006-01-02")
	if today != b.day {
		b.day = today
		b.used = 0
	}
}

// Allow reports whether another call fits under today's cutoff.
func (b *CallBudget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.used < b.cutoff()
}

// Record counts one outbound call against today's budget.
func (b *CallBudget) Record() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	b.used++
}

// Status returns the current budget snapshot.
func (b *CallBudget) Status() BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	remaining := b.cutoff() - b.used
	if remaining < 0 {
		remaining = 0
	}
	return BudgetStatus{
		Used:      b.used,
		Limit:     b.limit,
		Cutoff:    b.cutoff(),
		Remaining: remaining,
		Exhausted: b.used >= b.cutoff(),
	}
}
