package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"earnings-scanner/internal/interfaces"
	"earnings-scanner/internal/types"
)

type fakeInsiderSource struct {
	txns []interfaces.InsiderTransaction
	err  error
}

func (f *fakeInsiderSource) Transactions(ctx context.Context, symbol string, from, to time.Time) ([]interfaces.InsiderTransaction, error) {
	return f.txns, f.err
}

type fakePrices struct {
	price float64
	ok    bool
	calls int
}

func (f *fakePrices) CurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	f.calls++
	return f.price, f.ok
}

func newInsider(src *fakeInsiderSource, prices *fakePrices) *InsiderAnalysis {
	return NewInsiderAnalysis(src, prices, 3)
}

func TestInsiderValueDominance(t *testing.T) {
	src := &fakeInsiderSource{txns: []interfaces.InsiderTransaction{
		{TransactionCode: "P", Shares: 1000, Price: 100}, // 100k buy
		{TransactionCode: "S", Shares: 500, Price: 100},  // 50k sell
	}}

	result := newInsider(src, &fakePrices{}).Analyze(context.Background(), "AAPL")

	if result.Signal != types.SignalPositive {
		t.Errorf("expected positive signal, got %s", result.Signal)
	}
	if result.BuyValue != 100000 || result.SellValue != 50000 {
		t.Errorf("unexpected values: buy=%.0f sell=%.0f", result.BuyValue, result.SellValue)
	}
	if !result.HasValidPrices || result.UsedPriceFallback {
		t.Errorf("unexpected price flags: %+v", result)
	}
}

func TestInsiderMarginKeepsNeutral(t *testing.T) {
	// 110k buys vs 100k sells: inside the 20% margin
	src := &fakeInsiderSource{txns: []interfaces.InsiderTransaction{
		{TransactionCode: "P", Shares: 1100, Price: 100},
		{TransactionCode: "S", Shares: 1000, Price: 100},
	}}

	result := newInsider(src, &fakePrices{}).Analyze(context.Background(), "AAPL")
	if result.Signal != types.SignalNeutral {
		t.Errorf("expected neutral signal inside margin, got %s", result.Signal)
	}
}

func TestInsiderSellDominance(t *testing.T) {
	src := &fakeInsiderSource{txns: []interfaces.InsiderTransaction{
		{TransactionCode: "P", Shares: 100, Price: 50},
		{TransactionCode: "D", Shares: 5000, Price: 50},
	}}

	result := newInsider(src, &fakePrices{}).Analyze(context.Background(), "AAPL")
	if result.Signal != types.SignalNegative {
		t.Errorf("expected negative signal, got %s", result.Signal)
	}
}

func TestInsiderPriceFallback(t *testing.T) {
	// Grant with no reported price gets valued at the current market price.
	src := &fakeInsiderSource{txns: []interfaces.InsiderTransaction{
		{TransactionCode: "A", Shares: 2000, Price: 0},
		{TransactionCode: "S", Shares: 100, Price: 90},
	}}
	prices := &fakePrices{price: 90, ok: true}

	result := newInsider(src, prices).Analyze(context.Background(), "AAPL")

	if !result.UsedPriceFallback {
		t.Error("expected price fallback to be flagged")
	}
	if result.BuyValue != 180000 {
		t.Errorf("expected grant valued at market, got %.0f", result.BuyValue)
	}
	if result.Signal != types.SignalPositive {
		t.Errorf("expected positive signal, got %s", result.Signal)
	}
	if prices.calls != 1 {
		t.Errorf("expected one price lookup, got %d", prices.calls)
	}
}

func TestInsiderShareCountFallback(t *testing.T) {
	// No usable prices anywhere: compare share counts instead.
	src := &fakeInsiderSource{txns: []interfaces.InsiderTransaction{
		{TransactionCode: "P", Shares: 5000, Price: 0},
		{TransactionCode: "S", Shares: 1000, Price: 0},
	}}

	result := newInsider(src, &fakePrices{ok: false}).Analyze(context.Background(), "AAPL")

	if result.HasValidPrices {
		t.Error("expected no valid prices")
	}
	if result.Signal != types.SignalPositive {
		t.Errorf("expected positive signal from share counts, got %s", result.Signal)
	}
}

func TestInsiderIgnoresUnknownCodes(t *testing.T) {
	src := &fakeInsiderSource{txns: []interfaces.InsiderTransaction{
		{TransactionCode: "M", Shares: 99999, Price: 100}, // option exercise, ignored
		{TransactionCode: "P", Shares: 100, Price: 100},
	}}

	result := newInsider(src, &fakePrices{}).Analyze(context.Background(), "AAPL")
	if result.TotalBuyShares != 100 || result.TotalSellShares != 0 {
		t.Errorf("unexpected share totals: %+v", result)
	}
}

func TestInsiderNegativeSharesNormalized(t *testing.T) {
	// Some vendors report sells as negative deltas.
	src := &fakeInsiderSource{txns: []interfaces.InsiderTransaction{
		{TransactionCode: "S", Shares: -2000, Price: 50},
	}}

	result := newInsider(src, &fakePrices{}).Analyze(context.Background(), "AAPL")
	if result.TotalSellShares != 2000 || result.SellValue != 100000 {
		t.Errorf("unexpected normalization: %+v", result)
	}
}

func TestInsiderSourceFailureIsNeutral(t *testing.T) {
	src := &fakeInsiderSource{err: fmt.Errorf("upstream down")}
	result := newInsider(src, &fakePrices{}).Analyze(context.Background(), "AAPL")
	if result.Signal != types.SignalNeutral {
		t.Errorf("expected neutral on failure, got %s", result.Signal)
	}
}

func TestInsiderNoTransactionsIsNeutral(t *testing.T) {
	result := newInsider(&fakeInsiderSource{}, &fakePrices{}).Analyze(context.Background(), "AAPL")
	if result.Signal != types.SignalNeutral {
		t.Errorf("expected neutral with no transactions, got %s", result.Signal)
	}
}
