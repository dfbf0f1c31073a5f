package analysis

import (
	"context"

	"earnings-scanner/internal/interfaces"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

const (
	// Sentiment thresholds over the rating mix.
	buySentimentPct  = 60
	sellSentimentPct = 40

	// maxPriceTargets caps how many recent targets feed the average.
	maxPriceTargets = 20
)

// AnalystAnalysis aggregates rating counts into a sentiment and averages
// recent price targets into an upside estimate.
type AnalystAnalysis struct {
	source interfaces.AnalystSource
	prices interfaces.PriceLookup
}

// NewAnalystAnalysis creates the analyst sub-analyzer.
func NewAnalystAnalysis(source interfaces.AnalystSource, prices interfaces.PriceLookup) *AnalystAnalysis {
	return &AnalystAnalysis{source: source, prices: prices}
}

// Analyze produces the analyst view for symbol. Missing data leaves the
// sentiment neutral and IsPositive false.
func (a *AnalystAnalysis) Analyze(ctx context.Context, symbol string) types.AnalystView {
	result := types.AnalystView{Symbol: symbol, Sentiment: types.SignalNeutral}

	buy, hold, sell, ok := a.source.Ratings(ctx, symbol)
	if !ok {
		logger.Debug(ctx, "No analyst ratings", "symbol", symbol)
		return result
	}
	result.BuyRatings = buy
	result.HoldRatings = hold
	result.SellRatings = sell

	total := buy + hold + sell
	if total > 0 {
		buyPct := float64(buy) / float64(total) * 100
		sellPct := float64(sell) / float64(total) * 100
		switch {
		case buyPct > buySentimentPct:
			result.Sentiment = types.SignalPositive
		case sellPct > sellSentimentPct:
			result.Sentiment = types.SignalNegative
		}
	}

	if targets, ok := a.source.PriceTargets(ctx, symbol); ok {
		sum, n := 0.0, 0
		for _, t := range targets {
			if t <= 0 {
				continue
			}
			sum += t
			n++
			if n == maxPriceTargets {
				break
			}
		}
		if n > 0 {
			result.AvgPriceTarget = sum / float64(n)
			if price, ok := a.prices.CurrentPrice(ctx, symbol); ok && price > 0 {
				result.CurrentPrice = price
				result.UpsidePercent = (result.AvgPriceTarget - price) / price * 100
			}
		}
	}

	// Positive only when sentiment is green and buys outnumber everything
	// else combined.
	result.IsPositive = result.Sentiment == types.SignalPositive && buy > hold+sell
	return result
}
