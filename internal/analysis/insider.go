package analysis

import (
	"context"
	"time"

	"earnings-scanner/internal/interfaces"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

// signalMargin is the dominance factor one side must exceed the other by
// before the signal leaves neutral.
const signalMargin = 1.2

// Form 4 transaction codes grouped by direction. Codes not listed (option
// exercises, trust transfers) are ignored entirely.
var (
	buyCodes  = map[string]bool{"P": true, "A": true, "G": true, "J": true, "K": true, "L": true, "W": true, "Z": true}
	sellCodes = map[string]bool{"S": true, "D": true, "F": true, "H": true, "I": true, "T": true, "U": true, "V": true, "X": true, "Y": true}
)

// InsiderAnalysis weighs recent insider buying against selling by dollar
// value, falling back to share counts when no transaction carries a usable
// price.
type InsiderAnalysis struct {
	source        interfaces.InsiderSource
	prices        interfaces.PriceLookup
	lookbackMonth int
	now           func() time.Time
}

// NewInsiderAnalysis creates the insider sub-analyzer.
func NewInsiderAnalysis(source interfaces.InsiderSource, prices interfaces.PriceLookup, lookbackMonths int) *InsiderAnalysis {
	return &InsiderAnalysis{
		source:        source,
		prices:        prices,
		lookbackMonth: lookbackMonths,
		now:           time.Now,
	}
}

// Analyze summarizes insider activity over the trailing lookback window.
// Any failure yields a neutral result.
func (a *InsiderAnalysis) Analyze(ctx context.Context, symbol string) types.InsiderActivity {
	result := types.InsiderActivity{Symbol: symbol, Signal: types.SignalNeutral}

	to := a.now()
	from := to.AddDate(0, -a.lookbackMonth, 0)

	txns, err := a.source.Transactions(ctx, symbol, from, to)
	if err != nil {
		logger.Warn(ctx, "Insider transactions unavailable", "symbol", symbol, "error", err)
		return result
	}
	if len(txns) == 0 {
		return result
	}

	// Reported prices are often zero on grants and plan sales; value those
	// at the current market price so big grants are not invisible.
	currentPrice, hasCurrent := 0.0, false
	for _, t := range txns {
		if t.Price <= 0 {
			currentPrice, hasCurrent = a.prices.CurrentPrice(ctx, symbol)
			break
		}
	}

	for _, t := range txns {
		isBuy := buyCodes[t.TransactionCode]
		isSell := sellCodes[t.TransactionCode]
		if !isBuy && !isSell {
			continue
		}

		shares := t.Shares
		if shares < 0 {
			shares = -shares
		}

		price := t.Price
		if price <= 0 && hasCurrent {
			price = currentPrice
			result.UsedPriceFallback = true
		}

		value := float64(shares) * price
		if price > 0 {
			result.HasValidPrices = true
		}

		if isBuy {
			result.TotalBuyShares += shares
			result.BuyValue += value
		} else {
			result.TotalSellShares += shares
			result.SellValue += value
		}
	}

	if result.HasValidPrices {
		result.Signal = dominantSignal(result.BuyValue, result.SellValue)
	} else {
		result.Signal = dominantSignal(float64(result.TotalBuyShares), float64(result.TotalSellShares))
	}

	return result
}

// dominantSignal compares two magnitudes under the margin rule.
func dominantSignal(buySide, sellSide float64) types.Signal {
	switch {
	case buySide > sellSide*signalMargin && buySide > 0:
		return types.SignalPositive
	case sellSide > buySide*signalMargin && sellSide > 0:
		return types.SignalNegative
	default:
		return types.SignalNeutral
	}
}
