package analysis

import (
	"context"

	"earnings-scanner/internal/interfaces"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/types"
)

// undervaluedFactor is how far below the sector average a company's trailing
// P/E must sit to count as undervalued.
const undervaluedFactor = 0.8

// ValuationAnalysis compares a company's trailing P/E against its sector
// average. Missing or non-positive ratios never flag undervaluation.
type ValuationAnalysis struct {
	source interfaces.ValuationSource
}

// NewValuationAnalysis creates the valuation sub-analyzer.
func NewValuationAnalysis(source interfaces.ValuationSource) *ValuationAnalysis {
	return &ValuationAnalysis{source: source}
}

// Analyze produces the sector-relative valuation comparison for symbol.
func (a *ValuationAnalysis) Analyze(ctx context.Context, symbol string) types.ValuationComparison {
	result := types.ValuationComparison{Symbol: symbol}

	pe, sector, ok := a.source.CompanyPE(ctx, symbol)
	if !ok || pe <= 0 {
		logger.Debug(ctx, "No usable trailing P/E", "symbol", symbol)
		return result
	}
	result.CompanyPE = pe
	result.Sector = sector

	sectorPE, ok := a.source.SectorPeerPE(ctx, sector)
	if !ok || sectorPE <= 0 {
		logger.Debug(ctx, "No usable sector P/E", "symbol", symbol, "sector", sector)
		return result
	}
	result.SectorPE = sectorPE

	result.IsUndervalued = pe < undervaluedFactor*sectorPE
	return result
}
