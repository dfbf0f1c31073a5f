package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"earnings-scanner/internal/interfaces"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/store"
	"earnings-scanner/internal/types"
)

// BuyAnalyzer scores steep post-earnings droppers on four independent
// criteria and labels each one with a recommendation.
type BuyAnalyzer struct {
	insider   interfaces.InsiderAnalyzer
	valuation interfaces.ValuationAnalyzer
	analysts  interfaces.AnalystAnalyzer
	cfg       *store.Config
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewBuyAnalyzer creates a buy analyzer over the three sub-analyzers,
// pacing candidate fan-out at the configured delay.
func NewBuyAnalyzer(
	insider interfaces.InsiderAnalyzer,
	valuation interfaces.ValuationAnalyzer,
	analysts interfaces.AnalystAnalyzer,
	cfg *store.Config,
) *BuyAnalyzer {
	return &BuyAnalyzer{
		insider:   insider,
		valuation: valuation,
		analysts:  analysts,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Every(time.Duration(cfg.Buy.CandidateDelayMs)*time.Millisecond), 1),
		now:       time.Now,
	}
}

// SelectDroppers filters candidates to those that fell past the drop
// threshold and caps the list at the configured maximum, steepest first.
func (a *BuyAnalyzer) SelectDroppers(candidates []types.OpportunityCandidate) []types.OpportunityCandidate {
	var out []types.OpportunityCandidate
	for _, c := range candidates {
		if c.ChangePercent < a.cfg.Buy.DropThresholdPct {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChangePercent < out[j].ChangePercent
	})
	if len(out) > a.cfg.Buy.MaxCandidates {
		out = out[:a.cfg.Buy.MaxCandidates]
	}
	return out
}

// Analyze scores each selected dropper. Candidates are started steepest
// first, paced by the limiter; the three sub-analyses of one candidate run
// concurrently. Results come back sorted by criteria met, ties keeping the
// steeper drop first.
func (a *BuyAnalyzer) Analyze(ctx context.Context, candidates []types.OpportunityCandidate) []types.BuyOpportunity {
	selected := a.SelectDroppers(candidates)
	if len(selected) == 0 {
		return nil
	}

	timer := logger.StartOperation(ctx, "analyze_buy_opportunities", "candidates", len(selected))
	ctx = timer.GetContext()

	results := make([]types.BuyOpportunity, len(selected))
	var wg sync.WaitGroup

	for i, candidate := range selected {
		if err := a.limiter.Wait(ctx); err != nil {
			logger.Warn(ctx, "Buy analysis cancelled", "error", err)
			results = results[:i]
			break
		}

		wg.Add(1)
		go func(i int, c types.OpportunityCandidate) {
			defer wg.Done()
			results[i] = a.analyzeOne(ctx, c)
		}(i, candidate)
	}

	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CriteriaMetCount > results[j].CriteriaMetCount
	})

	timer.End("scored", len(results))
	return results
}

func (a *BuyAnalyzer) analyzeOne(ctx context.Context, c types.OpportunityCandidate) types.BuyOpportunity {
	var (
		wg        sync.WaitGroup
		insider   types.InsiderActivity
		valuation types.ValuationComparison
		analysts  types.AnalystView
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		insider = a.insider.Analyze(ctx, c.Ticker)
	}()
	go func() {
		defer wg.Done()
		valuation = a.valuation.Analyze(ctx, c.Ticker)
	}()
	go func() {
		defer wg.Done()
		analysts = a.analysts.Analyze(ctx, c.Ticker)
	}()
	wg.Wait()

	criteria := types.Criteria{
		DroppedBeyondThreshold: c.ChangePercent < a.cfg.Buy.DropThresholdPct,
		InsiderBuying:          insider.Signal == types.SignalPositive,
		Undervalued:            valuation.IsUndervalued,
		PositiveAnalysts:       analysts.IsPositive,
	}
	met := criteria.MetCount()
	rec := Recommend(met, a.cfg.Buy.StrongBuyMinMet, a.cfg.Buy.ModerateBuyMinMet)

	logger.Recommendation(ctx, c.Ticker, string(rec), met,
		"change_percent", c.ChangePercent,
		"insider", string(insider.Signal),
		"undervalued", valuation.IsUndervalued,
		"analysts_positive", analysts.IsPositive)

	return types.BuyOpportunity{
		Candidate:        c,
		Insider:          insider,
		Valuation:        valuation,
		Analysts:         analysts,
		Criteria:         criteria,
		CriteriaMetCount: met,
		Recommendation:   rec,
		AnalyzedAt:       a.now(),
	}
}

// Recommend maps a criteria-met count to a recommendation label.
func Recommend(met, strongMin, moderateMin int) types.Recommendation {
	switch {
	case met >= strongMin:
		return types.StrongBuy
	case met >= moderateMin:
		return types.ModerateBuy
	default:
		return types.Avoid
	}
}
