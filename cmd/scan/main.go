package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"earnings-scanner/internal/analysis"
	"earnings-scanner/internal/cache"
	"earnings-scanner/internal/earnings"
	"earnings-scanner/internal/history"
	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/quotes"
	"earnings-scanner/internal/scanner"
	"earnings-scanner/internal/store"
	"earnings-scanner/internal/types"
	"earnings-scanner/internal/universe"
)

// scan runs one universe scan from the command line and prints the report,
// optionally scoring buy opportunities on top.
func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	universeID := flag.String("universe", "", "universe to scan (default from config)")
	start := flag.String("start", "", "scan as of this date, YYYY-MM-DD (default today)")
	withBuy := flag.Bool("buy", false, "score buy opportunities for steep droppers")
	asJSON := flag.Bool("json", false, "emit the report as JSON")
	flag.Parse()

	if err := run(*configPath, *universeID, *start, *withBuy, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, universeID, start string, withBuy, asJSON bool) error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Shutdown(shutdownCtx)
	}()

	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if universeID == "" {
		universeID = cfg.Scan.DefaultUniverse
	}

	var asOf time.Time
	if start != "" {
		asOf, err = time.Parse("2006-01-02", start)
		if err != nil {
			return fmt.Errorf("invalid start date %q: %w", start, err)
		}
	}

	st := cache.NewTwoTier(cache.NewFileStore(cfg.Cache.Dir))
	budget := quotes.NewCallBudget(cfg.Quotes.DailyCallLimit, cfg.Quotes.BudgetStopFraction)
	resolver := quotes.NewResolver(st, budget,
		time.Duration(cfg.Quotes.PrimaryDelayMs)*time.Millisecond,
		time.Duration(cfg.Quotes.FallbackDelayMs)*time.Millisecond)

	sc := scanner.New(
		universe.NewProvider(st),
		earnings.NewProvider(st),
		resolver,
		history.NewProvider(st),
		cfg,
	)

	result, err := sc.Scan(ctx, universeID, asOf)
	if err != nil {
		return err
	}

	var opportunities []types.BuyOpportunity
	if withBuy {
		fundamentals := analysis.NewFMPSources(st, budget)
		buyer := analysis.NewBuyAnalyzer(
			analysis.NewInsiderAnalysis(analysis.NewFinnhubInsiderSource(), resolver, cfg.Buy.InsiderLookbackMon),
			analysis.NewValuationAnalysis(analysis.NewValuationChain(fundamentals, analysis.NewAlphaVantageOverview())),
			analysis.NewAnalystAnalysis(fundamentals, resolver),
			cfg,
		)
		opportunities = buyer.Analyze(ctx, result.Candidates)
	}

	if asJSON {
		out := struct {
			*scanner.ScanResult
			Opportunities []types.BuyOpportunity `json:"opportunities,omitempty"`
		}{result, opportunities}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printReport(result, opportunities)
	return nil
}

func printReport(result *scanner.ScanResult, opportunities []types.BuyOpportunity) {
	fmt.Printf("%s: %d reporters with usable data\n\n", result.Universe.Name, len(result.Candidates))

	fmt.Println(result.Universe.LosersTitle)
	if len(result.Losers) == 0 {
		fmt.Println("  (none)")
	}
	for _, c := range result.Losers {
		fmt.Printf("  %-6s %-30s %8.2f -> %8.2f  %+.2f%%\n",
			c.Ticker, c.Name, c.PriceBeforeEarnings, c.PriceNow, c.ChangePercent)
	}

	fmt.Println()
	fmt.Println(result.Universe.GainersTitle)
	if len(result.Gainers) == 0 {
		fmt.Println("  (none)")
	}
	for _, c := range result.Gainers {
		fmt.Printf("  %-6s %-30s %8.2f -> %8.2f  %+.2f%%\n",
			c.Ticker, c.Name, c.PriceBeforeEarnings, c.PriceNow, c.ChangePercent)
	}

	if opportunities != nil {
		fmt.Println()
		fmt.Println("Buy opportunities")
		for _, o := range opportunities {
			fmt.Printf("  %-6s %+.2f%%  insider %s  valuation %v  analysts %s  %d/4  %s\n",
				o.Candidate.Ticker,
				o.Candidate.ChangePercent,
				o.Insider.Signal.Emoji(),
				o.Valuation.IsUndervalued,
				o.Analysts.Sentiment.SentimentEmoji(),
				o.CriteriaMetCount,
				o.Recommendation)
		}
	}

	d := result.Discards
	fmt.Printf("\nDiscards: %d invalid date, %d no quote, %d no market cap, %d below floor, %d no history, %d no pre-earnings close\n",
		d.InvalidDate, d.NoQuote, d.NoMarketCap, d.BelowFloor, d.NoHistory, d.NoPriceBefore)
}
