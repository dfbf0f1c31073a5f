package main

import (
	"context"
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
	"earnings-scanner/internal/server"
	"earnings-scanner/internal/store"
	"earnings-scanner/internal/universe"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env is optional; real deployments set the environment directly.
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

	srv := server.New(buildScanner(cfg))
	logger.Info(ctx, "Starting earnings scanner", "port", cfg.Server.Port, "default_universe", cfg.Scan.DefaultUniverse)
	return srv.ListenAndServe(ctx)
}

// buildScanner wires the provider graph: one durable cache with a memory
// tier in front, one shared call budget, and the analyzer stack on top.
func buildScanner(cfg *store.Config) (server.Scanner, server.BuyAnalyzer, server.StatusReporter, *store.Config) {
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

	fundamentals := analysis.NewFMPSources(st, budget)
	buyer := analysis.NewBuyAnalyzer(
		analysis.NewInsiderAnalysis(analysis.NewFinnhubInsiderSource(), resolver, cfg.Buy.InsiderLookbackMon),
		analysis.NewValuationAnalysis(analysis.NewValuationChain(fundamentals, analysis.NewAlphaVantageOverview())),
		analysis.NewAnalystAnalysis(fundamentals, resolver),
		cfg,
	)

	return sc, buyer, resolver, cfg
}
