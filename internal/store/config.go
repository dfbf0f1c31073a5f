package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Cache struct {
		Dir string `yaml:"dir"`
	} `yaml:"cache"`

	Scan struct {
		DefaultUniverse    string `yaml:"default_universe"`
		EarningsWindowDays int    `yaml:"earnings_window_days"`
		HistoryLookbackDays int   `yaml:"history_lookback_days"`
		UpcomingWindowDays int    `yaml:"upcoming_window_days"`
	} `yaml:"scan"`

	Quotes struct {
		DailyCallLimit     int     `yaml:"daily_call_limit"`
		BudgetStopFraction float64 `yaml:"budget_stop_fraction"`
		PrimaryDelayMs     int     `yaml:"primary_delay_ms"`
		FallbackDelayMs    int     `yaml:"fallback_delay_ms"`
	} `yaml:"quotes"`

	Buy struct {
		DropThresholdPct   float64 `yaml:"drop_threshold_pct"`
		MaxCandidates      int     `yaml:"max_candidates"`
		StrongBuyMinMet    int     `yaml:"strong_buy_min_met"`
		ModerateBuyMinMet  int     `yaml:"moderate_buy_min_met"`
		CandidateDelayMs   int     `yaml:"candidate_delay_ms"`
		InsiderLookbackMon int     `yaml:"insider_lookback_months"`
	} `yaml:"buy"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1-65535, got %d", c.Server.Port)
	}
	if c.Quotes.BudgetStopFraction <= 0 || c.Quotes.BudgetStopFraction > 1 {
		return fmt.Errorf("quotes.budget_stop_fraction must be in (0,1], got %.2f", c.Quotes.BudgetStopFraction)
	}
	if c.Buy.DropThresholdPct >= 0 {
		return fmt.Errorf("buy.drop_threshold_pct must be negative, got %.2f", c.Buy.DropThresholdPct)
	}
	if c.Buy.ModerateBuyMinMet > c.Buy.StrongBuyMinMet {
		return fmt.Errorf("buy.moderate_buy_min_met (%d) cannot exceed buy.strong_buy_min_met (%d)",
			c.Buy.ModerateBuyMinMet, c.Buy.StrongBuyMinMet)
	}
	return nil
}

// DefaultConfig returns the configuration used when no config file is present.
func DefaultConfig() *Config {
	c := &Config{}
	c.Server.Port = 8080
	c.Cache.Dir = "cache/scanner"
	c.Scan.DefaultUniverse = "sp500"
	c.Scan.EarningsWindowDays = 10
	c.Scan.HistoryLookbackDays = 7
	c.Scan.UpcomingWindowDays = 5
	c.Quotes.DailyCallLimit = 250
	c.Quotes.BudgetStopFraction = 0.95
	c.Quotes.PrimaryDelayMs = 50
	c.Quotes.FallbackDelayMs = 80
	c.Buy.DropThresholdPct = -7
	c.Buy.MaxCandidates = 10
	c.Buy.StrongBuyMinMet = 3
	c.Buy.ModerateBuyMinMet = 2
	c.Buy.CandidateDelayMs = 500
	c.Buy.InsiderLookbackMon = 3
	return c
}

// LoadConfig reads the YAML config at path, falling back to defaults when the
// file does not exist. Zero-valued fields are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	d := DefaultConfig()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = d.Cache.Dir
	}
	if c.Scan.DefaultUniverse == "" {
		c.Scan.DefaultUniverse = d.Scan.DefaultUniverse
	}
	if c.Scan.EarningsWindowDays == 0 {
		c.Scan.EarningsWindowDays = d.Scan.EarningsWindowDays
	}
	if c.Scan.HistoryLookbackDays == 0 {
		c.Scan.HistoryLookbackDays = d.Scan.HistoryLookbackDays
	}
	if c.Scan.UpcomingWindowDays == 0 {
		c.Scan.UpcomingWindowDays = d.Scan.UpcomingWindowDays
	}
	if c.Quotes.DailyCallLimit == 0 {
		c.Quotes.DailyCallLimit = d.Quotes.DailyCallLimit
	}
	if c.Quotes.BudgetStopFraction == 0 {
		c.Quotes.BudgetStopFraction = d.Quotes.BudgetStopFraction
	}
	if c.Quotes.PrimaryDelayMs == 0 {
		c.Quotes.PrimaryDelayMs = d.Quotes.PrimaryDelayMs
	}
	if c.Quotes.FallbackDelayMs == 0 {
		c.Quotes.FallbackDelayMs = d.Quotes.FallbackDelayMs
	}
	if c.Buy.DropThresholdPct == 0 {
		c.Buy.DropThresholdPct = d.Buy.DropThresholdPct
	}
	if c.Buy.MaxCandidates == 0 {
		c.Buy.MaxCandidates = d.Buy.MaxCandidates
	}
	if c.Buy.StrongBuyMinMet == 0 {
		c.Buy.StrongBuyMinMet = d.Buy.StrongBuyMinMet
	}
	if c.Buy.ModerateBuyMinMet == 0 {
		c.Buy.ModerateBuyMinMet = d.Buy.ModerateBuyMinMet
	}
	if c.Buy.CandidateDelayMs == 0 {
		c.Buy.CandidateDelayMs = d.Buy.CandidateDelayMs
	}
	if c.Buy.InsiderLookbackMon == 0 {
		c.Buy.InsiderLookbackMon = d.Buy.InsiderLookbackMon
	}
}
