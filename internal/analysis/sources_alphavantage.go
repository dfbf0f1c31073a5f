package analysis

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"earnings-scanner/internal/api"
	"earnings-scanner/internal/interfaces"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageOverview is the valuation fallback: the OVERVIEW endpoint
// carries a trailing P/E and sector without touching the primary vendor's
// call budget.
type AlphaVantageOverview struct {
	client *api.Client
	apiKey string
}

// NewAlphaVantageOverview creates the fallback source.
// The API key is read from ALPHA_VANTAGE_API_KEY.
func NewAlphaVantageOverview() *AlphaVantageOverview {
	return &AlphaVantageOverview{
		client: api.NewClient(api.WithTimeout(20*time.Second), api.WithLogging(true)),
		apiKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
	}
}

// CompanyPE returns the trailing P/E and sector from the company overview.
// Numbers arrive as strings, sector names in caps.
func (s *AlphaVantageOverview) CompanyPE(ctx context.Context, symbol string) (float64, string, bool) {
	if s.apiKey == "" {
		return 0, "", false
	}

	endpoint := fmt.Sprintf("%s?function=OVERVIEW&symbol=%s&apikey=%s",
		alphaVantageBaseURL, url.QueryEscape(symbol), url.QueryEscape(s.apiKey))

	resp, err := s.client.GET(ctx, endpoint)
	if err != nil {
		return 0, "", false
	}

	var overview struct {
		PERatio string `json:"PERatio"`
		Sector  string `json:"Sector"`
	}
	if err := resp.ParseJSON(&overview); err != nil {
		return 0, "", false
	}

	pe, err := strconv.ParseFloat(overview.PERatio, 64)
	if err != nil || pe <= 0 || overview.Sector == "" {
		return 0, "", false
	}

	return pe, normalizeSector(overview.Sector), true
}

// SectorPeerPE answers from the static sector table only; this source has no
// live sector ratios.
func (s *AlphaVantageOverview) SectorPeerPE(ctx context.Context, sector string) (float64, bool) {
	if pe, ok := staticSectorPE[sector]; ok {
		return pe, true
	}
	return defaultSectorPE, true
}

// normalizeSector maps an all-caps sector label to the capitalization the
// sector tables use ("LIFE SCIENCES" stays unknown and falls to the default).
func normalizeSector(sector string) string {
	words := strings.Fields(strings.ToLower(sector))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ValuationChain tries each valuation source in order, first hit wins.
type ValuationChain struct {
	sources []interfaces.ValuationSource
}

// NewValuationChain builds an ordered valuation fallback chain.
func NewValuationChain(sources ...interfaces.ValuationSource) *ValuationChain {
	return &ValuationChain{sources: sources}
}

func (c *ValuationChain) CompanyPE(ctx context.Context, symbol string) (float64, string, bool) {
	for _, s := range c.sources {
		if pe, sector, ok := s.CompanyPE(ctx, symbol); ok {
			return pe, sector, ok
		}
	}
	return 0, "", false
}

func (c *ValuationChain) SectorPeerPE(ctx context.Context, sector string) (float64, bool) {
	for _, s := range c.sources {
		if pe, ok := s.SectorPeerPE(ctx, sector); ok {
			return pe, ok
		}
	}
	return 0, false
}
