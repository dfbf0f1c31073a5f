package analysis

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"earnings-scanner/internal/api"
	"earnings-scanner/internal/interfaces"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// insiderResponse is the insider-transactions wire format. Change is the
// signed share delta of the transaction; Share is the position afterwards.
type insiderResponse struct {
	Data []struct {
		Name             string  `json:"name"`
		Change           int64   `json:"change"`
		TransactionDate  string  `json:"transactionDate"`
		TransactionCode  string  `json:"transactionCode"`
		TransactionPrice float64 `json:"transactionPrice"`
	} `json:"data"`
}

// FinnhubInsiderSource serves insider transactions from the Finnhub
// insider-transactions endpoint.
type FinnhubInsiderSource struct {
	client *api.Client
	apiKey string
}

// NewFinnhubInsiderSource creates the source.
// The API key is read from FINNHUB_API_KEY.
func NewFinnhubInsiderSource() *FinnhubInsiderSource {
	return &FinnhubInsiderSource{
		client: api.NewClient(api.WithTimeout(20*time.Second), api.WithLogging(true)),
		apiKey: os.Getenv("FINNHUB_API_KEY"),
	}
}

// Transactions returns the reported insider trades for symbol in [from, to].
func (s *FinnhubInsiderSource) Transactions(ctx context.Context, symbol string, from, to time.Time) ([]interfaces.InsiderTransaction, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("FINNHUB_API_KEY not set")
	}

	endpoint := fmt.Sprintf("%s/stock/insider-transactions?symbol=%s&from=%s&to=%s&token=%s",
		finnhubBaseURL,
		url.QueryEscape(symbol),
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
		url.QueryEscape(s.apiKey))

	resp, err := s.client.GET(ctx, endpoint, api.FinnhubHeaders())
	if err != nil {
		return nil, err
	}

	var wire insiderResponse
	if err := resp.ParseJSON(&wire); err != nil {
		return nil, err
	}

	txns := make([]interfaces.InsiderTransaction, 0, len(wire.Data))
	for _, row := range wire.Data {
		txns = append(txns, interfaces.InsiderTransaction{
			Date:            row.TransactionDate,
			Name:            row.Name,
			Shares:          row.Change,
			Price:           row.TransactionPrice,
			TransactionCode: row.TransactionCode,
		})
	}
	return txns, nil
}
