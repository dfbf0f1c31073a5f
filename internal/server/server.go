package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"earnings-scanner/internal/logger"
	"earnings-scanner/internal/quotes"
	"earnings-scanner/internal/scanner"
	"earnings-scanner/internal/store"
	"earnings-scanner/internal/types"
	"earnings-scanner/internal/universe"
)

// Scanner is the scan surface the server needs.
type Scanner interface {
	Scan(ctx context.Context, universeID string, asOf time.Time) (*scanner.ScanResult, error)
	UpcomingEarnings(ctx context.Context, universeID string) ([]types.UpcomingEarning, error)
}

// BuyAnalyzer scores scan candidates into buy opportunities.
type BuyAnalyzer interface {
	Analyze(ctx context.Context, candidates []types.OpportunityCandidate) []types.BuyOpportunity
}

// StatusReporter exposes the quote chain and budget state.
type StatusReporter interface {
	Status() quotes.ResolverStatus
}

// Server serves scan reports as HTML pages or JSON, negotiated on the
// Accept header.
type Server struct {
	scanner Scanner
	buyer   BuyAnalyzer
	status  StatusReporter
	cfg     *store.Config
	router  *mux.Router
}

// New creates the HTTP server.
func New(sc Scanner, buyer BuyAnalyzer, status StatusReporter, cfg *store.Config) *Server {
	s := &Server{
		scanner: sc,
		buyer:   buyer,
		status:  status,
		cfg:     cfg,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/buy-opportunities", s.handleBuyOpportunities).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleReport).Methods(http.MethodGet)
	s.router.HandleFunc("/{universe}", s.handleReport).Methods(http.MethodGet)
}

// Handler returns the fully wrapped handler, CORS included.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(s.router)
}

// ListenAndServe runs the server on the configured port until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // cold scans fan out to several vendors
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", s.cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// reportPayload is the JSON shape of a scan report. Opportunities is only
// populated when the caller opts in to buy analysis.
type reportPayload struct {
	Universe      types.Universe               `json:"universe"`
	Candidates    []types.OpportunityCandidate `json:"candidates"`
	Gainers       []types.OpportunityCandidate `json:"gainers"`
	Losers        []types.OpportunityCandidate `json:"losers"`
	Upcoming      []types.UpcomingEarning      `json:"upcoming"`
	Opportunities []types.BuyOpportunity       `json:"opportunities,omitempty"`
	Discards      scanner.DiscardCounters      `json:"discards"`
	GeneratedAt   time.Time                    `json:"generated_at"`
}

// parseStart reads the optional start date query parameter. Zero means "as
// of now".
func parseStart(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("start")
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	universeID := mux.Vars(r)["universe"]
	if universeID == "" {
		universeID = s.cfg.Scan.DefaultUniverse
	}

	if _, err := universe.Lookup(universeID); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	asOf, err := parseStart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start date: %w", err))
		return
	}

	ctx := r.Context()
	result, err := s.scanner.Scan(ctx, universeID, asOf)
	if err != nil {
		logger.ErrorWithErr(ctx, "Scan failed", err, "universe", universeID)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	upcoming, err := s.scanner.UpcomingEarnings(ctx, universeID)
	if err != nil {
		logger.Warn(ctx, "Upcoming earnings unavailable", "universe", universeID, "error", err)
	}

	payload := reportPayload{
		Universe:    result.Universe,
		Candidates:  result.Candidates,
		Gainers:     result.Gainers,
		Losers:      result.Losers,
		Upcoming:    upcoming,
		Discards:    result.Discards,
		GeneratedAt: result.GeneratedAt,
	}

	// Buy analysis multiplies the scan's upstream calls, so it is opt-in.
	if r.URL.Query().Get("buyAnalysis") == "true" {
		payload.Opportunities = s.buyer.Analyze(ctx, result.Candidates)
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, payload)
		return
	}
	renderReport(w, payload)
}

// buyPayload is the JSON shape of the buy-opportunity endpoint.
type buyPayload struct {
	Universe      types.Universe         `json:"universe"`
	Opportunities []types.BuyOpportunity `json:"opportunities"`
	TotalAnalyzed int                    `json:"total_analyzed"`
	DroppedStocks int                    `json:"dropped_stocks"`
	GeneratedAt   time.Time              `json:"generated_at"`
}

func (s *Server) handleBuyOpportunities(w http.ResponseWriter, r *http.Request) {
	universeID := r.URL.Query().Get("index")
	if universeID == "" {
		universeID = r.URL.Query().Get("universe")
	}
	if universeID == "" {
		universeID = s.cfg.Scan.DefaultUniverse
	}

	if _, err := universe.Lookup(universeID); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	asOf, err := parseStart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start date: %w", err))
		return
	}

	ctx := r.Context()
	result, err := s.scanner.Scan(ctx, universeID, asOf)
	if err != nil {
		logger.ErrorWithErr(ctx, "Scan failed", err, "universe", universeID)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	dropped := 0
	for _, c := range result.Candidates {
		if c.ChangePercent < s.cfg.Buy.DropThresholdPct {
			dropped++
		}
	}

	payload := buyPayload{
		Universe:      result.Universe,
		Opportunities: s.buyer.Analyze(ctx, result.Candidates),
		TotalAnalyzed: len(result.Candidates),
		DroppedStocks: dropped,
		GeneratedAt:   result.GeneratedAt,
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, payload)
		return
	}
	renderBuyOpportunities(w, payload.Universe, payload.Opportunities)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
