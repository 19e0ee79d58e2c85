package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/scanner"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// chartJSON builds a Yahoo chart payload with a steadily rising close
func chartJSON(t *testing.T, start time.Time, days int, metaPrice float64) []byte {
	t.Helper()

	timestamps := make([]int64, 0, days)
	opens := make([]float64, 0, days)
	highs := make([]float64, 0, days)
	lows := make([]float64, 0, days)
	closes := make([]float64, 0, days)
	volumes := make([]float64, 0, days)
	for i := 0; i < days; i++ {
		price := 100 + 0.5*float64(i)
		timestamps = append(timestamps, start.AddDate(0, 0, i).Unix())
		opens = append(opens, price-0.2)
		highs = append(highs, price+0.4)
		lows = append(lows, price-0.5)
		closes = append(closes, price)
		volumes = append(volumes, float64(10000+i))
	}

	payload := map[string]interface{}{
		"chart": map[string]interface{}{
			"result": []interface{}{
				map[string]interface{}{
					"meta": map[string]interface{}{
						"symbol":             "TEST",
						"currency":           "EUR",
						"regularMarketPrice": metaPrice,
					},
					"timestamp": timestamps,
					"indicators": map[string]interface{}{
						"quote": []interface{}{
							map[string]interface{}{
								"open":   opens,
								"high":   highs,
								"low":    lows,
								"close":  closes,
								"volume": volumes,
							},
						},
					},
				},
			},
			"error": nil,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal chart payload: %v", err)
	}
	return data
}

func emptyChartJSON() []byte {
	return []byte(`{"chart":{"result":[],"error":null}}`)
}

// newAnalysisTestServer builds a Server with only the analysis routes wired,
// backed by a fake chart API
func newAnalysisTestServer(t *testing.T, handler http.HandlerFunc) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	provider := marketdata.NewProvider(marketdata.NewClient(upstream.URL), zerolog.Nop())
	s := &Server{
		router:    gin.New(),
		provider:  provider,
		evaluator: scanner.NewEvaluator(provider, zerolog.Nop()),
		caches:    newAnalysisCaches(nil),
		logger:    zerolog.Nop(),
	}

	analysis := s.router.Group("/api/analysis")
	analysis.GET("/:symbol/history", s.handleHistory)
	analysis.GET("/:symbol/technicals", s.handleTechnicals)
	analysis.GET("/:symbol/seasonality", s.handleSeasonality)
	analysis.GET("/:symbol/zones", s.handleZones)
	analysis.GET("/:symbol/signal", s.handleSignal)
	analysis.GET("/:symbol/price", s.handleLivePrice)
	return s
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func fixedChartHandler(t *testing.T, days int) http.HandlerFunc {
	start := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	body := chartJSON(t, start, days, 119.5)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func TestHandleHistoryReturnsBars(t *testing.T) {
	s := newAnalysisTestServer(t, fixedChartHandler(t, 40))

	w := doRequest(t, s, "/api/analysis/enel/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		History []struct {
			Date  string  `json:"date"`
			Open  float64 `json:"open"`
			Close float64 `json:"close"`
		} `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.History) != 40 {
		t.Fatalf("len(history) = %d, want 40", len(resp.History))
	}

	first := resp.History[0]
	if _, err := time.Parse("2006-01-02", first.Date); err != nil {
		t.Errorf("date %q not in YYYY-MM-DD form: %v", first.Date, err)
	}
	if first.Open != 99.8 {
		t.Errorf("first open = %v, want 99.8", first.Open)
	}
	last := resp.History[len(resp.History)-1]
	if last.Close != 119.5 {
		t.Errorf("last close = %v, want 119.5", last.Close)
	}
}

func TestHandleHistoryUnknownSymbol(t *testing.T) {
	s := newAnalysisTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(emptyChartJSON())
	})

	w := doRequest(t, s, "/api/analysis/nope/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"history":[]}` {
		t.Errorf("body = %s, want empty history", got)
	}
}

func TestHandleTechnicalsShape(t *testing.T) {
	s := newAnalysisTestServer(t, fixedChartHandler(t, 60))

	w := doRequest(t, s, "/api/analysis/enel/technicals")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Overall        string            `json:"overall"`
		MovingAverages []json.RawMessage `json:"movingAveragesSummary"`
		Oscillators    []json.RawMessage `json:"oscillatorsSummary"`
		MASignal       string            `json:"maSignal"`
		OscSignal      string            `json:"oscSignal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Overall == "" || resp.MASignal == "" || resp.OscSignal == "" {
		t.Errorf("missing summary fields: %+v", resp)
	}
	if len(resp.MovingAverages) == 0 {
		t.Error("movingAveragesSummary is empty")
	}
	if len(resp.Oscillators) == 0 {
		t.Error("oscillatorsSummary is empty")
	}
}

func TestHandleSeasonalityInsufficientData(t *testing.T) {
	s := newAnalysisTestServer(t, fixedChartHandler(t, 40))

	w := doRequest(t, s, "/api/analysis/enel/seasonality")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["error"] != "Dati insufficienti" {
		t.Errorf("error = %q, want Dati insufficienti", resp["error"])
	}
}

func TestHandleZones(t *testing.T) {
	s := newAnalysisTestServer(t, fixedChartHandler(t, 40))

	// Malformed overrides fall back to the timeframe defaults
	w := doRequest(t, s, "/api/analysis/enel/zones?strength=abc&min_pct=zz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Ticker       string  `json:"ticker"`
		CurrentPrice float64 `json:"current_price"`
		Zones        struct {
			Support    []json.RawMessage `json:"support"`
			Resistance []json.RawMessage `json:"resistance"`
		} `json:"zones"`
		MarketState struct {
			State string `json:"state"`
		} `json:"market_state"`
		LastUpdate string `json:"last_update"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Ticker != "ENEL" {
		t.Errorf("ticker = %q, want ENEL", resp.Ticker)
	}
	if resp.CurrentPrice != 119.5 {
		t.Errorf("current_price = %v, want 119.5", resp.CurrentPrice)
	}
	if resp.MarketState.State == "" {
		t.Error("market_state.state is empty")
	}
	if _, err := time.Parse(lastUpdateFormat, resp.LastUpdate); err != nil {
		t.Errorf("last_update %q not parseable: %v", resp.LastUpdate, err)
	}
}

func TestHandleSignal(t *testing.T) {
	s := newAnalysisTestServer(t, fixedChartHandler(t, 40))

	w := doRequest(t, s, "/api/analysis/enel/signal?useTech=true")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Symbol       string  `json:"symbol"`
		Timeframe    string  `json:"timeframe"`
		CurrentPrice float64 `json:"current_price"`
		Signal       struct {
			Label    string  `json:"label"`
			ScorePct float64 `json:"scorePct"`
		} `json:"signal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Symbol != "ENEL" {
		t.Errorf("symbol = %q, want ENEL", resp.Symbol)
	}
	if resp.Timeframe != "1d" {
		t.Errorf("timeframe = %q, want 1d", resp.Timeframe)
	}
	if resp.Signal.Label == "" {
		t.Error("signal label is empty")
	}
	if resp.Signal.ScorePct < 0 || resp.Signal.ScorePct > 100 {
		t.Errorf("scorePct = %v, want within [0,100]", resp.Signal.ScorePct)
	}

	// Second request hits the response cache and must match
	w2 := doRequest(t, s, "/api/analysis/enel/signal?useTech=true")
	if w2.Code != http.StatusOK {
		t.Fatalf("cached status = %d, want 200", w2.Code)
	}
	if w.Body.String() != w2.Body.String() {
		t.Error("cached response differs from original")
	}
}

func TestHandleLivePrice(t *testing.T) {
	s := newAnalysisTestServer(t, fixedChartHandler(t, 5))

	w := doRequest(t, s, "/api/analysis/enel/price")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp priceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Ticker != "ENEL" {
		t.Errorf("ticker = %q, want ENEL", resp.Ticker)
	}
	if resp.CurrentPrice != 119.5 {
		t.Errorf("current_price = %v, want 119.5", resp.CurrentPrice)
	}
	if _, err := time.Parse(lastUpdateFormat, resp.LastUpdate); err != nil {
		t.Errorf("last_update %q not parseable: %v", resp.LastUpdate, err)
	}
}

func TestHandleLivePriceNoData(t *testing.T) {
	s := newAnalysisTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(emptyChartJSON())
	})

	w := doRequest(t, s, "/api/analysis/nope/price")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["error"] != "Nessun dato disponibile" {
		t.Errorf("error = %q, want Nessun dato disponibile", resp["error"])
	}
}
