package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stock-insight-backend/internal/cache"
	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/scanner"
	"stock-insight-backend/internal/seasonality"
	"stock-insight-backend/internal/technicals"
	"stock-insight-backend/internal/zones"

	"github.com/gin-gonic/gin"
)

// Timestamp format the charts expect on last_update fields
const lastUpdateFormat = "2006-01-02 15:04:05"

const historyTail = 120

type historyBar struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

type historyResponse struct {
	History []historyBar `json:"history"`
}

type zonesResponse struct {
	Ticker       string            `json:"ticker"`
	CurrentPrice float64           `json:"current_price"`
	Zones        zones.Set         `json:"zones"`
	MarketState  zones.MarketState `json:"market_state"`
	LastUpdate   string            `json:"last_update"`
}

type priceResponse struct {
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"current_price"`
	LastUpdate   string  `json:"last_update"`
}

// queryTimeframe reads the timeframe query param, falling back to daily on
// anything unknown
func queryTimeframe(c *gin.Context) marketdata.Timeframe {
	tf := marketdata.Timeframe(c.DefaultQuery("timeframe", string(marketdata.TimeframeDaily)))
	if !tf.Valid() {
		return marketdata.TimeframeDaily
	}
	return tf
}

// queryBool reads a boolean query param, accepting both camelCase and
// snake_case spellings
func queryBool(c *gin.Context, names ...string) bool {
	for _, n := range names {
		if v, ok := c.GetQuery(n); ok {
			return strings.EqualFold(v, "true")
		}
	}
	return false
}

// overrideFloat parses a numeric override, keeping the default when the
// value is absent or malformed
func overrideFloat(q string, def float64) float64 {
	if q == "" {
		return def
	}
	v, err := strconv.ParseFloat(q, 64)
	if err != nil {
		return def
	}
	return v
}

func overrideInt(q string, def int) int {
	if q == "" {
		return def
	}
	v, err := strconv.Atoi(q)
	if err != nil {
		return def
	}
	return v
}

// handleHistory returns up to 120 OHLC bars for the chart. An unknown symbol
// yields an empty history rather than an error so the chart just clears.
func (s *Server) handleHistory(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Param("symbol")
	tf := queryTimeframe(c)

	key := fmt.Sprintf("%s:%s", marketdata.CleanSymbol(raw), tf)
	var cached historyResponse
	if cache.GetJSON(ctx, s.caches.history, key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	_, candles, err := s.provider.History(ctx, raw, tf)
	if err != nil && !errors.Is(err, marketdata.ErrNoData) {
		s.logger.Error().Err(err).Str("symbol", raw).Msg("history fetch failed")
		c.JSON(http.StatusInternalServerError, historyResponse{History: []historyBar{}})
		return
	}

	if len(candles) > historyTail {
		candles = candles[len(candles)-historyTail:]
	}
	candles = marketdata.FilterValid(candles)

	dateFmt := "2006-01-02"
	if tf == marketdata.TimeframeMonthly {
		dateFmt = "2006-01"
	}

	bars := make([]historyBar, 0, len(candles))
	for _, cd := range candles {
		bars = append(bars, historyBar{
			Date:  cd.Date.Format(dateFmt),
			Open:  round2(cd.Open),
			High:  round2(cd.High),
			Low:   round2(cd.Low),
			Close: round2(cd.Close),
		})
	}

	resp := historyResponse{History: bars}
	cache.SetJSON(ctx, s.caches.history, key, resp)
	c.JSON(http.StatusOK, resp)
}

// handleTechnicals returns the TradingView style indicator table
func (s *Server) handleTechnicals(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Param("symbol")
	tf := queryTimeframe(c)

	key := fmt.Sprintf("%s:%s", marketdata.CleanSymbol(raw), tf)
	var cached technicals.Report
	if cache.GetJSON(ctx, s.caches.technicals, key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	_, candles, err := s.provider.TechnicalsHistory(ctx, raw, tf)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Nessun dato disponibile"})
			return
		}
		s.logger.Error().Err(err).Str("symbol", raw).Msg("technicals fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel recupero dati tecnici"})
		return
	}

	candles = marketdata.FilterValid(candles)
	if len(candles) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Nessun dato disponibile"})
		return
	}

	report := technicals.Compute(candles)
	cache.SetJSON(ctx, s.caches.technicals, key, report)
	c.JSON(http.StatusOK, report)
}

// handleSeasonality returns the per-year seasonal curves with percentile
// bands. Thin histories are a 404, not a degraded chart.
func (s *Server) handleSeasonality(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Param("symbol")
	exclude := queryBool(c, "excludeOutliers", "exclude_outliers")

	key := fmt.Sprintf("%s:outliers=%t", marketdata.CleanSymbol(raw), exclude)
	var cached seasonality.Result
	if cache.GetJSON(ctx, s.caches.seasonality, key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	_, daily, err := s.provider.SeasonalityDaily(ctx, raw)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dati insufficienti"})
			return
		}
		s.logger.Error().Err(err).Str("symbol", raw).Msg("seasonality fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore stagionalità"})
		return
	}

	daily = marketdata.FilterValid(daily)
	if len(daily) < seasonality.MinDailyRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dati insufficienti"})
		return
	}

	monthly := marketdata.ResampleMonthly(daily)
	if len(monthly) < seasonality.MinMonthlyRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dati insufficienti"})
		return
	}

	res, err := seasonality.Compute(monthly, time.Now().UTC().Year(), exclude)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dati stagionalità insufficienti"})
		return
	}

	cache.SetJSON(ctx, s.caches.seasonality, key, res)
	c.JSON(http.StatusOK, res)
}

// handleZones returns the supply/demand zones with the market state. The
// strength, min_pct and gap_pct query params override the per-timeframe
// tuning; malformed overrides fall back to the defaults.
func (s *Server) handleZones(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Param("symbol")
	tf := queryTimeframe(c)
	strengthQ := c.Query("strength")
	minPctQ := c.Query("min_pct")
	gapPctQ := c.Query("gap_pct")

	key := fmt.Sprintf("%s:%s:%s:%s:%s", marketdata.CleanSymbol(raw), tf, strengthQ, minPctQ, gapPctQ)
	var cached zonesResponse
	if cache.GetJSON(ctx, s.caches.zones, key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	resolved, candles, err := s.provider.History(ctx, raw, tf)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Nessun dato disponibile"})
			return
		}
		s.logger.Error().Err(err).Str("symbol", raw).Msg("zones fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel calcolo delle zone"})
		return
	}

	candles = marketdata.FilterValid(candles)
	if len(candles) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Nessun dato disponibile"})
		return
	}

	params := zones.ParamsFor(tf)
	params.Config.StrengthPercentile = overrideFloat(strengthQ, params.Config.StrengthPercentile)
	params.MinDistPct = overrideFloat(minPctQ, params.MinDistPct)
	params.MergeGapPct = overrideFloat(gapPctQ, params.MergeGapPct)

	if len(candles) > params.Tail {
		candles = candles[len(candles)-params.Tail:]
	}

	set := zones.NewDetector(params.Config).Detect(candles)
	price := round2(candles[len(candles)-1].Close)
	set = zones.FilterByDistance(set, price, params.MinDistPct)
	set = zones.MergeClose(set, params.MergeGapPct)
	state := zones.DetermineMarketState(price, set, 0)

	resp := zonesResponse{
		Ticker:       resolved,
		CurrentPrice: price,
		Zones:        set,
		MarketState:  state,
		LastUpdate:   time.Now().UTC().Format(lastUpdateFormat),
	}
	cache.SetJSON(ctx, s.caches.zones, key, resp)
	c.JSON(http.StatusOK, resp)
}

// handleSignal runs the full evaluation pipeline for one symbol
func (s *Server) handleSignal(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Param("symbol")

	opts := scanner.EvaluateOptions{
		Timeframe:       queryTimeframe(c),
		Years:           overrideInt(c.Query("years"), 0),
		ExcludeOutliers: queryBool(c, "excludeOutliers", "exclude_outliers"),
		UseTechFilter:   queryBool(c, "useTech", "use_tech"),
	}

	key := fmt.Sprintf("%s:%s:years=%d:outliers=%t:tech=%t",
		marketdata.CleanSymbol(raw), opts.Timeframe, opts.Years, opts.ExcludeOutliers, opts.UseTechFilter)
	var cached scanner.Evaluation
	if cache.GetJSON(ctx, s.caches.signals, key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	ev, err := s.evaluator.Evaluate(ctx, raw, opts)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Nessun dato disponibile"})
			return
		}
		s.logger.Error().Err(err).Str("symbol", raw).Msg("signal evaluation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel calcolo del segnale"})
		return
	}

	cache.SetJSON(ctx, s.caches.signals, key, ev)
	c.JSON(http.StatusOK, ev)
}

// handleLivePrice returns the latest quote
func (s *Server) handleLivePrice(c *gin.Context) {
	ctx := c.Request.Context()
	raw := c.Param("symbol")

	key := marketdata.CleanSymbol(raw)
	var cached priceResponse
	if cache.GetJSON(ctx, s.caches.quotes, key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	resolved, price, err := s.provider.Quote(ctx, raw)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Nessun dato disponibile"})
			return
		}
		s.logger.Error().Err(err).Str("symbol", raw).Msg("quote fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Errore nel recupero del prezzo"})
		return
	}

	resp := priceResponse{
		Ticker:       resolved,
		CurrentPrice: round2(price),
		LastUpdate:   time.Now().UTC().Format(lastUpdateFormat),
	}
	cache.SetJSON(ctx, s.caches.quotes, key, resp)
	c.JSON(http.StatusOK, resp)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
