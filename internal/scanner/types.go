package scanner

import (
	"time"

	"stock-insight-backend/internal/marketdata"
	"stock-insight-backend/internal/signal"
	"stock-insight-backend/internal/zones"
)

// Evaluation is one symbol's end-to-end pipeline outcome: resolved quote
// symbol, last price, regime reading and the unified signal.
type Evaluation struct {
	Symbol       string               `json:"symbol"`
	Timeframe    marketdata.Timeframe `json:"timeframe"`
	CurrentPrice float64              `json:"current_price"`
	MarketState  zones.MarketState    `json:"market_state"`
	Signal       signal.Signal        `json:"signal"`
	EvaluatedAt  time.Time            `json:"evaluated_at"`
}

// ScanResult aggregates one scan cycle over the watched symbols. Results
// are ranked by buy score, best first.
type ScanResult struct {
	ScanID         string        `json:"scan_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	SymbolsScanned int           `json:"symbols_scanned"`
	Failed         int           `json:"failed"`
	Results        []Evaluation  `json:"results"`
}

// Config holds scanner configuration
type Config struct {
	Enabled      bool
	ScanInterval time.Duration
	WorkerCount  int
	MaxSymbols   int // cap on symbols per scan cycle
}

// EvaluateOptions tunes one pipeline run
type EvaluateOptions struct {
	Timeframe       marketdata.Timeframe
	Years           int // limit seasonal percentiles to the most recent N years, 0 keeps all
	ExcludeOutliers bool
	UseTechFilter   bool
}
