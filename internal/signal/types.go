package signal

import (
	"math"
	"strings"
	"time"

	"stock-insight-backend/internal/analysis"
	"stock-insight-backend/internal/marketdata"
)

// Tone is the engine's discrete directional verdict
type Tone string

const (
	ToneBuy     Tone = "buy"
	ToneSell    Tone = "sell"
	ToneNeutral Tone = "neutral"
)

// Label is one of the five classification outcomes
type Label string

const (
	LabelStrongBuy  Label = "Strong Buy"
	LabelBuy        Label = "Buy"
	LabelNeutral    Label = "Neutral"
	LabelSell       Label = "Sell"
	LabelStrongSell Label = "Strong Sell"
)

// Direction is a trend, target or market reading
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// MarketState is the regime reading produced by the zone classifier.
// Direction carries the decided side; State keeps the display string.
type MarketState struct {
	State     string    `json:"state"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0-100
}

// TechSummary is the technical-indicator consensus input
type TechSummary struct {
	General      string  `json:"general"`
	Strength     float64 `json:"strength"` // 0..1
	BuyCount     int     `json:"buyCount"`
	SellCount    int     `json:"sellCount"`
	NeutralCount int     `json:"neutralCount"`
}

// Inputs bundles everything the unified scorer consumes. Gaps are expected
// to be open (already closure-marked and filtered); nil optional fields
// simply zero their contribution.
type Inputs struct {
	CurrentPrice  float64
	Support       []float64
	Resistance    []float64
	Gaps          []analysis.Gap
	GapCloseProb  *float64
	CurrentMedian *float64
	NextMedian    *float64
	Tech          *TechSummary
	UseTechFilter bool
	Market        *MarketState
	ReferenceDate time.Time
}

// PortfolioInputs drives the end-to-end pipeline: gap detection and seasonal
// aggregation run on the raw series before scoring.
type PortfolioInputs struct {
	Candles         []marketdata.Candle
	CurrentPrice    float64
	SeasonCurves    map[int][]float64 // year -> 12 monthly % returns
	Years           []int
	ExcludeOutliers bool
	Support         []float64
	Resistance      []float64
	Tech            *TechSummary
	UseTechFilter   bool
	Market          *MarketState
	ReferenceDate   time.Time
	GapThreshold    float64 // 0 uses the detector default
}

// Components records every sub-contribution for explainability
type Components struct {
	SR        float64 `json:"sr"`
	Gap       float64 `json:"gap"`
	Season    float64 `json:"season"`
	Tech      float64 `json:"tech"`
	Market    float64 `json:"market"`
	Bonus     float64 `json:"bonus"`
	Consensus float64 `json:"consensus"`
}

// PlanSide is the trade direction of an execution plan
type PlanSide string

const (
	SideLong  PlanSide = "long"
	SideShort PlanSide = "short"
)

// ExecutionPlan is the concrete trade layout derived from a non-neutral tone
type ExecutionPlan struct {
	Side        PlanSide `json:"side"`
	EntryMin    float64  `json:"entryMin"`
	EntryMax    float64  `json:"entryMax"`
	Stop        float64  `json:"stop"`
	Target1     float64  `json:"target1"`
	Target2     float64  `json:"target2"`
	RiskReward1 float64  `json:"riskReward1"`
	RiskReward2 float64  `json:"riskReward2"`
}

// Signal is the engine's output aggregate
type Signal struct {
	Label           Label          `json:"label"`
	DisplayLabel    string         `json:"displayLabel"`
	Tone            Tone           `json:"tone"`
	Score           float64        `json:"score"`    // directional score in [-1,1]
	ScorePct        float64        `json:"scorePct"` // buy score on the 0-100 scale
	ConfidencePct   float64        `json:"confidencePct"`
	Regime          string         `json:"regime"`
	TargetDirection Direction      `json:"targetDirection"`
	TargetGap       *analysis.Gap  `json:"targetGap,omitempty"`
	ExecutionPlan   *ExecutionPlan `json:"executionPlan,omitempty"`
	Components      Components     `json:"components"`
}

// ParseMarketDirection maps a free-text market status onto a direction.
// Kept as an adapter for callers that only carry a display string; the zone
// classifier sets Direction explicitly.
func ParseMarketDirection(state string) Direction {
	upper := strings.ToUpper(state)
	for _, kw := range []string{"BUY", "BULL", "SUPPORT", "LONG"} {
		if strings.Contains(upper, kw) {
			return DirectionUp
		}
	}
	for _, kw := range []string{"SELL", "BEAR", "RESIST", "SHORT"} {
		if strings.Contains(upper, kw) {
			return DirectionDown
		}
	}
	return DirectionNeutral
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
