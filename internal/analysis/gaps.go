package analysis

import (
	"time"

	"stock-insight-backend/internal/marketdata"
)

// GapType represents the candle pattern that produced a price gap
type GapType string

const (
	GapUp          GapType = "gap_up"
	GapDown        GapType = "gap_down"
	GapUp3Candle   GapType = "gap_up_3candle"
	GapDown3Candle GapType = "gap_down_3candle"
)

// GapDirection is the side of the price void relative to prior trading
type GapDirection string

const (
	GapDirectionUp   GapDirection = "up"
	GapDirectionDown GapDirection = "down"
)

const (
	// DefaultGapThreshold is the minimum relative jump (1%) for two-candle gaps
	DefaultGapThreshold = 0.01

	// DefaultClosureLookahead is the candle window used for closure probability
	DefaultClosureLookahead = 10

	// closureFillPct marks a gap closed once this much of the void is retraced
	closureFillPct = 50.0
)

// Gap represents a price discontinuity between candles
type Gap struct {
	Index     int          `json:"index"`
	Date      time.Time    `json:"date"`
	Type      GapType      `json:"type"`
	Start     float64      `json:"start"`
	End       float64      `json:"end"`
	SizePct   float64      `json:"sizePct"`
	Direction GapDirection `json:"direction"`
	Closed    bool         `json:"closed"`
	FillPct   float64      `json:"fillPct"`
}

// GapDetector finds two-candle and three-candle price gaps in a candle series
type GapDetector struct {
	threshold float64 // Minimum relative size for two-candle gaps
}

// NewGapDetector creates a gap detector. A non-positive threshold falls back
// to the 1% default.
func NewGapDetector(threshold float64) *GapDetector {
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}
	return &GapDetector{threshold: threshold}
}

// Detect scans the candles in order and returns every gap found, anchored at
// the candle that completed it. Two-candle gaps must exceed the relative
// threshold; three-candle gaps only require the strict high/low separation.
// The two forms are intentionally not deduplicated when they overlap.
func (gd *GapDetector) Detect(candles []marketdata.Candle) []Gap {
	if len(candles) < 2 {
		return nil
	}

	var gaps []Gap

	for i := 1; i < len(candles); i++ {
		prev := candles[i-1]
		curr := candles[i]

		// Two-candle gap up: current low clears the previous high
		if curr.Low > prev.High*(1+gd.threshold) {
			gaps = append(gaps, Gap{
				Index:     i,
				Date:      curr.Date,
				Type:      GapUp,
				Start:     prev.High,
				End:       curr.Low,
				SizePct:   (curr.Low - prev.High) / prev.High * 100,
				Direction: GapDirectionUp,
			})
		}

		// Two-candle gap down: current high stays under the previous low
		if curr.High < prev.Low*(1-gd.threshold) {
			gaps = append(gaps, Gap{
				Index:     i,
				Date:      curr.Date,
				Type:      GapDown,
				Start:     curr.High,
				End:       prev.Low,
				SizePct:   (curr.High - prev.Low) / prev.Low * 100,
				Direction: GapDirectionDown,
			})
		}

		if i < 2 {
			continue
		}

		c1 := candles[i-2]
		c2 := candles[i-1]
		c3 := candles[i]

		// Three-candle gap up: three bullish candles whose third never
		// trades back into the first's range
		if c1.IsBullish() && c2.IsBullish() && c3.IsBullish() && c3.Low >= c1.High {
			gaps = append(gaps, Gap{
				Index:     i,
				Date:      c3.Date,
				Type:      GapUp3Candle,
				Start:     c1.High,
				End:       c3.Low,
				SizePct:   (c3.Low - c1.High) / c1.High * 100,
				Direction: GapDirectionUp,
			})
		}

		// Three-candle gap down: mirrored bearish form
		if c1.IsBearish() && c2.IsBearish() && c3.IsBearish() && c3.High <= c1.Low {
			gaps = append(gaps, Gap{
				Index:     i,
				Date:      c3.Date,
				Type:      GapDown3Candle,
				Start:     c3.High,
				End:       c1.Low,
				SizePct:   (c3.High - c1.Low) / c1.Low * 100,
				Direction: GapDirectionDown,
			})
		}
	}

	return gaps
}

// MarkClosure annotates each gap with its maximum fill percentage and closed
// flag against the candles after its anchor. Scanning stops for a gap as soon
// as the 50% closure level is reached; the recorded FillPct is the running
// maximum up to that point. The input slice is not modified.
func (gd *GapDetector) MarkClosure(candles []marketdata.Candle, gaps []Gap) []Gap {
	out := make([]Gap, len(gaps))
	copy(out, gaps)

	for g := range out {
		gap := &out[g]
		gap.Closed = false
		gap.FillPct = 0

		for i := gap.Index + 1; i < len(candles); i++ {
			fill := fillPercent(*gap, candles[i])
			if fill > gap.FillPct {
				gap.FillPct = fill
			}
			if gap.FillPct >= closureFillPct {
				gap.Closed = true
				break
			}
		}
	}

	return out
}

// ClosureProbability computes the share of gaps that reached the 50% fill
// level within the next lookahead candles after their anchor, as a percentage
// over all gaps given. The second return is false when there are no gaps to
// measure.
func (gd *GapDetector) ClosureProbability(candles []marketdata.Candle, gaps []Gap, lookahead int) (float64, bool) {
	if len(gaps) == 0 {
		return 0, false
	}
	if lookahead <= 0 {
		lookahead = DefaultClosureLookahead
	}

	closed := 0
	for _, gap := range gaps {
		maxFill := 0.0
		limit := gap.Index + lookahead
		for i := gap.Index + 1; i < len(candles) && i <= limit; i++ {
			fill := fillPercent(gap, candles[i])
			if fill > maxFill {
				maxFill = fill
			}
			if maxFill >= closureFillPct {
				break
			}
		}
		if maxFill >= closureFillPct {
			closed++
		}
	}

	return float64(closed) / float64(len(gaps)) * 100, true
}

// OpenGaps returns the gaps not yet marked closed.
func OpenGaps(gaps []Gap) []Gap {
	var open []Gap
	for _, gap := range gaps {
		if !gap.Closed {
			open = append(open, gap)
		}
	}
	return open
}

// fillPercent measures how much of the gap's void the candle retraced,
// clamped to [0,100]. Up gaps fill from the top down (candle lows), down
// gaps from the bottom up (candle highs). A degenerate void has fill 0.
func fillPercent(gap Gap, candle marketdata.Candle) float64 {
	lower := gap.Start
	upper := gap.End
	if lower > upper {
		lower, upper = upper, lower
	}
	size := upper - lower
	if size <= 0 {
		return 0
	}

	var fill float64
	if gap.Direction == GapDirectionUp {
		probe := candle.Low
		if probe < lower {
			probe = lower
		}
		fill = (upper - probe) / size * 100
	} else {
		probe := candle.High
		if probe > upper {
			probe = upper
		}
		fill = (probe - lower) / size * 100
	}

	if fill < 0 {
		return 0
	}
	if fill > 100 {
		return 100
	}
	return fill
}
