package signal

import (
	"stock-insight-backend/internal/analysis"
	"stock-insight-backend/internal/marketdata"
)

// ComputePortfolio runs the full pipeline for one instrument: gap detection
// and closure marking on the raw candles, seasonal band aggregation, then the
// unified scoring pass. Degenerate inputs fall through to a neutral signal
// rather than an error.
func (s *Scorer) ComputePortfolio(in PortfolioInputs) Signal {
	candles := marketdata.FilterValid(in.Candles)

	detector := analysis.NewGapDetector(in.GapThreshold)
	gaps := detector.MarkClosure(candles, detector.Detect(candles))

	var closeProb *float64
	if p, ok := detector.ClosureProbability(candles, gaps, analysis.DefaultClosureLookahead); ok {
		closeProb = &p
	}

	var currentMedian, nextMedian *float64
	if len(in.SeasonCurves) > 0 && len(in.Years) > 0 && !in.ReferenceDate.IsZero() {
		curves := in.SeasonCurves
		if in.ExcludeOutliers {
			curves = Winsorize(curves)
		}
		bands := ComputeCumulativePercentiles(curves, in.Years)
		month := int(in.ReferenceDate.Month()) - 1
		cur := bands[month].Median
		next := bands[(month+1)%12].Median
		currentMedian, nextMedian = &cur, &next
	}

	return s.Compute(Inputs{
		CurrentPrice:  in.CurrentPrice,
		Support:       in.Support,
		Resistance:    in.Resistance,
		Gaps:          analysis.OpenGaps(gaps),
		GapCloseProb:  closeProb,
		CurrentMedian: currentMedian,
		NextMedian:    nextMedian,
		Tech:          in.Tech,
		UseTechFilter: in.UseTechFilter,
		Market:        in.Market,
		ReferenceDate: in.ReferenceDate,
	})
}
