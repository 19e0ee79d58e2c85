package signal

import (
	"math"
	"strings"
	"time"

	"stock-insight-backend/internal/analysis"
)

type weights struct {
	sr     float64
	gap    float64
	season float64
	tech   float64
	market float64
}

// Scorer blends zone position, open gaps, seasonal bands, technical consensus
// and the market regime into one unified signal. All methods are pure: same
// inputs, same output, no I/O.
type Scorer struct {
	base     weights // technical filter off
	withTech weights // technical filter on

	// Contradiction multipliers applied when a component fights the zone trend
	seasonPenalty float64
	techPenalty   float64
	marketPenalty float64
}

// NewScorer returns a scorer with the production weighting
func NewScorer() *Scorer {
	return &Scorer{
		base: weights{
			sr:     0.40, // 40% - distance to support/resistance
			gap:    0.25, // 25% - open gap attraction
			season: 0.25, // 25% - seasonal median slope
			market: 0.10, // 10% - zone regime
		},
		withTech: weights{
			sr:     0.32,
			gap:    0.23,
			season: 0.20,
			tech:   0.17,
			market: 0.10,
		},
		seasonPenalty: 0.72,
		techPenalty:   0.68,
		marketPenalty: 0.80,
	}
}

type srReading struct {
	score      float64
	trend      Direction
	support    *float64
	resistance *float64
}

type gapReading struct {
	score           float64
	target          *analysis.Gap
	targetDirection Direction
}

// Compute derives the unified signal for one instrument and timeframe
func (s *Scorer) Compute(in Inputs) Signal {
	if !isFinite(in.CurrentPrice) || in.CurrentPrice <= 0 {
		return insufficientData()
	}
	price := in.CurrentPrice

	// 1. Sub-scores
	sr := s.scoreSupportResistance(price, in.Support, in.Resistance)
	gap := s.scoreGaps(price, sr.trend, in.Gaps, in.GapCloseProb)
	seasonScore, seasonDir, hasSeason := s.scoreSeason(in.CurrentMedian, in.NextMedian)
	techScore, techDir, techActive := s.scoreTech(in.Tech, in.UseTechFilter)
	marketScore, marketDir := s.scoreMarket(in.Market)

	// 2. Weighted blend with contradiction penalties
	w := s.base
	if techActive {
		w = s.withTech
	}
	score := sr.score*w.sr + gap.score*w.gap + seasonScore*w.season +
		techScore*w.tech + marketScore*w.market
	if sr.trend != DirectionNeutral {
		if seasonDir != DirectionNeutral && seasonDir != sr.trend {
			score *= s.seasonPenalty
		}
		if techActive && techDir != DirectionNeutral && techDir != sr.trend {
			score *= s.techPenalty
		}
		if marketDir != DirectionNeutral && marketDir != sr.trend {
			score *= s.marketPenalty
		}
	}
	score = clamp(score, -1, 1)

	// 3. Votes and consensus
	subScores := []float64{sr.score, gap.score, seasonScore, marketScore}
	if techActive {
		subScores = append(subScores, techScore)
	}
	bullVotes, bearVotes := 0, 0
	for _, v := range subScores {
		votes := 0
		if math.Abs(v) >= 0.5 {
			votes = 2
		} else if math.Abs(v) >= 0.16 {
			votes = 1
		}
		if v > 0 {
			bullVotes += votes
		} else if v < 0 {
			bearVotes += votes
		}
	}
	totalVotes := bullVotes + bearVotes
	consensus, alignment := 0.0, 0.0
	if totalVotes > 0 {
		consensus = float64(bullVotes-bearVotes) / float64(totalVotes)
		if bullVotes > bearVotes {
			alignment = float64(bullVotes) / float64(totalVotes)
		} else {
			alignment = float64(bearVotes) / float64(totalVotes)
		}
	}

	// 4. Confidence
	confidence := math.Abs(score)*55 + alignment*25
	if totalVotes > 0 {
		confidence += 12
	}
	confidence = clamp(confidence, 0, 100)
	if techActive {
		strengthPct := in.Tech.Strength * 100
		confidence += math.Abs(strengthPct-50) / 50 * 8
	}
	if gap.target == nil {
		confidence -= 8
	}
	confidence = clamp(confidence, 0, 100)

	// 5. Regime
	regime := regimeLabel(score)

	// 6. Month-end bonus
	bonus := 0.0
	if hasSeason && nearMonthEnd(in.ReferenceDate) {
		cur, next := *in.CurrentMedian, *in.NextMedian
		if cur < 0 && next > 0 {
			bonus = 8
		} else if cur > 0 && next < 0 {
			bonus = -8
		}
	}

	// 7. Buy score and confirmation
	trendTargetUp := sr.trend == DirectionUp && gap.targetDirection == DirectionUp
	trendTargetDown := sr.trend == DirectionDown && gap.targetDirection == DirectionDown
	confirmedLong := trendTargetUp && seasonDir != DirectionDown &&
		(!techActive || techDir != DirectionDown)
	confirmedShort := trendTargetDown && seasonDir != DirectionUp &&
		(!techActive || techDir != DirectionUp)

	buyScore := 50 + score*40 + bonus + consensus*12 + (confidence-50)*0.15
	buyScore = clamp(buyScore, 0, 100)
	if confirmedLong {
		buyScore = clamp(buyScore+5, 0, 100)
	} else if confirmedShort {
		buyScore = clamp(buyScore-5, 0, 100)
	}

	// 8. Classification
	label, tone := LabelNeutral, ToneNeutral
	switch {
	case buyScore >= 76 && confidence >= 70 && bullVotes >= 3 && confirmedLong:
		label, tone = LabelStrongBuy, ToneBuy
	case buyScore >= 60 && confidence >= 56 && bullVotes >= 2 &&
		(trendTargetUp || seasonDir != DirectionDown || consensus > 0.2):
		label, tone = LabelBuy, ToneBuy
	case buyScore <= 24 && confidence >= 70 && bearVotes >= 3 && confirmedShort:
		label, tone = LabelStrongSell, ToneSell
	case buyScore <= 40 && confidence >= 56 && bearVotes >= 2 &&
		(trendTargetDown || seasonDir != DirectionUp || consensus < -0.2):
		label, tone = LabelSell, ToneSell
	}

	display := string(label)
	if bonus > 0 && buyScore >= 62 {
		display += " (fine mese)"
	} else if bonus < 0 && buyScore <= 38 {
		display += " (fine mese)"
	}

	// 9. Execution plan for actionable tones
	var plan *ExecutionPlan
	if tone == ToneBuy {
		plan = buildLongPlan(price, in.Support, in.Resistance, gap.target)
	} else if tone == ToneSell {
		plan = buildShortPlan(price, in.Support, in.Resistance, gap.target)
	}

	return Signal{
		Label:           label,
		DisplayLabel:    display,
		Tone:            tone,
		Score:           score,
		ScorePct:        buyScore,
		ConfidencePct:   confidence,
		Regime:          regime,
		TargetDirection: gap.targetDirection,
		TargetGap:       gap.target,
		ExecutionPlan:   plan,
		Components: Components{
			SR:        sr.score,
			Gap:       gap.score,
			Season:    seasonScore,
			Tech:      techScore,
			Market:    marketScore,
			Bonus:     bonus,
			Consensus: consensus,
		},
	}
}

// scoreSupportResistance positions the price between the nearest levels.
// One-sided inputs collapse to a fixed lean instead of a full vote.
func (s *Scorer) scoreSupportResistance(price float64, support, resistance []float64) srReading {
	var nearestSup, nearestRes *float64
	for _, level := range support {
		if !isFinite(level) || level <= 0 || level > price {
			continue
		}
		if nearestSup == nil || level > *nearestSup {
			l := level
			nearestSup = &l
		}
	}
	for _, level := range resistance {
		if !isFinite(level) || level <= 0 || level < price {
			continue
		}
		if nearestRes == nil || level < *nearestRes {
			l := level
			nearestRes = &l
		}
	}

	reading := srReading{trend: DirectionNeutral, support: nearestSup, resistance: nearestRes}
	switch {
	case nearestSup != nil && nearestRes != nil:
		distSup := price - *nearestSup
		distRes := *nearestRes - price
		if total := distSup + distRes; total > 1e-12 {
			reading.score = (distRes - distSup) / total
		}
	case nearestSup != nil:
		reading.score = 0.35
	case nearestRes != nil:
		reading.score = -0.35
	}
	if reading.score > 0.08 {
		reading.trend = DirectionUp
	} else if reading.score < -0.08 {
		reading.trend = DirectionDown
	}
	return reading
}

// scoreGaps picks the open gap the price is most likely to travel to and
// scores its pull. The trend restricts candidates to its own side; a neutral
// trend considers both sides.
func (s *Scorer) scoreGaps(price float64, trend Direction, gaps []analysis.Gap, closeProb *float64) gapReading {
	reading := gapReading{targetDirection: DirectionNeutral}

	var best *analysis.Gap
	bestDist := math.MaxFloat64
	bestSide := DirectionNeutral
	for i := range gaps {
		g := gaps[i]
		if g.Closed {
			continue
		}
		lower, upper := g.Start, g.End
		if lower > upper {
			lower, upper = upper, lower
		}
		dist := 0.0
		if price < lower {
			dist = lower - price
		} else if price > upper {
			dist = price - upper
		}
		side := DirectionUp
		if (lower+upper)/2 < price {
			side = DirectionDown
		}
		if trend == DirectionUp && side != DirectionUp {
			continue
		}
		if trend == DirectionDown && side != DirectionDown {
			continue
		}
		if dist < bestDist {
			bestDist = dist
			bestSide = side
			best = &gaps[i]
		}
	}
	if best == nil {
		return reading
	}

	target := *best
	reading.target = &target
	reading.targetDirection = bestSide

	distancePct := bestDist / price * 100
	pull := clamp(1-distancePct/9, 0.15, 1)
	if target.Direction == analysis.GapDirectionDown {
		pull = -pull
	}
	if closeProb != nil && isFinite(*closeProb) {
		edge := clamp((*closeProb-50)/50, -1, 1)
		sign := 1.0
		if pull < 0 {
			sign = -1
		}
		pull = pull*0.8 + sign*edge*0.25
	}
	reading.score = clamp(pull, -1, 1)
	return reading
}

// scoreSeason reads the slope from this month's cumulative median to the next
func (s *Scorer) scoreSeason(current, next *float64) (float64, Direction, bool) {
	if current == nil || next == nil || !isFinite(*current) || !isFinite(*next) {
		return 0, DirectionNeutral, false
	}
	delta := *next - *current
	score := clamp(delta/10, -1, 1)
	dir := DirectionNeutral
	if delta > 0.15 {
		dir = DirectionUp
	} else if delta < -0.15 {
		dir = DirectionDown
	}
	return score, dir, true
}

// scoreTech folds the indicator strength and the buy/sell count spread. A
// contradicting general label caps the magnitude instead of flipping it.
func (s *Scorer) scoreTech(summary *TechSummary, useFilter bool) (float64, Direction, bool) {
	if !useFilter || summary == nil {
		return 0, DirectionNeutral, false
	}
	strengthPct := summary.Strength * 100
	edge := clamp((strengthPct-50)/45, -1, 1)
	countSpread := 0.0
	if total := summary.BuyCount + summary.SellCount + summary.NeutralCount; total > 0 {
		countSpread = clamp(float64(summary.BuyCount-summary.SellCount)/float64(total), -1, 1)
	}
	score := clamp(edge*0.65+countSpread*0.35, -1, 1)

	dir := DirectionNeutral
	general := strings.ToLower(summary.General)
	if strings.Contains(general, "buy") {
		dir = DirectionUp
	} else if strings.Contains(general, "sell") {
		dir = DirectionDown
	}
	if dir == DirectionUp && score < -0.15 {
		score = -0.15
	} else if dir == DirectionDown && score > 0.15 {
		score = 0.15
	}
	return score, dir, true
}

// scoreMarket converts the zone regime into a floored directional magnitude
func (s *Scorer) scoreMarket(state *MarketState) (float64, Direction) {
	if state == nil {
		return 0, DirectionNeutral
	}
	dir := state.Direction
	if dir == "" {
		dir = ParseMarketDirection(state.State)
	}
	if dir != DirectionUp && dir != DirectionDown {
		return 0, DirectionNeutral
	}
	magnitude := clamp(0.35+state.Strength/100*0.65, 0, 1)
	if dir == DirectionDown {
		return -magnitude, dir
	}
	return magnitude, dir
}

func regimeLabel(score float64) string {
	abs := math.Abs(score)
	if abs >= 0.5 {
		return "Trend forte"
	}
	if abs >= 0.25 {
		return "Trend moderato"
	}
	return "Range"
}

// nearMonthEnd reports whether fewer than four days remain in the month
func nearMonthEnd(ref time.Time) bool {
	if ref.IsZero() {
		return false
	}
	daysInMonth := time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, ref.Location()).Day()
	return daysInMonth-ref.Day() < 4
}

func insufficientData() Signal {
	return Signal{
		Label:           LabelNeutral,
		DisplayLabel:    string(LabelNeutral),
		Tone:            ToneNeutral,
		ScorePct:        50,
		Regime:          "Dati insufficienti",
		TargetDirection: DirectionNeutral,
	}
}

